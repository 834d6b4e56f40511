package health

import (
	"context"
	"expvar"
	"sync"
	"time"

	"github.com/DMarby/picsum-editor/internal/cache"
	"github.com/DMarby/picsum-editor/internal/logger"
	"github.com/DMarby/picsum-editor/internal/storage"
)

const (
	checkInterval = 10 * time.Second
	checkTimeout  = 8 * time.Second
)

// Component states
const (
	StateHealthy   = "healthy"
	StateUnhealthy = "unhealthy"
	StateUnknown   = "unknown"
)

var healthyGauge = expvar.NewInt("gauge_healthy")

// SessionCounter reports the number of open editing sessions
type SessionCounter interface {
	Len() int
}

// Checker periodically checks the backends the editor depends on
type Checker struct {
	Ctx      context.Context
	Log      *logger.Logger
	Cache    cache.Provider
	Storage  storage.Provider
	ImageID  string // Source image fetched when checking storage, only needed with a Storage
	Sessions SessionCounter

	status Status
	mutex  sync.RWMutex
}

// Status is the result of the latest check
type Status struct {
	Healthy  bool   `json:"healthy"`
	Cache    string `json:"cache,omitempty"`
	Storage  string `json:"storage,omitempty"`
	Sessions int    `json:"sessions,omitempty"`
}

// Run performs a check and then keeps checking in the background until Ctx is done
func (c *Checker) Run() {
	c.runCheck()

	ticker := time.NewTicker(checkInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.runCheck()
			case <-c.Ctx.Done():
				return
			}
		}
	}()
}

// Status returns the result of the latest check
func (c *Checker) Status() Status {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.status
}

func (c *Checker) runCheck() {
	ctx, cancel := context.WithTimeout(c.Ctx, checkTimeout)
	defer cancel()

	result := make(chan Status, 1)
	go func() {
		result <- c.check(ctx)
	}()

	var status Status
	select {
	case <-ctx.Done():
		status = c.initial()
		status.Healthy = false
		c.Log.Errorw("healthcheck timed out")
	case status = <-result:
		if !status.Healthy {
			c.Log.Errorw("healthcheck error", "status", status)
		}
	}

	c.mutex.Lock()
	c.status = status
	c.mutex.Unlock()

	if status.Healthy {
		healthyGauge.Set(1)
	} else {
		healthyGauge.Set(0)
	}
}

func (c *Checker) initial() Status {
	status := Status{Healthy: true}
	if c.Cache != nil {
		status.Cache = StateUnknown
	}
	if c.Storage != nil {
		status.Storage = StateUnknown
	}
	if c.Sessions != nil {
		status.Sessions = c.Sessions.Len()
	}

	return status
}

func (c *Checker) check(ctx context.Context) Status {
	status := c.initial()

	// The cache never holds the healthcheck key, so anything but ErrNotFound means it is broken
	if c.Cache != nil {
		_, err := c.Cache.Get(ctx, "healthcheck")
		status.Cache = state(err == cache.ErrNotFound, &status)
	}

	if c.Storage != nil && ctx.Err() == nil {
		_, err := c.Storage.Get(ctx, c.ImageID)
		status.Storage = state(err == nil, &status)
	}

	return status
}

func state(ok bool, status *Status) string {
	if ok {
		return StateHealthy
	}

	status.Healthy = false
	return StateUnhealthy
}
