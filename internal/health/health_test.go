package health_test

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/DMarby/picsum-editor/internal/health"
	"github.com/DMarby/picsum-editor/internal/logger"
	"go.uber.org/zap"

	fileStorage "github.com/DMarby/picsum-editor/internal/storage/file"
	mockStorage "github.com/DMarby/picsum-editor/internal/storage/mock"

	memoryCache "github.com/DMarby/picsum-editor/internal/cache/memory"
	mockCache "github.com/DMarby/picsum-editor/internal/cache/mock"
)

func TestHealth(t *testing.T) {
	log := logger.New(zap.FatalLevel)
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "1.jpg"), []byte("image"), 0o644); err != nil {
		t.Fatal(err)
	}

	storage, err := fileStorage.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	cache := memoryCache.New()

	checker := &health.Checker{Ctx: ctx, Storage: storage, ImageID: "1", Cache: cache, Log: log}
	mockStorageChecker := &health.Checker{Ctx: ctx, Storage: &mockStorage.Provider{}, ImageID: "1", Cache: cache, Log: log}
	mockCacheChecker := &health.Checker{Ctx: ctx, Storage: storage, ImageID: "1", Cache: &mockCache.Provider{}, Log: log}
	cacheOnlyChecker := &health.Checker{Ctx: ctx, Cache: cache, Log: log}
	sessionsChecker := &health.Checker{Ctx: ctx, Cache: cache, Sessions: sessionCount(3), Log: log}

	tests := []struct {
		Name           string
		ExpectedStatus health.Status
		Checker        *health.Checker
	}{
		{
			Name: "runs checks and returns correct status",
			ExpectedStatus: health.Status{
				Healthy: true,
				Cache:   "healthy",
				Storage: "healthy",
			},
			Checker: checker,
		},
		{
			Name: "runs checks and returns correct status with broken storage",
			ExpectedStatus: health.Status{
				Healthy: false,
				Cache:   "healthy",
				Storage: "unhealthy",
			},
			Checker: mockStorageChecker,
		},
		{
			Name: "runs checks and returns correct status with broken cache",
			ExpectedStatus: health.Status{
				Healthy: false,
				Cache:   "unhealthy",
				Storage: "healthy",
			},
			Checker: mockCacheChecker,
		},
		{
			Name: "runs checks and returns correct status with only a cache",
			ExpectedStatus: health.Status{
				Healthy: true,
				Cache:   "healthy",
			},
			Checker: cacheOnlyChecker,
		},
		{
			Name: "reports open sessions",
			ExpectedStatus: health.Status{
				Healthy:  true,
				Cache:    health.StateHealthy,
				Sessions: 3,
			},
			Checker: sessionsChecker,
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			test.Checker.Run()
			status := test.Checker.Status()

			if !reflect.DeepEqual(status, test.ExpectedStatus) {
				t.Errorf("wrong status %+v", status)
			}
		})
	}
}

type sessionCount int

func (s sessionCount) Len() int {
	return int(s)
}
