package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Http timeouts, reads cover full image uploads
const (
	ReadTimeout     = 30 * time.Second
	WriteTimeout    = time.Minute
	HandlerTimeout  = 45 * time.Second
	ShutdownTimeout = 15 * time.Second
)

// WaitForInterrupt blocks until SIGINT or SIGTERM is received or ctx is done
func WaitForInterrupt(ctx context.Context) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case sig := <-c:
		return fmt.Errorf("received signal %s", sig)
	case <-ctx.Done():
		return errors.New("canceled")
	}
}
