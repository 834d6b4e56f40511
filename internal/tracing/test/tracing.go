package test

import (
	"github.com/DMarby/picsum-editor/internal/logger"
	"github.com/DMarby/picsum-editor/internal/tracing"
)

// Tracer returns a tracer for tests that records nothing
func Tracer(log *logger.Logger) *tracing.Tracer {
	return tracing.Noop(log, "test")
}
