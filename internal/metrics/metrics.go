package metrics

import (
	"context"
	"expvar"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/DMarby/picsum-editor/internal/handler"
	"github.com/DMarby/picsum-editor/internal/health"
	"github.com/DMarby/picsum-editor/internal/logger"
	"tailscale.com/tsweb"
)

const shutdownTimeout = 5 * time.Second

// Serve starts an http server for metrics, healthchecks and profiling, and blocks until ctx is done.
// Open sessions are exported as gauge_sessions when sessions is not nil.
func Serve(ctx context.Context, log *logger.Logger, healthChecker *health.Checker, sessions health.SessionCounter, listenAddress string) {
	if sessions != nil && expvar.Get("gauge_sessions") == nil {
		expvar.Publish("gauge_sessions", expvar.Func(func() any {
			return sessions.Len()
		}))
	}

	router := http.NewServeMux()
	router.HandleFunc("/metrics", tsweb.VarzHandler)
	router.Handle("/health", handler.Health(healthChecker))

	router.HandleFunc("/debug/pprof/", pprof.Index)
	router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	router.HandleFunc("/debug/pprof/profile", pprof.Profile)
	router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	router.HandleFunc("/debug/pprof/trace", pprof.Trace)

	server := &http.Server{
		Addr:     listenAddress,
		Handler:  router,
		ErrorLog: logger.NewHTTPErrorLog(log),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics http server stopped: %s", err)
		}
	}()

	log.Infof("metrics http server listening on %s", listenAddress)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("error shutting down metrics http server: %s", err)
	}
}
