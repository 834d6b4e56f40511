package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/DMarby/picsum-editor/internal/blob"
	"github.com/DMarby/picsum-editor/internal/cache"
	"github.com/DMarby/picsum-editor/internal/cache/memory"
	"github.com/DMarby/picsum-editor/internal/cache/redis"
	"github.com/DMarby/picsum-editor/internal/cmd"
	"github.com/DMarby/picsum-editor/internal/cropper"
	"github.com/DMarby/picsum-editor/internal/editor"
	"github.com/DMarby/picsum-editor/internal/health"
	"github.com/DMarby/picsum-editor/internal/hmac"
	"github.com/DMarby/picsum-editor/internal/logger"
	"github.com/DMarby/picsum-editor/internal/metrics"
	"github.com/DMarby/picsum-editor/internal/storage"
	fileStorage "github.com/DMarby/picsum-editor/internal/storage/file"
	"github.com/DMarby/picsum-editor/internal/storage/spaces"
	"github.com/DMarby/picsum-editor/internal/tracing"

	api "github.com/DMarby/picsum-editor/internal/editorapi"

	"github.com/jamiealquiza/envy"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
)

// Commandline flags
var (
	// Global
	listen             = flag.String("listen", ":8080", "listen address")
	metricsListen      = flag.String("metrics-listen", "127.0.0.1:8082", "metrics listen address")
	loglevel           = zap.LevelFlag("log-level", zap.InfoLevel, "log level (default \"info\") (debug, info, warn, error, dpanic, panic, fatal)")
	tracingEnabled     = flag.Bool("tracing", false, "export traces using otlp")
	tracingSampleRatio = flag.Float64("tracing-sample-ratio", 1, "fraction of requests to trace")

	// Editor
	containerWidth  = flag.Float64("container-width", editor.DefaultContainerWidth, "width of the cropper container")
	containerHeight = flag.Float64("container-height", editor.DefaultContainerHeight, "height of the cropper container")
	decoderWorkers  = flag.Int("decoder-workers", runtime.GOMAXPROCS(0), "number of image decoding workers")
	maxUploadSize   = flag.Int64("max-upload-size", 64<<20, "maximum upload size in bytes")

	// Storage
	storageBackend = flag.String("storage", "file", "which storage backend to use (file, spaces)")

	// Storage - File
	storageFilePath = flag.String("storage-file-path", "./images", "path to the file storage")

	// Storage - Spaces
	storageSpacesSpace          = flag.String("storage-spaces-space", "", "digitalocean space to use")
	storageSpacesEndpoint       = flag.String("storage-spaces-endpoint", "", "spaces endpoint")
	storageSpacesAccessKey      = flag.String("storage-spaces-access-key", "", "spaces access key")
	storageSpacesSecretKey      = flag.String("storage-spaces-secret-key", "", "spaces secret key")
	storageSpacesForcePathStyle = flag.Bool("storage-spaces-force-path-style", false, "use path style addressing, for s3 compatible storage")

	// Cache
	cacheBackend = flag.String("cache", "memory", "which cache backend to use (memory, redis)")

	// Cache - Redis
	cacheRedisAddress  = flag.String("cache-redis-address", "redis://127.0.0.1:6379", "redis address, may contain authentication details")
	cacheRedisPoolSize = flag.Int("cache-redis-pool-size", 10, "redis connection pool size")
	cacheRedisExpiry   = flag.Duration("cache-redis-expiry", 24*time.Hour, "how long blobs are kept in redis, 0 keeps them until deleted")

	// Healthcheck
	healthCheckImageID = flag.String("health-check-image-id", "1", "image ID to request from the storage to check storage health")

	// HMAC
	hmacKey = flag.String("hmac-key", "", "hmac key to use for signing blob urls, random if empty")
)

func main() {
	// Parse environment variables
	envy.Parse("EDITOR")

	// Parse commandline flags
	flag.Parse()

	// Initialize the logger
	log := logger.New(*loglevel, logger.WithService("image-editor"))
	defer log.Sync()

	// Set GOMAXPROCS
	maxprocs.Set(maxprocs.Logger(log.Infof))

	// Set up context for shutting down
	shutdownCtx, shutdown := context.WithCancel(context.Background())
	defer shutdown()

	// Initialize tracing
	tracer := tracing.Noop(log, "image-editor")
	if *tracingEnabled {
		var err error
		tracer, err = tracing.New(shutdownCtx, log, "image-editor", *tracingSampleRatio)
		if err != nil {
			log.Fatalf("error initializing tracing: %s", err)
		}
	}
	defer tracer.Shutdown(context.Background())

	// Initialize the storage, cache
	storage, cache, err := setupBackends(shutdownCtx, tracer)
	if err != nil {
		log.Fatalf("error initializing backends: %s", err)
	}
	defer cache.Shutdown()

	// Initialize the decoder and session registry
	decoderCtx, decoderCancel := context.WithCancel(context.Background())
	defer decoderCancel()

	blobs := blob.New(tracer, cache, storage)
	registry := editor.NewRegistry(editor.Deps{
		Log:             log,
		Tracer:          tracer,
		Blobs:           blobs,
		Decoder:         cropper.NewDecoder(decoderCtx, log, tracer, *decoderWorkers),
		ContainerWidth:  *containerWidth,
		ContainerHeight: *containerHeight,
	})
	defer registry.Shutdown(context.Background())

	// Initialize and start the health checker
	checkerCtx, checkerCancel := context.WithCancel(context.Background())
	defer checkerCancel()

	checker := &health.Checker{
		Ctx:      checkerCtx,
		Log:      log,
		Cache:    cache,
		Storage:  storage,
		ImageID:  *healthCheckImageID,
		Sessions: registry,
	}
	go checker.Run()

	// Blob urls are signed with a random key unless one is configured
	signer := &hmac.HMAC{Key: []byte(*hmacKey)}
	if *hmacKey == "" {
		signer, err = hmac.NewRandom()
		if err != nil {
			log.Fatalf("error initializing hmac: %s", err)
		}
		log.Infof("no hmac key configured, blob urls are only valid until restart")
	}

	// Start and listen on http
	api := &api.API{
		Registry:       registry,
		Blobs:          blobs,
		HealthChecker:  checker,
		Log:            log,
		Tracer:         tracer,
		HandlerTimeout: cmd.HandlerTimeout,
		HMAC:           signer,
		MaxUploadSize:  *maxUploadSize,
	}
	server := &http.Server{
		Addr:         *listen,
		Handler:      api.Router(),
		ReadTimeout:  cmd.ReadTimeout,
		WriteTimeout: cmd.WriteTimeout,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil {
			log.Infof("shutting down the http server: %s", err)
			shutdown()
		}
	}()

	log.Infof("http server listening on %s", *listen)

	// Start the metrics http server
	go metrics.Serve(shutdownCtx, log, checker, registry, *metricsListen)

	// Wait for shutdown or error
	err = cmd.WaitForInterrupt(shutdownCtx)
	log.Infof("shutting down: %s", err)

	// Shut down http server
	serverCtx, serverCancel := context.WithTimeout(context.Background(), cmd.ShutdownTimeout)
	defer serverCancel()
	if err := server.Shutdown(serverCtx); err != nil {
		log.Warnf("error shutting down: %s", err)
	}
}

func setupBackends(ctx context.Context, tracer *tracing.Tracer) (storage storage.Provider, cache cache.Provider, err error) {
	// Storage
	switch *storageBackend {
	case "file":
		storage, err = fileStorage.New(*storageFilePath)
	case "spaces":
		storage, err = spaces.New(ctx, tracer, *storageSpacesSpace, *storageSpacesEndpoint, *storageSpacesAccessKey, *storageSpacesSecretKey, *storageSpacesForcePathStyle)
	default:
		err = fmt.Errorf("invalid storage backend")
	}

	if err != nil {
		return
	}

	// Cache
	switch *cacheBackend {
	case "memory":
		cache = memory.New()
	case "redis":
		cache, err = redis.New(ctx, tracer, *cacheRedisAddress, *cacheRedisPoolSize, *cacheRedisExpiry)
	default:
		err = fmt.Errorf("invalid cache backend")
	}

	return
}
