package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/DMarby/picsum-editor/internal/cache"
	"github.com/DMarby/picsum-editor/internal/tracing"
	"github.com/mediocregopher/radix/v4"
	"go.opentelemetry.io/otel/attribute"
)

// Provider implements a redis cache
// Entries expire after the configured expiry so blobs of abandoned sessions do not pile up
type Provider struct {
	client radix.Client
	tracer *tracing.Tracer
	expiry time.Duration
}

// New returns a new Provider instance, an expiry of 0 keeps entries until they are deleted
func New(ctx context.Context, tracer *tracing.Tracer, address string, poolSize int, expiry time.Duration) (*Provider, error) {
	cfg := radix.PoolConfig{
		Size: poolSize,
	}

	client, err := cfg.New(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}

	return &Provider{
		client: client,
		tracer: tracer,
		expiry: expiry,
	}, nil
}

// Get returns an object from the cache if it exists
func (p *Provider) Get(ctx context.Context, key string) (data []byte, err error) {
	ctx, span := p.tracer.Start(ctx, "redis.Get")
	defer span.End()

	mn := radix.Maybe{Rcv: &data}
	if err = p.client.Do(ctx, radix.Cmd(&mn, "GET", key)); err != nil {
		return nil, tracing.Fail(span, err)
	}

	if mn.Null {
		return nil, cache.ErrNotFound
	}

	span.SetAttributes(attribute.Int("redis.value_size", len(data)))
	return
}

// Set adds an object to the cache
func (p *Provider) Set(ctx context.Context, key string, data []byte) (err error) {
	ctx, span := p.tracer.Start(ctx, "redis.Set")
	defer span.End()

	span.SetAttributes(attribute.Int("redis.value_size", len(data)))

	var action radix.Action
	if seconds := int64(p.expiry / time.Second); seconds > 0 {
		action = radix.FlatCmd(nil, "SET", key, data, "EX", strconv.FormatInt(seconds, 10))
	} else {
		action = radix.FlatCmd(nil, "SET", key, data)
	}

	return tracing.Fail(span, p.client.Do(ctx, action))
}

// Delete removes an object from the cache
func (p *Provider) Delete(ctx context.Context, key string) (err error) {
	ctx, span := p.tracer.Start(ctx, "redis.Delete")
	defer span.End()

	return tracing.Fail(span, p.client.Do(ctx, radix.Cmd(nil, "DEL", key)))
}

// Shutdown shuts down the cache
func (p *Provider) Shutdown() {
	p.client.Close()
}
