package cache

import (
	"context"
	"reflect"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const tracerName = "takaro-dashboard-api/internal/cache"

// Producer computes a value for arg.
type Producer[A, T any] func(ctx context.Context, arg A) (T, error)

// KeyFunc derives the cache key for arg.
type KeyFunc[A any] func(arg A) string

// FixedKey returns a KeyFunc that ignores its argument.
func FixedKey[A any](key string) KeyFunc[A] {
	return func(A) string { return key }
}

type memoizeConfig struct {
	singleFlight bool
	tracer       trace.Tracer
}

// MemoizeOption configures Memoize.
type MemoizeOption func(*memoizeConfig)

// WithSingleFlight makes concurrent misses for the same key share one
// producer call. The shared call runs with the context of the caller that
// started it.
func WithSingleFlight() MemoizeOption {
	return func(c *memoizeConfig) { c.singleFlight = true }
}

// WithTracer sets the tracer used for memoize spans. The global tracer
// provider is used by default.
func WithTracer(t trace.Tracer) MemoizeOption {
	return func(c *memoizeConfig) { c.tracer = t }
}

// Memoize wraps produce with cache-aside lookup on s. A cached value is
// returned without calling produce. On a miss produce runs, and a non-nil
// result is stored for ttl before being returned. Producer errors are
// returned unchanged and never cached.
//
// Without WithSingleFlight, concurrent misses on the same key each call
// produce and the last write wins.
func Memoize[A, T any](s *Store, key KeyFunc[A], ttl time.Duration, produce Producer[A, T], opts ...MemoizeOption) Producer[A, T] {
	cfg := memoizeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.tracer == nil {
		cfg.tracer = otel.Tracer(tracerName)
	}

	var group *singleflight.Group
	if cfg.singleFlight {
		group = &singleflight.Group{}
	}

	return func(ctx context.Context, arg A) (T, error) {
		k := key(arg)
		ctx, span := cfg.tracer.Start(ctx, "cache.memoize", trace.WithAttributes(
			attribute.String("cache.key", k),
			attribute.String("cache.backend", s.Backend()),
		))
		defer span.End()

		if v, ok := Get[T](ctx, s, k); ok {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return v, nil
		}
		span.SetAttributes(attribute.Bool("cache.hit", false))

		var (
			v   T
			err error
		)
		if group == nil {
			v, err = produceAndStore(ctx, s, k, ttl, arg, produce)
		} else {
			var res any
			var shared bool
			res, err, shared = group.Do(k, func() (any, error) {
				return produceAndStore(ctx, s, k, ttl, arg, produce)
			})
			span.SetAttributes(attribute.Bool("cache.shared", shared))
			if res != nil {
				v = res.(T)
			}
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return v, err
	}
}

func produceAndStore[A, T any](ctx context.Context, s *Store, key string, ttl time.Duration, arg A, produce Producer[A, T]) (T, error) {
	v, err := produce(ctx, arg)
	if err != nil {
		s.metrics.produced("error")
		var zero T
		return zero, err
	}
	if isNil(v) {
		s.metrics.produced("empty")
		return v, nil
	}
	s.Set(ctx, key, v, ttl)
	s.metrics.produced("stored")
	return v, nil
}

// isNil reports whether v is nil or a nil pointer, map, slice, channel,
// function or interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}
