package cache

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// Backend is one storage variant behind the Store. The remote variant
// serializes values; the local variant keeps them as native Go values.
//
// Backends report failures through their error returns. The Store is the
// only caller and downgrades every error to a miss or a no-op.
type Backend interface {
	// Name identifies the backend in logs and metrics ("redis" or "memory").
	Name() string

	// Get returns the stored value. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) (any, bool, error)

	// Set stores value with an absolute expiry of ttl from now.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// DeletePattern removes every key matching pattern and returns the count.
	DeletePattern(ctx context.Context, pattern string) (int, error)

	// Stats reports backend statistics.
	Stats(ctx context.Context) (map[string]any, error)
}

// Payload is a serialized value read from the remote backend. It is kept
// distinct from []byte so a cached []byte value is never mistaken for an
// undecoded payload.
type Payload []byte

var (
	// ErrConnection marks failures to reach the remote store.
	ErrConnection = errors.New("cache: remote store unreachable")

	// ErrSerialization marks values that could not be encoded or decoded.
	ErrSerialization = errors.New("cache: malformed cached payload")
)

// errorKind classifies err for logs and metrics.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrSerialization):
		return "serialization"
	case errors.Is(err, ErrConnection):
		return "connection"
	default:
		return "other"
	}
}
