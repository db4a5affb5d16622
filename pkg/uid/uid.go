// Package uid issues request ids and carries them through a context.
package uid

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// LogKey is the attribute name request ids are logged under.
const LogKey = "request_id"

type ctxKey struct{}

// New returns a time-ordered UUID (v7), falling back to a random v4 if the
// clock source fails.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Normalize returns id in canonical lowercase form, or false if id is not a
// UUID.
func Normalize(id string) (string, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

// WithRequestID returns a copy of ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the request id in ctx, or "".
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Attr is the request id of ctx as a log attribute.
func Attr(ctx context.Context) slog.Attr {
	return slog.String(LogKey, FromContext(ctx))
}
