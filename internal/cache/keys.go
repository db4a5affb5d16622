package cache

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultKeyPrefix is the fixed first segment of every cache key.
	DefaultKeyPrefix = "takaro"

	// KeySeparator joins key segments.
	KeySeparator = ":"
)

// KeyBuilder builds deterministic cache keys of the form
// prefix:namespace:part1:part2...
//
// Parts are not escaped: a part that contains the separator can produce the
// same key as a different split of parts.
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder returns a builder using prefix, or DefaultKeyPrefix when
// prefix is empty.
func NewKeyBuilder(prefix string) KeyBuilder {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return KeyBuilder{prefix: prefix}
}

// Prefix returns the key prefix.
func (b KeyBuilder) Prefix() string {
	if b.prefix == "" {
		return DefaultKeyPrefix
	}
	return b.prefix
}

// Build returns the key for namespace and parts.
func (b KeyBuilder) Build(namespace string, parts ...any) string {
	var sb strings.Builder
	sb.WriteString(b.Prefix())
	sb.WriteString(KeySeparator)
	sb.WriteString(namespace)
	for _, p := range parts {
		sb.WriteString(KeySeparator)
		sb.WriteString(keyPart(p))
	}
	return sb.String()
}

// Pattern returns a glob matching every key under namespace whose leading
// parts equal parts.
func (b KeyBuilder) Pattern(namespace string, parts ...any) string {
	return b.Build(namespace, parts...) + "*"
}

// BuildKey builds a key with DefaultKeyPrefix.
func BuildKey(namespace string, parts ...any) string {
	return NewKeyBuilder(DefaultKeyPrefix).Build(namespace, parts...)
}

func keyPart(p any) string {
	switch v := p.(type) {
	case string:
		return v
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.UTC().Format(time.RFC3339)
	case *time.Time:
		if v == nil || v.IsZero() {
			return ""
		}
		return v.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
