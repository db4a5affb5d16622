package cache

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xhit/go-str2duration/v2"
)

// Category names a kind of cached upstream data.
type Category string

const (
	CategoryGameServers   Category = "game-servers"
	CategoryMapInfo       Category = "map-info"
	CategoryPlayerNames   Category = "player-names"
	CategoryPlayersList   Category = "players-list"
	CategoryMovementPaths Category = "movement-paths"
	CategoryDeathEvents   Category = "death-events"
	CategoryAreaSearch    Category = "area-search"
)

var defaultTTLs = map[Category]time.Duration{
	CategoryGameServers:   900 * time.Second,
	CategoryMapInfo:       3600 * time.Second,
	CategoryPlayerNames:   300 * time.Second,
	CategoryPlayersList:   30 * time.Second,
	CategoryMovementPaths: 300 * time.Second,
	CategoryDeathEvents:   600 * time.Second,
	CategoryAreaSearch:    120 * time.Second,
}

// FallbackTTL is returned for categories missing from a policy.
const FallbackTTL = 60 * time.Second

// Policy maps categories to TTLs. It is immutable once built.
type Policy struct {
	ttls map[Category]time.Duration
}

// DefaultPolicy returns the standard TTL table.
func DefaultPolicy() Policy {
	return Policy{ttls: copyTTLs(defaultTTLs)}
}

// TTL returns the expiry for c.
func (p Policy) TTL(c Category) time.Duration {
	if d, ok := p.ttls[c]; ok {
		return d
	}
	if d, ok := defaultTTLs[c]; ok {
		return d
	}
	return FallbackTTL
}

// Categories returns the known categories in name order.
func (p Policy) Categories() []Category {
	out := make([]Category, 0, len(p.ttls))
	for c := range p.ttls {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// WithOverrides returns a copy of p with the given TTLs replaced.
func (p Policy) WithOverrides(overrides map[Category]time.Duration) (Policy, error) {
	ttls := copyTTLs(p.ttls)
	for c, d := range overrides {
		if _, ok := defaultTTLs[c]; !ok {
			return Policy{}, fmt.Errorf("unknown cache category %q", c)
		}
		if d <= 0 {
			return Policy{}, fmt.Errorf("cache category %q: ttl must be positive, got %s", c, d)
		}
		ttls[c] = d
	}
	return Policy{ttls: ttls}, nil
}

// ParsePolicyOverrides applies overrides written as
// "category=duration,category=duration" on top of DefaultPolicy. Durations
// accept day and week units ("1d", "2w3d").
func ParsePolicyOverrides(list string) (Policy, error) {
	base := DefaultPolicy()
	list = strings.TrimSpace(list)
	if list == "" {
		return base, nil
	}

	overrides := make(map[Category]time.Duration)
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, raw, ok := strings.Cut(item, "=")
		if !ok {
			return Policy{}, fmt.Errorf("invalid ttl override %q: want category=duration", item)
		}
		d, err := str2duration.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return Policy{}, fmt.Errorf("invalid ttl override %q: %w", item, err)
		}
		overrides[Category(strings.TrimSpace(name))] = d
	}
	return base.WithOverrides(overrides)
}

func copyTTLs(in map[Category]time.Duration) map[Category]time.Duration {
	out := make(map[Category]time.Duration, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
