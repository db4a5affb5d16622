// Package cache is a cache-aside layer in front of the upstream API. It
// uses Redis while Redis is reachable and an in-process map otherwise,
// applies per-category TTLs, supports pattern invalidation, and memoizes
// expensive producers.
package cache
