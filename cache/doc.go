// Package cache memoizes expensive provider results for a freshness window.
//
// Cache is an in-memory TTL map with lazy expiry: entries older than the TTL
// read as misses whether or not they have been removed. Sweep and
// StartSweeper reclaim memory and never change what Get returns. A FileStore
// can mirror entries to a directory so results survive a restart.
package cache
