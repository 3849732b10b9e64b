package config

import "time"

// CacheConfig drives the Redis response cache on public ticket
// listings.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadCacheConfig reads cache settings with defaults suited to
// read-heavy browse traffic.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: envBool("CACHE_ENABLED", true),
		TTL:     parseDur(getenv("CACHE_TTL", "30s")),
		Prefix:  getenv("CACHE_PREFIX", "cache"),
	}
}
