package config

import "time"

// RateLimitConfig drives the fixed-window limiter in front of the
// payment confirmation endpoint.
type RateLimitConfig struct {
	Enabled bool
	Limit   int           // requests allowed per window
	Window  time.Duration // window length
	Prefix  string        // Redis key prefix
}

// LoadRateLimitConfig reads rate-limit settings with sane defaults.
func LoadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled: envBool("RATE_LIMIT_ENABLED", true),
		Limit:   envInt("RATE_LIMIT_MAX", 30),
		Window:  parseDur(getenv("RATE_LIMIT_WINDOW", "1m")),
		Prefix:  getenv("RATE_LIMIT_PREFIX", "ratelimit"),
	}
}

func parseDur(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Minute
	}
	return d
}
