package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CacheConfig defines settings for the response cache middleware.
// When Enabled is false or no Redis client is configured, caching is
// disabled.  Methods lists the HTTP methods whose responses are stored;
// every other method that succeeds bumps the cache generation so stale
// entries are never served after a write.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int
}

func setCacheDefaults(v *viper.Viper) {
	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("CACHE_METHODS", "GET")
	v.SetDefault("CACHE_TTL", "30s")
	v.SetDefault("CACHE_PREFIX", "cache")
	v.SetDefault("CACHE_MAX_BODY_BYTES", 1<<20)
}

func loadCache(v *viper.Viper) CacheConfig {
	ttl, err := time.ParseDuration(v.GetString("CACHE_TTL"))
	if err != nil || ttl <= 0 {
		ttl = 30 * time.Second
	}
	return CacheConfig{
		Enabled:      v.GetBool("CACHE_ENABLED"),
		Methods:      parseMethods(v.GetString("CACHE_METHODS")),
		TTL:          ttl,
		Prefix:       v.GetString("CACHE_PREFIX"),
		MaxBodyBytes: v.GetInt("CACHE_MAX_BODY_BYTES"),
	}
}

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
