package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// CacheConfig defines settings for the response cache middleware.
// When Enabled is false or no Redis client is configured, caching will be disabled.
// Methods lists the HTTP methods to cache (e.g. GET, HEAD).  TTL defines the
// lifetime of cache entries.  KeyStrategy determines which parts of the request
// contribute to the cache key.  Prefix namespaces every entry so that a
// write can purge them all, and MaxBodyBytes caps the size of a cached response.
type CacheConfig struct {
	Enabled      bool          `env:"CACHE_ENABLED" envDefault:"true"`
	MethodList   []string      `env:"CACHE_METHODS" envDefault:"GET"`
	TTL          time.Duration `env:"CACHE_TTL" envDefault:"30s"`
	KeyStrategy  string        `env:"CACHE_KEY_STRATEGY" envDefault:"route_query"`
	Prefix       string        `env:"CACHE_PREFIX" envDefault:"cache"`
	MaxBodyBytes int           `env:"CACHE_MAX_BODY_BYTES" envDefault:"1048576"`

	Methods map[string]bool `env:"-"`
}

// LoadCacheConfig reads environment variables to build a CacheConfig.  Defaults
// are used when variables are not set.  All methods are upper-cased.
func LoadCacheConfig() (CacheConfig, error) {
	var c CacheConfig
	if err := env.Parse(&c); err != nil {
		return c, err
	}
	c.Methods = parseMethods(c.MethodList)
	if c.TTL <= 0 {
		c.TTL = time.Second
	}
	return c, nil
}

func parseMethods(list []string) map[string]bool {
	m := map[string]bool{}
	for _, p := range list {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}
