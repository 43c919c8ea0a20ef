package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Upstream.PageSize == 0 {
		cfg.Upstream.PageSize = 100
	}
	if cfg.Upstream.MinInterval == 0 {
		cfg.Upstream.MinInterval = Duration(time.Second)
	}
	if cfg.Upstream.RequestTimeout == 0 {
		cfg.Upstream.RequestTimeout = Duration(10 * time.Second)
	}
	if cfg.Upstream.LoadTimeout == 0 {
		cfg.Upstream.LoadTimeout = Duration(5 * time.Minute)
	}
	if cfg.Backoff.RateLimitBase == 0 {
		cfg.Backoff.RateLimitBase = Duration(time.Second)
	}
	if cfg.Backoff.TransientBase == 0 {
		cfg.Backoff.TransientBase = Duration(500 * time.Millisecond)
	}
	if cfg.Backoff.Factor == 0 {
		cfg.Backoff.Factor = 2
	}
	if cfg.Backoff.MaxDelay == 0 {
		cfg.Backoff.MaxDelay = Duration(60 * time.Second)
	}
	if cfg.Backoff.TransientRetries == 0 {
		cfg.Backoff.TransientRetries = 5
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 100
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 1000
	}
}
