package testutil

import (
	"github.com/sandboxlabs/sandboxd/internal/config"
)

// TestConfig returns a Config with sensible test defaults.
func TestConfig() *config.Config {
	return &config.Config{
		Listen:                        "127.0.0.1:0",
		APIKey:                        "test-api-key",
		DefaultImage:                  "base",
		AllowedImages:                 []string{"base", "python", "node"},
		SessionTTLSeconds:             300,
		CleanupIntervalSeconds:        60,
		CleanupMaxContainerAgeSeconds: 3600,
		Redis: config.RedisConfig{
			Addr: "127.0.0.1:6379",
			DB:   0,
		},
		RateLimit: config.RateLimitConfig{
			PerSecond: 100,
			Burst:     200,
		},
		Defaults: config.Defaults{
			CPULimit:         1.0,
			MemLimitMB:       512,
			PidsLimit:        256,
			MaxExecTimeoutMs: 120000,
			NetworkMode:      "none",
			ReadonlyRootfs:   true,
		},
		Workspace: config.WorkspaceConfig{
			Enabled:          false,
			PersistByDefault: false,
			MaxFileSizeBytes: 10 * 1024 * 1024,
		},
	}
}
