package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Defaults struct {
	CPULimit         float64 `yaml:"cpu_limit"`
	MemLimitMB       int     `yaml:"mem_limit_mb"`
	PidsLimit        int     `yaml:"pids_limit"`
	MaxExecTimeoutMs int     `yaml:"max_exec_timeout_ms"`
	NetworkMode      string  `yaml:"network_mode"`
	ReadonlyRootfs   bool    `yaml:"readonly_rootfs"`
	TmpfsSizeMB      int     `yaml:"tmpfs_size_mb"`
}

type WorkspaceConfig struct {
	Enabled          bool  `yaml:"enabled"`
	PersistByDefault bool  `yaml:"persist_by_default"`
	MaxFileSizeBytes int64 `yaml:"max_file_size_bytes"` // 0 disables the limit
}

// RedisConfig is the session directory's backing KV store connection.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RateLimitConfig configures the per-caller token bucket in front of the API.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

type Config struct {
	Listen        string   `yaml:"listen"`
	APIKey        string   `yaml:"api_key"`
	JWTSecret     string   `yaml:"jwt_secret"`
	DefaultImage  string   `yaml:"default_image"`
	AllowedImages []string `yaml:"allowed_images"`

	// AllowedCommands is the argv[0] whitelist, enforced in addition to the
	// container's own restricted filesystem/network. The HTTP layer checks it
	// before execute; the executor checks it only for callers that have not
	// set Opts.PreValidated. Empty means no whitelist is enforced.
	AllowedCommands []string `yaml:"allowed_commands"`

	SessionTTLSeconds int `yaml:"session_ttl_seconds"`

	CleanupIntervalSeconds        int `yaml:"cleanup_interval_seconds"`
	CleanupMaxContainerAgeSeconds int `yaml:"cleanup_max_container_age_seconds"`

	PlaygroundConfigPath string `yaml:"playground_config_path"`

	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Defaults  Defaults        `yaml:"defaults"`
	Workspace WorkspaceConfig `yaml:"workspace"`
}

func Load(yamlPath string) (*Config, error) {
	cfg := &Config{
		Listen:                        "127.0.0.1:8080",
		DefaultImage:                  "sandbox-runtime:base",
		SessionTTLSeconds:             1800,
		CleanupIntervalSeconds:        60,
		CleanupMaxContainerAgeSeconds: 3600,
		Redis: RedisConfig{
			Addr: "127.0.0.1:6379",
			DB:   0,
		},
		RateLimit: RateLimitConfig{
			PerSecond: 5,
			Burst:     20,
		},
		Defaults: Defaults{
			CPULimit:         1.0,
			MemLimitMB:       512,
			PidsLimit:        256,
			MaxExecTimeoutMs: 120000,
			NetworkMode:      "none",
			ReadonlyRootfs:   true,
			TmpfsSizeMB:      64,
		},
		Workspace: WorkspaceConfig{
			Enabled:          false,
			PersistByDefault: false,
			MaxFileSizeBytes: 10 * 1024 * 1024,
		},
	}

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SANDBOXD_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("SANDBOXD_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("SANDBOXD_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("SANDBOXD_DEFAULT_IMAGE"); v != "" {
		cfg.DefaultImage = v
	}
	if v := os.Getenv("SANDBOXD_ALLOWED_IMAGES"); v != "" {
		cfg.AllowedImages = strings.Split(v, ",")
	}
	if v := os.Getenv("SANDBOXD_ALLOWED_COMMANDS"); v != "" {
		cfg.AllowedCommands = strings.Split(v, ",")
	}
	if v := os.Getenv("SANDBOXD_SESSION_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SessionTTLSeconds = n
		}
	}
	if v := os.Getenv("SANDBOXD_CLEANUP_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CleanupIntervalSeconds = n
		}
	}
	if v := os.Getenv("SANDBOXD_CLEANUP_MAX_CONTAINER_AGE_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CleanupMaxContainerAgeSeconds = n
		}
	}
	if v := os.Getenv("SANDBOXD_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SANDBOXD_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SANDBOXD_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
	if v := os.Getenv("SANDBOXD_RATE_LIMIT_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimit.PerSecond = f
		}
	}
	if v := os.Getenv("SANDBOXD_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("SANDBOXD_CPU_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Defaults.CPULimit = f
		}
	}
	if v := os.Getenv("SANDBOXD_MEM_LIMIT_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Defaults.MemLimitMB = n
		}
	}
	if v := os.Getenv("SANDBOXD_PIDS_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Defaults.PidsLimit = n
		}
	}
	if v := os.Getenv("SANDBOXD_MAX_EXEC_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Defaults.MaxExecTimeoutMs = n
		}
	}
	if v := os.Getenv("SANDBOXD_NETWORK_MODE"); v != "" {
		cfg.Defaults.NetworkMode = v
	}
	if v := os.Getenv("SANDBOXD_READONLY_ROOTFS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Defaults.ReadonlyRootfs = b
		}
	}
	if v := os.Getenv("SANDBOXD_TMPFS_SIZE_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Defaults.TmpfsSizeMB = n
		}
	}
	if v := os.Getenv("SANDBOXD_WORKSPACE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Workspace.Enabled = b
		}
	}
	if v := os.Getenv("SANDBOXD_WORKSPACE_PERSIST_BY_DEFAULT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Workspace.PersistByDefault = b
		}
	}
	if v := os.Getenv("SANDBOXD_WORKSPACE_MAX_FILE_SIZE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Workspace.MaxFileSizeBytes = n
		}
	}
	if v := os.Getenv("SANDBOXD_PLAYGROUND_CONFIG_PATH"); v != "" {
		cfg.PlaygroundConfigPath = v
	}
}
