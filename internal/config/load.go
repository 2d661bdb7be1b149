package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and optionally a
// config.yaml file in the working directory. Environment variables take
// precedence over values from config files. Returns a populated Config
// struct or an error if loading or validation fails.
func Load() (*Config, error) {
	return load(viper.New(), "")
}

// LoadFromFile is like Load but reads the given config file instead of
// searching the working directory. Intended for tests.
func LoadFromFile(configPath string) (*Config, error) {
	return load(viper.New(), configPath)
}

func load(v *viper.Viper, configPath string) (*Config, error) {
	// Set default values
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("scheduler.worker_count", 4)
	v.SetDefault("scheduler.max_queue_depth", 0)
	v.SetDefault("scheduler.task_timeout", "10m")
	v.SetDefault("webhook.max_retries", 3)
	v.SetDefault("webhook.retry_base_delay", "1s")
	v.SetDefault("storage.output_dir", "output")
	v.SetDefault("retention.max_task_age", "24h")
	v.SetDefault("retention.sweep_interval", "10m")

	// Configure to read from config files
	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults cover it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Configure environment variables
	v.SetEnvPrefix("RENDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind critical environment variables
	bindEnvs := []struct {
		key    string
		envVar string
	}{
		{"server.port", "RENDER_SERVER_PORT"},
		{"server.log_level", "RENDER_SERVER_LOG_LEVEL"},
		{"scheduler.worker_count", "RENDER_SCHEDULER_WORKER_COUNT"},
		{"scheduler.max_queue_depth", "RENDER_SCHEDULER_MAX_QUEUE_DEPTH"},
		{"scheduler.task_timeout", "RENDER_SCHEDULER_TASK_TIMEOUT"},
		{"webhook.url", "RENDER_WEBHOOK_URL"},
		{"webhook.secret", "RENDER_WEBHOOK_SECRET"},
		{"webhook.max_retries", "RENDER_WEBHOOK_MAX_RETRIES"},
		{"webhook.retry_base_delay", "RENDER_WEBHOOK_RETRY_BASE_DELAY"},
		{"storage.output_dir", "RENDER_STORAGE_OUTPUT_DIR"},
		{"retention.max_task_age", "RENDER_RETENTION_MAX_TASK_AGE"},
		{"retention.sweep_interval", "RENDER_RETENTION_SWEEP_INTERVAL"},
	}

	for _, env := range bindEnvs {
		if err := v.BindEnv(env.key, env.envVar); err != nil {
			return nil, fmt.Errorf("error binding environment variable %s: %w", env.envVar, err)
		}
	}

	// Unmarshal and validate
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}
