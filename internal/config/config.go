package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Storage   StorageConfig   `mapstructure:"storage"   validate:"required"`
	Retention RetentionConfig `mapstructure:"retention" validate:"required"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// SchedulerConfig contains the settings of the background render scheduler.
type SchedulerConfig struct {
	// WorkerCount is the number of concurrent render workers.
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`

	// MaxQueueDepth caps the number of tasks waiting for a worker.
	// Zero means unbounded.
	MaxQueueDepth int `mapstructure:"max_queue_depth" validate:"gte=0"`

	// TaskTimeout is the per-task render deadline. Zero disables the deadline.
	TaskTimeout time.Duration `mapstructure:"task_timeout" validate:"gte=0"`
}

// WebhookConfig contains the completion notification settings.
// An empty URL disables webhook delivery entirely.
type WebhookConfig struct {
	URL            string        `mapstructure:"url" validate:"omitempty,url"`
	Secret         string        `mapstructure:"secret"`
	MaxRetries     int           `mapstructure:"max_retries" validate:"gte=0"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" validate:"gte=0"`
}

// StorageConfig contains the artifact storage settings.
type StorageConfig struct {
	OutputDir string `mapstructure:"output_dir" validate:"required"`
}

// RetentionConfig controls eviction of old terminal tasks.
type RetentionConfig struct {
	// MaxTaskAge is how long a terminal task record is kept before it
	// becomes eligible for eviction.
	MaxTaskAge time.Duration `mapstructure:"max_task_age" validate:"required,gt=0"`

	// SweepInterval is how often the eviction sweep runs. Zero disables
	// eviction entirely.
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gte=0"`
}
