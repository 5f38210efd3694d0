package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
	Vision   VisionConfig   `mapstructure:"vision" validate:"required"`
	Catalog  CatalogConfig  `mapstructure:"catalog" validate:"required"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// QueueConfig contains the analysis queue and worker pool settings.
type QueueConfig struct {
	// WorkerCount is the number of concurrent analysis workers.
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`

	// BufferSize is the capacity of the in-memory dispatch channel.
	BufferSize int `mapstructure:"buffer_size" validate:"required,gt=0"`

	// MaxAttempts is the delivery ceiling per task, including the first.
	MaxAttempts int `mapstructure:"max_attempts" validate:"required,gt=0"`

	// RetryBaseDelaySeconds is the first retry delay; each subsequent retry
	// doubles it.
	RetryBaseDelaySeconds int `mapstructure:"retry_base_delay_seconds" validate:"required,gt=0"`

	// DispatchesPerWindow caps task dispatches per rate window, process-wide.
	DispatchesPerWindow int `mapstructure:"dispatches_per_window" validate:"required,gt=0"`

	// RateWindowSeconds is the length of the rolling rate window.
	RateWindowSeconds int `mapstructure:"rate_window_seconds" validate:"required,gt=0"`

	// RetainedTaskRecords bounds how many settled task rows are kept for
	// observability.
	RetainedTaskRecords int `mapstructure:"retained_task_records" validate:"required,gt=0"`
}

// VisionConfig contains the image analysis model settings.
type VisionConfig struct {
	GeminiAPIKey   string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName      string `mapstructure:"model_name" validate:"required"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"required,gt=0"`
}

// CatalogConfig contains the external product catalog API settings.
type CatalogConfig struct {
	BaseURL        string `mapstructure:"base_url" validate:"required,url"`
	AccessToken    string `mapstructure:"access_token" validate:"required"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"required,gt=0"`
}
