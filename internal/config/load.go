package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables take
// precedence over file values and use the VISIONTAGS_ prefix with
// underscores for nesting (e.g. VISIONTAGS_SERVER_PORT).
// Returns a populated Config or an error if loading or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("VISIONTAGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults are invisible to Unmarshal when they arrive via
	// the environment alone, so bind the secrets explicitly.
	for _, key := range []string{
		"database.url",
		"vision.gemini_api_key",
		"catalog.base_url",
		"catalog.access_token",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment key %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; environment variables may cover
		// everything. Any other read failure is fatal.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults applies defaults for everything that has a sensible one.
// Secrets (database URL, API keys) deliberately have none.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("queue.worker_count", 2)
	v.SetDefault("queue.buffer_size", 100)
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.retry_base_delay_seconds", 5)
	v.SetDefault("queue.dispatches_per_window", 10)
	v.SetDefault("queue.rate_window_seconds", 60)
	v.SetDefault("queue.retained_task_records", 500)

	v.SetDefault("vision.model_name", "gemini-2.0-flash")
	v.SetDefault("vision.timeout_seconds", 60)

	v.SetDefault("catalog.timeout_seconds", 15)
}
