package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from config files and use
// the WORTWEG_ prefix with underscores for nesting, e.g. WORTWEG_SERVER_PORT
// maps to server.port. Returns a populated Config struct or an error if
// loading or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	// Defaults for everything a local run can sensibly assume.
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("catalog.language", "de")
	v.SetDefault("scheduler.score_threshold", 7)
	v.SetDefault("scheduler.words_per_lesson", 10)
	v.SetDefault("scheduler.max_new_words", 3)
	v.SetDefault("scheduler.reviews_per_new", 2)
	v.SetDefault("scheduler.four_choice_penalty", 2)
	v.SetDefault("llm.gemini_model", "gemini-2.0-flash")
	v.SetDefault("llm.openai_model", "gpt-4o-mini")
	v.SetDefault("llm.request_timeout_seconds", 30)

	// An optional config.yaml in the working directory supplies the rest.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("WORTWEG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv does not surface env-only keys through Unmarshal unless
	// the keys are known to viper, so bind them explicitly.
	for _, key := range []string{
		"server.port",
		"server.log_level",
		"database.url",
		"catalog.corpus_path",
		"catalog.language",
		"scheduler.score_threshold",
		"scheduler.words_per_lesson",
		"scheduler.max_new_words",
		"scheduler.reviews_per_new",
		"scheduler.four_choice_penalty",
		"llm.gemini_api_key",
		"llm.gemini_model",
		"llm.openai_api_key",
		"llm.openai_model",
		"llm.request_timeout_seconds",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}
