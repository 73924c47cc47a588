package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Catalog   CatalogConfig   `mapstructure:"catalog" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	LLM       LLMConfig       `mapstructure:"llm" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// CatalogConfig locates the vocabulary corpus loaded at startup.
type CatalogConfig struct {
	CorpusPath string `mapstructure:"corpus_path" validate:"required"`
	Language   string `mapstructure:"language" validate:"required"`
}

// SchedulerConfig tunes how lessons are planned.
type SchedulerConfig struct {
	// ScoreThreshold is the mastery score below which a seen word is due
	// for review.
	ScoreThreshold int `mapstructure:"score_threshold" validate:"min=0,max=10"`
	// WordsPerLesson is the number of slots planned per lesson.
	WordsPerLesson int `mapstructure:"words_per_lesson" validate:"required,gt=0"`
	// MaxNewWords caps how many never-seen words one lesson may introduce.
	MaxNewWords int `mapstructure:"max_new_words" validate:"min=0"`
	// ReviewsPerNew is how many review slots are placed before each new
	// word when interleaving.
	ReviewsPerNew int `mapstructure:"reviews_per_new" validate:"min=0"`
	// FourChoicePenalty is the score recorded for every target word of a
	// four-choice task answered incorrectly.
	FourChoicePenalty int `mapstructure:"four_choice_penalty" validate:"min=0,max=10"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	// GeminiAPIKey authenticates the task content generator.
	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required"`
	// GeminiModel is the model name used for content generation.
	GeminiModel string `mapstructure:"gemini_model" validate:"required"`
	// OpenAIAPIKey authenticates the free-text answer judge. Optional: when
	// empty, grading falls back to exact matching.
	OpenAIAPIKey string `mapstructure:"openai_api_key"`
	// OpenAIModel is the model name used for judging answers.
	OpenAIModel string `mapstructure:"openai_model"`
	// RequestTimeoutSeconds bounds each generation or judging call.
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds" validate:"required,gt=0"`
}
