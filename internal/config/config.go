package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию сервиса генерации историй.
// Читается один раз при старте процесса; ядро не перечитывает ее в запросе.
type Config struct {
	// Настройки HTTP сервера
	HTTPPort        string        `envconfig:"HTTP_PORT" default:"8080"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"300s"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding     string        `envconfig:"LOG_ENCODING" default:"json"`
	VerboseProvider bool          `envconfig:"VERBOSE_PROVIDER_LOG" default:"false"`

	// Настройки пайплайна
	RenderConcurrency int `envconfig:"RENDER_CONCURRENCY" default:"4"`
	RenderWidth       int `envconfig:"RENDER_WIDTH" default:"800"`
	RenderHeight      int `envconfig:"RENDER_HEIGHT" default:"600"`

	// Суффикс стиля, дописываемый к каждому image-промпту.
	// Плейсхолдер {genre} заменяется жанром запроса.
	PromptStyleSuffix string `envconfig:"PROMPT_STYLE_SUFFIX" default:"animated style, vibrant colors, cartoon-like, whimsical, {genre} theme, rounded shapes, bold outlines, suitable for children's storybook"`

	// Первичный текстовый провайдер (OpenRouter-совместимый API)
	TextPrimaryEnabled         bool          `envconfig:"TEXT_PRIMARY_ENABLED" default:"true"`
	TextPrimaryBaseURL         string        `envconfig:"TEXT_PRIMARY_BASE_URL" default:"https://openrouter.ai/api/v1"`
	TextPrimaryModel           string        `envconfig:"TEXT_PRIMARY_MODEL" default:"deepseek/deepseek-chat"`
	TextPrimaryTimeout         time.Duration `envconfig:"TEXT_PRIMARY_TIMEOUT" default:"60s"`
	TextPrimaryMaxAttempts     int           `envconfig:"TEXT_PRIMARY_MAX_ATTEMPTS" default:"2"`
	TextPrimaryMaxTokens       int           `envconfig:"TEXT_PRIMARY_MAX_TOKENS" default:"4000"`
	TextPrimaryMaxPromptTokens int           `envconfig:"TEXT_PRIMARY_MAX_PROMPT_TOKENS" default:"8000"`
	// Секретное поле БЕЗ envconfig тега
	TextPrimaryAPIKey string

	// Вторичный текстовый провайдер (локальный Ollama)
	TextSecondaryEnabled     bool          `envconfig:"TEXT_SECONDARY_ENABLED" default:"false"`
	TextSecondaryBaseURL     string        `envconfig:"TEXT_SECONDARY_BASE_URL" default:"http://localhost:11434"`
	TextSecondaryModel       string        `envconfig:"TEXT_SECONDARY_MODEL" default:"llama3"`
	TextSecondaryTimeout     time.Duration `envconfig:"TEXT_SECONDARY_TIMEOUT" default:"120s"`
	TextSecondaryMaxAttempts int           `envconfig:"TEXT_SECONDARY_MAX_ATTEMPTS" default:"1"`

	// Общие параметры генерации текста
	TextTemperature float32 `envconfig:"TEXT_TEMPERATURE" default:"0.7"`

	// Первичный графический провайдер (OpenAI Images)
	ImagePrimaryEnabled bool          `envconfig:"IMAGE_PRIMARY_ENABLED" default:"true"`
	ImagePrimaryBaseURL string        `envconfig:"IMAGE_PRIMARY_BASE_URL" default:""`
	ImagePrimaryModel   string        `envconfig:"IMAGE_PRIMARY_MODEL" default:"dall-e-3"`
	ImagePrimarySize    string        `envconfig:"IMAGE_PRIMARY_SIZE" default:"1024x1024"`
	ImagePrimaryTimeout time.Duration `envconfig:"IMAGE_PRIMARY_TIMEOUT" default:"90s"`
	// Секретное поле БЕЗ envconfig тега
	ImagePrimaryAPIKey string

	// Вторичный графический провайдер (Stability-совместимый API)
	ImageSecondaryEnabled bool          `envconfig:"IMAGE_SECONDARY_ENABLED" default:"false"`
	ImageSecondaryBaseURL string        `envconfig:"IMAGE_SECONDARY_BASE_URL" default:"https://api.stability.ai"`
	ImageSecondaryEngine  string        `envconfig:"IMAGE_SECONDARY_ENGINE" default:"stable-diffusion-xl-1024-v1-0"`
	ImageSecondaryTimeout time.Duration `envconfig:"IMAGE_SECONDARY_TIMEOUT" default:"90s"`
	// Секретное поле БЕЗ envconfig тега
	ImageSecondaryAPIKey string
}

// LoadConfig загружает конфигурацию из переменных окружения и секретов.
// Провайдер, для которого не задан ключ, автоматически отключается:
// каскад в этом случае пропускает стадию и уходит на следующую.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	// Секреты читаем отдельно, чтобы они не попадали в envconfig-дампы
	cfg.TextPrimaryAPIKey = os.Getenv("OPENROUTER_API_KEY")
	cfg.ImagePrimaryAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.ImageSecondaryAPIKey = os.Getenv("STABILITY_API_KEY")

	if cfg.TextPrimaryEnabled && cfg.TextPrimaryAPIKey == "" {
		log.Printf("OPENROUTER_API_KEY не задан, первичный текстовый провайдер отключен")
		cfg.TextPrimaryEnabled = false
	}
	if cfg.ImagePrimaryEnabled && cfg.ImagePrimaryAPIKey == "" {
		log.Printf("OPENAI_API_KEY не задан, первичный графический провайдер отключен")
		cfg.ImagePrimaryEnabled = false
	}
	if cfg.ImageSecondaryEnabled && cfg.ImageSecondaryAPIKey == "" {
		log.Printf("STABILITY_API_KEY не задан, вторичный графический провайдер отключен")
		cfg.ImageSecondaryEnabled = false
	}

	if cfg.RenderConcurrency <= 0 {
		cfg.RenderConcurrency = 1
	}
	if cfg.RenderWidth <= 0 || cfg.RenderHeight <= 0 {
		return nil, fmt.Errorf("некорректный размер холста: %dx%d", cfg.RenderWidth, cfg.RenderHeight)
	}

	return &cfg, nil
}
