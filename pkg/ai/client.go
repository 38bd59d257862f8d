package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	ollamaapi "github.com/ollama/ollama/api"
	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"
	openaigo "github.com/sashabaranov/go-openai"

	"story-server/pkg/httpclient"
)

var log = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

// tokenEncoding - кодировка для оценки бюджета промпта. cl100k_base покрывает
// современные chat-модели; для незнакомых моделей оценка остается приближенной.
const tokenEncoding = "cl100k_base"

// TextRequest - запрос на генерацию текста одним вызовом провайдера.
type TextRequest struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float32
}

// TextCompleter - один текстовый провайдер. Реализация выполняет не более
// одной сетевой попытки на вызов; политика повторов живет в каскаде.
type TextCompleter interface {
	Name() string
	Complete(ctx context.Context, req TextRequest) (string, error)
}

// countPromptTokens оценивает размер промпта в токенах.
func countPromptTokens(system, user string) int {
	tke, err := tiktoken.GetEncoding(tokenEncoding)
	if err != nil {
		// Без кодировки бюджет не проверяем - это не повод ронять вызов
		log.Warn().Err(err).Msg("tiktoken encoding unavailable, skipping token budget check")
		return 0
	}
	return len(tke.Encode(system, nil, nil)) + len(tke.Encode(user, nil, nil))
}

// --- OpenRouter (primary LLM) ---

// OpenRouterConfig - настройки клиента OpenRouter-совместимого API.
type OpenRouterConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	MaxPromptTokens int
	Verbose         bool
}

// OpenRouterClient вызывает chat completions через go-openai.
type OpenRouterClient struct {
	client          *openaigo.Client
	model           string
	timeout         time.Duration
	maxPromptTokens int
	verbose         bool
}

// NewOpenRouterClient создает клиент первичного LLM провайдера.
func NewOpenRouterClient(cfg OpenRouterConfig) (*OpenRouterClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("не указан API ключ для OpenRouter")
	}
	if cfg.Model == "" {
		cfg.Model = "deepseek/deepseek-chat"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	openaiConfig := openaigo.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		openaiConfig.BaseURL = cfg.BaseURL
	} else {
		openaiConfig.BaseURL = "https://openrouter.ai/api/v1"
	}
	openaiConfig.HTTPClient = httpclient.New(httpclient.Options{Timeout: cfg.Timeout})

	return &OpenRouterClient{
		client:          openaigo.NewClientWithConfig(openaiConfig),
		model:           cfg.Model,
		timeout:         cfg.Timeout,
		maxPromptTokens: cfg.MaxPromptTokens,
		verbose:         cfg.Verbose,
	}, nil
}

func (c *OpenRouterClient) Name() string { return "openrouter" }

// Complete выполняет один запрос chat completion.
// Возвращает содержимое первого choice либо *ProviderError.
func (c *OpenRouterClient) Complete(ctx context.Context, req TextRequest) (string, error) {
	if c.maxPromptTokens > 0 {
		if n := countPromptTokens(req.System, req.User); n > c.maxPromptTokens {
			return "", fmt.Errorf("%w: %d > %d", ErrBudgetExceeded, n, c.maxPromptTokens)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := []openaigo.ChatCompletionMessage{
		{Role: openaigo.ChatMessageRoleSystem, Content: req.System},
	}
	if req.User != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{
			Role:    openaigo.ChatMessageRoleUser,
			Content: req.User,
		})
	}

	if c.verbose {
		// Только размеры, никаких ключей и содержимого заголовков
		log.Debug().
			Str("model", c.model).
			Int("system_bytes", len(req.System)).
			Int("user_bytes", len(req.User)).
			Msg("Отправка запроса к OpenRouter")
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openaigo.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		TopP:        0.95,
	})
	duration := time.Since(start)

	if err != nil {
		log.Error().Err(err).Dur("duration", duration).Str("model", c.model).Msg("Ошибка от OpenRouter API")
		return "", classifyOpenAIError(c.Name(), err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		log.Warn().Dur("duration", duration).Str("model", c.model).Msg("Пустой ответ от OpenRouter API")
		return "", newProviderError(c.Name(), KindMalformed, errors.New("пустой ответ: не получены варианты"))
	}

	content := resp.Choices[0].Message.Content
	if c.verbose {
		log.Debug().
			Dur("duration", duration).
			Int("response_bytes", len(content)).
			Int("prompt_tokens", resp.Usage.PromptTokens).
			Int("completion_tokens", resp.Usage.CompletionTokens).
			Msg("Ответ от OpenRouter получен")
	}

	return content, nil
}

// --- Ollama (secondary LLM) ---

// OllamaConfig - настройки клиента локального Ollama.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	Verbose bool
}

// OllamaClient вызывает нативный API Ollama без стриминга.
type OllamaClient struct {
	client  *ollamaapi.Client
	model   string
	timeout time.Duration
	verbose bool
}

// NewOllamaClient создает клиент вторичного LLM провайдера.
func NewOllamaClient(cfg OllamaConfig) (*OllamaClient, error) {
	if cfg.Model == "" {
		cfg.Model = "llama3"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	// api.NewClient требует URL без суффикса /v1
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/v1")
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга Ollama Base URL '%s': %w", baseURL, err)
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}

	return &OllamaClient{
		client:  ollamaapi.NewClient(parsedURL, httpClient),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		verbose: cfg.Verbose,
	}, nil
}

func (c *OllamaClient) Name() string { return "ollama" }

// Complete выполняет один chat запрос к Ollama.
func (c *OllamaClient) Complete(ctx context.Context, req TextRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := []ollamaapi.Message{
		{Role: "system", Content: req.System},
	}
	if req.User != "" {
		messages = append(messages, ollamaapi.Message{Role: "user", Content: req.User})
	}

	chatReq := &ollamaapi.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   func(b bool) *bool { return &b }(false),
		Options: map[string]interface{}{
			"temperature": float64(req.Temperature),
			"num_predict": req.MaxTokens,
		},
	}

	if c.verbose {
		log.Debug().
			Str("model", c.model).
			Int("system_bytes", len(req.System)).
			Int("user_bytes", len(req.User)).
			Msg("Отправка запроса к Ollama")
	}

	start := time.Now()
	var resp ollamaapi.ChatResponse
	err := c.client.Chat(ctx, chatReq, func(r ollamaapi.ChatResponse) error {
		resp = r // Сохраняем последний (полный) ответ
		return nil
	})
	duration := time.Since(start)

	if err != nil {
		log.Error().Err(err).Dur("duration", duration).Str("model", c.model).Msg("Ошибка от Ollama API")
		return "", classifyOllamaError(c.Name(), err)
	}

	if resp.Message.Content == "" {
		log.Warn().Dur("duration", duration).Str("model", c.model).Msg("Пустой ответ от Ollama API")
		return "", newProviderError(c.Name(), KindMalformed, errors.New("пустой ответ от модели"))
	}

	if c.verbose {
		log.Debug().
			Dur("duration", duration).
			Int("response_bytes", len(resp.Message.Content)).
			Int("prompt_tokens", resp.PromptEvalCount).
			Int("completion_tokens", resp.EvalCount).
			Msg("Ответ от Ollama получен")
	}

	return resp.Message.Content, nil
}
