package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	openaigo "github.com/sashabaranov/go-openai"

	"story-server/pkg/httpclient"
)

// ImageProvider - один провайдер генерации изображений. Как и TextCompleter,
// выполняет не более одной сетевой попытки и возвращает изображение в виде
// data URL (data:image/png;base64,...) либо *ProviderError.
type ImageProvider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// dataURL оборачивает base64 PNG в транспортный формат ответа.
func dataURL(b64 string) string {
	return "data:image/png;base64," + b64
}

// --- DALL-E (primary image API) ---

// DalleConfig - настройки клиента OpenAI Images API.
type DalleConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Size    string
	Timeout time.Duration
	Verbose bool
}

// DalleClient генерирует изображения через OpenAI Images API.
type DalleClient struct {
	client  *openaigo.Client
	model   string
	size    string
	timeout time.Duration
	verbose bool
}

// NewDalleClient создает клиент первичного графического провайдера.
func NewDalleClient(cfg DalleConfig) (*DalleClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("не указан API ключ для OpenAI Images")
	}
	if cfg.Model == "" {
		cfg.Model = openaigo.CreateImageModelDallE3
	}
	if cfg.Size == "" {
		cfg.Size = openaigo.CreateImageSize1024x1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}

	openaiConfig := openaigo.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		openaiConfig.BaseURL = cfg.BaseURL
	}
	openaiConfig.HTTPClient = httpclient.New(httpclient.Options{Timeout: cfg.Timeout})

	return &DalleClient{
		client:  openaigo.NewClientWithConfig(openaiConfig),
		model:   cfg.Model,
		size:    cfg.Size,
		timeout: cfg.Timeout,
		verbose: cfg.Verbose,
	}, nil
}

func (c *DalleClient) Name() string { return "dalle" }

// Generate выполняет один запрос генерации изображения.
func (c *DalleClient) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.verbose {
		log.Debug().Str("model", c.model).Int("prompt_bytes", len(prompt)).Msg("Отправка запроса к DALL-E")
	}

	start := time.Now()
	resp, err := c.client.CreateImage(ctx, openaigo.ImageRequest{
		Prompt:         prompt,
		Model:          c.model,
		N:              1,
		Size:           c.size,
		ResponseFormat: openaigo.CreateImageResponseFormatB64JSON,
	})
	duration := time.Since(start)

	if err != nil {
		log.Error().Err(err).Dur("duration", duration).Msg("Ошибка от DALL-E API")
		return "", classifyOpenAIError(c.Name(), err)
	}

	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		log.Warn().Dur("duration", duration).Msg("DALL-E API вернул пустые данные изображения")
		return "", newProviderError(c.Name(), KindMalformed, errors.New("пустой ответ: нет данных изображения"))
	}

	if c.verbose {
		log.Debug().Dur("duration", duration).Int("b64_bytes", len(resp.Data[0].B64JSON)).Msg("Изображение получено от DALL-E")
	}

	return dataURL(resp.Data[0].B64JSON), nil
}

// --- Stability (secondary image API) ---

// StabilityConfig - настройки клиента Stability-совместимого API.
type StabilityConfig struct {
	APIKey  string
	BaseURL string
	Engine  string
	Width   int
	Height  int
	Timeout time.Duration
	Verbose bool
}

// StabilityClient вызывает text-to-image endpoint Stability API напрямую.
type StabilityClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	engine     string
	width      int
	height     int
	verbose    bool
}

// stabilityRequest - тело запроса text-to-image.
type stabilityRequest struct {
	TextPrompts []stabilityTextPrompt `json:"text_prompts"`
	CfgScale    int                   `json:"cfg_scale"`
	Width       int                   `json:"width"`
	Height      int                   `json:"height"`
	Samples     int                   `json:"samples"`
	Steps       int                   `json:"steps"`
}

type stabilityTextPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

// stabilityResponse - тело ответа с base64 артефактами.
type stabilityResponse struct {
	Artifacts []struct {
		Base64 string `json:"base64"`
	} `json:"artifacts"`
}

// NewStabilityClient создает клиент вторичного графического провайдера.
func NewStabilityClient(cfg StabilityConfig) (*StabilityClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("не указан API ключ для Stability")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.stability.ai"
	}
	if cfg.Engine == "" {
		cfg.Engine = "stable-diffusion-xl-1024-v1-0"
	}
	if cfg.Width <= 0 {
		cfg.Width = 1024
	}
	if cfg.Height <= 0 {
		cfg.Height = 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}

	return &StabilityClient{
		httpClient: httpclient.New(httpclient.Options{Timeout: cfg.Timeout}),
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		engine:     cfg.Engine,
		width:      cfg.Width,
		height:     cfg.Height,
		verbose:    cfg.Verbose,
	}, nil
}

func (c *StabilityClient) Name() string { return "stability" }

// Generate выполняет один запрос text-to-image.
func (c *StabilityClient) Generate(ctx context.Context, prompt string) (string, error) {
	reqPayload := stabilityRequest{
		TextPrompts: []stabilityTextPrompt{{Text: prompt, Weight: 1}},
		CfgScale:    7,
		Width:       c.width,
		Height:      c.height,
		Samples:     1,
		Steps:       30,
	}
	reqBody, err := json.Marshal(reqPayload)
	if err != nil {
		return "", newProviderError(c.Name(), KindMalformed, fmt.Errorf("failed to marshal request payload: %w", err))
	}

	endpointURL := fmt.Sprintf("%s/v1/generation/%s/text-to-image", c.baseURL, c.engine)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, bytes.NewReader(reqBody))
	if err != nil {
		return "", newProviderError(c.Name(), KindUnreachable, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	if c.verbose {
		log.Debug().Str("engine", c.engine).Int("prompt_bytes", len(prompt)).Msg("Отправка запроса к Stability API")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		log.Error().Err(err).Dur("duration", duration).Msg("Ошибка вызова Stability API")
		if errors.Is(err, context.DeadlineExceeded) {
			return "", newProviderError(c.Name(), KindTimeout, err)
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", newProviderError(c.Name(), KindTimeout, err)
		}
		return "", newProviderError(c.Name(), KindUnreachable, fmt.Errorf("http request failed: %w", err))
	}
	defer resp.Body.Close()

	bodyBytes, readErr := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.Error().Int("status_code", resp.StatusCode).Dur("duration", duration).Msg("Stability API вернул не-OK статус")
		return "", newProviderError(c.Name(), classifyHTTPStatus(resp.StatusCode),
			fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(bodyBytes)))
	}
	if readErr != nil {
		return "", newProviderError(c.Name(), KindMalformed, fmt.Errorf("failed to read response body: %w", readErr))
	}

	var parsed stabilityResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return "", newProviderError(c.Name(), KindMalformed, fmt.Errorf("failed to decode response: %w", err))
	}
	if len(parsed.Artifacts) == 0 || parsed.Artifacts[0].Base64 == "" {
		return "", newProviderError(c.Name(), KindMalformed, errors.New("пустой ответ: нет артефактов изображения"))
	}

	if c.verbose {
		log.Debug().Dur("duration", duration).Int("b64_bytes", len(parsed.Artifacts[0].Base64)).Msg("Изображение получено от Stability")
	}

	return dataURL(parsed.Artifacts[0].Base64), nil
}
