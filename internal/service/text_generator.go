package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"story-server/internal/model"
	"story-server/pkg/ai"
)

// TextSource - стадия каскада, предоставившая черновик истории.
type TextSource string

const (
	TextSourcePrimary   TextSource = "primary"
	TextSourceSecondary TextSource = "secondary"
	TextSourceMock      TextSource = "mock"
)

// ErrTextTerminalStage - отказала терминальная mock-стадия. По контракту
// недостижимо (чистая композиция строк); возникновение - дефект программы.
var ErrTextTerminalStage = errors.New("terminal text stage failed")

// textStage - одна стадия текстового каскада.
type textStage struct {
	source      TextSource
	client      ai.TextCompleter
	maxAttempts int
}

// TextGeneratorConfig - параметры генерации, общие для всех стадий.
type TextGeneratorConfig struct {
	MaxTokens            int
	Temperature          float32
	PrimaryMaxAttempts   int
	SecondaryMaxAttempts int
}

// TextGenerator проводит запрос через каскад текстовых провайдеров:
// первичный LLM -> вторичный LLM -> детерминированный mock-генератор.
// Операция Generate не отказывает наружу: любая ошибка провайдера или
// парсинга гасится на границе стадии и продвигает каскад.
type TextGenerator struct {
	logger *zap.Logger
	stages []textStage
	cfg    TextGeneratorConfig
}

// NewTextGenerator создает генератор. primary и secondary могут быть nil -
// отключенные стадии просто выпадают из каскада.
func NewTextGenerator(logger *zap.Logger, primary, secondary ai.TextCompleter, cfg TextGeneratorConfig) *TextGenerator {
	if cfg.PrimaryMaxAttempts <= 0 {
		cfg.PrimaryMaxAttempts = 1
	}
	if cfg.SecondaryMaxAttempts <= 0 {
		cfg.SecondaryMaxAttempts = 1
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4000
	}

	stages := make([]textStage, 0, 2)
	if primary != nil {
		stages = append(stages, textStage{source: TextSourcePrimary, client: primary, maxAttempts: cfg.PrimaryMaxAttempts})
	}
	if secondary != nil {
		stages = append(stages, textStage{source: TextSourceSecondary, client: secondary, maxAttempts: cfg.SecondaryMaxAttempts})
	}

	return &TextGenerator{
		logger: logger.Named("TextGenerator"),
		stages: stages,
		cfg:    cfg,
	}
}

// Generate производит валидный StoryDraft с ровно req.SceneCount сценами
// и id 1..N. Ошибка возвращается только при отказе терминальной стадии.
func (g *TextGenerator) Generate(ctx context.Context, req model.StoryRequest) (model.StoryDraft, TextSource, error) {
	system, user := buildStoryPrompt(req)

	for _, stage := range g.stages {
		for attempt := 1; attempt <= stage.maxAttempts; attempt++ {
			draft, ok := g.tryStage(ctx, stage, attempt, system, user, req)
			if ok {
				return draft, stage.source, nil
			}
			if ctx.Err() != nil {
				// Контекст запроса истек: ретраи бессмысленны, но терминальная
				// стадия не требует I/O и все еще обязана отработать
				break
			}
		}
	}

	draft, err := g.mockDraft(req)
	if err != nil {
		g.logger.Error("Terminal mock stage failed, this is a defect", zap.Error(err))
		cascadeAttemptsTotal.WithLabelValues("text", "mock", "error").Inc()
		return model.StoryDraft{}, TextSourceMock, err
	}
	cascadeAttemptsTotal.WithLabelValues("text", "mock", "success").Inc()
	return draft, TextSourceMock, nil
}

// tryStage выполняет одну попытку стадии: вызов провайдера, парсинг с
// однократным ремонтом, валидация. Любая ошибка внутри - отказ попытки.
func (g *TextGenerator) tryStage(ctx context.Context, stage textStage, attempt int, system, user string, req model.StoryRequest) (model.StoryDraft, bool) {
	log := g.logger.With(
		zap.String("provider", stage.client.Name()),
		zap.Int("attempt", attempt),
	)

	raw, err := stage.client.Complete(ctx, ai.TextRequest{
		System:      system,
		User:        user,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		log.Warn("Text provider call failed, advancing cascade", zap.Error(err))
		cascadeAttemptsTotal.WithLabelValues("text", stage.client.Name(), "error").Inc()
		return model.StoryDraft{}, false
	}

	draft, err := parseDraft(raw)
	if err != nil {
		log.Warn("Failed to parse provider response", zap.Error(err), zap.Int("response_bytes", len(raw)))
		cascadeAttemptsTotal.WithLabelValues("text", stage.client.Name(), "parse_error").Inc()
		return model.StoryDraft{}, false
	}

	validated, err := g.validateDraft(draft, req)
	if err != nil {
		log.Warn("Provider draft failed validation", zap.Error(err))
		cascadeAttemptsTotal.WithLabelValues("text", stage.client.Name(), "invalid").Inc()
		return model.StoryDraft{}, false
	}

	cascadeAttemptsTotal.WithLabelValues("text", stage.client.Name(), "success").Inc()
	log.Info("Story draft accepted",
		zap.String("title", validated.Title),
		zap.Int("scenes", len(validated.Scenes)))
	return validated, true
}

// parseDraft разбирает сырой ответ провайдера. При невалидном JSON ремонт
// вызывается ровно один раз; ErrUnrepairable гасится как отказ попытки.
func parseDraft(raw string) (model.StoryDraft, error) {
	var draft model.StoryDraft
	if err := json.Unmarshal([]byte(raw), &draft); err == nil {
		return draft, nil
	}

	repaired, err := ai.ExtractJSON(raw)
	if err != nil {
		return model.StoryDraft{}, err
	}
	if err := json.Unmarshal(repaired, &draft); err != nil {
		return model.StoryDraft{}, fmt.Errorf("восстановленный JSON не соответствует форме истории: %w", err)
	}
	return draft, nil
}

// validateDraft приводит черновик провайдера к инвариантам StoryDraft:
// непустой заголовок, ровно req.SceneCount валидных сцен, id 1..N.
// Недостающие сцены досинтезируются mock-шаблонами, сохраняя полученные.
func (g *TextGenerator) validateDraft(draft model.StoryDraft, req model.StoryRequest) (model.StoryDraft, error) {
	if strings.TrimSpace(draft.Title) == "" {
		return model.StoryDraft{}, errors.New("пустой заголовок истории")
	}

	scenes := make([]model.SceneDraft, 0, req.SceneCount)
	for _, s := range draft.Scenes {
		if strings.TrimSpace(s.Description) == "" || strings.TrimSpace(s.ImagePrompt) == "" {
			continue
		}
		scenes = append(scenes, s)
		if len(scenes) == req.SceneCount {
			break
		}
	}

	padded := len(scenes) < req.SceneCount
	for len(scenes) < req.SceneCount {
		scenes = append(scenes, mockScene(len(scenes)+1, req))
	}
	if padded {
		g.logger.Info("Draft padded with synthesized scenes",
			zap.Int("provided", len(draft.Scenes)),
			zap.Int("requested", req.SceneCount))
	}

	// Перенумерация гарантирует непрерывность id независимо от провайдера
	for i := range scenes {
		scenes[i].ID = i + 1
	}

	return model.StoryDraft{Title: draft.Title, Scenes: scenes}, nil
}

// mockSceneTemplates - ротация нарративных шаблонов терминальной стадии.
var mockSceneTemplates = []string{
	"The beginning of our adventure",
	"The journey begins",
	"A challenge appears",
	"Overcoming obstacles",
	"The happy ending",
}

// mockImageFragments - фрагменты image-промптов, по одному на шаблон.
var mockImageFragments = []string{
	"beginning, colorful, detailed",
	"journey, adventure, vibrant",
	"challenge, dramatic, intense",
	"victory, triumph, bright",
	"ending, happy, peaceful",
}

// mockScene синтезирует сцену с номером n из фиксированных шаблонов.
// Чистая композиция строк: детерминирована и не имеет пути отказа.
func mockScene(n int, req model.StoryRequest) model.SceneDraft {
	tmpl := mockSceneTemplates[(n-1)%len(mockSceneTemplates)]
	fragment := mockImageFragments[(n-1)%len(mockImageFragments)]
	return model.SceneDraft{
		ID:          n,
		Description: fmt.Sprintf("Scene %d: %s", n, tmpl),
		ImagePrompt: fmt.Sprintf("%s - scene %d, %s, %s style, colorful, detailed", req.Prompt, n, fragment, req.Genre),
	}
}

// mockDraft - терминальная стадия каскада. Паника внутри перехватывается
// и возвращается как ErrTextTerminalStage: это сигнал дефекта, а не
// ожидаемое состояние выполнения.
func (g *TextGenerator) mockDraft(req model.StoryRequest) (draft model.StoryDraft, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTextTerminalStage, r)
		}
	}()

	scenes := make([]model.SceneDraft, 0, req.SceneCount)
	for i := 1; i <= req.SceneCount; i++ {
		scenes = append(scenes, mockScene(i, req))
	}

	g.logger.Info("Using deterministic mock story", zap.Int("scenes", len(scenes)))
	return model.StoryDraft{
		Title:  fmt.Sprintf("Adventure of %s", req.Prompt),
		Scenes: scenes,
	}, nil
}
