package model

import (
	"fmt"
	"strings"
	"time"
)

// MinSceneCount - минимально допустимое (и по умолчанию) число сцен истории.
const MinSceneCount = 5

const (
	defaultGenre    = "fantasy"
	defaultAgeGroup = "children"
)

// ValidationError - ошибка формы запроса. Поднимается к вызывающему как
// 4xx-эквивалент и не ведет к повторным попыткам генерации.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// StoryRequest - неизменяемый входной запрос на генерацию истории.
type StoryRequest struct {
	Username   string `json:"username"`
	Prompt     string `json:"prompt"`
	AgeGroup   string `json:"age_group"`
	SceneCount int    `json:"scene_count"`
	Genre      string `json:"genre"`
}

// Normalize подставляет значения по умолчанию для необязательных полей.
func (r *StoryRequest) Normalize() {
	if r.SceneCount == 0 {
		r.SceneCount = MinSceneCount
	}
	if strings.TrimSpace(r.Genre) == "" {
		r.Genre = defaultGenre
	}
	if strings.TrimSpace(r.AgeGroup) == "" {
		r.AgeGroup = defaultAgeGroup
	}
}

// Validate проверяет форму запроса. Вызывается после Normalize.
func (r *StoryRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return &ValidationError{Field: "username", Message: "must not be empty"}
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return &ValidationError{Field: "prompt", Message: "must not be empty"}
	}
	if r.SceneCount < MinSceneCount {
		return &ValidationError{Field: "scene_count", Message: fmt.Sprintf("must be at least %d", MinSceneCount)}
	}
	return nil
}

// SceneDraft - сцена, произведенная текстовой стадией.
// Инвариант: внутри истории id уникальны и непрерывны, начиная с 1.
type SceneDraft struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
	ImagePrompt string `json:"imagePrompt"`
}

// StoryDraft - результат текстовой стадии: заголовок и упорядоченные сцены.
type StoryDraft struct {
	Title  string       `json:"title"`
	Scenes []SceneDraft `json:"scenes"`
}

// ImageSource - стадия каскада, предоставившая изображение сцены.
type ImageSource string

const (
	ImageSourcePrimary    ImageSource = "primary"
	ImageSourceSecondary  ImageSource = "secondary"
	ImageSourceProcedural ImageSource = "procedural"
)

// RenderedScene - сцена с готовым изображением.
// Image всегда непустой: терминальная процедурная стадия не отказывает.
type RenderedScene struct {
	SceneDraft
	Image       string      `json:"image"`
	ImageSource ImageSource `json:"imageSource"`
}

// StoryStatus - итоговый статус собранной истории.
type StoryStatus string

const (
	// StatusCompleted - каждая стадия использовала первичный провайдер.
	StatusCompleted StoryStatus = "completed"
	// StatusDegraded - хотя бы одна стадия ушла дальше первичного провайдера.
	// Это успешный ответ с сигналом качества, а не ошибка.
	StatusDegraded StoryStatus = "degraded"
	// StatusFailed - отказала терминальная стадия (нарушение инварианта).
	StatusFailed StoryStatus = "failed"
)

// StoryContent - содержимое истории в итоговом ответе.
type StoryContent struct {
	Title  string          `json:"title"`
	Scenes []RenderedScene `json:"scenes"`
}

// Story - собранная история, результат работы пайплайна.
type Story struct {
	ID        string       `json:"id"`
	Username  string       `json:"username"`
	Prompt    string       `json:"prompt"`
	Story     StoryContent `json:"story"`
	CreatedAt time.Time    `json:"createdAt"`
	Status    StoryStatus  `json:"status"`
}
