package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"story-server/internal/model"
	"story-server/internal/service"
)

// apiError - стандартизированное тело ошибки в ответе API.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// storyMetadata - сводка параметров запроса в успешном ответе.
type storyMetadata struct {
	GeneratedAt time.Time `json:"generated_at"`
	User        string    `json:"user"`
	Genre       string    `json:"genre"`
	AgeGroup    string    `json:"age_group"`
	SceneCount  int       `json:"scene_count"`
}

// apiResponse - единый конверт ответа API.
type apiResponse struct {
	Success  bool           `json:"success"`
	Data     *model.Story   `json:"data,omitempty"`
	Error    *apiError      `json:"error,omitempty"`
	Metadata *storyMetadata `json:"metadata,omitempty"`
}

// StoryHandler обрабатывает HTTP запросы генерации историй. Тонкий
// адаптер: форма запроса и конверт ответа живут здесь, вся логика
// генерации - в пайплайне.
type StoryHandler struct {
	pipeline       *service.StoryPipeline
	logger         *zap.Logger
	requestTimeout time.Duration
}

// NewStoryHandler создает новый StoryHandler. requestTimeout ограничивает
// полное время пайплайна на один запрос.
func NewStoryHandler(pipeline *service.StoryPipeline, logger *zap.Logger, requestTimeout time.Duration) *StoryHandler {
	if requestTimeout <= 0 {
		requestTimeout = 5 * time.Minute
	}
	return &StoryHandler{
		pipeline:       pipeline,
		logger:         logger.Named("StoryHandler"),
		requestTimeout: requestTimeout,
	}
}

// RegisterRoutes регистрирует маршруты сервиса.
func (h *StoryHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.health)

	storyGroup := router.Group("/api/story")
	{
		storyGroup.POST("/create", h.createStory)
	}
}

// health - liveness-эндпоинт. Отвечает 200 независимо от состояния
// внешних провайдеров: каскад с терминальными стадиями жив всегда.
func (h *StoryHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "story-server",
	})
}

// createStory принимает запрос генерации, прогоняет его через пайплайн
// и заворачивает результат в конверт ответа.
func (h *StoryHandler) createStory(c *gin.Context) {
	var req model.StoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiResponse{
			Success: false,
			Error:   &apiError{Code: "invalid_request", Message: "request body must be valid JSON"},
		})
		return
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		var vErr *model.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, apiResponse{
				Success: false,
				Error:   &apiError{Code: "validation_failed", Message: vErr.Error()},
			})
			return
		}
		c.JSON(http.StatusBadRequest, apiResponse{
			Success: false,
			Error:   &apiError{Code: "validation_failed", Message: err.Error()},
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.requestTimeout)
	defer cancel()

	story, err := h.pipeline.Run(ctx, req)
	if err != nil {
		// Сюда попадает только отказ терминальной стадии: дефект, а не
		// деградация, поэтому 500
		h.logger.Error("Story pipeline failed", zap.Error(err), zap.String("username", req.Username))
		c.JSON(http.StatusInternalServerError, apiResponse{
			Success: false,
			Error:   &apiError{Code: "pipeline_failed", Message: "story generation failed"},
		})
		return
	}

	c.JSON(http.StatusOK, apiResponse{
		Success: true,
		Data:    &story,
		Metadata: &storyMetadata{
			GeneratedAt: story.CreatedAt,
			User:        req.Username,
			Genre:       req.Genre,
			AgeGroup:    req.AgeGroup,
			SceneCount:  req.SceneCount,
		},
	})
}
