package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"story-server/internal/handler"
	"story-server/internal/service"
)

// newTestRouter собирает роутер с пайплайном без внешних провайдеров:
// текст дает mock-стадия, изображения - процедурный рендер.
func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	textGen := service.NewTextGenerator(logger, nil, nil, service.TextGeneratorConfig{})
	renderer := service.NewProceduralRenderer(160, 120)
	imageGen := service.NewImageGenerator(logger, nil, nil, renderer, "animated, {genre}")
	pipeline := service.NewStoryPipeline(logger, textGen, imageGen, 2)

	router := gin.New()
	handler.NewStoryHandler(pipeline, logger, 30*time.Second).RegisterRoutes(router)
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestStoryHandler_CreateStory(t *testing.T) {
	router := newTestRouter(t)

	t.Run("Valid request produces a full story envelope", func(t *testing.T) {
		rec := postJSON(t, router, "/api/story/create", `{"username": "tester", "prompt": "a brave dragon"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Success bool `json:"success"`
			Data    struct {
				ID     string `json:"id"`
				Status string `json:"status"`
				Story  struct {
					Title  string `json:"title"`
					Scenes []struct {
						ID          int    `json:"id"`
						Image       string `json:"image"`
						ImageSource string `json:"imageSource"`
					} `json:"scenes"`
				} `json:"story"`
			} `json:"data"`
			Metadata struct {
				User       string `json:"user"`
				Genre      string `json:"genre"`
				SceneCount int    `json:"scene_count"`
			} `json:"metadata"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		assert.True(t, resp.Success)
		assert.NotEmpty(t, resp.Data.ID)
		// Без внешних провайдеров история собирается терминальными стадиями
		assert.Equal(t, "degraded", resp.Data.Status)
		assert.NotEmpty(t, resp.Data.Story.Title)
		require.Len(t, resp.Data.Story.Scenes, 5)
		for i, scene := range resp.Data.Story.Scenes {
			assert.Equal(t, i+1, scene.ID)
			assert.Equal(t, "procedural", scene.ImageSource)
			assert.NotEmpty(t, scene.Image)
		}

		assert.Equal(t, "tester", resp.Metadata.User)
		assert.Equal(t, "fantasy", resp.Metadata.Genre)
		assert.Equal(t, 5, resp.Metadata.SceneCount)
	})

	t.Run("Missing prompt is rejected with 400", func(t *testing.T) {
		rec := postJSON(t, router, "/api/story/create", `{"username": "tester"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp struct {
			Success bool `json:"success"`
			Error   struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Equal(t, "validation_failed", resp.Error.Code)
	})

	t.Run("Scene count below minimum is rejected", func(t *testing.T) {
		rec := postJSON(t, router, "/api/story/create", `{"username": "tester", "prompt": "p", "scene_count": 3}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Malformed JSON body is rejected", func(t *testing.T) {
		rec := postJSON(t, router, "/api/story/create", `{"username": `)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var resp struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "invalid_request", resp.Error.Code)
	})
}

func TestStoryHandler_Health(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
