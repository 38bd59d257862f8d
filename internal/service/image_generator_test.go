package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"story-server/internal/model"
	"story-server/internal/service"
)

// stubImageProvider - управляемая тестом графическая стадия.
type stubImageProvider struct {
	name       string
	lastPrompt string
	fn         func(prompt string) (string, error)
}

func (s *stubImageProvider) Name() string { return s.name }

func (s *stubImageProvider) Generate(_ context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	return s.fn(prompt)
}

func okImageProvider(name, image string) *stubImageProvider {
	return &stubImageProvider{name: name, fn: func(string) (string, error) {
		return image, nil
	}}
}

func failingImageProvider(name string) *stubImageProvider {
	return &stubImageProvider{name: name, fn: func(string) (string, error) {
		return "", errors.New("provider down")
	}}
}

func testScene() model.SceneDraft {
	return model.SceneDraft{ID: 1, Description: "A rabbit wakes up", ImagePrompt: "a rabbit in a cozy nest"}
}

func TestImageGenerator_Generate(t *testing.T) {
	renderer := service.NewProceduralRenderer(200, 150)
	const suffix = "animated style, {genre} theme"

	t.Run("Primary provider wins when healthy", func(t *testing.T) {
		primary := okImageProvider("dalle", "data:image/png;base64,cHJpbWFyeQ==")
		gen := service.NewImageGenerator(zap.NewNop(), primary, nil, renderer, suffix)

		image, source := gen.Generate(context.Background(), testScene(), "fantasy")
		assert.Equal(t, model.ImageSourcePrimary, source)
		assert.Equal(t, "data:image/png;base64,cHJpbWFyeQ==", image)
	})

	t.Run("Style suffix is appended with genre substituted", func(t *testing.T) {
		primary := okImageProvider("dalle", "data:image/png;base64,eA==")
		gen := service.NewImageGenerator(zap.NewNop(), primary, nil, renderer, suffix)

		gen.Generate(context.Background(), testScene(), "mystery")
		assert.Equal(t, "a rabbit in a cozy nest, animated style, mystery theme", primary.lastPrompt)
	})

	t.Run("Secondary rescues a failing primary", func(t *testing.T) {
		primary := failingImageProvider("dalle")
		secondary := okImageProvider("stability", "data:image/png;base64,c2Vjb25kYXJ5")
		gen := service.NewImageGenerator(zap.NewNop(), primary, secondary, renderer, suffix)

		image, source := gen.Generate(context.Background(), testScene(), "fantasy")
		assert.Equal(t, model.ImageSourceSecondary, source)
		assert.Equal(t, "data:image/png;base64,c2Vjb25kYXJ5", image)
	})

	t.Run("All providers failing falls to procedural rendering", func(t *testing.T) {
		gen := service.NewImageGenerator(zap.NewNop(),
			failingImageProvider("dalle"), failingImageProvider("stability"), renderer, suffix)

		image, source := gen.Generate(context.Background(), testScene(), "fantasy")
		assert.Equal(t, model.ImageSourceProcedural, source)
		require.True(t, strings.HasPrefix(image, "data:image/png;base64,"))
		assert.Greater(t, len(image), len("data:image/png;base64,"))
	})

	t.Run("No providers configured renders procedurally", func(t *testing.T) {
		gen := service.NewImageGenerator(zap.NewNop(), nil, nil, renderer, suffix)

		image, source := gen.Generate(context.Background(), testScene(), "kids")
		assert.Equal(t, model.ImageSourceProcedural, source)
		assert.True(t, strings.HasPrefix(image, "data:image/png;base64,"))
	})

	t.Run("Procedural output is reproducible per scene", func(t *testing.T) {
		gen := service.NewImageGenerator(zap.NewNop(), nil, nil, renderer, suffix)
		scene := testScene()

		first, _ := gen.Generate(context.Background(), scene, "kids")
		second, _ := gen.Generate(context.Background(), scene, "kids")
		assert.Equal(t, first, second)
	})
}
