package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"story-server/internal/model"
	"story-server/pkg/ai"
)

// imageStage - одна внешняя стадия графического каскада.
type imageStage struct {
	source   model.ImageSource
	provider ai.ImageProvider
}

// ImageGenerator проводит image-промпт сцены через каскад: первичный
// провайдер -> вторичный провайдер -> процедурный рендер. Операция
// тотальна: терминальная стадия не зависит от сети и всегда дает
// изображение, поэтому метод не возвращает ошибку.
type ImageGenerator struct {
	logger      *zap.Logger
	stages      []imageStage
	renderer    *ProceduralRenderer
	styleSuffix string
}

// NewImageGenerator создает генератор. primary и secondary могут быть nil -
// отключенные стадии выпадают из каскада. renderer обязателен.
func NewImageGenerator(logger *zap.Logger, primary, secondary ai.ImageProvider, renderer *ProceduralRenderer, styleSuffix string) *ImageGenerator {
	stages := make([]imageStage, 0, 2)
	if primary != nil {
		stages = append(stages, imageStage{source: model.ImageSourcePrimary, provider: primary})
	}
	if secondary != nil {
		stages = append(stages, imageStage{source: model.ImageSourceSecondary, provider: secondary})
	}

	return &ImageGenerator{
		logger:      logger.Named("ImageGenerator"),
		stages:      stages,
		renderer:    renderer,
		styleSuffix: styleSuffix,
	}
}

// Generate возвращает изображение сцены и стадию, которая его дала.
// Ошибки внешних провайдеров гасятся на границе стадии и продвигают
// каскад к процедурному рендеру.
func (g *ImageGenerator) Generate(ctx context.Context, scene model.SceneDraft, genre string) (string, model.ImageSource) {
	prompt := g.stylePrompt(scene.ImagePrompt, genre)

	for _, stage := range g.stages {
		started := time.Now()
		image, err := stage.provider.Generate(ctx, prompt)
		if err != nil {
			g.logger.Warn("Image provider failed, advancing cascade",
				zap.String("provider", stage.provider.Name()),
				zap.Int("scene_id", scene.ID),
				zap.Error(err))
			cascadeAttemptsTotal.WithLabelValues("image", stage.provider.Name(), "error").Inc()
			continue
		}

		cascadeAttemptsTotal.WithLabelValues("image", stage.provider.Name(), "success").Inc()
		sceneRenderDuration.WithLabelValues(string(stage.source)).Observe(time.Since(started).Seconds())
		g.logger.Info("Scene image generated",
			zap.String("provider", stage.provider.Name()),
			zap.Int("scene_id", scene.ID))
		return image, stage.source
	}

	// Терминальная стадия: анализ промпта и детерминированный синтез
	started := time.Now()
	analysis := AnalyzeScene(scene.ImagePrompt, genre)
	image := g.renderer.Render(analysis, scene.ID)

	cascadeAttemptsTotal.WithLabelValues("image", "procedural", "success").Inc()
	sceneRenderDuration.WithLabelValues(string(model.ImageSourceProcedural)).Observe(time.Since(started).Seconds())
	g.logger.Info("Scene image rendered procedurally",
		zap.Int("scene_id", scene.ID),
		zap.String("motif", string(analysis.Motif)),
		zap.String("palette", analysis.Palette.Name))
	return image, model.ImageSourceProcedural
}

// stylePrompt дополняет промпт сцены единым стилевым суффиксом, подставляя
// жанр в плейсхолдер {genre}.
func (g *ImageGenerator) stylePrompt(imagePrompt, genre string) string {
	if g.styleSuffix == "" {
		return imagePrompt
	}
	suffix := strings.ReplaceAll(g.styleSuffix, "{genre}", genre)
	return imagePrompt + ", " + suffix
}
