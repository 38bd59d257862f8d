package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"story-server/internal/model"
)

// StoryPipeline оркестрирует полный цикл генерации: текстовый каскад дает
// черновик, затем сцены рендерятся конкурентно с сохранением порядка, и
// результат собирается в Story с итоговым статусом.
type StoryPipeline struct {
	logger      *zap.Logger
	text        *TextGenerator
	images      *ImageGenerator
	concurrency int
}

// NewStoryPipeline создает пайплайн. concurrency ограничивает число
// одновременных рендеров сцен.
func NewStoryPipeline(logger *zap.Logger, text *TextGenerator, images *ImageGenerator, concurrency int) *StoryPipeline {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &StoryPipeline{
		logger:      logger.Named("StoryPipeline"),
		text:        text,
		images:      images,
		concurrency: concurrency,
	}
}

// Run выполняет запрос от черновика до собранной истории. Ошибка
// возвращается только при отказе терминальной текстовой стадии; любые
// деградации провайдеров отражаются в статусе, а не в ошибке.
func (p *StoryPipeline) Run(ctx context.Context, req model.StoryRequest) (model.Story, error) {
	started := time.Now()
	log := p.logger.With(zap.String("username", req.Username))
	log.Info("Story pipeline started",
		zap.Int("scene_count", req.SceneCount),
		zap.String("genre", req.Genre))

	draft, textSource, err := p.text.Generate(ctx, req)
	if err != nil {
		pipelineDuration.WithLabelValues(string(model.StatusFailed)).Observe(time.Since(started).Seconds())
		return model.Story{}, err
	}

	rendered := p.renderScenes(ctx, draft.Scenes, req.Genre)

	status := resolveStatus(textSource, rendered)
	story := model.Story{
		ID:       uuid.New().String(),
		Username: req.Username,
		Prompt:   req.Prompt,
		Story: model.StoryContent{
			Title:  draft.Title,
			Scenes: rendered,
		},
		CreatedAt: time.Now().UTC(),
		Status:    status,
	}

	pipelineDuration.WithLabelValues(string(status)).Observe(time.Since(started).Seconds())
	log.Info("Story pipeline finished",
		zap.String("story_id", story.ID),
		zap.String("status", string(status)),
		zap.String("text_source", string(textSource)),
		zap.Duration("elapsed", time.Since(started)))
	return story, nil
}

// renderScenes рендерит сцены конкурентно, сохраняя порядок черновика.
// Каждый рендер тотален, поэтому горутины не возвращают ошибок.
func (p *StoryPipeline) renderScenes(ctx context.Context, scenes []model.SceneDraft, genre string) []model.RenderedScene {
	rendered := make([]model.RenderedScene, len(scenes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, scene := range scenes {
		g.Go(func() error {
			image, source := p.images.Generate(gctx, scene, genre)
			rendered[i] = model.RenderedScene{
				SceneDraft:  scene,
				Image:       image,
				ImageSource: source,
			}
			return nil
		})
	}
	// Горутины не отказывают, Wait только дожидается завершения
	_ = g.Wait()

	return rendered
}

// resolveStatus сводит источники всех стадий к статусу истории:
// completed только когда и текст, и каждая сцена пришли от первичных
// провайдеров.
func resolveStatus(textSource TextSource, scenes []model.RenderedScene) model.StoryStatus {
	if textSource != TextSourcePrimary {
		return model.StatusDegraded
	}
	for _, s := range scenes {
		if s.ImageSource != model.ImageSourcePrimary {
			return model.StatusDegraded
		}
	}
	return model.StatusCompleted
}
