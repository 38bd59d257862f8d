package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	ginprometheus "github.com/zsais/go-gin-prometheus"

	"story-server/internal/config"
	"story-server/internal/handler"
	"story-server/internal/middleware"
	"story-server/internal/service"
	"story-server/pkg/ai"
	"story-server/pkg/logger"
)

func main() {
	// .env опционален: в контейнере конфигурация приходит из окружения
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	zap.ReplaceGlobals(log)
	zap.L().Info("Logger initialized", zap.String("logLevel", cfg.LogLevel))
	zap.L().Info("Configuration loaded",
		zap.Bool("text_primary", cfg.TextPrimaryEnabled),
		zap.Bool("text_secondary", cfg.TextSecondaryEnabled),
		zap.Bool("image_primary", cfg.ImagePrimaryEnabled),
		zap.Bool("image_secondary", cfg.ImageSecondaryEnabled))

	// --- Текстовый каскад ---
	var textPrimary ai.TextCompleter
	if cfg.TextPrimaryEnabled {
		client, err := ai.NewOpenRouterClient(ai.OpenRouterConfig{
			APIKey:          cfg.TextPrimaryAPIKey,
			BaseURL:         cfg.TextPrimaryBaseURL,
			Model:           cfg.TextPrimaryModel,
			Timeout:         cfg.TextPrimaryTimeout,
			MaxPromptTokens: cfg.TextPrimaryMaxPromptTokens,
			Verbose:         cfg.VerboseProvider,
		})
		if err != nil {
			zap.L().Fatal("Failed to create primary text provider", zap.Error(err))
		}
		textPrimary = client
	}

	var textSecondary ai.TextCompleter
	if cfg.TextSecondaryEnabled {
		client, err := ai.NewOllamaClient(ai.OllamaConfig{
			BaseURL: cfg.TextSecondaryBaseURL,
			Model:   cfg.TextSecondaryModel,
			Timeout: cfg.TextSecondaryTimeout,
			Verbose: cfg.VerboseProvider,
		})
		if err != nil {
			zap.L().Fatal("Failed to create secondary text provider", zap.Error(err))
		}
		textSecondary = client
	}

	textGen := service.NewTextGenerator(log, textPrimary, textSecondary, service.TextGeneratorConfig{
		MaxTokens:            cfg.TextPrimaryMaxTokens,
		Temperature:          cfg.TextTemperature,
		PrimaryMaxAttempts:   cfg.TextPrimaryMaxAttempts,
		SecondaryMaxAttempts: cfg.TextSecondaryMaxAttempts,
	})

	// --- Графический каскад ---
	var imagePrimary ai.ImageProvider
	if cfg.ImagePrimaryEnabled {
		client, err := ai.NewDalleClient(ai.DalleConfig{
			APIKey:  cfg.ImagePrimaryAPIKey,
			BaseURL: cfg.ImagePrimaryBaseURL,
			Model:   cfg.ImagePrimaryModel,
			Size:    cfg.ImagePrimarySize,
			Timeout: cfg.ImagePrimaryTimeout,
			Verbose: cfg.VerboseProvider,
		})
		if err != nil {
			zap.L().Fatal("Failed to create primary image provider", zap.Error(err))
		}
		imagePrimary = client
	}

	var imageSecondary ai.ImageProvider
	if cfg.ImageSecondaryEnabled {
		client, err := ai.NewStabilityClient(ai.StabilityConfig{
			APIKey:  cfg.ImageSecondaryAPIKey,
			BaseURL: cfg.ImageSecondaryBaseURL,
			Engine:  cfg.ImageSecondaryEngine,
			Width:   1024,
			Height:  1024,
			Timeout: cfg.ImageSecondaryTimeout,
			Verbose: cfg.VerboseProvider,
		})
		if err != nil {
			zap.L().Fatal("Failed to create secondary image provider", zap.Error(err))
		}
		imageSecondary = client
	}

	renderer := service.NewProceduralRenderer(cfg.RenderWidth, cfg.RenderHeight)
	imageGen := service.NewImageGenerator(log, imagePrimary, imageSecondary, renderer, cfg.PromptStyleSuffix)

	pipeline := service.NewStoryPipeline(log, textGen, imageGen, cfg.RenderConcurrency)
	storyHandler := handler.NewStoryHandler(pipeline, log, cfg.RequestTimeout)

	// --- HTTP сервер (Gin) ---
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(middleware.RequestLogger(log))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type"}
	router.Use(cors.New(corsConfig))

	storyHandler.RegisterRoutes(router)

	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
		// Write timeout должен вмещать полный прогон пайплайна
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	zap.L().Info("Starting HTTP server", zap.String("port", cfg.HTTPPort))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.L().Fatal("HTTP Server listen error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("HTTP Server forced to shutdown", zap.Error(err))
	}

	zap.L().Info("Server exiting")
}
