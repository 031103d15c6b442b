// Package main runs the voice journal transcription HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/neurosync-ai/backend/config"
	"github.com/neurosync-ai/backend/internal/middleware"
	"github.com/neurosync-ai/backend/internal/pipeline"
	"github.com/neurosync-ai/backend/internal/recordings"
	"github.com/neurosync-ai/backend/internal/transcription"
	"github.com/neurosync-ai/backend/internal/worker"
	"github.com/neurosync-ai/backend/pkg/database"
	"github.com/neurosync-ai/backend/pkg/queue"
	"github.com/neurosync-ai/backend/pkg/redis"
	"github.com/neurosync-ai/backend/pkg/response"
	"github.com/neurosync-ai/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	provider := transcription.NewAssemblyAI(transcription.AssemblyAIConfig{
		APIKey:       cfg.Transcription.APIKey,
		BaseURL:      cfg.Transcription.BaseURL,
		PollInterval: cfg.Transcription.PollInterval,
		PollTimeout:  cfg.Transcription.PollTimeout,
	}, logger)

	var s3Client *storage.S3
	if cfg.AWS.AudioBucket != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			AudioBucket:          cfg.AWS.AudioBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
			s3Client = nil
		}
	}

	recordingRepo := recordings.NewRepository(pool)
	var resolver pipeline.AudioResolver
	if s3Client != nil {
		resolver = s3Client
	}
	transcriptionPipeline := pipeline.New(recordingRepo, provider, resolver, cfg.Transcription.LanguageCode, logger)

	recordingHandler := recordings.NewHandler(recordingRepo, transcriptionPipeline, logger)
	recordingHandler.SetUploader(provider)
	if s3Client != nil {
		recordingHandler.SetStorage(s3Client)
	}

	// Async transcription (queue + in-process worker) is enabled when Redis
	// is reachable; the sync endpoint works without it.
	var transcriptionWorker *worker.TranscriptionProcessor
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Warn("redis unavailable, async transcription disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		jobQueue := queue.NewQueue(rdb.Client, logger)
		recordingHandler.SetQueue(jobQueue)
		transcriptionWorker = worker.NewTranscriptionProcessor(transcriptionPipeline, jobQueue, logger)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "NeuroSync Backend - Transcription API"})
	})
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	api := router.Group("/api")
	{
		api.POST("/transcribe", recordingHandler.Transcribe)
		api.POST("/transcribe/async", recordingHandler.TranscribeAsync)
		api.POST("/transcribe/file", recordingHandler.TranscribeFile)

		api.POST("/recordings", recordingHandler.Create)
		api.GET("/recordings", recordingHandler.List)
		api.GET("/recordings/:id", recordingHandler.GetByID)
		api.POST("/recordings/upload-url", recordingHandler.GenerateUploadURL)
		api.GET("/recordings/:id/audio-url", recordingHandler.GenerateAudioURL)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if transcriptionWorker != nil {
		go transcriptionWorker.Run(workerCtx)
		logger.Info("transcription worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
