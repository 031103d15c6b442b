// Package main runs the background transcription worker on its own.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/neurosync-ai/backend/config"
	"github.com/neurosync-ai/backend/internal/pipeline"
	"github.com/neurosync-ai/backend/internal/recordings"
	"github.com/neurosync-ai/backend/internal/transcription"
	"github.com/neurosync-ai/backend/internal/worker"
	"github.com/neurosync-ai/backend/pkg/database"
	"github.com/neurosync-ai/backend/pkg/queue"
	"github.com/neurosync-ai/backend/pkg/redis"
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

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	provider := transcription.NewAssemblyAI(transcription.AssemblyAIConfig{
		APIKey:       cfg.Transcription.APIKey,
		BaseURL:      cfg.Transcription.BaseURL,
		PollInterval: cfg.Transcription.PollInterval,
		PollTimeout:  cfg.Transcription.PollTimeout,
	}, logger)

	var resolver pipeline.AudioResolver
	if cfg.AWS.AudioBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			AudioBucket:          cfg.AWS.AudioBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Fatal("s3", zap.Error(err))
		}
		resolver = s3Client
	}

	recordingRepo := recordings.NewRepository(pool)
	transcriptionPipeline := pipeline.New(recordingRepo, provider, resolver, cfg.Transcription.LanguageCode, logger)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewTranscriptionProcessor(transcriptionPipeline, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
