// Package pipeline drives a recording through transcription and assessment:
// pending -> processing -> completed | failed. It is the only writer of the
// processing, completed and failed statuses.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neurosync-ai/backend/internal/analysis"
	"github.com/neurosync-ai/backend/internal/models"
	"github.com/neurosync-ai/backend/internal/transcription"
)

// ErrStoreUnavailable marks a processing transition that failed for
// infrastructure reasons rather than the store taxonomy (unknown id,
// duplicate request). Such requests never reached the provider and are safe
// to retry.
var ErrStoreUnavailable = errors.New("recording store unavailable")

// RecordingStore is the narrow store contract the pipeline needs.
// MarkProcessing must be conditional on status pending and return
// models.ErrRecordingNotFound / models.ErrRecordingNotPending accordingly.
type RecordingStore interface {
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID, transcript string, mood models.MoodScore, crisisDetected bool, durationSeconds int, metadata map[string]any) error
	Fail(ctx context.Context, id uuid.UUID, errMsg string) error
}

// AudioResolver turns a stored audio reference (object key, s3:// URI or
// plain URL) into a URL the provider can fetch. Nil means references are
// passed through unchanged.
type AudioResolver interface {
	ResolveAudioURL(ctx context.Context, ref string) (string, error)
}

// Result is the successful outcome returned to the caller.
type Result struct {
	AudioID             uuid.UUID
	Transcript          string
	MoodScore           models.MoodScore
	CrisisDetected      bool
	DurationSeconds     int
	TranscriptionTimeMS int64
}

// Pipeline orchestrates one transcription request end to end.
type Pipeline struct {
	store    RecordingStore
	provider transcription.Provider
	resolver AudioResolver
	language string
	logger   *zap.Logger
}

// New creates a pipeline. resolver may be nil; language defaults to "en".
func New(store RecordingStore, provider transcription.Provider, resolver AudioResolver, language string, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if language == "" {
		language = "en"
	}
	return &Pipeline{store: store, provider: provider, resolver: resolver, language: language, logger: logger}
}

// Process runs the state machine for one recording. The provider is called
// exactly once; any failure after the processing transition ends in a
// best-effort failed write, and the original error is returned. A failed
// processing transition aborts before the provider call and is returned
// as-is so callers can map the store taxonomy to status codes.
func (p *Pipeline) Process(ctx context.Context, audioID uuid.UUID, audioRef string) (*Result, error) {
	log := p.logger.With(zap.String("audio_id", audioID.String()))

	if err := p.store.MarkProcessing(ctx, audioID); err != nil {
		if errors.Is(err, models.ErrRecordingNotFound) || errors.Is(err, models.ErrRecordingNotPending) {
			return nil, fmt.Errorf("mark processing: %w", err)
		}
		return nil, fmt.Errorf("mark processing: %w: %w", ErrStoreUnavailable, err)
	}

	audioURL := audioRef
	if p.resolver != nil {
		resolved, err := p.resolver.ResolveAudioURL(ctx, audioRef)
		if err != nil {
			return nil, p.fail(ctx, audioID, fmt.Errorf("resolve audio reference: %w", err))
		}
		audioURL = resolved
	}

	start := time.Now()
	res, err := p.provider.Transcribe(ctx, audioURL, transcription.Options{
		SentimentAnalysis: true,
		LanguageCode:      p.language,
	})
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return nil, p.fail(ctx, audioID, fmt.Errorf("transcribe: %w", err))
	}

	// Prefer provider segment labels; fall back to the lexicon over raw text.
	var mood models.MoodScore
	if len(res.Segments) > 0 {
		labels := make([]analysis.Sentiment, len(res.Segments))
		for i, s := range res.Segments {
			labels[i] = s.Sentiment
		}
		mood = analysis.ScoreSegments(labels)
	} else {
		mood = analysis.ScoreText(res.Text)
	}
	crisisDetected := analysis.DetectCrisis(res.Text)
	if crisisDetected {
		log.Warn("crisis language detected")
	}

	metadata := map[string]any{
		"transcription_time_ms": latency,
		"model":                 p.provider.Name(),
		"language":              p.language,
	}
	if res.Confidence != nil {
		metadata["confidence"] = *res.Confidence
	}

	if err := p.store.Complete(ctx, audioID, res.Text, mood, crisisDetected, res.DurationSeconds, metadata); err != nil {
		return nil, p.fail(ctx, audioID, fmt.Errorf("store result: %w", err))
	}

	log.Info("transcription completed",
		zap.Float64("mood", mood.Overall),
		zap.Bool("crisis", crisisDetected),
		zap.Int64("transcription_time_ms", latency),
	)
	return &Result{
		AudioID:             audioID,
		Transcript:          res.Text,
		MoodScore:           mood,
		CrisisDetected:      crisisDetected,
		DurationSeconds:     res.DurationSeconds,
		TranscriptionTimeMS: latency,
	}, nil
}

// fail writes the failed status best-effort and returns the original cause.
// A failure of the failed-status write itself is only logged so the caller
// always sees the error that actually broke the request.
func (p *Pipeline) fail(ctx context.Context, audioID uuid.UUID, cause error) error {
	if err := p.store.Fail(ctx, audioID, cause.Error()); err != nil {
		p.logger.Error("failed-status write failed",
			zap.String("audio_id", audioID.String()),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
	}
	return cause
}
