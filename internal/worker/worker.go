// Package worker consumes queued transcription jobs and runs them through
// the assessment pipeline.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/neurosync-ai/backend/internal/pipeline"
	"github.com/neurosync-ai/backend/pkg/queue"
)

// TranscriptionProcessor processes queued transcription jobs.
type TranscriptionProcessor struct {
	pipeline *pipeline.Pipeline
	queue    *queue.Queue
	logger   *zap.Logger
}

// NewTranscriptionProcessor creates a transcription job processor.
func NewTranscriptionProcessor(p *pipeline.Pipeline, q *queue.Queue, logger *zap.Logger) *TranscriptionProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranscriptionProcessor{pipeline: p, queue: q, logger: logger}
}

// Process executes one transcription job.
func (p *TranscriptionProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeTranscription {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.TranscriptionPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	_, err := p.pipeline.Process(ctx, payload.RecordingID, payload.AudioRef)
	return err
}

// Run starts the worker loop. A job is re-enqueued only when the store
// rejected the processing transition for infrastructure reasons; once the
// recording has moved past pending (ErrNotPending) or does not exist, or the
// pipeline has already written a terminal status, retrying cannot help and
// the job is dropped.
func (p *TranscriptionProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("transcription worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			// Retryable only when the store was unreachable before the
			// processing transition; any later failure has already been
			// recorded as a terminal failed status by the pipeline.
			if errors.Is(err, pipeline.ErrStoreUnavailable) {
				if reErr := p.queue.Retry(ctx, job); reErr != nil {
					p.logger.Error("retry enqueue failed", zap.Error(reErr))
				}
				time.Sleep(queue.RetryBackoff)
			}
			continue
		}
	}
}
