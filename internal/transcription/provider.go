// Package transcription talks to the external speech-to-text provider and
// normalizes its responses for the rest of the system.
package transcription

import (
	"context"
	"io"

	"github.com/neurosync-ai/backend/internal/analysis"
)

// Options configure a single transcription request.
type Options struct {
	// SentimentAnalysis asks the provider for per-segment sentiment labels.
	SentimentAnalysis bool
	// LanguageCode is a hint passed through to the provider (e.g. "en").
	LanguageCode string
}

// SegmentSentiment is one provider-labeled span of the transcript.
type SegmentSentiment struct {
	Text      string
	Sentiment analysis.Sentiment
}

// Result is the normalized provider response consumed by the pipeline.
// Confidence is nil when the provider does not report one.
type Result struct {
	Text            string
	Segments        []SegmentSentiment
	DurationSeconds int
	Confidence      *float64
}

// Provider transcribes audio reachable at a URL. Implementations make a
// single transcription attempt per call; transport-level retries inside that
// attempt are an implementation detail.
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, audioURL string, opts Options) (*Result, error)
}

// Uploader is the direct-upload engine: it stores raw audio bytes with the
// provider and returns a provider-hosted URL usable with Transcribe.
type Uploader interface {
	Upload(ctx context.Context, audio io.Reader) (string, error)
}
