package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurosync-ai/backend/internal/analysis"
	"github.com/neurosync-ai/backend/internal/models"
	"github.com/neurosync-ai/backend/internal/transcription"
)

type completedCall struct {
	transcript      string
	mood            models.MoodScore
	crisisDetected  bool
	durationSeconds int
	metadata        map[string]any
}

type fakeStore struct {
	markErr     error
	completeErr error
	failErr     error

	marked    bool
	completed *completedCall
	failedMsg string
	failCalls int
}

func (s *fakeStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.marked = true
	return nil
}

func (s *fakeStore) Complete(ctx context.Context, id uuid.UUID, transcript string, mood models.MoodScore, crisisDetected bool, durationSeconds int, metadata map[string]any) error {
	if s.completeErr != nil {
		return s.completeErr
	}
	s.completed = &completedCall{transcript, mood, crisisDetected, durationSeconds, metadata}
	return nil
}

func (s *fakeStore) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	s.failCalls++
	if s.failErr != nil {
		return s.failErr
	}
	s.failedMsg = errMsg
	return nil
}

type fakeProvider struct {
	result  *transcription.Result
	err     error
	calls   int
	lastURL string
	lastOpt transcription.Options
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Transcribe(ctx context.Context, audioURL string, opts transcription.Options) (*transcription.Result, error) {
	p.calls++
	p.lastURL = audioURL
	p.lastOpt = opts
	return p.result, p.err
}

type fakeResolver struct {
	resolved string
	err      error
}

func (r *fakeResolver) ResolveAudioURL(ctx context.Context, ref string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.resolved, nil
}

func TestProcessCompletesWithLexiconScore(t *testing.T) {
	conf := 0.91
	store := &fakeStore{}
	provider := &fakeProvider{result: &transcription.Result{
		Text:            "I feel so happy and grateful today",
		DurationSeconds: 14,
		Confidence:      &conf,
	}}
	p := New(store, provider, nil, "en", nil)

	res, err := p.Process(context.Background(), uuid.New(), "https://cdn.example.com/a.webm")
	require.NoError(t, err)

	assert.True(t, store.marked)
	require.NotNil(t, store.completed)
	assert.Equal(t, "I feel so happy and grateful today", store.completed.transcript)
	assert.Equal(t, 2, store.completed.mood.Positive)
	assert.Equal(t, 0, store.completed.mood.Negative)
	assert.Equal(t, 5.0, store.completed.mood.Overall)
	assert.False(t, store.completed.crisisDetected)
	assert.Equal(t, 14, store.completed.durationSeconds)
	assert.Equal(t, "fake", store.completed.metadata["model"])
	assert.Equal(t, "en", store.completed.metadata["language"])
	assert.Contains(t, store.completed.metadata, "transcription_time_ms")
	assert.Equal(t, 0.91, store.completed.metadata["confidence"])
	assert.Zero(t, store.failCalls)

	assert.Equal(t, res.MoodScore, store.completed.mood)
	assert.True(t, provider.lastOpt.SentimentAnalysis)
	assert.Equal(t, "en", provider.lastOpt.LanguageCode)
}

func TestProcessCrisisStillCompletes(t *testing.T) {
	store := &fakeStore{}
	provider := &fakeProvider{result: &transcription.Result{Text: "sometimes I want to die"}}
	p := New(store, provider, nil, "", nil)

	res, err := p.Process(context.Background(), uuid.New(), "https://cdn.example.com/a.webm")
	require.NoError(t, err)

	require.NotNil(t, store.completed)
	assert.True(t, store.completed.crisisDetected)
	assert.True(t, res.CrisisDetected)
	assert.Zero(t, store.failCalls)
}

func TestProcessPrefersSegmentLabels(t *testing.T) {
	store := &fakeStore{}
	provider := &fakeProvider{result: &transcription.Result{
		Text: "whatever the raw text says",
		Segments: []transcription.SegmentSentiment{
			{Sentiment: analysis.SentimentPositive},
			{Sentiment: analysis.SentimentPositive},
			{Sentiment: analysis.SentimentNegative},
		},
	}}
	p := New(store, provider, nil, "en", nil)

	res, err := p.Process(context.Background(), uuid.New(), "https://cdn.example.com/a.webm")
	require.NoError(t, err)

	assert.Equal(t, 3.0, res.MoodScore.Overall)
	assert.Equal(t, 2, res.MoodScore.Positive)
	assert.Equal(t, 1, res.MoodScore.Negative)
	assert.Equal(t, 3, res.MoodScore.TextLength)
}

func TestProcessProviderErrorWritesFailed(t *testing.T) {
	store := &fakeStore{}
	provider := &fakeProvider{err: errors.New("connection reset")}
	p := New(store, provider, nil, "en", nil)

	_, err := p.Process(context.Background(), uuid.New(), "https://cdn.example.com/a.webm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	assert.Nil(t, store.completed)
	assert.NotEmpty(t, store.failedMsg)
	assert.Contains(t, store.failedMsg, "connection reset")
}

func TestProcessRejectedTransitionSkipsProvider(t *testing.T) {
	tests := []struct {
		name    string
		markErr error
	}{
		{"unknown recording", models.ErrRecordingNotFound},
		{"duplicate request", models.ErrRecordingNotPending},
		{"store unavailable", errors.New("dial tcp: connection refused")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeStore{markErr: tc.markErr}
			provider := &fakeProvider{result: &transcription.Result{Text: "never used"}}
			p := New(store, provider, nil, "en", nil)

			_, err := p.Process(context.Background(), uuid.New(), "https://cdn.example.com/a.webm")
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.markErr)
			assert.Zero(t, provider.calls)
			assert.Zero(t, store.failCalls)
		})
	}
}

func TestProcessStoreUnavailableIsTyped(t *testing.T) {
	store := &fakeStore{markErr: errors.New("dial tcp: connection refused")}
	p := New(store, &fakeProvider{}, nil, "en", nil)

	_, err := p.Process(context.Background(), uuid.New(), "https://cdn.example.com/a.webm")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	store = &fakeStore{markErr: models.ErrRecordingNotPending}
	p = New(store, &fakeProvider{}, nil, "en", nil)
	_, err = p.Process(context.Background(), uuid.New(), "https://cdn.example.com/a.webm")
	assert.NotErrorIs(t, err, ErrStoreUnavailable)
}

func TestProcessStoreWriteErrorWritesFailed(t *testing.T) {
	store := &fakeStore{completeErr: errors.New("connection lost")}
	provider := &fakeProvider{result: &transcription.Result{Text: "all good here"}}
	p := New(store, provider, nil, "en", nil)

	_, err := p.Process(context.Background(), uuid.New(), "https://cdn.example.com/a.webm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store result")
	assert.Contains(t, store.failedMsg, "connection lost")
}

func TestProcessFailedWriteErrorIsSwallowed(t *testing.T) {
	store := &fakeStore{failErr: errors.New("store down")}
	provider := &fakeProvider{err: errors.New("provider exploded")}
	p := New(store, provider, nil, "en", nil)

	_, err := p.Process(context.Background(), uuid.New(), "https://cdn.example.com/a.webm")
	require.Error(t, err)
	// The provider error, not the failed-status write error, reaches the caller.
	assert.Contains(t, err.Error(), "provider exploded")
	assert.NotContains(t, err.Error(), "store down")
	assert.Equal(t, 1, store.failCalls)
}

func TestProcessResolvesAudioReference(t *testing.T) {
	store := &fakeStore{}
	provider := &fakeProvider{result: &transcription.Result{Text: "hello"}}
	resolver := &fakeResolver{resolved: "https://bucket.s3.amazonaws.com/audio/u1/a.webm?signed"}
	p := New(store, provider, resolver, "en", nil)

	_, err := p.Process(context.Background(), uuid.New(), "audio/u1/a.webm")
	require.NoError(t, err)
	assert.Equal(t, resolver.resolved, provider.lastURL)
}

func TestProcessResolverErrorWritesFailed(t *testing.T) {
	store := &fakeStore{}
	provider := &fakeProvider{}
	resolver := &fakeResolver{err: errors.New("no such key")}
	p := New(store, provider, resolver, "en", nil)

	_, err := p.Process(context.Background(), uuid.New(), "audio/u1/missing.webm")
	require.Error(t, err)
	assert.Zero(t, provider.calls)
	assert.Contains(t, store.failedMsg, "no such key")
}
