package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/neurosync-ai/backend/internal/analysis"
)

const defaultBaseURL = "https://api.assemblyai.com"

// ErrJobFailed is wrapped into the error returned when the provider reports
// an explicit error status for a transcription job.
var ErrJobFailed = errors.New("transcription job failed")

// AssemblyAIConfig holds client settings. Zero values fall back to sane
// defaults in NewAssemblyAI.
type AssemblyAIConfig struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	PollTimeout  time.Duration
	HTTPTimeout  time.Duration
}

// AssemblyAI is the AssemblyAI-backed Provider and Uploader. A job is
// submitted, then polled until it reaches a terminal status.
type AssemblyAI struct {
	cfg    AssemblyAIConfig
	client *http.Client
	logger *zap.Logger
}

// NewAssemblyAI creates the provider client.
func NewAssemblyAI(cfg AssemblyAIConfig, logger *zap.Logger) *AssemblyAI {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 1500 * time.Millisecond
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 2 * time.Minute
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 12 * time.Second
	}
	return &AssemblyAI{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		logger: logger,
	}
}

// Name identifies the provider in recording metadata.
func (a *AssemblyAI) Name() string { return "assemblyai" }

type submitRequest struct {
	AudioURL          string `json:"audio_url"`
	SentimentAnalysis bool   `json:"sentiment_analysis"`
	LanguageCode      string `json:"language_code,omitempty"`
}

type sentimentResult struct {
	Text      string `json:"text"`
	Sentiment string `json:"sentiment"`
}

type transcriptResponse struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"` // queued, processing, completed, error
	Text          string            `json:"text"`
	AudioDuration float64           `json:"audio_duration"`
	Confidence    *float64          `json:"confidence"`
	Error         string            `json:"error"`
	Sentiments    []sentimentResult `json:"sentiment_analysis_results"`
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

// Transcribe submits the audio URL and polls the job until it completes.
// One job per call; a provider-side error status is returned as an error
// wrapping ErrJobFailed.
func (a *AssemblyAI) Transcribe(ctx context.Context, audioURL string, opts Options) (*Result, error) {
	payload, err := json.Marshal(submitRequest{
		AudioURL:          audioURL,
		SentimentAnalysis: opts.SentimentAnalysis,
		LanguageCode:      opts.LanguageCode,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal submit request: %w", err)
	}

	var submitted transcriptResponse
	if err := a.doJSON(ctx, http.MethodPost, "/v2/transcript", bytes.NewReader(payload), &submitted); err != nil {
		return nil, fmt.Errorf("submit transcription: %w", err)
	}
	if submitted.Status == "error" {
		return nil, fmt.Errorf("%w: %s", ErrJobFailed, submitted.Error)
	}
	a.logger.Debug("transcription job submitted", zap.String("job_id", submitted.ID))

	final, err := a.poll(ctx, submitted.ID)
	if err != nil {
		return nil, err
	}
	return normalize(final), nil
}

// Upload streams raw audio bytes to the provider and returns the
// provider-hosted URL for a subsequent Transcribe call.
func (a *AssemblyAI) Upload(ctx context.Context, audio io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/v2/upload", audio)
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Authorization", a.cfg.APIKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload audio: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload status %d: %s", resp.StatusCode, body)
	}
	var out uploadResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if out.UploadURL == "" {
		return "", errors.New("upload response missing upload_url")
	}
	return out.UploadURL, nil
}

func (a *AssemblyAI) poll(ctx context.Context, jobID string) (*transcriptResponse, error) {
	deadline := time.Now().Add(a.cfg.PollTimeout)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.cfg.PollInterval):
		}

		var status transcriptResponse
		if err := a.doJSON(ctx, http.MethodGet, "/v2/transcript/"+jobID, nil, &status); err != nil {
			a.logger.Warn("transcription status poll failed", zap.String("job_id", jobID), zap.Error(err))
			if time.Now().After(deadline) {
				return nil, fmt.Errorf("poll transcription %s: %w", jobID, err)
			}
			continue
		}

		switch status.Status {
		case "completed":
			return &status, nil
		case "error":
			return nil, fmt.Errorf("%w: %s", ErrJobFailed, status.Error)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("transcription %s timed out after %s", jobID, a.cfg.PollTimeout)
		}
	}
}

// doJSON performs one API call, retrying transport failures and 5xx
// responses with exponential backoff bounded by the HTTP timeout.
func (a *AssemblyAI) doJSON(ctx context.Context, method, path string, body io.Reader, target any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = io.ReadAll(body); err != nil {
			return fmt.Errorf("read request body: %w", err)
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = a.cfg.HTTPTimeout

	op := func() error {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, reqBody)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", a.cfg.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)

		if resp.StatusCode >= 500 {
			return fmt.Errorf("server error %d: %s", resp.StatusCode, raw)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("request failed %d: %s", resp.StatusCode, raw))
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return fmt.Errorf("decode response: %w (body=%s)", err, raw)
		}
		return nil
	}

	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

func normalize(resp *transcriptResponse) *Result {
	res := &Result{
		Text:            resp.Text,
		DurationSeconds: int(resp.AudioDuration),
		Confidence:      resp.Confidence,
	}
	for _, s := range resp.Sentiments {
		res.Segments = append(res.Segments, SegmentSentiment{
			Text:      s.Text,
			Sentiment: toSentiment(s.Sentiment),
		})
	}
	return res
}

func toSentiment(label string) analysis.Sentiment {
	switch label {
	case "POSITIVE":
		return analysis.SentimentPositive
	case "NEGATIVE":
		return analysis.SentimentNegative
	default:
		return analysis.SentimentNeutral
	}
}
