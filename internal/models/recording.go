package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Store error taxonomy for the processing transition. Defined here so both
// the store adapter and the pipeline can match on the same sentinels.
var (
	// ErrRecordingNotFound means no recording exists for the id.
	ErrRecordingNotFound = errors.New("recording not found")
	// ErrRecordingNotPending means the recording exists but is not in status
	// pending, so the processing transition was rejected (duplicate request).
	ErrRecordingNotPending = errors.New("recording is not pending")
)

// RecordingStatus represents the recording lifecycle. Transitions are
// one-directional: pending -> processing -> completed | failed.
const (
	RecordingStatusPending    = "pending"
	RecordingStatusProcessing = "processing"
	RecordingStatusCompleted  = "completed"
	RecordingStatusFailed     = "failed"
)

// MoodScore is the derived sentiment summary for one transcript.
// Overall is always within [1.0, 5.0]. TextLength is the number of scored
// units: words for the lexicon scorer, segments for the provider-label scorer.
type MoodScore struct {
	Overall    float64 `json:"overall"`
	Positive   int     `json:"positive"`
	Negative   int     `json:"negative"`
	Neutral    int     `json:"neutral"`
	TextLength int     `json:"text_length"`
}

// Recording is one uploaded voice journal entry and its assessment results.
// Result fields (transcript, mood score, crisis flag) are populated only when
// status is completed; on failure Metadata carries an "error" entry.
type Recording struct {
	ID              uuid.UUID      `json:"id"`
	UserID          string         `json:"user_id,omitempty"`
	FilePath        string         `json:"file_path,omitempty"`
	FileURL         string         `json:"file_url,omitempty"`
	Status          string         `json:"status"`
	TranscriptText  string         `json:"transcript_text,omitempty"`
	MoodScore       *MoodScore     `json:"mood_score,omitempty"`
	CrisisDetected  *bool          `json:"crisis_detected,omitempty"`
	DurationSeconds int            `json:"duration_seconds"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	ProcessedAt     *time.Time     `json:"processed_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
