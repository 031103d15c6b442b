package recordings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neurosync-ai/backend/internal/models"
)

// Store error taxonomy, aliased from models where it is defined so that
// packages which cannot import this one (the pipeline) match the same
// sentinels.
var (
	ErrNotFound   = models.ErrRecordingNotFound
	ErrNotPending = models.ErrRecordingNotPending
)

const recordingColumns = `id, COALESCE(user_id,''), COALESCE(file_path,''), COALESCE(file_url,''), status,
		COALESCE(transcript_text,''), mood_score, crisis_detected, COALESCE(duration_seconds,0), metadata,
		processed_at, created_at, updated_at`

// Repository persists recordings in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a recordings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new pending recording for an uploaded audio object.
func (r *Repository) Create(ctx context.Context, rec *models.Recording) error {
	const q = `INSERT INTO audio_recordings (id, user_id, file_path, file_url, status, duration_seconds)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	if rec.Status == "" {
		rec.Status = models.RecordingStatusPending
	}
	return r.pool.QueryRow(ctx, q, rec.UserID, rec.FilePath, rec.FileURL, rec.Status, rec.DurationSeconds).
		Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
}

// GetByID returns a recording by id, or ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	q := `SELECT ` + recordingColumns + ` FROM audio_recordings WHERE id = $1`
	rec, err := scanRecording(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// ListRecent returns the most recent recordings, optionally filtered by user.
func (r *Repository) ListRecent(ctx context.Context, userID string, limit int) ([]models.Recording, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + recordingColumns + ` FROM audio_recordings`
	args := []any{}
	if userID != "" {
		q += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *rec)
	}
	return list, rows.Err()
}

// MarkProcessing transitions pending -> processing. The transition is
// guarded: a recording that is already processing, completed or failed is
// left untouched and ErrNotPending is returned, so a concurrent duplicate
// request cannot clobber an in-flight or finished one.
func (r *Repository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE audio_recordings SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`
	tag, err := r.pool.Exec(ctx, q, models.RecordingStatusProcessing, id, models.RecordingStatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrNotPending
	}
	return nil
}

// Complete writes the full assessment result and transitions to completed in
// a single statement, so status and result fields can never diverge.
func (r *Repository) Complete(ctx context.Context, id uuid.UUID, transcript string, mood models.MoodScore, crisisDetected bool, durationSeconds int, metadata map[string]any) error {
	const q = `UPDATE audio_recordings
		SET status = $1, transcript_text = $2, mood_score = $3, crisis_detected = $4,
		    duration_seconds = $5, metadata = $6, processed_at = NOW(), updated_at = NOW()
		WHERE id = $7`
	tag, err := r.pool.Exec(ctx, q, models.RecordingStatusCompleted, transcript, mood, crisisDetected, durationSeconds, metadata, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Fail transitions to failed and records the error description in metadata.
func (r *Repository) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	const q = `UPDATE audio_recordings
		SET status = $1, metadata = $2, processed_at = NOW(), updated_at = NOW()
		WHERE id = $3`
	tag, err := r.pool.Exec(ctx, q, models.RecordingStatusFailed, map[string]any{"error": errMsg}, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecording(row pgx.Row) (*models.Recording, error) {
	var rec models.Recording
	err := row.Scan(&rec.ID, &rec.UserID, &rec.FilePath, &rec.FileURL, &rec.Status,
		&rec.TranscriptText, &rec.MoodScore, &rec.CrisisDetected, &rec.DurationSeconds, &rec.Metadata,
		&rec.ProcessedAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
