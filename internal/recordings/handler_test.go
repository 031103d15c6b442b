package recordings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurosync-ai/backend/internal/models"
	"github.com/neurosync-ai/backend/internal/pipeline"
)

type fakeTranscriber struct {
	result *pipeline.Result
	err    error
	lastID uuid.UUID
}

func (f *fakeTranscriber) Process(ctx context.Context, audioID uuid.UUID, audioRef string) (*pipeline.Result, error) {
	f.lastID = audioID
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	res.AudioID = audioID
	return &res, nil
}

func transcribeRouter(f *fakeTranscriber) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(nil, f, nil)
	r := gin.New()
	r.POST("/api/transcribe", h.Transcribe)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTranscribeSuccess(t *testing.T) {
	id := uuid.New()
	f := &fakeTranscriber{result: &pipeline.Result{
		Transcript:          "I feel so happy and grateful today",
		MoodScore:           models.MoodScore{Overall: 5.0, Positive: 2, Neutral: 5, TextLength: 7},
		CrisisDetected:      false,
		DurationSeconds:     14,
		TranscriptionTimeMS: 820,
	}}
	r := transcribeRouter(f)

	w := postJSON(t, r, "/api/transcribe", `{"audioId":"`+id.String()+`","audioUrl":"https://cdn.example.com/a.webm"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp TranscribeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, id.String(), resp.AudioID)
	assert.Equal(t, "I feel so happy and grateful today", resp.Transcript)
	assert.Equal(t, 5.0, resp.MoodScore.Overall)
	assert.False(t, resp.CrisisDetected)
	assert.Equal(t, int64(820), resp.TranscriptionTimeMS)
	assert.Equal(t, id, f.lastID)
}

func TestTranscribeValidation(t *testing.T) {
	r := transcribeRouter(&fakeTranscriber{result: &pipeline.Result{}})

	tests := []struct {
		name string
		body string
	}{
		{"missing audioUrl", `{"audioId":"` + uuid.NewString() + `"}`},
		{"missing audioId", `{"audioUrl":"https://cdn.example.com/a.webm"}`},
		{"malformed json", `{`},
		{"non-uuid audioId", `{"audioId":"rec-1","audioUrl":"https://cdn.example.com/a.webm"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := postJSON(t, r, "/api/transcribe", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "detail")
		})
	}
}

func TestTranscribeErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unknown recording", ErrNotFound, http.StatusNotFound},
		{"duplicate request", ErrNotPending, http.StatusConflict},
		{"provider failure", errors.New("transcribe: connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := transcribeRouter(&fakeTranscriber{err: tc.err})
			w := postJSON(t, r, "/api/transcribe", `{"audioId":"`+uuid.NewString()+`","audioUrl":"https://cdn.example.com/a.webm"}`)
			assert.Equal(t, tc.wantStatus, w.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body["detail"])
		})
	}
}

// The sentinels this package exposes must be the ones defined in models, so
// the pipeline (which cannot import this package) and the handler always
// agree on the store taxonomy.
func TestStoreErrorTaxonomySharedWithModels(t *testing.T) {
	assert.ErrorIs(t, ErrNotFound, models.ErrRecordingNotFound)
	assert.ErrorIs(t, ErrNotPending, models.ErrRecordingNotPending)
}

func TestListRejectsInvalidLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(nil, nil, nil)
	r := gin.New()
	r.GET("/api/recordings", h.List)

	for _, limit := range []string{"abc", "10abc", "0", "-5", "1.5"} {
		t.Run("limit="+limit, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/recordings?limit="+limit, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestTranscribeInternalDetailMentionsCause(t *testing.T) {
	r := transcribeRouter(&fakeTranscriber{err: errors.New("transcribe: audio file unreachable")})
	w := postJSON(t, r, "/api/transcribe", `{"audioId":"`+uuid.NewString()+`","audioUrl":"https://cdn.example.com/gone.webm"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Transcription failed")
	assert.Contains(t, w.Body.String(), "audio file unreachable")
}
