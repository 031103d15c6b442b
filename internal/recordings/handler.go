package recordings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neurosync-ai/backend/internal/models"
	"github.com/neurosync-ai/backend/internal/pipeline"
	"github.com/neurosync-ai/backend/internal/transcription"
	"github.com/neurosync-ai/backend/pkg/queue"
	"github.com/neurosync-ai/backend/pkg/response"
	"github.com/neurosync-ai/backend/pkg/storage"
)

// Transcriber runs the transcription-to-assessment pipeline for one
// recording. Satisfied by *pipeline.Pipeline; substituted in tests.
type Transcriber interface {
	Process(ctx context.Context, audioID uuid.UUID, audioRef string) (*pipeline.Result, error)
}

// Handler handles the recording HTTP endpoints.
type Handler struct {
	repo        *Repository
	transcriber Transcriber
	uploader    transcription.Uploader // optional: direct-upload engine
	s3          *storage.S3            // optional: presigned upload/download URLs
	queue       *queue.Queue           // optional: async transcription
	logger      *zap.Logger
}

// NewHandler creates a recordings handler.
func NewHandler(repo *Repository, transcriber Transcriber, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, transcriber: transcriber, logger: logger}
}

// SetUploader enables the direct-upload transcription engine.
func (h *Handler) SetUploader(u transcription.Uploader) { h.uploader = u }

// SetStorage enables presigned upload/download URL endpoints.
func (h *Handler) SetStorage(s *storage.S3) { h.s3 = s }

// SetQueue enables the async transcription endpoint.
func (h *Handler) SetQueue(q *queue.Queue) { h.queue = q }

// TranscribeRequest is the body of POST /api/transcribe.
type TranscribeRequest struct {
	AudioID  string `json:"audioId" binding:"required"`
	AudioURL string `json:"audioUrl" binding:"required"`
}

// TranscribeResponse is the success payload of POST /api/transcribe.
type TranscribeResponse struct {
	Success             bool             `json:"success"`
	AudioID             string           `json:"audioId"`
	Transcript          string           `json:"transcript"`
	MoodScore           models.MoodScore `json:"moodScore"`
	CrisisDetected      bool             `json:"crisisDetected"`
	TranscriptionTimeMS int64            `json:"transcriptionTimeMs"`
}

// Transcribe handles POST /api/transcribe: one synchronous pipeline run.
// Failures carry a human-readable "detail" string; a request for a recording
// that is not pending is rejected as a duplicate rather than re-run.
func (h *Handler) Transcribe(c *gin.Context) {
	var req TranscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	audioID, err := uuid.Parse(req.AudioID)
	if err != nil {
		detail(c, http.StatusBadRequest, "invalid audioId")
		return
	}

	res, err := h.transcriber.Process(c.Request.Context(), audioID, req.AudioURL)
	if err != nil {
		h.writeProcessError(c, audioID, err)
		return
	}

	c.JSON(http.StatusOK, TranscribeResponse{
		Success:             true,
		AudioID:             res.AudioID.String(),
		Transcript:          res.Transcript,
		MoodScore:           res.MoodScore,
		CrisisDetected:      res.CrisisDetected,
		TranscriptionTimeMS: res.TranscriptionTimeMS,
	})
}

// TranscribeAsync handles POST /api/transcribe/async: enqueues the job and
// returns immediately; results are polled via GET /api/recordings/:id.
func (h *Handler) TranscribeAsync(c *gin.Context) {
	if h.queue == nil {
		response.ServiceUnavailable(c, "async transcription not configured")
		return
	}
	var req TranscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	audioID, err := uuid.Parse(req.AudioID)
	if err != nil {
		response.BadRequest(c, "invalid audioId")
		return
	}

	if err := h.queue.EnqueueTranscription(c.Request.Context(), queue.TranscriptionPayload{
		RecordingID: audioID,
		AudioRef:    req.AudioURL,
	}); err != nil {
		h.logger.Error("enqueue transcription failed", zap.Error(err), zap.String("audio_id", req.AudioID))
		response.Internal(c, "failed to enqueue transcription")
		return
	}
	response.Accepted(c, gin.H{"audioId": req.AudioID, "status": "queued"})
}

// TranscribeFile handles POST /api/transcribe/file: multipart form with
// "audioId" and "file". The audio bytes are streamed to the provider's
// upload endpoint and the resulting provider-hosted URL is transcribed.
func (h *Handler) TranscribeFile(c *gin.Context) {
	if h.uploader == nil {
		detail(c, http.StatusServiceUnavailable, "direct upload not configured")
		return
	}
	audioID, err := uuid.Parse(c.PostForm("audioId"))
	if err != nil {
		detail(c, http.StatusBadRequest, "invalid audioId")
		return
	}
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		detail(c, http.StatusBadRequest, "file required")
		return
	}
	defer file.Close()

	uploadURL, err := h.uploader.Upload(c.Request.Context(), file)
	if err != nil {
		h.logger.Error("provider upload failed", zap.Error(err), zap.String("audio_id", audioID.String()))
		detail(c, http.StatusInternalServerError, fmt.Sprintf("Transcription failed: %v", err))
		return
	}

	res, err := h.transcriber.Process(c.Request.Context(), audioID, uploadURL)
	if err != nil {
		h.writeProcessError(c, audioID, err)
		return
	}
	c.JSON(http.StatusOK, TranscribeResponse{
		Success:             true,
		AudioID:             res.AudioID.String(),
		Transcript:          res.Transcript,
		MoodScore:           res.MoodScore,
		CrisisDetected:      res.CrisisDetected,
		TranscriptionTimeMS: res.TranscriptionTimeMS,
	})
}

// CreateRequest is the body of POST /api/recordings.
type CreateRequest struct {
	UserID          string `json:"userId"`
	FilePath        string `json:"filePath"`
	FileURL         string `json:"fileUrl"`
	DurationSeconds int    `json:"durationSeconds"`
}

// Create handles POST /api/recordings: registers an uploaded audio object as
// a pending recording.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.FilePath == "" && req.FileURL == "" {
		response.BadRequest(c, "filePath or fileUrl required")
		return
	}
	rec := &models.Recording{
		UserID:          req.UserID,
		FilePath:        req.FilePath,
		FileURL:         req.FileURL,
		Status:          models.RecordingStatusPending,
		DurationSeconds: req.DurationSeconds,
	}
	if err := h.repo.Create(c.Request.Context(), rec); err != nil {
		h.logger.Error("create recording failed", zap.Error(err))
		response.Internal(c, "failed to create recording")
		return
	}
	response.Created(c, rec)
}

// GetByID handles GET /api/recordings/:id: status/result polling.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	rec, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "recording not found")
			return
		}
		h.logger.Error("get recording failed", zap.Error(err), zap.String("id", id.String()))
		response.Internal(c, "failed to load recording")
		return
	}
	response.OK(c, rec)
}

// List handles GET /api/recordings?userId=&limit=: recent recordings.
func (h *Handler) List(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			response.BadRequest(c, "invalid limit")
			return
		}
		limit = n
	}
	list, err := h.repo.ListRecent(c.Request.Context(), c.Query("userId"), limit)
	if err != nil {
		h.logger.Error("list recordings failed", zap.Error(err))
		response.Internal(c, "failed to list recordings")
		return
	}
	response.OK(c, list)
}

// UploadURLRequest is the body of POST /api/recordings/upload-url.
type UploadURLRequest struct {
	UserID      string `json:"userId" binding:"required"`
	FileName    string `json:"fileName" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
}

// GenerateUploadURL handles POST /api/recordings/upload-url: presigned PUT
// for the client to upload raw audio directly to the audio bucket.
func (h *Handler) GenerateUploadURL(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "object storage not configured")
		return
	}
	var req UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if !storage.ValidateAudioType(req.ContentType) {
		response.BadRequest(c, "unsupported audio content type")
		return
	}
	key := storage.AudioKey(req.UserID, req.FileName)
	url, err := h.s3.PresignUpload(c.Request.Context(), key, req.ContentType)
	if err != nil {
		h.logger.Error("presign upload failed", zap.Error(err), zap.String("key", key))
		response.Internal(c, "failed to generate upload URL")
		return
	}
	response.OK(c, gin.H{"uploadUrl": url, "key": key})
}

// GenerateAudioURL handles GET /api/recordings/:id/audio-url: presigned GET
// for the stored audio object.
func (h *Handler) GenerateAudioURL(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "object storage not configured")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	rec, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "recording not found")
			return
		}
		response.Internal(c, "failed to load recording")
		return
	}
	if rec.FilePath == "" {
		response.NotFound(c, "recording has no stored audio object")
		return
	}
	url, err := h.s3.PresignDownload(c.Request.Context(), rec.FilePath)
	if err != nil {
		h.logger.Error("presign download failed", zap.Error(err), zap.String("key", rec.FilePath))
		response.Internal(c, "failed to generate download URL")
		return
	}
	response.OK(c, gin.H{"audioUrl": url, "expiresIn": int(h.s3.PresignExpire().Seconds())})
}

// writeProcessError maps the pipeline error taxonomy to HTTP statuses. All
// bodies carry a "detail" string; nothing partial is ever returned.
func (h *Handler) writeProcessError(c *gin.Context, audioID uuid.UUID, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		detail(c, http.StatusNotFound, "recording not found")
	case errors.Is(err, ErrNotPending):
		detail(c, http.StatusConflict, "recording already processed or in progress")
	default:
		h.logger.Error("transcription request failed", zap.Error(err), zap.String("audio_id", audioID.String()))
		detail(c, http.StatusInternalServerError, fmt.Sprintf("Transcription failed: %v", err))
	}
}

func detail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"detail": msg})
}
