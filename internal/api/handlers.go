package api

import (
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"malsori/internal/ai"
	"malsori/internal/cloudsync"
	"malsori/internal/model"
	"malsori/internal/repository"
	"malsori/internal/stt"
	"malsori/internal/utils"
)

// maxChunkBytes caps a single uploaded media chunk.
const maxChunkBytes = 32 << 20

// Handler holds the dependencies of the HTTP surface.
type Handler struct {
	repo     repository.TranscriptionRepository
	coord    *cloudsync.Coordinator
	provider stt.Provider // nil when no STT key is configured
	refiner  *ai.Refiner  // nil when no OpenAI key is configured
}

func NewHandler(repo repository.TranscriptionRepository, coord *cloudsync.Coordinator, provider stt.Provider, refiner *ai.Refiner) *Handler {
	return &Handler{repo: repo, coord: coord, provider: provider, refiner: refiner}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	// Health check
	r.GET("/health", h.healthCheck)

	// API v1
	v1 := r.Group("/api/v1")
	{
		v1.POST("/records", h.createRecord)
		v1.GET("/records", h.listRecords)
		v1.GET("/records/:record_id", h.getRecord)
		v1.PUT("/records/:record_id", h.updateRecord)
		v1.DELETE("/records/:record_id", h.deleteRecord)
		v1.PUT("/records/:record_id/segments", h.replaceSegments)
		v1.POST("/records/:record_id/chunks", h.appendChunk)
		v1.POST("/records/:record_id/download", h.downloadRecord)
		v1.POST("/records/:record_id/transcribe", h.transcribeRecord)
		v1.POST("/records/:record_id/refine", h.refineRecord)
		v1.GET("/sync/status", h.syncStatus)
		v1.POST("/sync/now", h.syncNow)
		v1.POST("/account/conflict", h.resolveConflict)
		v1.POST("/account/signout", h.signOut)
	}
}

// healthCheck returns server health status
func (h *Handler) healthCheck(c *gin.Context) {
	utils.Success(c, gin.H{
		"status":  "ok",
		"service": "malsori-backend",
	})
}

// CreateRecordRequest is the payload for creating a transcription record.
type CreateRecordRequest struct {
	Title        string `json:"title"`
	Kind         string `json:"kind" binding:"required,oneof=file realtime"`
	SampleRate   int    `json:"sampleRate"`
	ChannelCount int    `json:"channelCount"`
	CloudSynced  *bool  `json:"cloudSynced"`
}

// createRecord creates a new transcription record
func (h *Handler) createRecord(c *gin.Context) {
	var req CreateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid record payload: "+err.Error())
		return
	}

	now := time.Now()
	rec := model.Transcription{
		ID:             uuid.NewString(),
		Title:          req.Title,
		Kind:           req.Kind,
		Status:         "created",
		CreatedAt:      now,
		UpdatedAt:      now,
		SampleRate:     req.SampleRate,
		ChannelCount:   req.ChannelCount,
		IsCloudSynced:  req.CloudSynced == nil || *req.CloudSynced,
		DownloadStatus: model.DownloadDownloaded,
	}

	if err := h.repo.SaveTranscription(c.Request.Context(), &rec); err != nil {
		log.Printf("Error creating record: %v", err)
		utils.Error(c, http.StatusInternalServerError, "failed to create record")
		return
	}

	utils.Created(c, gin.H{
		"record_id": rec.ID,
		"status":    rec.Status,
	})
}

// listRecords returns all records with their sync state
func (h *Handler) listRecords(c *gin.Context) {
	records, err := h.repo.ListTranscriptions(c.Request.Context())
	if err != nil {
		log.Printf("Error listing records: %v", err)
		utils.Error(c, http.StatusInternalServerError, "failed to list records")
		return
	}

	items := make([]gin.H, 0, len(records))
	for _, rec := range records {
		items = append(items, recordSummary(&rec))
	}
	utils.Success(c, gin.H{"records": items})
}

// getRecord returns one record with its segments
func (h *Handler) getRecord(c *gin.Context) {
	id := c.Param("record_id")

	rec, err := h.repo.GetTranscription(c.Request.Context(), id)
	if err != nil {
		log.Printf("Error loading record %s: %v", id, err)
		utils.Error(c, http.StatusInternalServerError, "failed to load record")
		return
	}
	if rec == nil {
		utils.Error(c, http.StatusNotFound, "record not found")
		return
	}

	segments, err := h.repo.ListSegments(c.Request.Context(), id)
	if err != nil {
		log.Printf("Error loading segments for %s: %v", id, err)
		utils.Error(c, http.StatusInternalServerError, "failed to load segments")
		return
	}

	body := recordSummary(rec)
	body["text"] = rec.Text
	body["segments"] = segments
	utils.Success(c, body)
}

// UpdateRecordRequest is the payload for updating record content fields.
type UpdateRecordRequest struct {
	Title  *string `json:"title"`
	Text   *string `json:"text"`
	Status *string `json:"status"`
}

// updateRecord updates a record's content fields and bumps updatedAt
func (h *Handler) updateRecord(c *gin.Context) {
	id := c.Param("record_id")

	var req UpdateRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid update payload: "+err.Error())
		return
	}

	rec, err := h.repo.GetTranscription(c.Request.Context(), id)
	if err != nil {
		utils.Error(c, http.StatusInternalServerError, "failed to load record")
		return
	}
	if rec == nil {
		utils.Error(c, http.StatusNotFound, "record not found")
		return
	}

	if req.Title != nil {
		rec.Title = *req.Title
	}
	if req.Text != nil {
		rec.Text = *req.Text
	}
	if req.Status != nil {
		rec.Status = *req.Status
	}
	rec.UpdatedAt = time.Now()

	if err := h.repo.SaveTranscription(c.Request.Context(), rec); err != nil {
		log.Printf("Error updating record %s: %v", id, err)
		utils.Error(c, http.StatusInternalServerError, "failed to update record")
		return
	}
	utils.Success(c, gin.H{"record_id": id})
}

// deleteRecord removes a record with its segments and chunks
func (h *Handler) deleteRecord(c *gin.Context) {
	id := c.Param("record_id")

	if err := h.repo.DeleteTranscription(c.Request.Context(), id); err != nil {
		log.Printf("Error deleting record %s: %v", id, err)
		utils.Error(c, http.StatusInternalServerError, "failed to delete record")
		return
	}
	utils.Success(c, gin.H{"record_id": id})
}

// replaceSegments swaps a record's segment set wholesale
func (h *Handler) replaceSegments(c *gin.Context) {
	id := c.Param("record_id")

	var segments []model.Segment
	if err := c.ShouldBindJSON(&segments); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid segments payload: "+err.Error())
		return
	}

	rec, err := h.repo.GetTranscription(c.Request.Context(), id)
	if err != nil {
		utils.Error(c, http.StatusInternalServerError, "failed to load record")
		return
	}
	if rec == nil {
		utils.Error(c, http.StatusNotFound, "record not found")
		return
	}

	if err := h.repo.ReplaceSegments(c.Request.Context(), id, segments); err != nil {
		log.Printf("Error replacing segments for %s: %v", id, err)
		utils.Error(c, http.StatusInternalServerError, "failed to replace segments")
		return
	}

	rec.UpdatedAt = time.Now()
	if err := h.repo.SaveTranscription(c.Request.Context(), rec); err != nil {
		utils.Error(c, http.StatusInternalServerError, "failed to update record")
		return
	}
	utils.Success(c, gin.H{"record_id": id, "segments": len(segments)})
}

// appendChunk stores one raw media chunk. The body is the chunk bytes; the
// chunk index, stream (audio|video), and role arrive as query parameters and
// the mime hint as the Content-Type header.
func (h *Handler) appendChunk(c *gin.Context) {
	id := c.Param("record_id")

	rec, err := h.repo.GetTranscription(c.Request.Context(), id)
	if err != nil {
		utils.Error(c, http.StatusInternalServerError, "failed to load record")
		return
	}
	if rec == nil {
		utils.Error(c, http.StatusNotFound, "record not found")
		return
	}

	var indexed struct {
		Index  int    `form:"index"`
		Stream string `form:"stream,default=audio"`
		Role   string `form:"role"`
	}
	if err := c.ShouldBindQuery(&indexed); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid chunk parameters: "+err.Error())
		return
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxChunkBytes+1))
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "failed to read chunk body")
		return
	}
	if len(data) == 0 {
		utils.Error(c, http.StatusBadRequest, "empty chunk body")
		return
	}
	if len(data) > maxChunkBytes {
		utils.Error(c, http.StatusBadRequest, "chunk exceeds 32MB limit")
		return
	}

	mime := c.ContentType()
	switch indexed.Stream {
	case "audio":
		chunk := model.AudioChunk{
			TranscriptionID: id,
			ChunkIndex:      indexed.Index,
			Data:            data,
			MimeType:        mime,
			Role:            indexed.Role,
		}
		err = h.repo.SaveAudioChunk(c.Request.Context(), &chunk)
	case "video":
		chunk := model.VideoChunk{
			TranscriptionID: id,
			ChunkIndex:      indexed.Index,
			Data:            data,
			MimeType:        mime,
		}
		err = h.repo.SaveVideoChunk(c.Request.Context(), &chunk)
	default:
		utils.Error(c, http.StatusBadRequest, "stream must be audio or video")
		return
	}
	if err != nil {
		log.Printf("Error saving chunk for %s: %v", id, err)
		utils.Error(c, http.StatusInternalServerError, "failed to save chunk")
		return
	}

	utils.Success(c, gin.H{"record_id": id, "index": indexed.Index, "bytes": len(data)})
}

// downloadRecord fetches a ghost record's segments and media from the mirror
func (h *Handler) downloadRecord(c *gin.Context) {
	id := c.Param("record_id")

	if err := h.coord.DownloadRecord(c.Request.Context(), id); err != nil {
		log.Printf("Error downloading record %s: %v", id, err)
		utils.Error(c, http.StatusBadGateway, "download failed: "+err.Error())
		return
	}
	utils.Success(c, gin.H{"record_id": id, "download_status": model.DownloadDownloaded})
}

// transcribeRecord assembles the record's audio and sends it to the STT
// provider, storing the transcript on success
func (h *Handler) transcribeRecord(c *gin.Context) {
	id := c.Param("record_id")

	if h.provider == nil {
		utils.Error(c, http.StatusServiceUnavailable, "no STT provider configured")
		return
	}

	rec, err := h.repo.GetTranscription(c.Request.Context(), id)
	if err != nil {
		utils.Error(c, http.StatusInternalServerError, "failed to load record")
		return
	}
	if rec == nil {
		utils.Error(c, http.StatusNotFound, "record not found")
		return
	}

	chunks, err := h.repo.ListAudioChunks(c.Request.Context(), id)
	if err != nil {
		utils.Error(c, http.StatusInternalServerError, "failed to load audio")
		return
	}
	artifact := cloudsync.AssembleAudio(rec, chunks)
	if artifact == nil {
		utils.Error(c, http.StatusBadRequest, "record has no audio to transcribe")
		return
	}

	result, err := h.provider.Transcribe(c.Request.Context(), artifact.Data, artifact.Name)
	if err != nil {
		log.Printf("STT error for record %s (provider: %s): %v", id, h.provider.Name(), err)
		utils.Error(c, http.StatusBadGateway, err.Error())
		return
	}
	if result.Transcript == "" {
		utils.Error(c, http.StatusBadRequest, "no speech detected in audio")
		return
	}

	rec.Text = result.Transcript
	rec.Status = "transcribed"
	rec.UpdatedAt = time.Now()
	if err := h.repo.SaveTranscription(c.Request.Context(), rec); err != nil {
		utils.Error(c, http.StatusInternalServerError, "failed to store transcript")
		return
	}

	utils.Success(c, gin.H{
		"record_id":  id,
		"status":     rec.Status,
		"transcript": result.Transcript,
		"language":   result.Language,
	})
}

// refineRecord runs the LLM transcript cleanup over the record's text and
// stores the result
func (h *Handler) refineRecord(c *gin.Context) {
	id := c.Param("record_id")

	if h.refiner == nil {
		utils.Error(c, http.StatusServiceUnavailable, "no refiner configured")
		return
	}

	rec, err := h.repo.GetTranscription(c.Request.Context(), id)
	if err != nil {
		utils.Error(c, http.StatusInternalServerError, "failed to load record")
		return
	}
	if rec == nil {
		utils.Error(c, http.StatusNotFound, "record not found")
		return
	}
	if rec.Text == "" {
		utils.Error(c, http.StatusBadRequest, "record has no transcript to refine")
		return
	}

	refined, err := h.refiner.RefineTranscript(c.Request.Context(), rec.Text)
	if err != nil {
		log.Printf("Refine error for record %s: %v", id, err)
		utils.Error(c, http.StatusBadGateway, err.Error())
		return
	}

	rec.Text = refined
	rec.UpdatedAt = time.Now()
	if err := h.repo.SaveTranscription(c.Request.Context(), rec); err != nil {
		utils.Error(c, http.StatusInternalServerError, "failed to store refined transcript")
		return
	}

	utils.Success(c, gin.H{"record_id": id, "text": refined})
}

// syncStatus reports the coordinator state for UI display
func (h *Handler) syncStatus(c *gin.Context) {
	body := gin.H{
		"state":      string(h.coord.State()),
		"is_syncing": h.coord.IsSyncing(),
	}
	if t := h.coord.LastSyncedAt(); !t.IsZero() {
		body["last_synced_at"] = t.UTC().Format(time.RFC3339)
	}
	utils.Success(c, body)
}

// syncNow triggers one reconciliation pass
func (h *Handler) syncNow(c *gin.Context) {
	res, err := h.coord.SyncNow(c.Request.Context())
	if err != nil {
		log.Printf("Sync pass error: %v", err)
	}
	utils.Success(c, gin.H{
		"processed": res.Processed,
		"failed":    res.Failed,
		"skipped":   res.Skipped,
	})
}

// ConflictRequest selects an account-conflict resolution.
type ConflictRequest struct {
	Resolution string `json:"resolution" binding:"required,oneof=merge replace cancel"`
}

// resolveConflict applies the user's choice for a pending identity conflict
func (h *Handler) resolveConflict(c *gin.Context) {
	var req ConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "resolution must be merge, replace, or cancel")
		return
	}

	var err error
	switch req.Resolution {
	case "merge":
		err = h.coord.Merge(c.Request.Context())
	case "replace":
		err = h.coord.Replace(c.Request.Context())
	case "cancel":
		err = h.coord.Cancel(c.Request.Context())
	}
	if err != nil {
		utils.Error(c, http.StatusConflict, err.Error())
		return
	}
	utils.Success(c, gin.H{"resolution": req.Resolution, "state": string(h.coord.State())})
}

// signOut deactivates sync and returns to local-only mode
func (h *Handler) signOut(c *gin.Context) {
	h.coord.HandleSignOut()
	utils.Success(c, gin.H{"state": string(h.coord.State())})
}

func recordSummary(rec *model.Transcription) gin.H {
	body := gin.H{
		"record_id":       rec.ID,
		"title":           rec.Title,
		"kind":            rec.Kind,
		"status":          rec.Status,
		"created_at":      rec.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":      rec.UpdatedAt.UTC().Format(time.RFC3339),
		"cloud_synced":    rec.IsCloudSynced,
		"download_status": rec.DownloadStatus,
	}
	if rec.LastSyncedAt != nil {
		body["last_synced_at"] = rec.LastSyncedAt.UTC().Format(time.RFC3339)
	}
	if rec.SyncErrorMessage != "" {
		body["sync_error"] = rec.SyncErrorMessage
	}
	return body
}
