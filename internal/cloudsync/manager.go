// Package cloudsync reconciles the local record store against a remote
// mirror. Pull brings newer remote records in, push mirrors local records
// out, and per-record failures back off on a fixed schedule without ever
// aborting a pass.
package cloudsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"malsori/internal/model"
	"malsori/internal/remote"
	"malsori/internal/repository"
)

// Manager runs push/pull reconciliation for one remote identity. A manager
// caches the resolved root folder id for its own lifetime only; switching
// accounts means constructing a new manager.
type Manager struct {
	store    remote.Store
	repo     repository.TranscriptionRepository
	interval time.Duration
	now      func() time.Time

	rootID string

	mu           sync.Mutex
	syncing      bool
	lastSyncedAt time.Time
	stopCh       chan struct{}
}

// NewManager creates a manager over the given remote store and local
// repository. interval is the period of the auto-sync loop.
func NewManager(store remote.Store, repo repository.TranscriptionRepository, interval time.Duration) *Manager {
	return &Manager{
		store:    store,
		repo:     repo,
		interval: interval,
		now:      time.Now,
	}
}

// AccountKey resolves a stable identity key for the remote account. The root
// folder id is per-account since each account has its own drive namespace.
func (m *Manager) AccountKey(ctx context.Context) (string, error) {
	return m.resolveRootFolder(ctx)
}

// resolveRootFolder finds or creates the root folder and caches its id for
// the lifetime of this manager.
func (m *Manager) resolveRootFolder(ctx context.Context) (string, error) {
	if m.rootID != "" {
		return m.rootID, nil
	}

	entries, err := m.store.List(ctx, remote.Query{Name: rootFolderName, MimeType: remote.MimeFolder})
	if err != nil {
		return "", fmt.Errorf("resolve root folder: %w", err)
	}
	if len(entries) > 0 {
		m.rootID = entries[0].ID
		return m.rootID, nil
	}

	created, err := m.store.CreateFolder(ctx, rootFolderName, "")
	if err != nil {
		return "", fmt.Errorf("create root folder: %w", err)
	}
	m.rootID = created.ID
	return m.rootID, nil
}

// resolveChildFolder finds or creates a folder by name under parentID.
// Record folders are re-resolved on every call to tolerate concurrent
// external changes to the mirror.
func (m *Manager) resolveChildFolder(ctx context.Context, name, parentID string) (string, error) {
	entries, err := m.store.List(ctx, remote.Query{Name: name, ParentID: parentID, MimeType: remote.MimeFolder})
	if err != nil {
		return "", fmt.Errorf("resolve folder %q: %w", name, err)
	}
	if len(entries) > 0 {
		return entries[0].ID, nil
	}

	created, err := m.store.CreateFolder(ctx, name, parentID)
	if err != nil {
		return "", fmt.Errorf("create folder %q: %w", name, err)
	}
	return created.ID, nil
}

func (m *Manager) resolveTranscriptionsFolder(ctx context.Context) (string, error) {
	rootID, err := m.resolveRootFolder(ctx)
	if err != nil {
		return "", err
	}
	return m.resolveChildFolder(ctx, transcriptionsFolderName, rootID)
}

func (m *Manager) resolveRecordFolder(ctx context.Context, transcriptionID string) (string, error) {
	parentID, err := m.resolveTranscriptionsFolder(ctx)
	if err != nil {
		return "", err
	}
	return m.resolveChildFolder(ctx, transcriptionID, parentID)
}

// PullUpdates walks every record folder in the mirror and merges newer remote
// records into the local store. Per-record errors are counted, not fatal.
func (m *Manager) PullUpdates(ctx context.Context) (model.SyncResult, error) {
	var res model.SyncResult

	folderID, err := m.resolveTranscriptionsFolder(ctx)
	if err != nil {
		return res, err
	}

	folders, err := m.store.List(ctx, remote.Query{ParentID: folderID, MimeType: remote.MimeFolder})
	if err != nil {
		return res, fmt.Errorf("list record folders: %w", err)
	}

	for _, folder := range folders {
		skipped, err := m.pullRecord(ctx, folder)
		switch {
		case err != nil:
			res.Failed++
			log.Printf("[Sync] pull %s failed: %v", folder.Name, err)
		case skipped:
			res.Skipped++
		default:
			res.Processed++
		}
	}
	return res, nil
}

// pullRecord processes one remote record folder. The folder name is the
// transcription id. Returns skipped=true when the folder carries no usable
// metadata or the local record is not part of the mirror.
func (m *Manager) pullRecord(ctx context.Context, folder remote.Entry) (skipped bool, err error) {
	id := folder.Name

	metaEntries, err := m.store.List(ctx, remote.Query{Name: metadataFileName, ParentID: folder.ID})
	if err != nil {
		return false, fmt.Errorf("list metadata: %w", err)
	}
	if len(metaEntries) == 0 {
		// The remote side is mid-write or corrupt. Not an error.
		return true, nil
	}

	data, err := m.store.Download(ctx, metaEntries[0].ID)
	if err != nil {
		return false, fmt.Errorf("download metadata: %w", err)
	}

	var meta remoteMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return false, fmt.Errorf("parse metadata: %w", err)
	}

	incoming := Sanitize(meta.toRecord())
	incoming.ID = id

	local, err := m.repo.GetTranscription(ctx, id)
	if err != nil {
		return false, err
	}
	now := m.now()

	if local == nil {
		// Ghost record: metadata lands now, media and segments on demand.
		incoming.IsCloudSynced = true
		incoming.DownloadStatus = model.DownloadNotDownloaded
		incoming.LastSyncedAt = &now
		if err := m.repo.SaveTranscription(ctx, &incoming); err != nil {
			return false, err
		}
		return false, nil
	}

	if !local.IsCloudSynced {
		// A local-only record is never silently absorbed into the mirror.
		return true, nil
	}

	if !incoming.UpdatedAt.After(local.UpdatedAt) {
		return false, nil
	}

	// Remote is strictly newer: last writer wins, wholesale. Pulling
	// metadata does not imply media has been fetched, so the existing
	// download status is preserved.
	incoming.IsCloudSynced = true
	incoming.DownloadStatus = local.DownloadStatus
	incoming.LastSyncedAt = &now
	if err := m.repo.SaveTranscription(ctx, &incoming); err != nil {
		return false, err
	}
	return false, nil
}

// PushUpdates mirrors every eligible local record out to the remote store.
// A record whose media is not yet materialized locally is not a candidate:
// it must not push placeholder state over good remote state.
func (m *Manager) PushUpdates(ctx context.Context) (model.SyncResult, error) {
	var res model.SyncResult

	records, err := m.repo.ListTranscriptions(ctx)
	if err != nil {
		return res, err
	}

	for i := range records {
		rec := &records[i]
		if !rec.IsCloudSynced {
			continue
		}
		if rec.DownloadStatus == model.DownloadNotDownloaded || rec.DownloadStatus == model.DownloadDownloading {
			continue
		}

		now := m.now()
		if rec.NextSyncAttemptAt != nil && now.Before(*rec.NextSyncAttemptAt) {
			res.Skipped++
			continue
		}

		stale, err := m.pushRecord(ctx, rec)
		if err != nil {
			res.Failed++
			m.recordPushFailure(ctx, rec, err)
			continue
		}
		if stale {
			// The remote copy is newer; the local copy was behind, not
			// broken. Yield and drop any retry bookkeeping.
			m.recordPushYield(ctx, rec)
			res.Processed++
			continue
		}

		synced := m.now()
		rec.IsCloudSynced = true
		rec.LastSyncedAt = &synced
		rec.SyncRetryCount = 0
		rec.NextSyncAttemptAt = nil
		rec.SyncErrorMessage = ""
		if err := m.repo.SaveTranscription(ctx, rec); err != nil {
			return res, err
		}
		res.Processed++
	}
	return res, nil
}

// pushRecord uploads one record's metadata, segments, and media. Returns
// stale=true when the remote metadata is strictly newer than the local
// record, in which case nothing was uploaded.
func (m *Manager) pushRecord(ctx context.Context, rec *model.Transcription) (stale bool, err error) {
	folderID, err := m.resolveRecordFolder(ctx, rec.ID)
	if err != nil {
		return false, err
	}

	metaEntries, err := m.store.List(ctx, remote.Query{Name: metadataFileName, ParentID: folderID})
	if err != nil {
		return false, fmt.Errorf("list metadata: %w", err)
	}
	existingMetaID := ""
	if len(metaEntries) > 0 {
		existingMetaID = metaEntries[0].ID
		if parseTimestamp(metaEntries[0].ModifiedTime).After(rec.UpdatedAt) {
			return true, nil
		}
	}

	metaJSON, err := json.Marshal(metadataFromRecord(Sanitize(*rec)))
	if err != nil {
		return false, fmt.Errorf("marshal metadata: %w", err)
	}
	if _, err := m.store.Upload(ctx, metadataFileName, metaJSON, folderID, "application/json", existingMetaID); err != nil {
		return false, fmt.Errorf("upload metadata: %w", err)
	}

	segments, err := m.repo.ListSegments(ctx, rec.ID)
	if err != nil {
		return false, err
	}
	if segments == nil {
		segments = []model.Segment{}
	}
	segJSON, err := json.Marshal(segments)
	if err != nil {
		return false, fmt.Errorf("marshal segments: %w", err)
	}
	if err := m.uploadByName(ctx, segmentsFileName, segJSON, folderID, "application/json"); err != nil {
		return false, err
	}

	audioChunks, err := m.repo.ListAudioChunks(ctx, rec.ID)
	if err != nil {
		return false, err
	}
	if artifact := AssembleAudio(rec, audioChunks); artifact != nil {
		if err := m.uploadByName(ctx, artifact.Name, artifact.Data, folderID, artifact.MimeType); err != nil {
			return false, err
		}
	}

	videoChunks, err := m.repo.ListVideoChunks(ctx, rec.ID)
	if err != nil {
		return false, err
	}
	if artifact := AssembleVideo(videoChunks); artifact != nil {
		if err := m.uploadByName(ctx, artifact.Name, artifact.Data, folderID, artifact.MimeType); err != nil {
			return false, err
		}
	}

	return false, nil
}

// uploadByName implements list-by-name-then-overwrite-or-create semantics so
// repeated pushes never duplicate a file.
func (m *Manager) uploadByName(ctx context.Context, name string, data []byte, folderID, mimeType string) error {
	entries, err := m.store.List(ctx, remote.Query{Name: name, ParentID: folderID})
	if err != nil {
		return fmt.Errorf("list %s: %w", name, err)
	}
	existingID := ""
	if len(entries) > 0 {
		existingID = entries[0].ID
	}
	if _, err := m.store.Upload(ctx, name, data, folderID, mimeType, existingID); err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	return nil
}

// recordPushFailure books a failed push onto the record: bump the retry
// count, schedule the next attempt, keep the error message for the UI.
func (m *Manager) recordPushFailure(ctx context.Context, rec *model.Transcription, pushErr error) {
	count := rec.SyncRetryCount
	if count < 0 {
		count = 0
	}
	count++

	now := m.now()
	next := NextAttemptAt(now, count)

	message := pushErr.Error()
	if message == "" {
		message = "sync failed"
	}

	rec.SyncRetryCount = count
	rec.NextSyncAttemptAt = &next
	rec.SyncErrorMessage = message
	if err := m.repo.SaveTranscription(ctx, rec); err != nil {
		log.Printf("[Sync] record retry state for %s: %v", rec.ID, err)
	}
	log.Printf("[Sync] push %s failed (attempt %d, next %s): %v",
		rec.ID, count, next.Format(time.RFC3339), pushErr)
}

// recordPushYield clears retry bookkeeping after the staleness guard fired.
func (m *Manager) recordPushYield(ctx context.Context, rec *model.Transcription) {
	now := m.now()
	rec.LastSyncedAt = &now
	rec.SyncRetryCount = 0
	rec.NextSyncAttemptAt = nil
	rec.SyncErrorMessage = ""
	if err := m.repo.SaveTranscription(ctx, rec); err != nil {
		log.Printf("[Sync] record yield state for %s: %v", rec.ID, err)
	}
}

// DownloadFullRecord fetches a ghost record's segments and media on demand.
func (m *Manager) DownloadFullRecord(ctx context.Context, id string) error {
	rec, err := m.repo.GetTranscription(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("transcription %s not found", id)
	}

	rec.DownloadStatus = model.DownloadDownloading
	if err := m.repo.SaveTranscription(ctx, rec); err != nil {
		return err
	}

	if err := m.downloadRecordContent(ctx, rec); err != nil {
		rec.DownloadStatus = model.DownloadNotDownloaded
		if saveErr := m.repo.SaveTranscription(ctx, rec); saveErr != nil {
			log.Printf("[Sync] reset download status for %s: %v", id, saveErr)
		}
		return err
	}

	rec.DownloadStatus = model.DownloadDownloaded
	return m.repo.SaveTranscription(ctx, rec)
}

func (m *Manager) downloadRecordContent(ctx context.Context, rec *model.Transcription) error {
	folderID, err := m.resolveRecordFolder(ctx, rec.ID)
	if err != nil {
		return err
	}

	entries, err := m.store.List(ctx, remote.Query{ParentID: folderID})
	if err != nil {
		return fmt.Errorf("list record folder: %w", err)
	}
	byName := make(map[string]remote.Entry, len(entries))
	for _, e := range entries {
		byName[e.Name] = e
	}

	if seg, ok := byName[segmentsFileName]; ok {
		data, err := m.store.Download(ctx, seg.ID)
		if err != nil {
			return fmt.Errorf("download segments: %w", err)
		}
		var segments []model.Segment
		if err := json.Unmarshal(data, &segments); err != nil {
			return fmt.Errorf("parse segments: %w", err)
		}
		for i := range segments {
			segments[i].TranscriptionID = rec.ID
		}
		if err := m.repo.ReplaceSegments(ctx, rec.ID, segments); err != nil {
			return err
		}
	}

	// Each found media file becomes a single opaque chunk at index 0,
	// replacing whatever local chunks exist for that role.
	if audio, ok := pickMedia(byName, "audio.wav", "audio.webm"); ok {
		data, err := m.store.Download(ctx, audio.ID)
		if err != nil {
			return fmt.Errorf("download audio: %w", err)
		}
		chunk := model.AudioChunk{
			TranscriptionID: rec.ID,
			ChunkIndex:      0,
			Data:            data,
			MimeType:        mediaMimeType(audio),
			Role:            model.RoleCapture,
		}
		if err := m.repo.ReplaceAudioChunks(ctx, rec.ID, model.RoleCapture, []model.AudioChunk{chunk}); err != nil {
			return err
		}
	}

	if video, ok := pickMedia(byName, "video.webm", "video.mp4"); ok {
		data, err := m.store.Download(ctx, video.ID)
		if err != nil {
			return fmt.Errorf("download video: %w", err)
		}
		chunk := model.VideoChunk{
			TranscriptionID: rec.ID,
			ChunkIndex:      0,
			Data:            data,
			MimeType:        mediaMimeType(video),
		}
		if err := m.repo.ReplaceVideoChunks(ctx, rec.ID, []model.VideoChunk{chunk}); err != nil {
			return err
		}
	}

	return nil
}

// pickMedia returns the first of the preferred names present in the folder.
func pickMedia(byName map[string]remote.Entry, names ...string) (remote.Entry, bool) {
	for _, name := range names {
		if e, ok := byName[name]; ok {
			return e, true
		}
	}
	return remote.Entry{}, false
}

func mediaMimeType(e remote.Entry) string {
	if e.MimeType != "" {
		return e.MimeType
	}
	switch {
	case e.Name == "audio.wav":
		return "audio/wav"
	case e.Name == "audio.webm":
		return "audio/webm"
	case e.Name == "video.mp4":
		return "video/mp4"
	default:
		return "video/webm"
	}
}

// RunPass executes one reconciliation pass: pull, then push. At most one
// pass is in flight per manager; a pass requested while another runs is
// dropped, not queued.
func (m *Manager) RunPass(ctx context.Context) (model.SyncResult, error) {
	m.mu.Lock()
	if m.syncing {
		m.mu.Unlock()
		return model.SyncResult{}, nil
	}
	m.syncing = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.syncing = false
		m.lastSyncedAt = m.now()
		m.mu.Unlock()
	}()

	var total model.SyncResult

	pull, pullErr := m.PullUpdates(ctx)
	total.Add(pull)
	if pullErr != nil {
		log.Printf("[Sync] pull pass: %v", pullErr)
	}

	push, pushErr := m.PushUpdates(ctx)
	total.Add(push)
	if pushErr != nil {
		log.Printf("[Sync] push pass: %v", pushErr)
	}

	return total, errors.Join(pullErr, pushErr)
}

// Start launches the auto-sync loop: one pass immediately, then one per
// interval until Stop.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.stopCh != nil {
		m.mu.Unlock()
		return
	}
	stopCh := make(chan struct{})
	m.stopCh = stopCh
	m.mu.Unlock()

	go m.loop(stopCh)
}

func (m *Manager) loop(stopCh chan struct{}) {
	ctx := context.Background()
	m.runPassLogged(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			m.runPassLogged(ctx)
		}
	}
}

func (m *Manager) runPassLogged(ctx context.Context) {
	res, err := m.RunPass(ctx)
	if err != nil {
		log.Printf("[Sync] pass finished with errors: %+v: %v", res, err)
		return
	}
	log.Printf("[Sync] pass finished: processed=%d failed=%d skipped=%d",
		res.Processed, res.Failed, res.Skipped)
}

// Stop tears down the periodic loop. A pass already in flight runs to
// completion.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopCh != nil {
		close(m.stopCh)
		m.stopCh = nil
	}
}

// IsSyncing reports whether a pass is currently in flight.
func (m *Manager) IsSyncing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncing
}

// LastSyncedAt returns when the last pass finished, or the zero time.
func (m *Manager) LastSyncedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSyncedAt
}
