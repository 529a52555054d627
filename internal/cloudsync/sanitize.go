package cloudsync

import "malsori/internal/model"

// Sanitize returns a copy of t with every sync-transient field cleared. It
// runs before a record is written to the remote metadata file, and again on
// anything read back from one, so remote-origin data can never resurrect
// stale local retry or progress state.
func Sanitize(t model.Transcription) model.Transcription {
	t.IsCloudSynced = false
	t.DownloadStatus = ""
	t.LastSyncedAt = nil
	t.SyncRetryCount = 0
	t.NextSyncAttemptAt = nil
	t.SyncErrorMessage = ""
	return t
}
