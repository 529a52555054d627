package model

import "time"

// Transcription kinds.
const (
	KindFile     = "file"
	KindRealtime = "realtime"
)

// Download status of a cloud-synced record's media and segments.
const (
	DownloadNotDownloaded = "not_downloaded"
	DownloadDownloading   = "downloading"
	DownloadDownloaded    = "downloaded"
)

// Chunk roles. Capture chunks are recorded live; source-file chunks hold an
// uploaded file awaiting transcription and are excluded from audio assembly.
const (
	RoleCapture    = "capture"
	RoleSourceFile = "source_file"
)

// Transcription represents one transcription record. Content fields are
// mirrored to the remote store; sync-transient fields are local-only and are
// stripped before anything is written to the remote copy.
type Transcription struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Kind         string    `json:"kind"` // file | realtime
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	RequestID    string    `json:"requestId,omitempty"`
	Text         string    `json:"text,omitempty"`
	SampleRate   int       `json:"sampleRate,omitempty"`
	ChannelCount int       `json:"channelCount,omitempty"`

	// Sync-transient fields. Never serialized into the remote metadata.
	IsCloudSynced     bool       `json:"-"`
	DownloadStatus    string     `json:"-"`
	LastSyncedAt      *time.Time `json:"-"`
	SyncRetryCount    int        `json:"-"`
	NextSyncAttemptAt *time.Time `json:"-"`
	SyncErrorMessage  string     `json:"-"`
}

// Segment is one time-ordered slice of a transcription.
type Segment struct {
	TranscriptionID string       `json:"-"`
	Speaker         string       `json:"speaker,omitempty"`
	Language        string       `json:"language,omitempty"`
	StartMs         int64        `json:"startMs"`
	EndMs           int64        `json:"endMs"`
	Text            string       `json:"text"`
	CorrectedText   string       `json:"correctedText,omitempty"`
	Words           []WordTiming `json:"words,omitempty"`
}

// WordTiming is per-word timing inside a segment.
type WordTiming struct {
	Word    string `json:"word"`
	StartMs int64  `json:"startMs"`
	EndMs   int64  `json:"endMs"`
}

// AudioChunk is one piece of a transcription's audio stream. Chunks of the
// same role concatenate in index order to reconstruct the stream.
type AudioChunk struct {
	TranscriptionID string
	ChunkIndex      int
	Data            []byte
	MimeType        string
	Role            string // capture | source_file; empty means legacy capture
}

// VideoChunk is one piece of a transcription's video stream.
type VideoChunk struct {
	TranscriptionID string
	ChunkIndex      int
	Data            []byte
	MimeType        string
}

// SyncResult aggregates the outcome of one push or pull pass.
type SyncResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Add merges another pass result into r.
func (r *SyncResult) Add(other SyncResult) {
	r.Processed += other.Processed
	r.Failed += other.Failed
	r.Skipped += other.Skipped
}
