package repository

import (
	"context"

	"malsori/internal/model"
)

// TranscriptionRepository defines the interface for local record data access.
// Writes that touch more than one table run inside a single transaction.
type TranscriptionRepository interface {
	// GetTranscription retrieves a transcription by id, or nil if absent
	GetTranscription(ctx context.Context, id string) (*model.Transcription, error)

	// ListTranscriptions retrieves all transcriptions
	ListTranscriptions(ctx context.Context) ([]model.Transcription, error)

	// SaveTranscription inserts or fully overwrites a transcription
	SaveTranscription(ctx context.Context, t *model.Transcription) error

	// DeleteTranscription removes a transcription with its segments and chunks
	DeleteTranscription(ctx context.Context, id string) error

	// ListSegments retrieves a transcription's segments in time order
	ListSegments(ctx context.Context, transcriptionID string) ([]model.Segment, error)

	// ReplaceSegments swaps a transcription's segment set wholesale
	ReplaceSegments(ctx context.Context, transcriptionID string, segments []model.Segment) error

	// ListAudioChunks retrieves audio chunks in index order, all roles
	ListAudioChunks(ctx context.Context, transcriptionID string) ([]model.AudioChunk, error)

	// ReplaceAudioChunks swaps all audio chunks of one role
	ReplaceAudioChunks(ctx context.Context, transcriptionID, role string, chunks []model.AudioChunk) error

	// SaveAudioChunk inserts or overwrites a single audio chunk
	SaveAudioChunk(ctx context.Context, chunk *model.AudioChunk) error

	// ListVideoChunks retrieves video chunks in index order
	ListVideoChunks(ctx context.Context, transcriptionID string) ([]model.VideoChunk, error)

	// ReplaceVideoChunks swaps all video chunks
	ReplaceVideoChunks(ctx context.Context, transcriptionID string, chunks []model.VideoChunk) error

	// SaveVideoChunk inserts or overwrites a single video chunk
	SaveVideoChunk(ctx context.Context, chunk *model.VideoChunk) error

	// ClearAll empties every table in one transaction. Used by the Replace
	// account-conflict resolution only.
	ClearAll(ctx context.Context) error
}

// SettingsRepository stores small key-value entries outside the record tables,
// such as the last-synced account key.
type SettingsRepository interface {
	// GetSetting returns the value for key, or "" if unset
	GetSetting(ctx context.Context, key string) (string, error)

	// SetSetting writes the value for key
	SetSetting(ctx context.Context, key, value string) error

	// DeleteSetting removes key
	DeleteSetting(ctx context.Context, key string) error
}
