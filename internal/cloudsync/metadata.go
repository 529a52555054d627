package cloudsync

import (
	"time"

	"malsori/internal/model"
)

// Remote layout: <root>/transcriptions/<id>/{metadata.json, segments.json,
// audio.(wav|webm), video.(webm|mp4)}. This layout is a de facto wire format
// shared with other clients and must not change.
const (
	rootFolderName           = "Malsori Data"
	transcriptionsFolderName = "transcriptions"
	metadataFileName         = "metadata.json"
	segmentsFileName         = "segments.json"
)

// remoteMetadata is the wire form of a transcription's canonical content
// fields inside metadata.json. Timestamps travel as RFC 3339 strings; other
// clients emit them from JS Date.toISOString.
type remoteMetadata struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Kind         string `json:"kind"`
	Status       string `json:"status"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
	RequestID    string `json:"requestId,omitempty"`
	Text         string `json:"text,omitempty"`
	SampleRate   int    `json:"sampleRate,omitempty"`
	ChannelCount int    `json:"channelCount,omitempty"`
}

func metadataFromRecord(t model.Transcription) remoteMetadata {
	return remoteMetadata{
		ID:           t.ID,
		Title:        t.Title,
		Kind:         t.Kind,
		Status:       t.Status,
		CreatedAt:    formatTimestamp(t.CreatedAt),
		UpdatedAt:    formatTimestamp(t.UpdatedAt),
		RequestID:    t.RequestID,
		Text:         t.Text,
		SampleRate:   t.SampleRate,
		ChannelCount: t.ChannelCount,
	}
}

func (m remoteMetadata) toRecord() model.Transcription {
	return model.Transcription{
		ID:           m.ID,
		Title:        m.Title,
		Kind:         m.Kind,
		Status:       m.Status,
		CreatedAt:    parseTimestamp(m.CreatedAt),
		UpdatedAt:    parseTimestamp(m.UpdatedAt),
		RequestID:    m.RequestID,
		Text:         m.Text,
		SampleRate:   m.SampleRate,
		ChannelCount: m.ChannelCount,
	}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTimestamp parses an RFC 3339 timestamp. Unparsable values are treated
// as epoch 0 so a corrupt remote timestamp always loses a recency comparison.
func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Unix(0, 0).UTC()
}
