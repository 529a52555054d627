package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"malsori/internal/model"
)

type sqliteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository backed by the given sqlite handle.
// The same value implements both TranscriptionRepository and
// SettingsRepository.
func NewSQLiteRepository(db *sql.DB) *sqliteRepository {
	return &sqliteRepository{db: db}
}

var _ TranscriptionRepository = (*sqliteRepository)(nil)
var _ SettingsRepository = (*sqliteRepository)(nil)

const transcriptionColumns = `
	id, title, kind, status, created_at, updated_at, request_id, text,
	sample_rate, channel_count, is_cloud_synced, download_status,
	last_synced_at, sync_retry_count, next_sync_attempt_at, sync_error_message`

func (r *sqliteRepository) GetTranscription(ctx context.Context, id string) (*model.Transcription, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transcriptionColumns+` FROM transcriptions WHERE id = ?`, id)

	t, err := scanTranscription(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transcription: %w", err)
	}
	return t, nil
}

func (r *sqliteRepository) ListTranscriptions(ctx context.Context) ([]model.Transcription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transcriptionColumns+` FROM transcriptions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query transcriptions: %w", err)
	}
	defer rows.Close()

	var out []model.Transcription
	for rows.Next() {
		t, err := scanTranscription(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan transcription: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcriptions: %w", err)
	}
	return out, nil
}

func (r *sqliteRepository) SaveTranscription(ctx context.Context, t *model.Transcription) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO transcriptions (`+transcriptionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Kind, t.Status,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
		t.RequestID, t.Text, t.SampleRate, t.ChannelCount,
		boolToInt(t.IsCloudSynced), t.DownloadStatus,
		formatTimePtr(t.LastSyncedAt), t.SyncRetryCount,
		formatTimePtr(t.NextSyncAttemptAt), t.SyncErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("save transcription: %w", err)
	}
	return nil
}

func (r *sqliteRepository) DeleteTranscription(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM segments WHERE transcription_id = ?`,
			`DELETE FROM audio_chunks WHERE transcription_id = ?`,
			`DELETE FROM video_chunks WHERE transcription_id = ?`,
			`DELETE FROM transcriptions WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return fmt.Errorf("delete transcription %s: %w", id, err)
			}
		}
		return nil
	})
}

func (r *sqliteRepository) ListSegments(ctx context.Context, transcriptionID string) ([]model.Segment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT transcription_id, speaker, language, start_ms, end_ms, text, corrected_text, words
		FROM segments
		WHERE transcription_id = ?
		ORDER BY seq ASC`, transcriptionID)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var out []model.Segment
	for rows.Next() {
		var s model.Segment
		var words string
		if err := rows.Scan(&s.TranscriptionID, &s.Speaker, &s.Language,
			&s.StartMs, &s.EndMs, &s.Text, &s.CorrectedText, &words); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		if words != "" && words != "[]" {
			if err := json.Unmarshal([]byte(words), &s.Words); err != nil {
				return nil, fmt.Errorf("unmarshal segment words: %w", err)
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *sqliteRepository) ReplaceSegments(ctx context.Context, transcriptionID string, segments []model.Segment) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM segments WHERE transcription_id = ?`, transcriptionID); err != nil {
			return fmt.Errorf("clear segments: %w", err)
		}
		for i, s := range segments {
			words, err := json.Marshal(s.Words)
			if err != nil {
				return fmt.Errorf("marshal segment words: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO segments (transcription_id, seq, speaker, language, start_ms, end_ms, text, corrected_text, words)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				transcriptionID, i, s.Speaker, s.Language, s.StartMs, s.EndMs,
				s.Text, s.CorrectedText, string(words)); err != nil {
				return fmt.Errorf("insert segment: %w", err)
			}
		}
		return nil
	})
}

func (r *sqliteRepository) ListAudioChunks(ctx context.Context, transcriptionID string) ([]model.AudioChunk, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT transcription_id, chunk_index, data, mime_type, role
		FROM audio_chunks
		WHERE transcription_id = ?
		ORDER BY chunk_index ASC`, transcriptionID)
	if err != nil {
		return nil, fmt.Errorf("query audio chunks: %w", err)
	}
	defer rows.Close()

	var out []model.AudioChunk
	for rows.Next() {
		var c model.AudioChunk
		if err := rows.Scan(&c.TranscriptionID, &c.ChunkIndex, &c.Data, &c.MimeType, &c.Role); err != nil {
			return nil, fmt.Errorf("scan audio chunk: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *sqliteRepository) ReplaceAudioChunks(ctx context.Context, transcriptionID, role string, chunks []model.AudioChunk) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM audio_chunks WHERE transcription_id = ? AND role = ?`,
			transcriptionID, role); err != nil {
			return fmt.Errorf("clear audio chunks: %w", err)
		}
		for _, c := range chunks {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO audio_chunks (transcription_id, chunk_index, data, mime_type, role)
				VALUES (?, ?, ?, ?, ?)`,
				transcriptionID, c.ChunkIndex, c.Data, c.MimeType, role); err != nil {
				return fmt.Errorf("insert audio chunk: %w", err)
			}
		}
		return nil
	})
}

func (r *sqliteRepository) SaveAudioChunk(ctx context.Context, chunk *model.AudioChunk) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO audio_chunks (transcription_id, chunk_index, data, mime_type, role)
		VALUES (?, ?, ?, ?, ?)`,
		chunk.TranscriptionID, chunk.ChunkIndex, chunk.Data, chunk.MimeType, chunk.Role)
	if err != nil {
		return fmt.Errorf("save audio chunk: %w", err)
	}
	return nil
}

func (r *sqliteRepository) ListVideoChunks(ctx context.Context, transcriptionID string) ([]model.VideoChunk, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT transcription_id, chunk_index, data, mime_type
		FROM video_chunks
		WHERE transcription_id = ?
		ORDER BY chunk_index ASC`, transcriptionID)
	if err != nil {
		return nil, fmt.Errorf("query video chunks: %w", err)
	}
	defer rows.Close()

	var out []model.VideoChunk
	for rows.Next() {
		var c model.VideoChunk
		if err := rows.Scan(&c.TranscriptionID, &c.ChunkIndex, &c.Data, &c.MimeType); err != nil {
			return nil, fmt.Errorf("scan video chunk: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *sqliteRepository) ReplaceVideoChunks(ctx context.Context, transcriptionID string, chunks []model.VideoChunk) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM video_chunks WHERE transcription_id = ?`, transcriptionID); err != nil {
			return fmt.Errorf("clear video chunks: %w", err)
		}
		for _, c := range chunks {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO video_chunks (transcription_id, chunk_index, data, mime_type)
				VALUES (?, ?, ?, ?)`,
				transcriptionID, c.ChunkIndex, c.Data, c.MimeType); err != nil {
				return fmt.Errorf("insert video chunk: %w", err)
			}
		}
		return nil
	})
}

func (r *sqliteRepository) SaveVideoChunk(ctx context.Context, chunk *model.VideoChunk) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO video_chunks (transcription_id, chunk_index, data, mime_type)
		VALUES (?, ?, ?, ?)`,
		chunk.TranscriptionID, chunk.ChunkIndex, chunk.Data, chunk.MimeType)
	if err != nil {
		return fmt.Errorf("save video chunk: %w", err)
	}
	return nil
}

func (r *sqliteRepository) ClearAll(ctx context.Context) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"segments", "audio_chunks", "video_chunks", "transcriptions"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

func (r *sqliteRepository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM sync_settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

func (r *sqliteRepository) SetSetting(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sync_settings (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

func (r *sqliteRepository) DeleteSetting(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sync_settings WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}

func (r *sqliteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %v: %w", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func scanTranscription(scan func(dest ...any) error) (*model.Transcription, error) {
	var t model.Transcription
	var createdAt, updatedAt string
	var lastSynced, nextAttempt sql.NullString
	var cloudSynced int

	err := scan(
		&t.ID, &t.Title, &t.Kind, &t.Status, &createdAt, &updatedAt,
		&t.RequestID, &t.Text, &t.SampleRate, &t.ChannelCount,
		&cloudSynced, &t.DownloadStatus,
		&lastSynced, &t.SyncRetryCount, &nextAttempt, &t.SyncErrorMessage,
	)
	if err != nil {
		return nil, err
	}

	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	t.IsCloudSynced = cloudSynced != 0
	if lastSynced.Valid {
		ts := parseTime(lastSynced.String)
		t.LastSyncedAt = &ts
	}
	if nextAttempt.Valid {
		ts := parseTime(nextAttempt.String)
		t.NextSyncAttemptAt = &ts
	}
	return &t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
