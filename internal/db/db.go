package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS transcriptions (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	kind TEXT NOT NULL DEFAULT 'realtime',
	status TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	request_id TEXT NOT NULL DEFAULT '',
	text TEXT NOT NULL DEFAULT '',
	sample_rate INTEGER NOT NULL DEFAULT 0,
	channel_count INTEGER NOT NULL DEFAULT 0,
	is_cloud_synced INTEGER NOT NULL DEFAULT 0,
	download_status TEXT NOT NULL DEFAULT 'downloaded',
	last_synced_at TEXT,
	sync_retry_count INTEGER NOT NULL DEFAULT 0,
	next_sync_attempt_at TEXT,
	sync_error_message TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS segments (
	transcription_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	speaker TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT '',
	start_ms INTEGER NOT NULL,
	end_ms INTEGER NOT NULL,
	text TEXT NOT NULL DEFAULT '',
	corrected_text TEXT NOT NULL DEFAULT '',
	words TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (transcription_id, seq)
);

CREATE TABLE IF NOT EXISTS audio_chunks (
	transcription_id TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	data BLOB NOT NULL,
	mime_type TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (transcription_id, role, chunk_index)
);

CREATE TABLE IF NOT EXISTS video_chunks (
	transcription_id TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	data BLOB NOT NULL,
	mime_type TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (transcription_id, chunk_index)
);

CREATE TABLE IF NOT EXISTS sync_settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Open opens the sqlite database at path and ensures the schema exists.
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	database, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Ping(); err != nil {
		database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return database, nil
}
