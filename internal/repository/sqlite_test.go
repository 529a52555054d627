package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"malsori/internal/db"
	"malsori/internal/model"
)

func newTestRepository(t *testing.T) *sqliteRepository {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewSQLiteRepository(database)
}

func TestSaveAndGetTranscription(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 500000000, time.UTC)
	synced := now.Add(-time.Minute)
	next := now.Add(5 * time.Minute)
	rec := model.Transcription{
		ID:                "t1",
		Title:             "interview",
		Kind:              model.KindFile,
		Status:            "completed",
		CreatedAt:         now.Add(-time.Hour),
		UpdatedAt:         now,
		RequestID:         "req-9",
		Text:              "full text",
		SampleRate:        48000,
		ChannelCount:      2,
		IsCloudSynced:     true,
		DownloadStatus:    model.DownloadDownloaded,
		LastSyncedAt:      &synced,
		SyncRetryCount:    2,
		NextSyncAttemptAt: &next,
		SyncErrorMessage:  "last failure",
	}
	if err := repo.SaveTranscription(ctx, &rec); err != nil {
		t.Fatal(err)
	}

	got, err := repo.GetTranscription(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("record not found after save")
	}
	if got.Title != rec.Title || got.Kind != rec.Kind || got.Status != rec.Status ||
		got.RequestID != rec.RequestID || got.Text != rec.Text ||
		got.SampleRate != rec.SampleRate || got.ChannelCount != rec.ChannelCount {
		t.Errorf("content fields: got %+v", got)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) || !got.UpdatedAt.Equal(rec.UpdatedAt) {
		t.Errorf("timestamps: got created=%v updated=%v", got.CreatedAt, got.UpdatedAt)
	}
	if !got.IsCloudSynced || got.DownloadStatus != model.DownloadDownloaded {
		t.Errorf("sync flags: got %+v", got)
	}
	if got.LastSyncedAt == nil || !got.LastSyncedAt.Equal(synced) {
		t.Errorf("LastSyncedAt = %v, want %v", got.LastSyncedAt, synced)
	}
	if got.SyncRetryCount != 2 || got.NextSyncAttemptAt == nil || !got.NextSyncAttemptAt.Equal(next) {
		t.Errorf("retry state: got %+v", got)
	}
	if got.SyncErrorMessage != "last failure" {
		t.Errorf("error message = %q", got.SyncErrorMessage)
	}
}

func TestGetTranscriptionAbsent(t *testing.T) {
	repo := newTestRepository(t)
	got, err := repo.GetTranscription(context.Background(), "missing")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil for an absent record", got)
	}
}

func TestSaveTranscriptionUpserts(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rec := model.Transcription{ID: "t1", Title: "first", CreatedAt: now, UpdatedAt: now}
	if err := repo.SaveTranscription(ctx, &rec); err != nil {
		t.Fatal(err)
	}
	rec.Title = "second"
	rec.LastSyncedAt = nil
	if err := repo.SaveTranscription(ctx, &rec); err != nil {
		t.Fatal(err)
	}

	all, err := repo.ListTranscriptions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("record count = %d, want upsert not duplicate", len(all))
	}
	if all[0].Title != "second" {
		t.Errorf("title = %q, want overwrite", all[0].Title)
	}
	if all[0].LastSyncedAt != nil {
		t.Errorf("LastSyncedAt = %v, want nil round trip", all[0].LastSyncedAt)
	}
}

func TestReplaceSegmentsKeepsOrderAndWords(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	segments := []model.Segment{
		{StartMs: 0, EndMs: 900, Text: "first", Speaker: "A",
			Words: []model.WordTiming{{Word: "first", StartMs: 0, EndMs: 900}}},
		{StartMs: 900, EndMs: 2000, Text: "second", Language: "ko", CorrectedText: "second!"},
	}
	if err := repo.ReplaceSegments(ctx, "t1", segments); err != nil {
		t.Fatal(err)
	}

	got, err := repo.ListSegments(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("segment count = %d, want 2", len(got))
	}
	if got[0].Text != "first" || got[1].Text != "second" {
		t.Errorf("segments out of order: %+v", got)
	}
	if len(got[0].Words) != 1 || got[0].Words[0].Word != "first" {
		t.Errorf("word timings lost: %+v", got[0].Words)
	}
	if got[1].CorrectedText != "second!" || got[1].Language != "ko" {
		t.Errorf("segment fields lost: %+v", got[1])
	}

	// A second replace discards the previous set entirely.
	if err := repo.ReplaceSegments(ctx, "t1", segments[:1]); err != nil {
		t.Fatal(err)
	}
	got, err = repo.ListSegments(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("segment count after replace = %d, want 1", len(got))
	}
}

func TestReplaceAudioChunksIsScopedToRole(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	source := model.AudioChunk{TranscriptionID: "t1", ChunkIndex: 0, Data: []byte{9}, Role: model.RoleSourceFile}
	if err := repo.SaveAudioChunk(ctx, &source); err != nil {
		t.Fatal(err)
	}

	capture := []model.AudioChunk{
		{TranscriptionID: "t1", ChunkIndex: 0, Data: []byte{1}, MimeType: "audio/pcm"},
	}
	if err := repo.ReplaceAudioChunks(ctx, "t1", model.RoleCapture, capture); err != nil {
		t.Fatal(err)
	}

	got, err := repo.ListAudioChunks(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("chunk count = %d, replacing one role must not touch the other", len(got))
	}
	roles := map[string]bool{}
	for _, c := range got {
		roles[c.Role] = true
	}
	if !roles[model.RoleCapture] || !roles[model.RoleSourceFile] {
		t.Errorf("roles present = %v", roles)
	}
}

func TestAudioChunksOrderedByIndex(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, idx := range []int{2, 0, 1} {
		chunk := model.AudioChunk{TranscriptionID: "t1", ChunkIndex: idx, Data: []byte{byte(idx)}, Role: model.RoleCapture}
		if err := repo.SaveAudioChunk(ctx, &chunk); err != nil {
			t.Fatal(err)
		}
	}

	got, err := repo.ListAudioChunks(ctx, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("chunk count = %d", len(got))
	}
	for i, c := range got {
		if c.ChunkIndex != i {
			t.Errorf("chunk %d has index %d, want ascending order", i, c.ChunkIndex)
		}
	}
}

func TestDeleteTranscriptionCascades(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rec := model.Transcription{ID: "t1", CreatedAt: now, UpdatedAt: now}
	if err := repo.SaveTranscription(ctx, &rec); err != nil {
		t.Fatal(err)
	}
	if err := repo.ReplaceSegments(ctx, "t1", []model.Segment{{Text: "x"}}); err != nil {
		t.Fatal(err)
	}
	audio := model.AudioChunk{TranscriptionID: "t1", Data: []byte{1}}
	if err := repo.SaveAudioChunk(ctx, &audio); err != nil {
		t.Fatal(err)
	}
	video := model.VideoChunk{TranscriptionID: "t1", Data: []byte{2}}
	if err := repo.SaveVideoChunk(ctx, &video); err != nil {
		t.Fatal(err)
	}

	if err := repo.DeleteTranscription(ctx, "t1"); err != nil {
		t.Fatal(err)
	}

	if got, _ := repo.GetTranscription(ctx, "t1"); got != nil {
		t.Error("record survived delete")
	}
	if segs, _ := repo.ListSegments(ctx, "t1"); len(segs) != 0 {
		t.Error("segments survived delete")
	}
	if chunks, _ := repo.ListAudioChunks(ctx, "t1"); len(chunks) != 0 {
		t.Error("audio chunks survived delete")
	}
	if chunks, _ := repo.ListVideoChunks(ctx, "t1"); len(chunks) != 0 {
		t.Error("video chunks survived delete")
	}
}

func TestClearAllEmptiesEveryTable(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, id := range []string{"t1", "t2"} {
		rec := model.Transcription{ID: id, CreatedAt: now, UpdatedAt: now}
		if err := repo.SaveTranscription(ctx, &rec); err != nil {
			t.Fatal(err)
		}
		if err := repo.ReplaceSegments(ctx, id, []model.Segment{{Text: "x"}}); err != nil {
			t.Fatal(err)
		}
		audio := model.AudioChunk{TranscriptionID: id, Data: []byte{1}}
		if err := repo.SaveAudioChunk(ctx, &audio); err != nil {
			t.Fatal(err)
		}
	}

	if err := repo.ClearAll(ctx); err != nil {
		t.Fatal(err)
	}

	all, err := repo.ListTranscriptions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Errorf("records after clear = %d, want 0", len(all))
	}
	for _, id := range []string{"t1", "t2"} {
		if segs, _ := repo.ListSegments(ctx, id); len(segs) != 0 {
			t.Errorf("segments for %s survived clear", id)
		}
		if chunks, _ := repo.ListAudioChunks(ctx, id); len(chunks) != 0 {
			t.Errorf("audio chunks for %s survived clear", id)
		}
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	got, err := repo.GetSetting(ctx, "absent")
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Errorf("absent setting = %q, want empty string", got)
	}

	if err := repo.SetSetting(ctx, "last_synced_account_key", "folder-abc"); err != nil {
		t.Fatal(err)
	}
	if err := repo.SetSetting(ctx, "last_synced_account_key", "folder-def"); err != nil {
		t.Fatal(err)
	}
	got, err = repo.GetSetting(ctx, "last_synced_account_key")
	if err != nil {
		t.Fatal(err)
	}
	if got != "folder-def" {
		t.Errorf("setting = %q, want latest write", got)
	}

	if err := repo.DeleteSetting(ctx, "last_synced_account_key"); err != nil {
		t.Fatal(err)
	}
	got, err = repo.GetSetting(ctx, "last_synced_account_key")
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Errorf("setting after delete = %q, want empty", got)
	}
}
