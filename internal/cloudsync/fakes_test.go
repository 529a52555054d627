package cloudsync

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"malsori/internal/model"
	"malsori/internal/remote"
)

// fakeStore is an in-memory remote.Store for tests.
type fakeStore struct {
	mu     sync.Mutex
	files  map[string]*fakeFile
	nextID int

	uploadErr   error  // returned by Upload when set
	failName    string // restrict uploadErr to one file name ("" = all)
	listCalls   int
	uploadCalls int
}

type fakeFile struct {
	id           string
	name         string
	mimeType     string
	parentID     string
	folder       bool
	data         []byte
	modifiedTime string
}

func newFakeStore() *fakeStore {
	return &fakeStore{files: make(map[string]*fakeFile)}
}

func (s *fakeStore) genID() string {
	s.nextID++
	return fmt.Sprintf("f%03d", s.nextID)
}

func (s *fakeStore) List(ctx context.Context, q remote.Query) ([]remote.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++

	var out []remote.Entry
	for _, f := range s.files {
		if q.Name != "" && f.name != q.Name {
			continue
		}
		if q.ParentID != "" && f.parentID != q.ParentID {
			continue
		}
		if q.MimeType != "" && f.mimeType != q.MimeType {
			continue
		}
		out = append(out, remote.Entry{
			ID:           f.id,
			Name:         f.name,
			MimeType:     f.mimeType,
			ModifiedTime: f.modifiedTime,
		})
	}
	return out, nil
}

func (s *fakeStore) CreateFolder(ctx context.Context, name, parentID string) (remote.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := &fakeFile{
		id:       s.genID(),
		name:     name,
		mimeType: remote.MimeFolder,
		parentID: parentID,
		folder:   true,
	}
	s.files[f.id] = f
	return remote.Entry{ID: f.id, Name: f.name, MimeType: f.mimeType}, nil
}

func (s *fakeStore) Upload(ctx context.Context, name string, data []byte, parentID, mimeType, existingID string) (remote.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploadCalls++

	if s.uploadErr != nil && (s.failName == "" || s.failName == name) {
		return remote.Entry{}, s.uploadErr
	}

	if existingID != "" {
		f, ok := s.files[existingID]
		if !ok {
			return remote.Entry{}, fmt.Errorf("no file %s", existingID)
		}
		f.data = append([]byte(nil), data...)
		return remote.Entry{ID: f.id, Name: f.name, MimeType: f.mimeType, ModifiedTime: f.modifiedTime}, nil
	}

	f := &fakeFile{
		id:       s.genID(),
		name:     name,
		mimeType: mimeType,
		parentID: parentID,
		data:     append([]byte(nil), data...),
	}
	s.files[f.id] = f
	return remote.Entry{ID: f.id, Name: f.name, MimeType: f.mimeType}, nil
}

func (s *fakeStore) Download(ctx context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("no file %s", id)
	}
	return append([]byte(nil), f.data...), nil
}

func (s *fakeStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, id)
	return nil
}

// addFolder seeds a folder and returns its id.
func (s *fakeStore) addFolder(name, parentID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := &fakeFile{id: s.genID(), name: name, mimeType: remote.MimeFolder, parentID: parentID, folder: true}
	s.files[f.id] = f
	return f.id
}

// addFile seeds a file and returns its id.
func (s *fakeStore) addFile(name, parentID, mimeType, modifiedTime string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := &fakeFile{
		id: s.genID(), name: name, mimeType: mimeType, parentID: parentID,
		modifiedTime: modifiedTime, data: append([]byte(nil), data...),
	}
	s.files[f.id] = f
	return f.id
}

// countByName returns how many non-folder files carry the given name.
func (s *fakeStore) countByName(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range s.files {
		if !f.folder && f.name == name {
			n++
		}
	}
	return n
}

// countFolders returns how many folders carry the given name.
func (s *fakeStore) countFolders(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range s.files {
		if f.folder && f.name == name {
			n++
		}
	}
	return n
}

// fileByName returns the first non-folder file with the given name.
func (s *fakeStore) fileByName(name string) *fakeFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.files {
		if !f.folder && f.name == name {
			return f
		}
	}
	return nil
}

// fakeRepo is an in-memory TranscriptionRepository for tests.
type fakeRepo struct {
	mu       sync.Mutex
	records  map[string]model.Transcription
	segments map[string][]model.Segment
	audio    map[string][]model.AudioChunk
	video    map[string][]model.VideoChunk
	saveErr  error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		records:  make(map[string]model.Transcription),
		segments: make(map[string][]model.Segment),
		audio:    make(map[string][]model.AudioChunk),
		video:    make(map[string][]model.VideoChunk),
	}
}

func (r *fakeRepo) GetTranscription(ctx context.Context, id string) (*model.Transcription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	cp := t
	return &cp, nil
}

func (r *fakeRepo) ListTranscriptions(ctx context.Context) ([]model.Transcription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Transcription
	for _, t := range r.records {
		out = append(out, t)
	}
	return out, nil
}

func (r *fakeRepo) SaveTranscription(ctx context.Context, t *model.Transcription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.records[t.ID] = *t
	return nil
}

func (r *fakeRepo) DeleteTranscription(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
	delete(r.segments, id)
	delete(r.audio, id)
	delete(r.video, id)
	return nil
}

func (r *fakeRepo) ListSegments(ctx context.Context, id string) ([]model.Segment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Segment(nil), r.segments[id]...), nil
}

func (r *fakeRepo) ReplaceSegments(ctx context.Context, id string, segments []model.Segment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segments[id] = append([]model.Segment(nil), segments...)
	return nil
}

func (r *fakeRepo) ListAudioChunks(ctx context.Context, id string) ([]model.AudioChunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.AudioChunk(nil), r.audio[id]...), nil
}

func (r *fakeRepo) ReplaceAudioChunks(ctx context.Context, id, role string, chunks []model.AudioChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []model.AudioChunk
	for _, c := range r.audio[id] {
		if c.Role != role {
			kept = append(kept, c)
		}
	}
	r.audio[id] = append(kept, chunks...)
	return nil
}

func (r *fakeRepo) SaveAudioChunk(ctx context.Context, chunk *model.AudioChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audio[chunk.TranscriptionID] = append(r.audio[chunk.TranscriptionID], *chunk)
	return nil
}

func (r *fakeRepo) ListVideoChunks(ctx context.Context, id string) ([]model.VideoChunk, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.VideoChunk(nil), r.video[id]...), nil
}

func (r *fakeRepo) ReplaceVideoChunks(ctx context.Context, id string, chunks []model.VideoChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.video[id] = append([]model.VideoChunk(nil), chunks...)
	return nil
}

func (r *fakeRepo) SaveVideoChunk(ctx context.Context, chunk *model.VideoChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.video[chunk.TranscriptionID] = append(r.video[chunk.TranscriptionID], *chunk)
	return nil
}

func (r *fakeRepo) ClearAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make(map[string]model.Transcription)
	r.segments = make(map[string][]model.Segment)
	r.audio = make(map[string][]model.AudioChunk)
	r.video = make(map[string][]model.VideoChunk)
	return nil
}

func (r *fakeRepo) isEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records) == 0 && len(r.segments) == 0 && len(r.audio) == 0 && len(r.video) == 0
}

// fakeSettings is an in-memory SettingsRepository for tests.
type fakeSettings struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{values: make(map[string]string)}
}

func (s *fakeSettings) GetSetting(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key], nil
}

func (s *fakeSettings) SetSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *fakeSettings) DeleteSetting(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// fakeAuth records revocations.
type fakeAuth struct {
	mu      sync.Mutex
	revoked bool
}

func (a *fakeAuth) IsAuthenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.revoked
}

func (a *fakeAuth) Revoke(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.revoked = true
	return nil
}

func (a *fakeAuth) wasRevoked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.revoked
}

// containsAll fails unless every needle occurs in s.
func containsAll(s string, needles ...string) bool {
	for _, n := range needles {
		if !strings.Contains(s, n) {
			return false
		}
	}
	return true
}
