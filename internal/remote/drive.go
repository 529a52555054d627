package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DriveStore implements Store over the Google Drive v3 API.
type DriveStore struct {
	service *drive.Service
}

// NewDriveStore creates a Drive-backed store using the given client options
// (typically option.WithHTTPClient with an authenticated oauth2 client).
func NewDriveStore(ctx context.Context, opts ...option.ClientOption) (*DriveStore, error) {
	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &DriveStore{service: service}, nil
}

func (s *DriveStore) List(ctx context.Context, q Query) ([]Entry, error) {
	query := buildQuery(q)

	var entries []Entry
	pageToken := ""
	for {
		call := s.service.Files.List().
			Q(query).
			Fields("nextPageToken, files(id, name, mimeType, modifiedTime)").
			PageSize(100).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		res, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list files (%s): %w", query, err)
		}
		for _, f := range res.Files {
			entries = append(entries, Entry{
				ID:           f.Id,
				Name:         f.Name,
				MimeType:     f.MimeType,
				ModifiedTime: f.ModifiedTime,
			})
		}
		if res.NextPageToken == "" {
			break
		}
		pageToken = res.NextPageToken
	}
	return entries, nil
}

func (s *DriveStore) CreateFolder(ctx context.Context, name, parentID string) (Entry, error) {
	meta := &drive.File{
		Name:     name,
		MimeType: MimeFolder,
	}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}

	f, err := s.service.Files.Create(meta).Fields("id, name, mimeType, modifiedTime").Context(ctx).Do()
	if err != nil {
		return Entry{}, fmt.Errorf("create folder %q: %w", name, err)
	}
	return Entry{ID: f.Id, Name: f.Name, MimeType: f.MimeType, ModifiedTime: f.ModifiedTime}, nil
}

func (s *DriveStore) Upload(ctx context.Context, name string, data []byte, parentID, mimeType, existingID string) (Entry, error) {
	fields := googleapi.Field("id, name, mimeType, modifiedTime")

	if existingID != "" {
		f, err := s.service.Files.Update(existingID, &drive.File{}).
			Media(bytes.NewReader(data)).
			Fields(fields).
			Context(ctx).
			Do()
		if err != nil {
			return Entry{}, fmt.Errorf("overwrite %q: %w", name, err)
		}
		return Entry{ID: f.Id, Name: f.Name, MimeType: f.MimeType, ModifiedTime: f.ModifiedTime}, nil
	}

	meta := &drive.File{Name: name, MimeType: mimeType}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}
	f, err := s.service.Files.Create(meta).
		Media(bytes.NewReader(data)).
		Fields(fields).
		Context(ctx).
		Do()
	if err != nil {
		return Entry{}, fmt.Errorf("upload %q: %w", name, err)
	}
	return Entry{ID: f.Id, Name: f.Name, MimeType: f.MimeType, ModifiedTime: f.ModifiedTime}, nil
}

func (s *DriveStore) Download(ctx context.Context, id string) ([]byte, error) {
	res, err := s.service.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", id, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read download %s: %w", id, err)
	}
	return data, nil
}

func (s *DriveStore) Delete(ctx context.Context, id string) error {
	if err := s.service.Files.Delete(id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

// buildQuery renders a Query as a Drive search expression.
func buildQuery(q Query) string {
	terms := []string{"trashed = false"}
	if q.Name != "" {
		terms = append(terms, fmt.Sprintf("name = '%s'", escapeQueryValue(q.Name)))
	}
	if q.ParentID != "" {
		terms = append(terms, fmt.Sprintf("'%s' in parents", escapeQueryValue(q.ParentID)))
	}
	if q.MimeType != "" {
		terms = append(terms, fmt.Sprintf("mimeType = '%s'", escapeQueryValue(q.MimeType)))
	}
	return strings.Join(terms, " and ")
}

func escapeQueryValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `'`, `\'`)
}
