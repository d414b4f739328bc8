package files

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"mcpgate/pkg/logging"
)

const (
	syncConfigName = "git_config.json"
	tempSuffix     = ".tmp"
)

var (
	ErrNotFound        = errors.New("file not found")
	ErrExists          = errors.New("file already exists")
	ErrInvalidFilename = errors.New("invalid filename")
	ErrInvalidUser     = errors.New("invalid user id for storage")
)

// Indexer is the subset of the RAG API the store uses.
type Indexer interface {
	Embed(ctx context.Context, fileID, content string, metadata map[string]interface{}) error
	DeleteEmbedding(ctx context.Context, fileID string) error
	Query(ctx context.Context, req QueryRequest) (*QueryResponse, error)
}

// FileInfo describes one stored file.
type FileInfo struct {
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// SearchHit is a formatted search result.
type SearchHit struct {
	Filename string  `json:"filename"`
	Score    float64 `json:"score"`
	Excerpt  string  `json:"excerpt"`
}

// Store manages user directories under root.
type Store struct {
	root    string
	indexer Indexer
	now     func() time.Time
}

// NewStore creates a store rooted at root.
func NewStore(root string, indexer Indexer) *Store {
	return &Store{root: root, indexer: indexer, now: time.Now}
}

// FileID is the RAG document id for a user's file.
func FileID(userID, filename string) string {
	return fmt.Sprintf("user_%s_%s", userID, filename)
}

// ValidateFilename rejects names that could escape the user directory or
// collide with internal files.
func ValidateFilename(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: name is empty", ErrInvalidFilename)
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidFilename, name)
	case name == "." || name == ".." || strings.Contains(name, ".."):
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: hidden files are not allowed", ErrInvalidFilename)
	case name == syncConfigName || strings.HasSuffix(name, tempSuffix):
		return fmt.Errorf("%w: %q is reserved", ErrInvalidFilename, name)
	}
	return nil
}

func (s *Store) userDir(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" || strings.ContainsAny(userID, `/\`) || strings.Contains(userID, "..") {
		return "", ErrInvalidUser
	}
	dir := filepath.Join(s.root, userID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create user directory: %w", err)
	}
	return dir, nil
}

func (s *Store) filePath(userID, filename string) (string, error) {
	if err := ValidateFilename(filename); err != nil {
		return "", err
	}
	dir, err := s.userDir(userID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filename), nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Upload creates filename and indexes it. When indexing fails the file is
// removed again and the error returned.
func (s *Store) Upload(ctx context.Context, userID, filename, content string) (string, error) {
	path, err := s.filePath(userID, filename)
	if err != nil {
		return "", err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if errors.Is(err, os.ErrExist) {
		return "", fmt.Errorf("%w: %s", ErrExists, filename)
	}
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write file: %w", err)
	}

	metadata := map[string]interface{}{
		"user_id":    userID,
		"filename":   filename,
		"created_at": s.now().UTC().Format(time.RFC3339),
		"size":       len(content),
	}
	if err := s.indexer.Embed(ctx, FileID(userID, filename), content, metadata); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("index file: %w", err)
	}

	logging.Info("Files", "Stored %s for user %s (%d bytes)", filename, logging.TruncateID(userID), len(content))
	return path, nil
}

var unsafeTitleChars = regexp.MustCompile(`[^\w\s-]`)

// NoteFilename turns a note title into a markdown filename.
func NoteFilename(title string) string {
	safe := strings.TrimSpace(unsafeTitleChars.ReplaceAllString(title, ""))
	return strings.ReplaceAll(safe, " ", "_") + ".md"
}

// CreateNote stores a markdown note with a title header.
func (s *Store) CreateNote(ctx context.Context, userID, title, content string) (string, error) {
	filename := NoteFilename(title)
	if filename == ".md" {
		return "", fmt.Errorf("%w: title %q has no usable characters", ErrInvalidFilename, title)
	}
	if _, err := s.Upload(ctx, userID, filename, fmt.Sprintf("# %s\n\n%s", title, content)); err != nil {
		return "", err
	}
	return filename, nil
}

// List returns the user's files sorted by name.
func (s *Store) List(userID string) ([]FileInfo, error) {
	dir, err := s.userDir(userID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read user directory: %w", err)
	}

	var out []FileInfo
	for _, entry := range entries {
		if !entry.Type().IsRegular() || ValidateFilename(entry.Name()) != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, FileInfo{Filename: entry.Name(), Size: info.Size(), Modified: info.ModTime().UTC()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}

// Read returns the content of filename.
func (s *Store) Read(userID, filename string) (string, error) {
	path, err := s.filePath(userID, filename)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return string(data), nil
}

// Modify replaces the content of an existing file and re-indexes it.
func (s *Store) Modify(ctx context.Context, userID, filename, content string) error {
	path, err := s.filePath(userID, filename)
	if err != nil {
		return err
	}
	if !exists(path) {
		return fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	if err := writeFileAtomic(path, []byte(content), 0o640); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	fileID := FileID(userID, filename)
	if err := s.indexer.DeleteEmbedding(ctx, fileID); err != nil {
		logging.Warn("Files", "Failed to drop old embeddings for %s: %v", filename, err)
	}
	metadata := map[string]interface{}{
		"user_id":     userID,
		"filename":    filename,
		"modified_at": s.now().UTC().Format(time.RFC3339),
		"size":        len(content),
	}
	if err := s.indexer.Embed(ctx, fileID, content, metadata); err != nil {
		return fmt.Errorf("re-index file: %w", err)
	}
	return nil
}

// Delete removes filename. Removing it from the index is best effort.
func (s *Store) Delete(ctx context.Context, userID, filename string) error {
	path, err := s.filePath(userID, filename)
	if err != nil {
		return err
	}
	if !exists(path) {
		return fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	if err := s.indexer.DeleteEmbedding(ctx, FileID(userID, filename)); err != nil {
		logging.Warn("Files", "Failed to remove %s from index: %v", filename, err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// Search runs a semantic search restricted to the user's documents.
func (s *Store) Search(ctx context.Context, userID, query string, maxResults int) ([]SearchHit, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	resp, err := s.indexer.Query(ctx, QueryRequest{
		Query:   query,
		Filters: map[string]string{"user_id": userID},
		TopK:    maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	hits := make([]SearchHit, 0, len(resp.Results))
	for _, r := range resp.Results {
		filename, _ := r.Metadata["filename"].(string)
		if filename == "" {
			filename = "unknown"
		}
		hits = append(hits, SearchHit{Filename: filename, Score: r.Score, Excerpt: r.Text})
	}
	return hits, nil
}

// writeFileAtomic writes data to a temp file in the same directory and renames it over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + tempSuffix
	if err := os.WriteFile(tmp, data, perm); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
