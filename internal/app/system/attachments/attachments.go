// Package attachments stores uploaded chat files in a flat directory and
// serves them back by generated filename.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dalemusser/parley/internal/domain/models"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// allowed maps accepted MIME types to the extension used when the original
// name has none.
var allowed = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",

	"video/mp4":        ".mp4",
	"video/x-msvideo":  ".avi",
	"video/x-matroska": ".mkv",
	"video/mpeg":       ".mpeg",
	"video/webm":       ".webm",

	"application/pdf":    ".pdf",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/vnd.ms-excel": ".xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": ".xlsx",
	"text/plain": ".txt",
}

// UnsupportedTypeError is returned for a MIME type outside the allow list.
type UnsupportedTypeError struct {
	MimeType string
}

func (e *UnsupportedTypeError) Error() string {
	return "Unsupported file format: " + e.MimeType
}

// Allowed reports whether mimeType may be uploaded. Parameters such as
// charset are ignored.
func Allowed(mimeType string) bool {
	_, ok := allowed[baseType(mimeType)]
	return ok
}

func baseType(mimeType string) string {
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// Store writes attachments under a root directory.
type Store struct {
	fs afero.Fs
}

// New returns a store rooted at dir on the OS filesystem, creating it if
// needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{fs: afero.NewBasePathFs(afero.NewOsFs(), dir)}, nil
}

// NewWithFs wraps an existing filesystem; tests pass afero.NewMemMapFs().
func NewWithFs(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

// Save validates mimeType, writes r under a fresh unique name and returns
// the metadata to persist with the message.
func (s *Store) Save(ctx context.Context, originalName, mimeType string, r io.Reader) (models.MediaFile, error) {
	mt := baseType(mimeType)
	ext, ok := allowed[mt]
	if !ok {
		return models.MediaFile{}, &UnsupportedTypeError{MimeType: mimeType}
	}
	name := uuid.NewString() + ext

	f, err := s.fs.OpenFile(rooted(name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return models.MediaFile{}, fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(f, readerWithContext(ctx, r)); err != nil {
		f.Close()
		_ = s.fs.Remove(rooted(name))
		return models.MediaFile{}, fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(rooted(name))
		return models.MediaFile{}, fmt.Errorf("close %s: %w", name, err)
	}

	return models.MediaFile{
		Filename:     name,
		OriginalName: path.Base(filepath.ToSlash(originalName)),
		MimeType:     mt,
	}, nil
}

// Remove deletes the named files, ignoring ones already gone.
func (s *Store) Remove(files []models.MediaFile) error {
	var errs []error
	for _, f := range files {
		if f.Filename == "" || strings.ContainsAny(f.Filename, `/\`) {
			continue
		}
		if err := s.fs.Remove(rooted(f.Filename)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Exists reports whether filename is stored.
func (s *Store) Exists(filename string) bool {
	if filename == "" || strings.ContainsAny(filename, `/\`) {
		return false
	}
	ok, err := afero.Exists(s.fs, rooted(filename))
	return err == nil && ok
}

// ListBefore returns the names of stored files last modified before cutoff.
func (s *Store) ListBefore(cutoff time.Time) ([]string, error) {
	infos, err := afero.ReadDir(s.fs, "/")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, fi := range infos {
		if fi.IsDir() || !fi.ModTime().Before(cutoff) {
			continue
		}
		names = append(names, fi.Name())
	}
	return names, nil
}

// Handler serves stored files by name. Directory listings are refused.
func (s *Store) Handler() http.Handler {
	files := http.FileServer(afero.NewHttpFs(s.fs))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" || strings.Contains(name, "/") || !s.Exists(name) {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; sandbox")
		files.ServeHTTP(w, r)
	})
}

// rooted anchors a bare filename at the store root.
func rooted(name string) string {
	return "/" + name
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	if ctx == nil {
		return r
	}
	return ctxReader{ctx: ctx, r: r}
}
