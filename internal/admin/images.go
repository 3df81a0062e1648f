package admin

import (
	"bytes"
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

	"github.com/google/uuid"
)

var (
	ErrNotImage      = errors.New("file must be an image")
	ErrImageTooLarge = errors.New("image exceeds the upload limit")
	ErrEmptyUpload   = errors.New("empty upload")
)

// BlobStore persists uploaded objects and returns their public URL.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
}

// Images validates and stores destination images.
type Images struct {
	blobs    BlobStore
	maxBytes int64
	now      func() time.Time
}

func NewImages(blobs BlobStore, maxBytes int64) *Images {
	return &Images{blobs: blobs, maxBytes: maxBytes, now: time.Now}
}

// Upload reads at most the configured limit from r, checks that the content
// sniffs as image/*, and stores it under
// destinations/<unix millis>-<uuid>.<ext>.
func (im *Images) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, im.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("reading upload: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmptyUpload
	}
	if int64(len(data)) > im.maxBytes {
		return "", fmt.Errorf("%w of %d bytes", ErrImageTooLarge, im.maxBytes)
	}

	ctype := http.DetectContentType(data)
	if !strings.HasPrefix(ctype, "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrNotImage, ctype)
	}

	key := fmt.Sprintf("destinations/%d-%s.%s", im.now().UnixMilli(), uuid.NewString(), extension(filename, ctype))
	url, err := im.blobs.Put(ctx, key, data)
	if err != nil {
		return "", fmt.Errorf("storing image: %w", err)
	}
	return url, nil
}

func extension(filename, ctype string) string {
	if ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")); ext != "" {
		return ext
	}
	if exts, err := mime.ExtensionsByType(ctype); err == nil && len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return "img"
}

// LocalBlobStore writes objects below a directory that the HTTP server
// exposes at /uploads/.
type LocalBlobStore struct {
	dir     string
	baseURL string
}

func NewLocalBlobStore(dir, publicBaseURL string) *LocalBlobStore {
	return &LocalBlobStore{dir: dir, baseURL: strings.TrimRight(publicBaseURL, "/")}
}

func (s *LocalBlobStore) Put(_ context.Context, key string, data []byte) (string, error) {
	clean := path.Clean("/" + key)[1:]
	if clean == "" || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}

	dst := filepath.Join(s.dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("creating upload dir: %w", err)
	}

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", clean, err)
	}
	if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("writing %s: %w", clean, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", clean, err)
	}

	return s.baseURL + "/uploads/" + clean, nil
}
