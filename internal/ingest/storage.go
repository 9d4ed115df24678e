package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Storage keeps uploaded images somewhere the model provider can fetch them
type Storage interface {
	// Save stores the image under name and returns its public URL
	Save(ctx context.Context, name, contentType string, r io.Reader) (string, error)
	// Delete removes a stored image; missing images are not an error
	Delete(ctx context.Context, name string) error
}

// LocalStorage writes uploads to a flat directory that the server exposes
// as static files
type LocalStorage struct {
	dir     string
	baseURL string // base URL plus public path, no trailing slash
}

// NewLocalStorage creates the upload directory if needed
func NewLocalStorage(dir, baseURL, publicPath string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	base := strings.TrimRight(baseURL, "/") + "/" + strings.Trim(publicPath, "/")
	return &LocalStorage{dir: dir, baseURL: strings.TrimRight(base, "/")}, nil
}

// Dir returns the upload directory
func (s *LocalStorage) Dir() string { return s.dir }

func (s *LocalStorage) Save(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	path := filepath.Join(s.dir, filepath.Base(name))

	// O_EXCL: never overwrite another upload
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close file: %w", err)
	}

	return s.baseURL + "/" + url.PathEscape(name), nil
}

func (s *LocalStorage) Delete(ctx context.Context, name string) error {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(name)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
