package ingest

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/franckalain/traypositions/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry records stored uploads so they can be expired later
type Registry interface {
	SaveUpload(ctx context.Context, upload *models.Upload) error
}

// RehostOptions tunes how rehosted URLs are built and checked
type RehostOptions struct {
	ForceHTTPS      bool
	VerifyReachable bool
	ProbeClient     *http.Client
}

// Rehoster stores uploaded images and hands back a public URL to them
type Rehoster struct {
	storage  Storage
	registry Registry
	opts     RehostOptions
	logger   *zap.Logger
}

// NewRehoster creates a rehoster; registry may be nil when uploads are kept forever
func NewRehoster(storage Storage, registry Registry, opts RehostOptions, logger *zap.Logger) *Rehoster {
	if opts.ProbeClient == nil {
		opts.ProbeClient = &http.Client{Timeout: 5 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rehoster{storage: storage, registry: registry, opts: opts, logger: logger}
}

// FileName returns a fresh unique name keeping the original extension, lowercased
func FileName(original string) string {
	return uuid.New().String() + strings.ToLower(filepath.Ext(original))
}

// Rehost stores data and returns a hosted reference to it
func (h *Rehoster) Rehost(ctx context.Context, original, contentType string, data []byte) (Reference, error) {
	name := FileName(original)

	publicURL, err := h.storage.Save(ctx, name, contentType, bytes.NewReader(data))
	if err != nil {
		return Reference{}, &IngestError{Op: "store upload", Err: err}
	}
	if h.opts.ForceHTTPS {
		if publicURL, err = forceHTTPS(publicURL); err != nil {
			h.discard(ctx, name)
			return Reference{}, &IngestError{Op: "build public url", Err: err}
		}
	}

	h.logger.Info("stored upload",
		zap.String("name", name),
		zap.String("original", original),
		zap.Int("bytes", len(data)),
		zap.String("url", publicURL))

	if h.registry != nil {
		upload := &models.Upload{
			Name:         name,
			OriginalName: original,
			URL:          publicURL,
			CreatedAt:    time.Now().UTC(),
		}
		// an unrecorded upload would never be swept
		if err := h.registry.SaveUpload(ctx, upload); err != nil {
			h.discard(ctx, name)
			return Reference{}, &IngestError{Op: "record upload", Err: err}
		}
	}

	if h.opts.VerifyReachable {
		if err := Probe(ctx, h.opts.ProbeClient, publicURL); err != nil {
			return Reference{}, &IngestError{Op: "verify upload", Err: err}
		}
	}

	return Reference{Kind: KindHosted, URL: publicURL}, nil
}

func (h *Rehoster) discard(ctx context.Context, name string) {
	if err := h.storage.Delete(ctx, name); err != nil {
		h.logger.Warn("failed to remove upload", zap.String("name", name), zap.Error(err))
	}
}

func forceHTTPS(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	u.Scheme = "https"
	return u.String(), nil
}

// Probe checks that target is servable, with HEAD and then GET for servers
// that do not allow HEAD
func Probe(ctx context.Context, client *http.Client, target string) error {
	status, err := probe(ctx, client, http.MethodHead, target)
	if err == nil && status == http.StatusMethodNotAllowed {
		status, err = probe(ctx, client, http.MethodGet, target)
	}
	if err != nil {
		return fmt.Errorf("image not reachable at %s: %w", target, err)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("image not reachable at %s: status %d", target, status)
	}
	return nil
}

func probe(ctx context.Context, client *http.Client, method, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
