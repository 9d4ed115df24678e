package ingest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/franckalain/traypositions/internal/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type expiryRegistry struct {
	uploads map[string]*models.Upload
}

func (r *expiryRegistry) ExpiredUploads(ctx context.Context, before time.Time, limit int) ([]*models.Upload, error) {
	var out []*models.Upload
	for _, u := range r.uploads {
		if u.CreatedAt.Before(before) && len(out) < limit {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *expiryRegistry) DeleteUpload(ctx context.Context, name string) error {
	delete(r.uploads, name)
	return nil
}

func TestSweeper_RemovesOnlyExpired(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewLocalStorage(dir, "http://tray.example.com", "/uploads")
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	registry := &expiryRegistry{uploads: map[string]*models.Upload{}}
	for name, age := range map[string]time.Duration{"old.jpg": 48 * time.Hour, "new.jpg": time.Hour} {
		if _, err := storage.Save(context.Background(), name, "image/jpeg", strings.NewReader("x")); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
		registry.uploads[name] = &models.Upload{Name: name, CreatedAt: now.Add(-age)}
	}

	s := NewSweeper(storage, registry, 24*time.Hour, time.Minute, nil)
	s.now = func() time.Time { return now }

	removed, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if _, ok := registry.uploads["new.jpg"]; !ok {
		t.Error("fresh upload should be kept")
	}
	if _, ok := registry.uploads["old.jpg"]; ok {
		t.Error("expired upload should be forgotten")
	}
}

func TestSweeper_LogsFullBatches(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewLocalStorage(dir, "http://tray.example.com", "/uploads")
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	registry := &expiryRegistry{uploads: map[string]*models.Upload{}}
	for i := 0; i < sweepBatch; i++ {
		name := fmt.Sprintf("%03d.jpg", i)
		if _, err := storage.Save(context.Background(), name, "image/jpeg", strings.NewReader("x")); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
		registry.uploads[name] = &models.Upload{Name: name, CreatedAt: now.Add(-48 * time.Hour)}
	}

	core, logs := observer.New(zap.InfoLevel)
	s := NewSweeper(storage, registry, 24*time.Hour, time.Minute, zap.New(core))
	s.now = func() time.Time { return now }

	removed, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != sweepBatch {
		t.Errorf("expected %d removed, got %d", sweepBatch, removed)
	}

	entries := logs.FilterMessage("expired uploads removed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one summary log, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["count"]; got != int64(sweepBatch) {
		t.Errorf("expected count %d, got %v", sweepBatch, got)
	}
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir(), "http://tray.example.com", "/uploads")
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}
	s := NewSweeper(storage, &expiryRegistry{uploads: map[string]*models.Upload{}}, time.Hour, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
