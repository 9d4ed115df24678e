package ml

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeModel replays scripted replies and errors
type fakeModel struct {
	replies []string
	errs    []error
	calls   int
	refs    []string
}

func (f *fakeModel) Load(ctx context.Context) error { return nil }

func (f *fakeModel) Complete(ctx context.Context, imageURL string) (string, error) {
	i := f.calls
	f.calls++
	f.refs = append(f.refs, imageURL)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return "", errors.New("no scripted reply")
}

func fastRetry() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: time.Millisecond, ShouldRetry: IsInvalidImage}
}

func TestAnalyzer_Analyze(t *testing.T) {
	model := &fakeModel{replies: []string{`{"흰쌀밥": "7시", "된장국": "11시", "김치": "8시"}`}}
	a := NewAnalyzer(model, fastRetry(), nil)

	resp, err := a.Analyze(context.Background(), "https://img.example.com/tray.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.FoodPositions) != 3 || resp.FoodPositions[1].Food != "된장국" || resp.FoodPositions[1].Position != "11시" {
		t.Errorf("unexpected positions %+v", resp.FoodPositions)
	}
	if model.refs[0] != "https://img.example.com/tray.jpg" {
		t.Errorf("image reference not passed through: %q", model.refs[0])
	}
}

func TestAnalyzer_RetriesThenSucceeds(t *testing.T) {
	invalid := errInvalidImage
	model := &fakeModel{
		errs:    []error{invalid, invalid, nil},
		replies: []string{"", "", `{"김치": "8시"}`},
	}
	a := NewAnalyzer(model, fastRetry(), nil)

	resp, err := a.Analyze(context.Background(), "data:image/jpeg;base64,AAAA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.calls != 3 {
		t.Errorf("expected 3 calls, got %d", model.calls)
	}
	if len(resp.FoodPositions) != 1 {
		t.Errorf("unexpected positions %+v", resp.FoodPositions)
	}
}

func TestAnalyzer_ParseFailureIsNotRetried(t *testing.T) {
	model := &fakeModel{replies: []string{"not json", `{"김치": "8시"}`}}
	a := NewAnalyzer(model, fastRetry(), nil)

	resp, err := a.Analyze(context.Background(), "https://img.example.com/tray.jpg")
	if !errors.Is(err, ErrParseResponse) {
		t.Fatalf("expected ErrParseResponse, got %v", err)
	}
	if resp != nil {
		t.Errorf("expected no response, got %+v", resp)
	}
	if model.calls != 1 {
		t.Errorf("expected 1 call, got %d", model.calls)
	}
}
