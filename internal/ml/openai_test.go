package ml

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openai/openai-go"
)

// sentRequest is the chat completions body as seen on the wire
type sentRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Messages  []struct {
		Role    string `json:"role"`
		Content []struct {
			Type     string `json:"type"`
			Text     string `json:"text"`
			ImageURL *struct {
				URL string `json:"url"`
			} `json:"image_url"`
		} `json:"content"`
	} `json:"messages"`
}

func newTestModel(t *testing.T, handler http.HandlerFunc) *OpenAIModel {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	m, err := NewOpenAIModelFactory(OpenAIConfig{
		APIKey:  "sk-test",
		BaseURL: srv.URL + "/v1",
		Timeout: 5 * time.Second,
	}).CreateModel()
	if err != nil {
		t.Fatalf("create model: %v", err)
	}
	if err := m.Load(context.Background()); err != nil {
		t.Fatalf("load model: %v", err)
	}
	return m.(*OpenAIModel)
}

func TestOpenAIModel_RequestShape(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected authorization header %q", got)
		}

		var req sentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.Model != "gpt-4o" || req.MaxTokens != 300 {
			t.Errorf("unexpected model/max_tokens: %s/%d", req.Model, req.MaxTokens)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("expected a single user message, got %+v", req.Messages)
			return
		}
		parts := req.Messages[0].Content
		if len(parts) != 2 {
			t.Errorf("expected 2 content parts, got %d", len(parts))
			return
		}
		if parts[0].Type != "text" || parts[0].Text != AnalysisPrompt {
			t.Errorf("first part should be the prompt, got %+v", parts[0])
		}
		if parts[1].Type != "image_url" || parts[1].ImageURL == nil || parts[1].ImageURL.URL != "https://img.example.com/tray.jpg" {
			t.Errorf("second part should be the image, got %+v", parts[1])
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"김치\": \"8시\"}"}}]}`))
	})

	reply, err := m.Complete(context.Background(), "https://img.example.com/tray.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != `{"김치": "8시"}` {
		t.Errorf("unexpected reply %q", reply)
	}
}

func TestOpenAIModel_ProviderError(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid image.","type":"invalid_request_error","param":null,"code":"invalid_image"}}`))
	})

	_, err := m.Complete(context.Background(), "data:image/jpeg;base64,AAAA")
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *openai.Error, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("unexpected status %d", apiErr.StatusCode)
	}
	if !IsInvalidImage(err) {
		t.Error("expected invalid image classification")
	}
}

func TestOpenAIModel_ServerErrorNotRetriedByClient(t *testing.T) {
	var calls atomic.Int32
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	})

	_, err := m.Complete(context.Background(), "https://img.example.com/tray.jpg")
	if err == nil {
		t.Fatal("expected error")
	}
	if IsInvalidImage(err) {
		t.Errorf("unexpected invalid image classification: %v", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected a single request, got %d", n)
	}
}

func TestOpenAIModel_NoChoices(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})

	if _, err := m.Complete(context.Background(), "https://img.example.com/tray.jpg"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestOpenAIModel_NotLoaded(t *testing.T) {
	m := &OpenAIModel{config: OpenAIConfig{APIKey: "sk-test"}}
	if _, err := m.Complete(context.Background(), "x"); err == nil {
		t.Fatal("expected error from unloaded model")
	}
}
