package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vadim/linkpilot/internal/retry"
	"github.com/vadim/linkpilot/internal/storage"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateText(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["model"] != "gpt-4o-mini" {
			t.Errorf("unexpected model %v", req["model"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"  Great post  "}}]}`))
	})

	c := New("sk-test", WithBaseURL(srv.URL+"/v1"), WithTextModel("gpt-4o-mini"))
	text, err := c.GenerateText(context.Background(), "Write about AI")
	if err != nil {
		t.Fatalf("GenerateText() error: %v", err)
	}
	if text != "Great post" {
		t.Errorf("text = %q", text)
	}
}

func TestGenerateText_StatusClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		terminal bool
	}{
		{"unauthorized", http.StatusUnauthorized, true},
		{"bad request", http.StatusBadRequest, true},
		{"rate limited", http.StatusTooManyRequests, false},
		{"server error", http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"invalid_request_error"}}`))
			})

			c := New("sk-test", WithBaseURL(srv.URL+"/v1"))
			_, err := c.GenerateText(context.Background(), "x")
			if err == nil {
				t.Fatal("expected error")
			}
			if retry.IsTerminal(err) != tt.terminal {
				t.Errorf("IsTerminal = %v, want %v (err %v)", retry.IsTerminal(err), tt.terminal, err)
			}
		})
	}
}

func TestMissingKeyIsTerminal(t *testing.T) {
	c := New("")
	if _, err := c.GenerateText(context.Background(), "x"); !errors.Is(err, ErrMissingAPIKey) || !retry.IsTerminal(err) {
		t.Errorf("expected terminal ErrMissingAPIKey, got %v", err)
	}
}

type memStore struct {
	data        []byte
	contentType string
}

func (m *memStore) UploadBytes(_ context.Context, prefix string, data []byte, contentType string) (*storage.UploadOutput, error) {
	m.data = data
	m.contentType = contentType
	return &storage.UploadOutput{Key: prefix + "/img.png", URL: "https://cdn.example.com/" + prefix + "/img.png"}, nil
}

func TestGenerateImage_UploadsToStore(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["response_format"] != "b64_json" {
			t.Errorf("unexpected response_format %v", req["response_format"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"created":1,"data":[{"b64_json":"` + payload + `"}]}`))
	})

	store := &memStore{}
	c := New("sk-test", WithBaseURL(srv.URL+"/v1"), WithImageStore(store))

	url, err := c.GenerateImage(context.Background(), "a chart going up")
	if err != nil {
		t.Fatalf("GenerateImage() error: %v", err)
	}
	if url != "https://cdn.example.com/generated/img.png" {
		t.Errorf("url = %q", url)
	}
	if string(store.data) != "png-bytes" || store.contentType != "image/png" {
		t.Errorf("unexpected upload %q %q", store.data, store.contentType)
	}
}

func TestFallback(t *testing.T) {
	text, err := Fallback{}.GenerateText(context.Background(), "Create a LinkedIn post about AI for Software professionals.\n\nKeep it short.")
	if err != nil {
		t.Fatalf("GenerateText() error: %v", err)
	}
	if !strings.HasPrefix(text, "A few thoughts on AI for Software professionals.") {
		t.Errorf("unexpected text %q", text)
	}
}
