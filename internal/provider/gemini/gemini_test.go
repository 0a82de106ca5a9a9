package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vikiysara/sprout-backend/internal/provider"
)

func newTestClient(serverURL string) *Client {
	return &Client{
		apiKey:     "test-key",
		baseURL:    serverURL,
		httpClient: http.DefaultClient,
	}
}

func TestGenerate_Mock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text != "hello" {
			t.Errorf("unexpected request contents: %+v", req.Contents)
		}

		resp := geminiResponse{
			Candidates: []geminiCandidate{
				{
					Content: geminiContent{
						Parts: []geminiPart{{Text: "Hi "}, {Text: "there!"}},
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	text, err := c.Generate(context.Background(), "gemini-2.0-flash", "hello")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "Hi there!" {
		t.Errorf("Expected 'Hi there!', got %q", text)
	}
}

func TestGenerate_StatusClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   provider.ErrorKind
	}{
		{http.StatusTooManyRequests, provider.KindRateLimited},
		{http.StatusNotFound, provider.KindNotFound},
		{http.StatusInternalServerError, provider.KindTransient},
		{http.StatusServiceUnavailable, provider.KindTransient},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
		}))

		c := newTestClient(server.URL)
		_, err := c.Generate(context.Background(), "gemini-2.0-flash", "hello")
		server.Close()

		if err == nil {
			t.Fatalf("status %d: expected error, got nil", tc.status)
		}
		var pe *provider.Error
		if !errors.As(err, &pe) {
			t.Fatalf("status %d: expected *provider.Error, got %T", tc.status, err)
		}
		if pe.Kind != tc.kind {
			t.Errorf("status %d: expected kind %v, got %v", tc.status, tc.kind, pe.Kind)
		}
		if pe.StatusCode != tc.status {
			t.Errorf("status %d: got status %d in error", tc.status, pe.StatusCode)
		}
		if provider.KindOf(err) != tc.kind {
			t.Errorf("status %d: KindOf mismatch", tc.status)
		}
	}
}

func TestGenerate_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.Generate(context.Background(), "gemini-2.0-flash", "hello")
	if err == nil {
		t.Fatal("expected error for empty candidates")
	}
	if provider.KindOf(err) != provider.KindTransient {
		t.Errorf("expected transient classification, got %v", provider.KindOf(err))
	}
}

func TestGenerate_ContextCancelled(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	c := newTestClient(server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Generate(ctx, "gemini-2.0-flash", "hello")
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	// Network-level failures are not *provider.Error and classify transient.
	if provider.KindOf(err) != provider.KindTransient {
		t.Errorf("expected transient classification, got %v", provider.KindOf(err))
	}
}
