package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	clierr "github.com/ggonzalez94/bridgectl/internal/errors"
	"github.com/ggonzalez94/bridgectl/internal/httpx"
)

func TestCompleteSendsChatRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header: %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-model" || len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "bridge 1 eth" {
			t.Errorf("unexpected request: %+v", req)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"sourceChain\":\"ethereum\"}"}}]}`))
	}))
	defer srv.Close()

	c := New(httpx.New(2*time.Second, 0), Config{Endpoint: srv.URL, Model: "test-model", APIKey: "sk-test"})
	got, err := c.Complete(context.Background(), "system", "bridge 1 eth")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != `{"sourceChain":"ethereum"}` {
		t.Fatalf("unexpected content: %s", got)
	}
}

func TestCompleteWithoutKey(t *testing.T) {
	c := New(httpx.New(time.Second, 0), Config{})
	if _, err := c.Complete(context.Background(), "s", "u"); clierr.CodeOf(err) != clierr.CodeAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()
	c := New(httpx.New(time.Second, 0), Config{Endpoint: srv.URL, APIKey: "k"})
	if _, err := c.Complete(context.Background(), "s", "u"); clierr.CodeOf(err) != clierr.CodeUnavailable {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}
