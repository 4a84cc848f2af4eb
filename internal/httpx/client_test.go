package httpx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	clierr "github.com/ggonzalez94/bridgectl/internal/errors"
)

func TestDoJSONRetriesServerError(t *testing.T) {
	var count int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&count, 1)
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"x"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := New(2*time.Second, 1)
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	var out map[string]any
	if _, err := client.DoJSON(context.Background(), req, &out); err != nil {
		t.Fatalf("DoJSON failed: %v", err)
	}
	if out["ok"] != true {
		t.Fatalf("unexpected response: %#v", out)
	}
}

func TestDoBodyJSONSendsBodyOnRetry(t *testing.T) {
	var count int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(strings.Builder)
		_, _ = io.Copy(buf, r.Body)
		if buf.String() != `{"q":1}` {
			t.Errorf("unexpected body on attempt %d: %q", atomic.LoadInt32(&count)+1, buf.String())
		}
		if atomic.AddInt32(&count, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out map[string]any
	_, err := DoBodyJSON(context.Background(), New(2*time.Second, 1), http.MethodPost, srv.URL, []byte(`{"q":1}`), map[string]string{"Authorization": "Bearer x"}, &out)
	if err != nil {
		t.Fatalf("DoBodyJSON failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected two attempts, got %d", count)
	}
}

func TestDoJSONMapsStatusCodes(t *testing.T) {
	cases := map[int]clierr.Code{
		http.StatusUnauthorized: clierr.CodeAuth,
		http.StatusNotFound:     clierr.CodeNotFound,
		http.StatusBadRequest:   clierr.CodeUnsupported,
		http.StatusBadGateway:   clierr.CodeUnavailable,
	}
	for status, want := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
		_, err := New(time.Second, 0).DoJSON(context.Background(), req, &map[string]any{})
		srv.Close()
		if clierr.CodeOf(err) != want {
			t.Fatalf("status %d: expected code %d, got %v", status, want, err)
		}
	}
}

func TestDoJSONDeadlineIsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	_, err := New(5*time.Second, 2).DoJSON(ctx, req, nil)
	if clierr.CodeOf(err) != clierr.CodeTimeout {
		t.Fatalf("expected timeout code, got %v", err)
	}
}

func TestRateLimitSpacesRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := New(time.Second, 0, WithRateLimit(20, 1))
	start := time.Now()
	for i := 0; i < 3; i++ {
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
		if _, err := client.DoJSON(context.Background(), req, nil); err != nil {
			t.Fatalf("DoJSON failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("expected limiter to space requests, took %s", elapsed)
	}
}
