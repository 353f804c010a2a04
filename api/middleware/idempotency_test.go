package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/rmoralesdev/contentmint-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		pattern string
		want    time.Duration
		ok      bool
	}{
		{"purchase", http.MethodPost, "/api/v1/listings/123/purchase", criticalIdempotencyTTL, true},
		{"listing create", http.MethodPost, "/api/v1/listings", defaultIdempotencyTTL, true},
		{"affiliate enroll", http.MethodPost, "/api/v1/listings/123/affiliates", defaultIdempotencyTTL, true},
		{"listing fetch", http.MethodGet, "/api/v1/listings/123", 0, false},
		{"non idempotent", http.MethodPost, "/api/v1/transactions", 0, false},
	}

	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, tt.pattern)
		if ok != tt.ok {
			t.Fatalf("%s: expected ok=%v got %v", tt.name, tt.ok, ok)
		}
		if ok && ttl != tt.want {
			t.Fatalf("%s: expected ttl=%v got %v", tt.name, tt.want, ttl)
		}
	}
}

func TestIdempotencyMiddlewareRequiresHeader(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusCreated)
	})

	req := requestWithPattern(http.MethodPost, "/api/v1/listings/123/purchase", "/api/v1/listings/{listingID}/purchase", strings.NewReader(`{"buyer_wallet":"0xabc"}`))
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if handlerCalled {
		t.Fatalf("handler should not run without idempotency key")
	}
}

func TestIdempotencyMiddlewareReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	body := `{"buyer_wallet":"0xabc"}`
	req := requestWithPattern(http.MethodPost, "/api/v1/listings/123/purchase", "/api/v1/listings/{listingID}/purchase", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "abc")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected first response 201 got %d", resp.Code)
	}

	replay := requestWithPattern(http.MethodPost, "/api/v1/listings/123/purchase", "/api/v1/listings/{listingID}/purchase", strings.NewReader(body))
	replay.Header.Set("Idempotency-Key", "abc")
	replayResp := httptest.NewRecorder()
	mw(handler).ServeHTTP(replayResp, replay)

	if replayResp.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201 got %d", replayResp.Code)
	}
	if replayResp.Body.String() != `{"ok":true}` {
		t.Fatalf("unexpected replayed body %q", replayResp.Body.String())
	}
	if calls != 1 {
		t.Fatalf("handler should run once, ran %d times", calls)
	}
}

func TestIdempotencyMiddlewareRejectsKeyReuse(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	first := requestWithPattern(http.MethodPost, "/api/v1/listings/123/purchase", "/api/v1/listings/{listingID}/purchase", strings.NewReader(`{"buyer_wallet":"0xabc"}`))
	first.Header.Set("Idempotency-Key", "abc")
	mw(handler).ServeHTTP(httptest.NewRecorder(), first)

	second := requestWithPattern(http.MethodPost, "/api/v1/listings/123/purchase", "/api/v1/listings/{listingID}/purchase", strings.NewReader(`{"buyer_wallet":"0xother"}`))
	second.Header.Set("Idempotency-Key", "abc")
	resp := httptest.NewRecorder()
	mw(handler).ServeHTTP(resp, second)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected idempotency error code, got %q", envelope.Error.Code)
	}
}

func TestIdempotencySkipsUnmatchedRoutes(t *testing.T) {
	store := newFakeStore()
	mw := Idempotency(store, nil)
	var calls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	req := requestWithPattern(http.MethodGet, "/api/v1/listings/123", "/api/v1/listings/{listingID}", nil)
	mw(handler).ServeHTTP(httptest.NewRecorder(), req)

	if calls != 1 {
		t.Fatalf("handler should run for unmatched route")
	}
	if len(store.data) != 0 {
		t.Fatalf("no record should be stored for unmatched route")
	}
}
