package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeSessions struct{ n int }

func (s fakeSessions) Len(context.Context) (int, error) { return s.n, nil }

func TestHealth(t *testing.T) {
	h := NewRouter(Deps{Values: fakePinger{}, Sessions: fakeSessions{n: 4}})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["status"] != "healthy" || got["database"] != "ok" || got["sessions"] != float64(4) {
		t.Fatalf("unexpected body %v", got)
	}
}

func TestHealthDegraded(t *testing.T) {
	h := NewRouter(Deps{Values: fakePinger{err: errors.New("down")}, Sessions: fakeSessions{}})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestHeartbeat(t *testing.T) {
	h := NewRouter(Deps{Values: fakePinger{}, Sessions: fakeSessions{}})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestWebhookMountedOnlyWhenConfigured(t *testing.T) {
	called := false
	hook := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	h := NewRouter(Deps{Values: fakePinger{}, Sessions: fakeSessions{}, Webhook: hook})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, WebhookPath, nil))
	if !called || w.Code != http.StatusOK {
		t.Fatalf("webhook not served: called=%v status=%d", called, w.Code)
	}

	h = NewRouter(Deps{Values: fakePinger{}, Sessions: fakeSessions{}})
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, WebhookPath, nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
