package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/theforce/internal/middleware"
	"github.com/hitoshi/theforce/internal/model"
)

func TestRouter_Health(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decodeBody[healthResponse](t, w)
	if body.Status != "ok" || body.Database != "ok" {
		t.Errorf("body = %+v, want ok/ok", body)
	}
}

func TestRouter_HealthDatabaseDown(t *testing.T) {
	env := newTestEnv(t)
	env.health.err = errors.New("database is locked")

	w := env.do(t, http.MethodGet, "/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestRouter_Metrics(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "# metrics") {
		t.Errorf("metrics handler not mounted: %s", w.Body.String())
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodOptions, "/api/sessions", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "*")
	}
}

func TestRouter_RateLimitAppliesToAPIOnly(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{Rate: 0.01, Burst: 1, CleanupInterval: time.Minute}, testLogger())
	defer rl.Stop()

	router := NewRouter(&RouterDeps{
		Logger:        testLogger(),
		RateLimiter:   rl,
		HealthChecker: &mockHealthChecker{},
		Connectivity:  &mockConnectivity{connected: true},
	})

	call := func(path string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "192.0.2.10:5555"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	if code := call("/api/connectivity"); code != http.StatusOK {
		t.Fatalf("1回目: status = %d, want %d", code, http.StatusOK)
	}
	if code := call("/api/connectivity"); code != http.StatusTooManyRequests {
		t.Errorf("2回目: status = %d, want %d", code, http.StatusTooManyRequests)
	}
	for i := 0; i < 3; i++ {
		if code := call("/health"); code != http.StatusOK {
			t.Errorf("/health はレート制限の対象外: status = %d", code)
		}
	}
}

func TestRouter_UnknownSession(t *testing.T) {
	env := newTestEnv(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/sessions/missing"},
		{http.MethodGet, "/api/sessions/missing/events"},
		{http.MethodPut, "/api/sessions/missing/favorite"},
		{http.MethodDelete, "/api/sessions/missing/favorite"},
		{http.MethodPost, "/api/sessions/missing/favorite/toggle"},
		{http.MethodPost, "/api/sessions/missing/retry"},
		{http.MethodDelete, "/api/sessions/missing"},
	}

	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			w := env.do(t, p.method, p.path, "")
			if w.Code != http.StatusNotFound {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
			}
			if body := parseAPIErrorResponse(t, w); body["code"] != model.ErrCodeSessionNotFound {
				t.Errorf("code = %q, want %q", body["code"], model.ErrCodeSessionNotFound)
			}
		})
	}
}

func TestRouter_PanicReturnsUnifiedError(t *testing.T) {
	router := NewRouter(&RouterDeps{
		Logger:           testLogger(),
		CharacterService: &mockCharacterService{},
	})

	// CatalogServiceがnilのためpanicし、Recoveryが500を返す
	req := httptest.NewRequest(http.MethodGet, "/api/films", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if body := parseAPIErrorResponse(t, w); body["code"] != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want %q", body["code"], "INTERNAL_ERROR")
	}
}
