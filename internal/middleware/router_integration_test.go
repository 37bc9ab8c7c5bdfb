package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/platfeed/internal/model"
)

// newTestRouter は公開ルートと認証必須ルートを持つchi.Routerを構築する。
func newTestRouter(rl *RateLimiter) http.Handler {
	claim := model.Claim{UserID: "user-router-test", Username: "alice", Platform: model.PlatformTwitter}

	r := chi.NewRouter()
	r.Use(NewCORSMiddleware("http://localhost:3000"))

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
	})

	r.With(rl.AuthMiddleware()).Post("/api/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Group(func(r chi.Router) {
		r.Use(NewAuthMiddleware(tokenVerifier(claim)))
		r.Use(rl.GeneralMiddleware())

		r.Get("/api/protected", func(w http.ResponseWriter, r *http.Request) {
			userID, _ := UserIDFromContext(r.Context())
			json.NewEncoder(w).Encode(map[string]string{"user_id": userID})
		})
	})

	return r
}

func TestRouterIntegration_PublicRoute_NoToken(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	defer rl.Stop()

	w := httptest.NewRecorder()
	newTestRouter(rl).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouterIntegration_ProtectedRoute_WithMiddlewareChain(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    2,
		AuthRate:        1,
		AuthBurst:       10,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	router := newTestRouter(rl)

	// トークンなしは401
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/protected", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("without token: status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	// 有効なトークンはバースト分（2回）通る
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode: %v", err)
		}
		if body["user_id"] != "user-router-test" {
			t.Errorf("user_id = %q, want %q", body["user_id"], "user-router-test")
		}
	}

	// 3回目は429
	req := httptest.NewRequest(http.MethodGet, "/api/protected", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w3 := httptest.NewRecorder()
	router.ServeHTTP(w3, req)
	if w3.Code != http.StatusTooManyRequests {
		t.Errorf("request 3: status = %d, want %d", w3.Code, http.StatusTooManyRequests)
	}
	if got := w3.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("CORS header missing on 429: %q", got)
	}
}

func TestRouterIntegration_PreflightSkipsAuth(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	defer rl.Stop()

	w := httptest.NewRecorder()
	newTestRouter(rl).ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/protected", nil))

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
}
