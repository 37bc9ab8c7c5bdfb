package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/platfeed/internal/model"
)

// mockClaimVerifier はClaimVerifierのテスト用モック。
type mockClaimVerifier struct {
	verifyFn func(token string) (model.Claim, error)
}

func (m *mockClaimVerifier) Verify(token string) (model.Claim, error) {
	if m.verifyFn != nil {
		return m.verifyFn(token)
	}
	return model.Claim{}, model.NewUnauthenticatedError()
}

var _ ClaimVerifier = (*mockClaimVerifier)(nil)

// tokenVerifier は"valid-token"のみを受け付けるモックを返す。
func tokenVerifier(claim model.Claim) *mockClaimVerifier {
	return &mockClaimVerifier{
		verifyFn: func(token string) (model.Claim, error) {
			if token == "valid-token" {
				return claim, nil
			}
			return model.Claim{}, model.NewUnauthenticatedError()
		},
	}
}

// requestWithClaim はClaim注入済みのリクエストを生成する。
func requestWithClaim(method, path, userID string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	claim := model.Claim{UserID: userID, Username: "alice", Platform: model.PlatformTwitter}
	return req.WithContext(ContextWithClaim(req.Context(), claim))
}

func TestAuthMiddleware_ValidToken_InjectsClaim(t *testing.T) {
	want := model.Claim{UserID: "user-1", Username: "alice", Platform: model.PlatformTwitter}
	mw := NewAuthMiddleware(tokenVerifier(want))

	var got model.Claim
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := ClaimFromContext(r.Context())
		if err != nil {
			t.Fatalf("ClaimFromContext returned error: %v", err)
		}
		got = c
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/posts/twitter", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got != want {
		t.Errorf("claim = %+v, want %+v", got, want)
	}
}

func TestAuthMiddleware_RejectsMissingOrInvalidToken(t *testing.T) {
	mw := NewAuthMiddleware(tokenVerifier(model.Claim{UserID: "user-1"}))

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic valid-token"},
		{"bearer without token", "Bearer"},
		{"invalid token", "Bearer tampered"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/posts/twitter", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body.Code != model.ErrCodeUnauthenticated {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthenticated)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"bearer abc", "abc"},
		{"Bearer  padded ", "padded"},
		{"Token abc", ""},
		{"", ""},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		if got := BearerToken(req); got != tt.want {
			t.Errorf("BearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestClaimFromContext_Missing_ReturnsError(t *testing.T) {
	if _, err := ClaimFromContext(context.Background()); err == nil {
		t.Error("expected error for empty context")
	}
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for empty context")
	}
}

func TestUserIDFromContext_ReturnsClaimUserID(t *testing.T) {
	req := requestWithClaim(http.MethodGet, "/", "user-42")
	got, err := UserIDFromContext(req.Context())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "user-42" {
		t.Errorf("userID = %q, want %q", got, "user-42")
	}
}

// TestAuthMiddleware_VerifierErrorIsNotLeaked は検証器のエラー内容がレスポンスに出ないことを検証する。
func TestAuthMiddleware_VerifierErrorIsNotLeaked(t *testing.T) {
	mw := NewAuthMiddleware(&mockClaimVerifier{
		verifyFn: func(token string) (model.Claim, error) {
			return model.Claim{}, errors.New("signature mismatch for key kid-7")
		},
	})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer x")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Code != model.ErrCodeUnauthenticated {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthenticated)
	}
	if body.Message != model.NewUnauthenticatedError().Message {
		t.Errorf("message = %q, should be the generic message", body.Message)
	}
}
