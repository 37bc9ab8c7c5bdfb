// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/platfeed/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// claimContextKey はリクエストコンテキストにClaimを格納するためのキー。
var claimContextKey = contextKey("claim")

// ClaimVerifier はアクセストークンを検証してClaimを返す。
type ClaimVerifier interface {
	Verify(token string) (model.Claim, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// Claimをリクエストコンテキストに注入するミドルウェアを返す。
// トークンの欠落・不正・期限切れはいずれも401 UNAUTHENTICATEDになる。
func NewAuthMiddleware(verifier ClaimVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claim, err := verifier.Verify(BearerToken(r))
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			if info := requestInfoFromContext(r.Context()); info != nil {
				info.claim = claim
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaim(r.Context(), claim)))
		})
	}
}

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// ヘッダーが無い、または形式が異なる場合は空文字列を返す。
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// ClaimFromContext はリクエストコンテキストからClaimを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func ClaimFromContext(ctx context.Context) (model.Claim, error) {
	claim, ok := ctx.Value(claimContextKey).(model.Claim)
	if !ok || claim.UserID == "" {
		return model.Claim{}, fmt.Errorf("claim not found in context")
	}
	return claim, nil
}

// ContextWithClaim はコンテキストにClaimを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithClaim(ctx context.Context, claim model.Claim) context.Context {
	return context.WithValue(ctx, claimContextKey, claim)
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	claim, err := ClaimFromContext(ctx)
	if err != nil {
		return "", fmt.Errorf("user ID not found in context")
	}
	return claim.UserID, nil
}
