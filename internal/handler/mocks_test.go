package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/platfeed/internal/auth"
	"github.com/hitoshi/platfeed/internal/feed"
	"github.com/hitoshi/platfeed/internal/middleware"
	"github.com/hitoshi/platfeed/internal/model"
)

// --- モック ---

type mockAuthService struct {
	registerFn func(ctx context.Context, in auth.RegisterInput) (*auth.Result, error)
	loginFn    func(ctx context.Context, in auth.LoginInput) (*auth.Result, error)
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*auth.Result, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, in auth.LoginInput) (*auth.Result, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, in)
	}
	return nil, nil
}

type mockPostService struct {
	listPostsFn  func(ctx context.Context, claim model.Claim, platform string) ([]*model.Post, error)
	getPostFn    func(ctx context.Context, claim model.Claim, postID string) (*model.Post, error)
	createPostFn func(ctx context.Context, claim model.Claim, in feed.CreatePostInput) (*model.Post, error)
	toggleLikeFn func(ctx context.Context, claim model.Claim, postID string) (*feed.LikeResult, error)
	addCommentFn func(ctx context.Context, claim model.Claim, postID, text string) (*model.Comment, error)
}

func (m *mockPostService) ListPosts(ctx context.Context, claim model.Claim, platform string) ([]*model.Post, error) {
	if m.listPostsFn != nil {
		return m.listPostsFn(ctx, claim, platform)
	}
	return nil, nil
}

func (m *mockPostService) GetPost(ctx context.Context, claim model.Claim, postID string) (*model.Post, error) {
	if m.getPostFn != nil {
		return m.getPostFn(ctx, claim, postID)
	}
	return nil, model.NewPostNotFoundError(postID)
}

func (m *mockPostService) CreatePost(ctx context.Context, claim model.Claim, in feed.CreatePostInput) (*model.Post, error) {
	if m.createPostFn != nil {
		return m.createPostFn(ctx, claim, in)
	}
	return nil, nil
}

func (m *mockPostService) ToggleLike(ctx context.Context, claim model.Claim, postID string) (*feed.LikeResult, error) {
	if m.toggleLikeFn != nil {
		return m.toggleLikeFn(ctx, claim, postID)
	}
	return nil, nil
}

func (m *mockPostService) AddComment(ctx context.Context, claim model.Claim, postID, text string) (*model.Comment, error) {
	if m.addCommentFn != nil {
		return m.addCommentFn(ctx, claim, postID, text)
	}
	return nil, nil
}

type fixedConnections int

func (c fixedConnections) ConnectionCount() int { return int(c) }

// tokenVerifier はトークン文字列とClaimの対応表で検証するモック。
type tokenVerifier map[string]model.Claim

func (v tokenVerifier) Verify(token string) (model.Claim, error) {
	if c, ok := v[token]; ok {
		return c, nil
	}
	return model.Claim{}, model.NewUnauthenticatedError()
}

// --- compile-time interface checks ---
var _ AuthServiceInterface = (*mockAuthService)(nil)
var _ PostServiceInterface = (*mockPostService)(nil)
var _ middleware.ClaimVerifier = tokenVerifier(nil)

// --- テストヘルパー ---

var twitterClaim = model.Claim{UserID: "user-tw", Username: "alice", Platform: model.PlatformTwitter}

// withClaim はテスト用にリクエストコンテキストにClaimを注入するヘルパー。
func withClaim(r *http.Request, claim model.Claim) *http.Request {
	return r.WithContext(middleware.ContextWithClaim(r.Context(), claim))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}
