package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/platfeed/internal/feed"
	"github.com/hitoshi/platfeed/internal/middleware"
	"github.com/hitoshi/platfeed/internal/model"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	ListPosts(ctx context.Context, claim model.Claim, platform string) ([]*model.Post, error)
	GetPost(ctx context.Context, claim model.Claim, postID string) (*model.Post, error)
	CreatePost(ctx context.Context, claim model.Claim, in feed.CreatePostInput) (*model.Post, error)
	ToggleLike(ctx context.Context, claim model.Claim, postID string) (*feed.LikeResult, error)
	AddComment(ctx context.Context, claim model.Claim, postID, text string) (*model.Comment, error)
}

// PostHandler は投稿関連のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface) *PostHandler {
	return &PostHandler{service: service}
}

// createPostRequest は投稿作成リクエストのボディ。
type createPostRequest struct {
	Content  string `json:"content"`
	Platform string `json:"platform"`
	Image    string `json:"image"`
}

// commentRequest はコメント追加リクエストのボディ。
type commentRequest struct {
	Text string `json:"text"`
}

// likeResponse はいいね切り替えのAPIレスポンス。
// likesは従来のクライアント向けにいいね数を返す。
type likeResponse struct {
	Likes     int  `json:"likes"`
	LikeCount int  `json:"likeCount"`
	IsLiked   bool `json:"isLiked"`
}

// ListPosts はプラットフォームの最新投稿一覧を返す。
// GET /api/posts/{platform}
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	claim, ok := claimOrUnauthorized(w, r)
	if !ok {
		return
	}

	h.listPosts(w, r, claim, chi.URLParam(r, "platform"))
}

func (h *PostHandler) listPosts(w http.ResponseWriter, r *http.Request, claim model.Claim, platform string) {
	posts, err := h.service.ListPosts(r.Context(), claim, platform)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, feed.NewPostPayloads(posts))
}

// GetPost は投稿を1件返す。
// uuidでないセグメントは未知のプラットフォーム名として一覧取得に回し、認可で拒否させる。
// GET /api/posts/{id}
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	claim, ok := claimOrUnauthorized(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if uuid.Validate(id) != nil {
		h.listPosts(w, r, claim, id)
		return
	}

	post, err := h.service.GetPost(r.Context(), claim, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, feed.NewPostPayload(post))
}

// CreatePost は投稿を作成する。
// POST /api/posts
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	claim, ok := claimOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req createPostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	post, err := h.service.CreatePost(r.Context(), claim, feed.CreatePostInput{
		Content:  req.Content,
		Platform: req.Platform,
		Image:    req.Image,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, feed.NewPostPayload(post))
}

// ToggleLike はいいねを切り替える。
// POST /api/posts/{id}/like
func (h *PostHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	claim, ok := claimOrUnauthorized(w, r)
	if !ok {
		return
	}

	result, err := h.service.ToggleLike(r.Context(), claim, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, likeResponse{
		Likes:     result.LikeCount,
		LikeCount: result.LikeCount,
		IsLiked:   result.IsLiked,
	})
}

// AddComment はコメントを追加する。
// POST /api/posts/{id}/comment
func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	claim, ok := claimOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req commentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	comment, err := h.service.AddComment(r.Context(), claim, chi.URLParam(r, "id"), req.Text)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, feed.NewCommentPayloadFrom(comment))
}

// claimOrUnauthorized はコンテキストからClaimを取り出す。
// 認証ミドルウェアを通っていない場合は401を書き込んでfalseを返す。
func claimOrUnauthorized(w http.ResponseWriter, r *http.Request) (model.Claim, bool) {
	claim, err := middleware.ClaimFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return model.Claim{}, false
	}
	return claim, true
}
