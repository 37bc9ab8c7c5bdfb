// Package feed はプラットフォーム単位の投稿・いいね・コメントのドメインロジックを提供する。
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/platfeed/internal/auth"
	"github.com/hitoshi/platfeed/internal/model"
	"github.com/hitoshi/platfeed/internal/repository"
)

// PageSize は投稿一覧で返す最大件数。
const PageSize = 20

// EventPublisher はプラットフォームのファンアウトグループへイベントを配信する。
// 配信は成功・失敗を返さない。
type EventPublisher interface {
	Publish(platform model.Platform, event string, payload any)
}

// TextSanitizer は利用者入力テキストのサニタイズを行う。
type TextSanitizer interface {
	Sanitize(text string) string
}

// ImageValidator は添付画像を検証する。
type ImageValidator interface {
	Validate(dataURL string) error
}

// MetricsRecorder はフィード操作のメトリクスを記録する。
type MetricsRecorder interface {
	RecordPostCreated(platform model.Platform)
	RecordLikeToggled(platform model.Platform, liked bool)
	RecordCommentAdded(platform model.Platform)
}

// CreatePostInput は投稿作成の入力値。
type CreatePostInput struct {
	Content  string
	Platform string
	Image    string
}

// LikeResult はいいね切り替え後の状態。
type LikeResult struct {
	PostID    string
	Likes     []string
	LikeCount int
	IsLiked   bool
}

// Service は投稿に関するユースケースを提供する。
// すべての操作は検証済みのClaimを明示的に受け取り、
// 認可と入力検証を永続化より先に行い、成功後にのみイベントを配信する。
type Service struct {
	posts     repository.PostRepository
	publisher EventPublisher
	sanitizer TextSanitizer
	images    ImageValidator
	metrics   MetricsRecorder
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	posts repository.PostRepository,
	publisher EventPublisher,
	sanitizer TextSanitizer,
	images ImageValidator,
	metrics MetricsRecorder,
) *Service {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Service{
		posts:     posts,
		publisher: publisher,
		sanitizer: sanitizer,
		images:    images,
		metrics:   metrics,
	}
}

// CreatePost はClaimのプラットフォームに投稿を作成し、newPostイベントを配信する。
// 投稿のプラットフォームは常にClaimのプラットフォームと一致する。
func (s *Service) CreatePost(ctx context.Context, claim model.Claim, in CreatePostInput) (*model.Post, error) {
	if err := auth.AuthorizePlatform(claim.Platform, model.Platform(in.Platform)); err != nil {
		return nil, err
	}

	content := s.sanitizer.Sanitize(in.Content)
	image := strings.TrimSpace(in.Image)
	if image != "" {
		if err := s.images.Validate(image); err != nil {
			return nil, err
		}
	}

	created, err := s.posts.Create(ctx, &model.Post{
		Content:  content,
		AuthorID: claim.UserID,
		Platform: claim.Platform,
		Image:    image,
	})
	if err != nil {
		return nil, fmt.Errorf("投稿の保存に失敗しました: %w", err)
	}

	s.publisher.Publish(created.Platform, EventNewPost, NewPostPayload(created))
	s.metrics.RecordPostCreated(created.Platform)

	slog.Info("post created",
		slog.String("post_id", created.ID),
		slog.String("user_id", claim.UserID),
		slog.String("platform", string(created.Platform)),
		slog.Int("image_bytes", len(image)),
	)
	return created, nil
}

// ListPosts はプラットフォームの投稿を新しい順に最大PageSize件返す。
func (s *Service) ListPosts(ctx context.Context, claim model.Claim, platform string) ([]*model.Post, error) {
	if err := auth.AuthorizePlatform(claim.Platform, model.Platform(platform)); err != nil {
		return nil, err
	}

	posts, err := s.posts.ListByPlatform(ctx, claim.Platform, PageSize)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	return posts, nil
}

// GetPost は投稿を1件返す。
// 存在しない場合はPOST_NOT_FOUND、別プラットフォームの投稿の場合はPLATFORM_MISMATCHを返す。
func (s *Service) GetPost(ctx context.Context, claim model.Claim, postID string) (*model.Post, error) {
	return s.loadAuthorized(ctx, claim, postID)
}

// ToggleLike はClaimのユーザーのいいねを反転し、postLikedイベントを配信する。
func (s *Service) ToggleLike(ctx context.Context, claim model.Claim, postID string) (*LikeResult, error) {
	post, err := s.loadAuthorized(ctx, claim, postID)
	if err != nil {
		return nil, err
	}

	likes, liked, err := s.posts.ToggleLike(ctx, post.ID, claim.UserID)
	if errors.Is(err, repository.ErrPostNotFound) {
		return nil, model.NewPostNotFoundError(postID)
	}
	if err != nil {
		return nil, fmt.Errorf("いいねの更新に失敗しました: %w", err)
	}

	s.publisher.Publish(post.Platform, EventPostLiked, PostLikedPayload{PostID: post.ID, Likes: likes})
	s.metrics.RecordLikeToggled(post.Platform, liked)

	slog.Debug("like toggled",
		slog.String("post_id", post.ID),
		slog.String("user_id", claim.UserID),
		slog.Bool("liked", liked),
	)
	return &LikeResult{
		PostID:    post.ID,
		Likes:     likes,
		LikeCount: len(likes),
		IsLiked:   liked,
	}, nil
}

// AddComment はClaimのユーザーのコメントを投稿に追記し、newCommentイベントを配信する。
func (s *Service) AddComment(ctx context.Context, claim model.Claim, postID, text string) (*model.Comment, error) {
	post, err := s.loadAuthorized(ctx, claim, postID)
	if err != nil {
		return nil, err
	}

	text = s.sanitizer.Sanitize(text)
	if text == "" {
		return nil, model.NewEmptyCommentError()
	}

	comment, err := s.posts.AppendComment(ctx, &model.Comment{
		PostID: post.ID,
		UserID: claim.UserID,
		Text:   text,
	})
	if errors.Is(err, repository.ErrPostNotFound) {
		return nil, model.NewPostNotFoundError(postID)
	}
	if err != nil {
		return nil, fmt.Errorf("コメントの保存に失敗しました: %w", err)
	}

	s.publisher.Publish(post.Platform, EventNewComment, NewCommentPayload{
		PostID:  post.ID,
		Comment: NewCommentPayloadFrom(comment),
	})
	s.metrics.RecordCommentAdded(post.Platform)

	slog.Info("comment added",
		slog.String("post_id", post.ID),
		slog.String("comment_id", comment.ID),
		slog.String("user_id", claim.UserID),
	)
	return comment, nil
}

// loadAuthorized は投稿を取得してからプラットフォームを認可する。
// UUIDとして不正なIDはストアに問い合わせずPOST_NOT_FOUNDとする。
func (s *Service) loadAuthorized(ctx context.Context, claim model.Claim, postID string) (*model.Post, error) {
	if _, err := uuid.Parse(postID); err != nil {
		return nil, model.NewPostNotFoundError(postID)
	}

	post, err := s.posts.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(postID)
	}

	if err := auth.AuthorizePlatform(claim.Platform, post.Platform); err != nil {
		return nil, err
	}
	return post, nil
}

type noopMetrics struct{}

func (noopMetrics) RecordPostCreated(model.Platform)       {}
func (noopMetrics) RecordLikeToggled(model.Platform, bool) {}
func (noopMetrics) RecordCommentAdded(model.Platform)      {}
