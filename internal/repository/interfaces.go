// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/platfeed/internal/model"
)

// ErrDuplicateUser は同一プラットフォーム内でユーザー名またはメールアドレスが重複した場合に返る。
var ErrDuplicateUser = errors.New("user already exists on platform")

// ErrPostNotFound は更新対象の投稿が存在しない場合に返る。
var ErrPostNotFound = errors.New("post not found")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByIdentifier はプラットフォーム内でユーザー名またはメールアドレスが一致するユーザーを取得する。
	// 見つからない場合はnilを返す。
	FindByIdentifier(ctx context.Context, platform model.Platform, identifier string) (*model.User, error)

	// ExistsOnPlatform はプラットフォーム内にユーザー名またはメールアドレスが一致するユーザーがいるかを返す。
	ExistsOnPlatform(ctx context.Context, platform model.Platform, username, email string) (bool, error)

	// Create はユーザーを作成し、IDと作成日時を設定する。
	// 一意制約に違反した場合はErrDuplicateUserを返す。
	Create(ctx context.Context, user *model.User) error
}

// PostRepository は投稿データの永続化インターフェース。
// いいねとコメントの更新はフィールド単位で原子的に行い、投稿全体を上書きしない。
type PostRepository interface {
	// ListByPlatform はプラットフォームの投稿を作成日時の降順で最大limit件取得する。
	// 投稿者とコメントは解決済みで返す。
	ListByPlatform(ctx context.Context, platform model.Platform, limit int) ([]*model.Post, error)

	// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// Create は投稿を作成し、投稿者を解決した結果を返す。
	Create(ctx context.Context, post *model.Post) (*model.Post, error)

	// ToggleLike はuserIDのいいねを反転し、更新後のいいね一覧と反転後の状態を返す。
	// 投稿が存在しない場合はErrPostNotFoundを返す。
	ToggleLike(ctx context.Context, postID, userID string) (likes []string, liked bool, err error)

	// AppendComment はコメントを追記し、コメント投稿者を解決した結果を返す。
	// 投稿が存在しない場合はErrPostNotFoundを返す。
	AppendComment(ctx context.Context, comment *model.Comment) (*model.Comment, error)
}
