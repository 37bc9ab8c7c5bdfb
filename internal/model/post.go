// Package model はドメインモデルを定義する。
package model

import "time"

// Post はプラットフォーム内の投稿を表す。
// Likesは同一ユーザーIDを高々1回しか含まない。
// Commentsは追記のみで、作成日時の昇順に並ぶ。
type Post struct {
	ID        string
	Content   string
	AuthorID  string
	Author    *Author // 表示用に解決済みの投稿者。未解決の場合はnil
	Platform  Platform
	Image     string // data URL形式の画像。未指定の場合は空文字列
	Likes     []string
	Comments  []Comment
	Shares    int
	CreatedAt time.Time
}

// HasLiked は指定ユーザーがいいね済みかどうかを返す。
func (p *Post) HasLiked(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// Comment は投稿に埋め込まれるコメントを表す。
type Comment struct {
	ID        string
	PostID    string
	UserID    string
	User      *Author // 表示用に解決済みのコメント投稿者。未解決の場合はnil
	Text      string
	CreatedAt time.Time
}
