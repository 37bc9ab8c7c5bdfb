package feed

import (
	"time"

	"github.com/hitoshi/platfeed/internal/model"
)

// リアルタイム配信するイベント名
const (
	EventNewPost    = "newPost"
	EventPostLiked  = "postLiked"
	EventNewComment = "newComment"
)

// AuthorPayload は投稿者・コメント投稿者の表示用情報のJSON表現。
type AuthorPayload struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	FullName       string `json:"fullName"`
	ProfilePicture string `json:"profilePicture"`
}

// CommentPayload はコメントのJSON表現。
type CommentPayload struct {
	ID        string         `json:"id"`
	User      *AuthorPayload `json:"user"`
	Text      string         `json:"text"`
	CreatedAt time.Time      `json:"createdAt"`
}

// PostPayload は投稿のJSON表現。HTTPレスポンスとnewPostイベントで共通。
type PostPayload struct {
	ID        string           `json:"id"`
	Content   string           `json:"content"`
	Author    *AuthorPayload   `json:"author"`
	Platform  string           `json:"platform"`
	Image     string           `json:"image"`
	Likes     []string         `json:"likes"`
	Comments  []CommentPayload `json:"comments"`
	Shares    int              `json:"shares"`
	CreatedAt time.Time        `json:"createdAt"`
}

// PostLikedPayload はpostLikedイベントのデータ。
type PostLikedPayload struct {
	PostID string   `json:"postId"`
	Likes  []string `json:"likes"`
}

// NewCommentPayload はnewCommentイベントのデータ。
type NewCommentPayload struct {
	PostID  string         `json:"postId"`
	Comment CommentPayload `json:"comment"`
}

func newAuthorPayload(a *model.Author) *AuthorPayload {
	if a == nil {
		return nil
	}
	return &AuthorPayload{
		ID:             a.ID,
		Username:       a.Username,
		FullName:       a.FullName,
		ProfilePicture: a.ProfilePicture,
	}
}

// NewCommentPayloadFrom はコメントをJSON表現に変換する。
func NewCommentPayloadFrom(c *model.Comment) CommentPayload {
	return CommentPayload{
		ID:        c.ID,
		User:      newAuthorPayload(c.User),
		Text:      c.Text,
		CreatedAt: c.CreatedAt,
	}
}

// NewPostPayload は投稿をJSON表現に変換する。
// likesとcommentsは空でもnullではなく空配列として出力する。
func NewPostPayload(p *model.Post) PostPayload {
	likes := p.Likes
	if likes == nil {
		likes = []string{}
	}
	comments := make([]CommentPayload, 0, len(p.Comments))
	for i := range p.Comments {
		comments = append(comments, NewCommentPayloadFrom(&p.Comments[i]))
	}
	return PostPayload{
		ID:        p.ID,
		Content:   p.Content,
		Author:    newAuthorPayload(p.Author),
		Platform:  string(p.Platform),
		Image:     p.Image,
		Likes:     likes,
		Comments:  comments,
		Shares:    p.Shares,
		CreatedAt: p.CreatedAt,
	}
}

// NewPostPayloads は投稿一覧をJSON表現に変換する。
func NewPostPayloads(posts []*model.Post) []PostPayload {
	out := make([]PostPayload, 0, len(posts))
	for _, p := range posts {
		out = append(out, NewPostPayload(p))
	}
	return out
}
