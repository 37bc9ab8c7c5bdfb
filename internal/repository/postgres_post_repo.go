package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/platfeed/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
// いいねはposts.likes配列への単一UPDATE、コメントはcommentsテーブルへのINSERTで更新し、
// 並行する更新同士が互いを上書きしないようにする。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

var _ PostRepository = (*PostgresPostRepo)(nil)

const postColumns = `p.id, p.content, p.author_id, p.platform, p.image, p.likes, p.shares, p.created_at,
	u.username, u.full_name, u.profile_picture`

func scanPost(row interface{ Scan(...any) error }) (*model.Post, error) {
	post := &model.Post{Author: &model.Author{}}
	var platform string
	var likes pq.StringArray
	if err := row.Scan(
		&post.ID, &post.Content, &post.AuthorID, &platform, &post.Image, &likes, &post.Shares, &post.CreatedAt,
		&post.Author.Username, &post.Author.FullName, &post.Author.ProfilePicture,
	); err != nil {
		return nil, err
	}
	post.Platform = model.Platform(platform)
	post.Author.ID = post.AuthorID
	post.Likes = []string(likes)
	if post.Likes == nil {
		post.Likes = []string{}
	}
	post.Comments = []model.Comment{}
	return post, nil
}

// ListByPlatform はプラットフォームの投稿を作成日時の降順で最大limit件取得する。
func (r *PostgresPostRepo) ListByPlatform(ctx context.Context, platform model.Platform, limit int) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+postColumns+`
		 FROM posts p
		 JOIN users u ON u.id = p.author_id
		 WHERE p.platform = $1
		 ORDER BY p.created_at DESC, p.id DESC
		 LIMIT $2`,
		string(platform), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []*model.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}

	if err := r.attachComments(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	post, err := scanPost(r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+`
		 FROM posts p
		 JOIN users u ON u.id = p.author_id
		 WHERE p.id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post by ID: %w", err)
	}

	if err := r.attachComments(ctx, []*model.Post{post}); err != nil {
		return nil, err
	}
	return post, nil
}

// Create は投稿を作成し、投稿者を解決した結果を返す。
// IDと作成日時はデータベースが採番する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) (*model.Post, error) {
	created, err := scanPost(r.db.QueryRowContext(ctx,
		`WITH p AS (
			INSERT INTO posts (content, author_id, platform, image)
			VALUES ($1, $2, $3, $4)
			RETURNING id, content, author_id, platform, image, likes, shares, created_at
		)
		SELECT `+postColumns+`
		FROM p
		JOIN users u ON u.id = p.author_id`,
		post.Content, post.AuthorID, string(post.Platform), post.Image,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to insert post: %w", err)
	}
	return created, nil
}

// ToggleLike はuserIDのいいねを反転する。
// 判定と更新を1文で行うため、同一投稿への並行したいいね・コメントと競合しない。
func (r *PostgresPostRepo) ToggleLike(ctx context.Context, postID, userID string) ([]string, bool, error) {
	var likes pq.StringArray
	var liked bool
	err := r.db.QueryRowContext(ctx,
		`UPDATE posts
		 SET likes = CASE
			WHEN $2::uuid = ANY(likes) THEN array_remove(likes, $2::uuid)
			ELSE array_append(likes, $2::uuid)
		 END
		 WHERE id = $1
		 RETURNING likes, $2::uuid = ANY(likes)`,
		postID, userID,
	).Scan(&likes, &liked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, ErrPostNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to toggle like: %w", err)
	}

	result := []string(likes)
	if result == nil {
		result = []string{}
	}
	return result, liked, nil
}

// AppendComment はコメントを追記し、コメント投稿者を解決した結果を返す。
func (r *PostgresPostRepo) AppendComment(ctx context.Context, comment *model.Comment) (*model.Comment, error) {
	created, err := scanComment(r.db.QueryRowContext(ctx,
		`WITH c AS (
			INSERT INTO comments (post_id, user_id, text)
			VALUES ($1, $2, $3)
			RETURNING id, post_id, user_id, text, created_at
		)
		SELECT `+commentColumns+`
		FROM c
		JOIN users u ON u.id = c.user_id`,
		comment.PostID, comment.UserID, comment.Text,
	))
	if isForeignKeyViolation(err) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert comment: %w", err)
	}
	return created, nil
}

const commentColumns = `c.id, c.post_id, c.user_id, c.text, c.created_at,
	u.username, u.full_name, u.profile_picture`

func scanComment(row interface{ Scan(...any) error }) (*model.Comment, error) {
	c := &model.Comment{User: &model.Author{}}
	if err := row.Scan(
		&c.ID, &c.PostID, &c.UserID, &c.Text, &c.CreatedAt,
		&c.User.Username, &c.User.FullName, &c.User.ProfilePicture,
	); err != nil {
		return nil, err
	}
	c.User.ID = c.UserID
	return c, nil
}

// attachComments は投稿群のコメントを作成日時の昇順で一括取得して設定する。
func (r *PostgresPostRepo) attachComments(ctx context.Context, posts []*model.Post) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]string, 0, len(posts))
	byID := make(map[string]*model.Post, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
		byID[p.ID] = p
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+commentColumns+`
		 FROM comments c
		 JOIN users u ON u.id = c.user_id
		 WHERE c.post_id = ANY($1::uuid[])
		 ORDER BY c.created_at ASC, c.id ASC`,
		pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return fmt.Errorf("failed to scan comment: %w", err)
		}
		if p, ok := byID[c.PostID]; ok {
			p.Comments = append(p.Comments, *c)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate comments: %w", err)
	}
	return nil
}
