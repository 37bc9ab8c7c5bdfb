package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/platfeed/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

var _ UserRepository = (*PostgresUserRepo)(nil)

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, username, email, password_hash, full_name, platform, profile_picture, created_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	user := &model.User{}
	var platform string
	if err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.FullName, &platform, &user.ProfilePicture, &user.CreatedAt,
	); err != nil {
		return nil, err
	}
	user.Platform = model.Platform(platform)
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByIdentifier はプラットフォーム内でユーザー名またはメールアドレスが一致するユーザーを取得する。
// 見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByIdentifier(ctx context.Context, platform model.Platform, identifier string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE platform = $1 AND (username = $2 OR email = lower($2))
		 LIMIT 1`,
		string(platform), identifier,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by identifier: %w", err)
	}
	return user, nil
}

// ExistsOnPlatform はプラットフォーム内にユーザー名またはメールアドレスが一致するユーザーがいるかを返す。
func (r *PostgresUserRepo) ExistsOnPlatform(ctx context.Context, platform model.Platform, username, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM users WHERE platform = $1 AND (username = $2 OR email = $3)
		)`,
		string(platform), username, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// Create はユーザーを作成し、IDと作成日時を設定する。
// 一意制約に違反した場合はErrDuplicateUserを返す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (username, email, password_hash, full_name, platform, profile_picture)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		user.Username, user.Email, user.PasswordHash, user.FullName, string(user.Platform), user.ProfilePicture,
	).Scan(&user.ID, &user.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateUser
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}
