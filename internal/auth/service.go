// Package auth はパスワード認証、アクセストークンの発行・検証、プラットフォーム単位の認可を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/platfeed/internal/model"
	"github.com/hitoshi/platfeed/internal/repository"
)

// 登録項目の上限。文字数はusersテーブルの列定義に合わせる。
// パスワードはbcryptが72バイトを超える入力を扱えないためバイト数で判定する。
const (
	maxUsernameLength = 50
	maxEmailLength    = 255
	maxFullNameLength = 100
	maxPasswordBytes  = 72
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	BcryptCost int // 0以下の場合はbcrypt.DefaultCost
}

// RegisterInput はユーザー登録の入力値。
type RegisterInput struct {
	Username       string
	Email          string
	Password       string
	FullName       string
	Platform       string
	ProfilePicture string
}

// LoginInput はログインの入力値。Identifierはユーザー名またはメールアドレス。
type LoginInput struct {
	Identifier string
	Password   string
	Platform   string
}

// Result は登録・ログイン成功時の結果。
type Result struct {
	User  *model.User
	Token string
}

// Service は登録・ログインに関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	tokens   *TokenIssuer
	config   ServiceConfig
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, tokens *TokenIssuer, config ServiceConfig) *Service {
	if config.BcryptCost <= 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		userRepo: userRepo,
		tokens:   tokens,
		config:   config,
	}
}

// Register はプラットフォームにユーザーを登録し、アクセストークンを発行する。
// ユーザー名・メールアドレスの一意性はプラットフォーム内でのみ判定するため、
// 別プラットフォームに同じ名前のユーザーがいても登録できる。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Result, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)

	var missing []string
	if in.Username == "" {
		missing = append(missing, "username")
	}
	if in.Email == "" {
		missing = append(missing, "email")
	}
	if in.Password == "" {
		missing = append(missing, "password")
	}
	if in.FullName == "" {
		missing = append(missing, "fullName")
	}
	if in.Platform == "" {
		missing = append(missing, "platform")
	}
	if len(missing) > 0 {
		return nil, model.NewMissingFieldsError(missing)
	}
	if err := validateRegisterLengths(in); err != nil {
		return nil, err
	}

	platform, err := model.ParsePlatform(in.Platform)
	if err != nil {
		return nil, err
	}

	exists, err := s.userRepo.ExistsOnPlatform(ctx, platform, in.Username, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, model.NewUserAlreadyExistsError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:       in.Username,
		Email:          in.Email,
		PasswordHash:   string(hash),
		FullName:       in.FullName,
		Platform:       platform,
		ProfilePicture: in.ProfilePicture,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// 存在確認と作成の間に同じ識別子で登録された場合
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, model.NewUserAlreadyExistsError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("platform", string(platform)),
	)
	return &Result{User: user, Token: token}, nil
}

// validateRegisterLengths は各項目が保存可能な長さに収まっているか確認する。
func validateRegisterLengths(in RegisterInput) error {
	switch {
	case utf8.RuneCountInString(in.Username) > maxUsernameLength:
		return model.NewInvalidRequestError(fmt.Sprintf("usernameは%d文字以内で入力してください", maxUsernameLength))
	case utf8.RuneCountInString(in.Email) > maxEmailLength:
		return model.NewInvalidRequestError(fmt.Sprintf("emailは%d文字以内で入力してください", maxEmailLength))
	case utf8.RuneCountInString(in.FullName) > maxFullNameLength:
		return model.NewInvalidRequestError(fmt.Sprintf("fullNameは%d文字以内で入力してください", maxFullNameLength))
	case len(in.Password) > maxPasswordBytes:
		return model.NewInvalidRequestError(fmt.Sprintf("passwordは%dバイト以内で入力してください", maxPasswordBytes))
	}
	return nil
}

// Login はプラットフォーム内のユーザー名またはメールアドレスとパスワードで認証する。
// ユーザー不在・パスワード不一致・不正なプラットフォームはすべてINVALID_CREDENTIALSになる。
func (s *Service) Login(ctx context.Context, in LoginInput) (*Result, error) {
	identifier := strings.TrimSpace(in.Identifier)
	if identifier == "" || in.Password == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	platform, err := model.ParsePlatform(in.Platform)
	if err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	user, err := s.userRepo.FindByIdentifier(ctx, platform, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("platform", string(platform)),
	)
	return &Result{User: user, Token: token}, nil
}
