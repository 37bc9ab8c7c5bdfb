package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/platfeed/internal/model"
)

// tokenClaims はJWTのペイロード。
type tokenClaims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Platform string `json:"platform"`
	jwt.RegisteredClaims
}

// TokenIssuer はHS256署名のアクセストークンを発行・検証する。
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer はTokenIssuerを生成する。
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue はユーザーのID・ユーザー名・プラットフォームを埋め込んだトークンを発行する。
func (i *TokenIssuer) Issue(user *model.User) (string, error) {
	if user == nil || user.ID == "" {
		return "", errors.New("user is required to issue a token")
	}

	now := i.now()
	claims := tokenClaims{
		UserID:   user.ID,
		Username: user.Username,
		Platform: string(user.Platform),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証しClaimを返す。
// 欠落・改ざん・期限切れ・未知のプラットフォームはすべて同じUNAUTHENTICATEDエラーになる。
func (i *TokenIssuer) Verify(token string) (model.Claim, error) {
	if token == "" {
		return model.Claim{}, model.NewUnauthenticatedError()
	}

	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return model.Claim{}, model.NewUnauthenticatedError()
	}

	platform, err := model.ParsePlatform(claims.Platform)
	if err != nil || claims.UserID == "" {
		return model.Claim{}, model.NewUnauthenticatedError()
	}

	return model.Claim{
		UserID:   claims.UserID,
		Username: claims.Username,
		Platform: platform,
	}, nil
}
