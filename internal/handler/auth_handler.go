// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/platfeed/internal/auth"
	"github.com/hitoshi/platfeed/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.Result, error)
	Login(ctx context.Context, in auth.LoginInput) (*auth.Result, error)
}

// AuthHandler は登録・ログインのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// registerRequest はユーザー登録リクエストのボディ。
type registerRequest struct {
	Username       string `json:"username"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	FullName       string `json:"fullName"`
	Platform       string `json:"platform"`
	ProfilePicture string `json:"profilePicture"`
}

// loginRequest はログインリクエストのボディ。identifierはユーザー名またはメールアドレス。
type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	Platform   string `json:"platform"`
}

// userResponse はユーザー情報のAPIレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	FullName       string `json:"fullName"`
	Platform       string `json:"platform"`
	ProfilePicture string `json:"profilePicture"`
}

// authResponse は登録・ログイン成功時のAPIレスポンス。
type authResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    userResponse `json:"user"`
}

// Register はユーザー登録を処理する。
// POST /api/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Register(r.Context(), auth.RegisterInput{
		Username:       req.Username,
		Email:          req.Email,
		Password:       req.Password,
		FullName:       req.FullName,
		Platform:       req.Platform,
		ProfilePicture: req.ProfilePicture,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAuthResponse("User created successfully", result))
}

// Login はログインを処理する。
// POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), auth.LoginInput{
		Identifier: req.Identifier,
		Password:   req.Password,
		Platform:   req.Platform,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAuthResponse("Login successful", result))
}

func toAuthResponse(message string, result *auth.Result) authResponse {
	return authResponse{
		Message: message,
		Token:   result.Token,
		User:    toUserResponse(result.User),
	}
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		FullName:       u.FullName,
		Platform:       string(u.Platform),
		ProfilePicture: u.ProfilePicture,
	}
}
