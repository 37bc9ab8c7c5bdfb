// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, post, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodePlatformMismatch   = "PLATFORM_MISMATCH"
	ErrCodePostNotFound       = "POST_NOT_FOUND"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInvalidPlatform    = "INVALID_PLATFORM"
	ErrCodeInvalidImage       = "INVALID_IMAGE"
	ErrCodeEmptyComment       = "EMPTY_COMMENT"
	ErrCodeMissingFields      = "MISSING_FIELDS"
	ErrCodeUserAlreadyExists  = "USER_ALREADY_EXISTS"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrCodePayloadTooLarge    = "PAYLOAD_TOO_LARGE"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// ErrorCode はerrがAPIErrorの場合にそのコードを返す。
// それ以外のエラーは空文字列を返す。
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// NewUnauthenticatedError は認証失敗エラーを生成する。
// トークンの欠落・不正・期限切れを区別しない。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidCredentialsError はログイン情報の不一致エラーを生成する。
// 識別子の不一致とパスワードの不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名・メールアドレス、パスワード、またはプラットフォームが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認してください。",
	}
}

// NewPlatformMismatchError はプラットフォーム不一致によるアクセス拒否エラーを生成する。
func NewPlatformMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodePlatformMismatch,
		Message:  "アクセスが拒否されました: プラットフォームが一致しません。",
		Category: "auth",
		Action:   "対象のプラットフォームでログインしてください。",
	}
}

// NewPostNotFoundError は投稿未検出エラーを生成する。
func NewPostNotFoundError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された投稿が見つかりません: %s", postID),
		Category: "post",
		Action:   "投稿IDを確認してください。",
	}
}

// NewInvalidRequestError はリクエスト形式の不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewInvalidPlatformError は未知のプラットフォーム指定エラーを生成する。
func NewInvalidPlatformError(platform string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPlatform,
		Message:  fmt.Sprintf("無効なプラットフォームです: %s", platform),
		Category: "validation",
		Action:   "プラットフォームには twitter、instagram、facebook のいずれかを指定してください。",
	}
}

// NewInvalidImageError は画像形式の不正エラーを生成する。
func NewInvalidImageError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImage,
		Message:  fmt.Sprintf("画像の形式が不正です: %s", reason),
		Category: "validation",
		Action:   "画像はbase64エンコードされたdata URL（data:image/...）で指定してください。",
	}
}

// NewEmptyCommentError は空のコメントエラーを生成する。
func NewEmptyCommentError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyComment,
		Message:  "コメント本文が空です。",
		Category: "validation",
		Action:   "コメント本文を入力してください。",
	}
}

// NewMissingFieldsError は必須項目の欠落エラーを生成する。
func NewMissingFieldsError(fields []string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingFields,
		Message:  fmt.Sprintf("必須項目が入力されていません: %v", fields),
		Category: "validation",
		Action:   "すべての必須項目を入力してください。",
	}
}

// NewUserAlreadyExistsError は同一プラットフォーム内でのユーザー重複エラーを生成する。
func NewUserAlreadyExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeUserAlreadyExists,
		Message:  "このプラットフォームには同じユーザー名またはメールアドレスのユーザーが既に存在します。",
		Category: "auth",
		Action:   "別のユーザー名またはメールアドレスを使用するか、ログインしてください。",
	}
}

// NewRateLimitError はレート制限超過エラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewPayloadTooLargeError はリクエストボディのサイズ超過エラーを生成する。
func NewPayloadTooLargeError(limit int64) *APIError {
	return &APIError{
		Code:     ErrCodePayloadTooLarge,
		Message:  fmt.Sprintf("リクエストボディが上限（%dバイト）を超えています。", limit),
		Category: "validation",
		Action:   "画像サイズを小さくしてから再度お試しください。",
	}
}

// NewInternalError は内部エラーの利用者向け表現を生成する。
// 原因の詳細は含めない。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
