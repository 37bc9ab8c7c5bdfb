// Package model はドメインモデルを定義する。
package model

import "time"

// User はプラットフォームごとに登録されるユーザーを表す。
// UsernameとEmailの一意性はPlatform内でのみ保証される。
type User struct {
	ID             string
	Username       string
	Email          string
	PasswordHash   string // 外部に出力しない
	FullName       string
	Platform       Platform
	ProfilePicture string
	CreatedAt      time.Time
}

// Author は投稿者・コメント投稿者の表示用情報。
// 認証情報は含まない。
type Author struct {
	ID             string
	Username       string
	FullName       string
	ProfilePicture string
}

// Claim は検証済みトークンから取り出したリクエスト単位の認証情報。
// 永続化されない。
type Claim struct {
	UserID   string
	Username string
	Platform Platform
}
