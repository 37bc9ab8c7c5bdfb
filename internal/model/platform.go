// Package model はドメインモデルを定義する。
package model

// Platform はデータと認可を分離するソーシャルネットワーク区画を表す。
// 投稿・ユーザー・リアルタイム配信グループはすべてPlatformで分割される。
type Platform string

const (
	// PlatformTwitter はtwitter区画。
	PlatformTwitter Platform = "twitter"
	// PlatformInstagram はinstagram区画。
	PlatformInstagram Platform = "instagram"
	// PlatformFacebook はfacebook区画。
	PlatformFacebook Platform = "facebook"
)

// Platforms は有効なPlatformの一覧を定義順で返す。
func Platforms() []Platform {
	return []Platform{PlatformTwitter, PlatformInstagram, PlatformFacebook}
}

// Valid はPlatformが既知の値かどうかを返す。
func (p Platform) Valid() bool {
	switch p {
	case PlatformTwitter, PlatformInstagram, PlatformFacebook:
		return true
	}
	return false
}

// String はPlatformの文字列表現を返す。
func (p Platform) String() string {
	return string(p)
}

// ParsePlatform は文字列をPlatformに変換する。
// 既知の値でない場合はINVALID_PLATFORMエラーを返す。
func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if !p.Valid() {
		return "", NewInvalidPlatformError(s)
	}
	return p, nil
}
