// Package security は投稿本文・コメントのサニタイズと添付画像の検証を提供する。
package security

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// tagPattern は閉じた形のタグ・コメント・宣言に一致する。
// "x<y" や "1 < 2" のようにタグの形をしていない < は本文として扱う。
var tagPattern = regexp.MustCompile(`(?s)<(?:/?[A-Za-z][^<>]*|!--.*?--|![^<>]*|\?[^<>]*)>`)

// TextSanitizer は利用者が入力したテキストからマークアップを除去する。
// 投稿本文とコメントはプレーンテキストとして保存し、HTMLエスケープはしない。
// エスケープは表示側の責務とする。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去し、前後の空白を取り除いたテキストを返す。
// タグを含まない入力は前後の空白以外そのまま返す。
func (s *TextSanitizer) Sanitize(text string) string {
	text = strings.TrimSpace(text)
	if !tagPattern.MatchString(text) {
		return text
	}
	// タグ以外の部分を先にエスケープしておき、bluemondayが本文を壊さないようにする。
	// 除去後にエスケープを戻してプレーンテキストに復元する。
	stripped := s.policy.Sanitize(escapeOutsideTags(text))
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// escapeOutsideTags はタグに一致しない部分だけをHTMLエスケープする。
func escapeOutsideTags(text string) string {
	var b strings.Builder
	last := 0
	for _, loc := range tagPattern.FindAllStringIndex(text, -1) {
		b.WriteString(html.EscapeString(text[last:loc[0]]))
		b.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(html.EscapeString(text[last:]))
	return b.String()
}
