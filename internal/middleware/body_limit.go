package middleware

import (
	"net/http"

	"github.com/hitoshi/platfeed/internal/model"
)

// NewBodyLimitMiddleware はリクエストボディをmaxBytesまでに制限するミドルウェアを返す。
// Content-Lengthが上限を超える場合は本文を読まずに413を返す。
// 長さ不明のボディは読み取り時に*http.MaxBytesErrorとなる。
func NewBodyLimitMiddleware(maxBytes int64) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				WriteErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewPayloadTooLargeError(maxBytes))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
