package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/hitoshi/ichiba/internal/model"
)

// AdminKeyHeader は管理API認証用のヘッダー名。
const AdminKeyHeader = "X-Admin-Key"

// NewAdminKeyMiddleware はX-Admin-Keyヘッダーによる管理API認証の
// ミドルウェアを生成する。共有シークレットとの比較は一定時間比較で行う。
func NewAdminKeyMiddleware(adminKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(AdminKeyHeader)
			if got == "" {
				WriteErrorResponse(w, http.StatusUnauthorized,
					model.NewUnauthorizedError("管理キーが指定されていません。"))
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(adminKey)) != 1 {
				slog.Warn("不正な管理キーによるアクセスを拒否しました",
					slog.String("path", r.URL.Path),
					slog.String("client_ip", ClientIP(r)),
				)
				WriteErrorResponse(w, http.StatusForbidden,
					model.NewForbiddenError("管理キーが一致しません。"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
