package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/ichiba/internal/model"
	"github.com/hitoshi/ichiba/internal/repository"
)

// B2BKeyHeader はB2B API認証用のヘッダー名。
const B2BKeyHeader = "X-B2B-Key"

// NewB2BKeyMiddleware はX-B2B-Keyヘッダーによる法人ユーザー認証の
// ミドルウェアを生成する。キーに対応する法人ユーザーを検索し、
// リクエストコンテキストに格納する。
func NewB2BKeyMiddleware(userRepo repository.UserRepository) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(B2BKeyHeader)
			if key == "" {
				WriteErrorResponse(w, http.StatusUnauthorized,
					model.NewUnauthorizedError("B2B APIキーが指定されていません。"))
				return
			}

			user, err := userRepo.FindByB2BKey(r.Context(), key)
			if err != nil {
				slog.Error("B2B APIキーの検索に失敗しました",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if user == nil {
				slog.Warn("不正なB2B APIキーによるアクセスを拒否しました",
					slog.String("path", r.URL.Path),
					slog.String("client_ip", ClientIP(r)),
				)
				WriteErrorResponse(w, http.StatusUnauthorized,
					model.NewUnauthorizedError("B2B APIキーが無効です。"))
				return
			}
			if !user.IsBusiness {
				WriteErrorResponse(w, http.StatusForbidden,
					model.NewForbiddenError("法人ユーザーのみ利用できます。"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithB2BUser(r.Context(), user)))
		})
	}
}
