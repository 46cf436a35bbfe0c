// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/hitoshi/ichiba/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// b2bUserContextKey はB2B認証済みユーザーを格納するキー。
var b2bUserContextKey = contextKey("b2b_user")

// WithB2BUser はB2B認証済みユーザーをコンテキストに格納する。
func WithB2BUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, b2bUserContextKey, user)
}

// B2BUserFromContext はリクエストコンテキストからB2B認証済みユーザーを取得する。
// 未認証の場合はエラーを返す。
func B2BUserFromContext(ctx context.Context) (*model.User, error) {
	user, ok := ctx.Value(b2bUserContextKey).(*model.User)
	if !ok || user == nil {
		return nil, fmt.Errorf("B2Bユーザーがコンテキストに存在しません")
	}
	return user, nil
}

// ClientIP はレート制限のキーに使用するクライアントIPを返す。
// X-Forwarded-Forの先頭エントリを優先し、なければRemoteAddrを使用する。
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		ip := strings.TrimSpace(parts[0])
		if ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
