package auth

import (
	"log"
	"net/http"
	"strings"
)

// Require 创建写操作认证中间件
//
// 令牌来源两种：token 查询参数，或 Authorization: Bearer 头。
// cfg.Enabled() == false 时放行所有请求（无认证模式）。
func Require(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			tokenString := extractToken(r)
			if tokenString == "" {
				unauthorized(w, "missing token")
				return
			}

			claims, err := ParseToken(cfg, tokenString)
			if err != nil {
				log.Printf("[Auth] Token parse error: %v", err)
				unauthorized(w, "invalid or expired token")
				return
			}

			actor := &Actor{
				ID:    claims.Subject,
				Name:  claims.Name,
				Email: claims.Email,
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// extractToken 按 token 查询参数 → Bearer 头的顺序取令牌
func extractToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"success":false,"message":"` + msg + `"}`))
}
