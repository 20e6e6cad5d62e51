package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go_vocab_sync/internal/config"
	"go_vocab_sync/internal/model"
	"go_vocab_sync/internal/webutil"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// userCtxKey はコンテキストに現在ユーザーを格納するためのキーです。
type userCtxKey struct{}

// JWTAuthMiddleware は Authorization ヘッダーの Bearer トークンを検証し、
// アイデンティティプロバイダが発行した現在ユーザーをコンテキストに載せます。
// 同期エンジンはこのユーザーのIDで全レコードをスコープします。
func JWTAuthMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := GetLogger(r.Context())

			// 1. Authorization ヘッダーからトークンを取得
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("JWT auth failed: Authorization header missing")
				webutil.RespondWithError(w, http.StatusUnauthorized, "Authorizationヘッダーが必要です。")
				return
			}

			// "Bearer {token}" の形式を検証
			headerParts := strings.Split(authHeader, " ")
			if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
				logger.Warn("JWT auth failed: Invalid Authorization header format")
				webutil.RespondWithError(w, http.StatusUnauthorized, "Authorizationヘッダーの形式が正しくありません。")
				return
			}
			tokenString := headerParts[1]

			// 2. JWTをパースし、署名と有効期限を検証
			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				// 署名アルゴリズムが期待通り(HS256)かチェック
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.New("unexpected signing method")
				}
				return []byte(cfg.JWT.SecretKey), nil
			})
			if err != nil {
				logger.Warn("JWT auth failed: Invalid token", "error", err)
				webutil.RespondWithError(w, http.StatusUnauthorized, "トークンが無効です。")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok || !token.Valid {
				logger.Warn("JWT auth failed: Unknown claims type or invalid token")
				webutil.RespondWithError(w, http.StatusUnauthorized, "トークンが無効です。")
				return
			}

			// 3. ペイロードから subject (ユーザーID) を取得
			subject, err := claims.GetSubject()
			if err != nil {
				logger.Warn("JWT auth failed: Subject (sub) claim missing", "error", err)
				webutil.RespondWithError(w, http.StatusUnauthorized, "トークンにユーザー情報が含まれていません。")
				return
			}
			userID, err := uuid.Parse(subject)
			if err != nil {
				logger.Warn("JWT auth failed: Invalid subject (sub) format", "subject", subject, "error", err)
				webutil.RespondWithError(w, http.StatusUnauthorized, "トークンのユーザー情報が不正です。")
				return
			}

			user := &model.User{ID: userID}
			if email, ok := claims["email"].(string); ok {
				user.Email = email
			}

			ctx := context.WithValue(r.Context(), userCtxKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext はコンテキストから現在ユーザーを取得します。
// 未認証（ミドルウェア未通過）なら nil を返します。
func UserFromContext(ctx context.Context) *model.User {
	if user, ok := ctx.Value(userCtxKey{}).(*model.User); ok {
		return user
	}
	return nil
}

// WithUser はテストや非HTTP経路で現在ユーザーをコンテキストに載せるためのヘルパーです
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, user)
}
