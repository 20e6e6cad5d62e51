// internal/service/identity.go
package service

import (
	"context"

	"go_vocab_sync/internal/middleware"
	"go_vocab_sync/internal/model"
)

// ContextIdentity は認証ミドルウェアがコンテキストに載せた現在ユーザーを
// そのまま返す IdentityProvider 実装です。HTTP境界ではこれを使い、
// テストではフェイクの IdentityProvider を注入します。
type ContextIdentity struct{}

func (ContextIdentity) CurrentUser(ctx context.Context) (*model.User, error) {
	return middleware.UserFromContext(ctx), nil
}
