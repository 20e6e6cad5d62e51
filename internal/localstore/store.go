package localstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"go_vocab_sync/internal/model"
)

// Store は端末上のローカルレプリカです。カード・レビューのオブジェクトストアと、
// 同期ウォーターマーク／保留変更台帳／書き出し済み暗号鍵を保持する
// メタKVストアを提供します。
//
// ローカルレプリカは同期中は同期エンジンだけが、同期間は（外部の）作成・復習
// フローだけが書き込みます。両者間のロックは存在しないため、同期実行中の変更は
// 次回の同期で拾われます（UpdatedAt が書き込みコミット前に設定される限り、
// 取りこぼしにはならない）。
type Store interface {
	// カードストア
	GetAllCards(ctx context.Context) ([]*model.Card, error)
	GetCardByID(ctx context.Context, id uuid.UUID) (*model.Card, error)
	PutCard(ctx context.Context, card *model.Card) error
	BulkPutCards(ctx context.Context, cards []*model.Card) error
	RemoveCard(ctx context.Context, id uuid.UUID) error
	ClearCards(ctx context.Context) error
	CountCards(ctx context.Context) (int64, error)
	// updated_at の二次インデックスに対する範囲クエリ
	CardsUpdatedSince(ctx context.Context, since time.Time) ([]*model.Card, error)

	// レビューストア（追記専用・IDで重複排除）
	GetAllReviews(ctx context.Context) ([]*model.ReviewLog, error)
	BulkPutReviews(ctx context.Context, reviews []*model.ReviewLog) error
	ReviewsSince(ctx context.Context, since time.Time) ([]*model.ReviewLog, error)
	ReviewIDs(ctx context.Context) (map[uuid.UUID]bool, error)

	// メタKVストア
	LastSyncedAt(ctx context.Context) (*time.Time, error)
	SetLastSyncedAt(ctx context.Context, t time.Time) error
	AppendPendingChange(ctx context.Context, change model.PendingChange) error
	PendingChanges(ctx context.Context) ([]model.PendingChange, error)
	ClearPendingChanges(ctx context.Context) error
	CachedKey(ctx context.Context) (string, error)
	SetCachedKey(ctx context.Context, blob string) error
}
