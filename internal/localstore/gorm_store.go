package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"go_vocab_sync/internal/model"
)

// メタKVストアのキー（ブラウザのKVストア相当の不透明なスカラー値）
const (
	metaKeyLastSyncedAt   = "last_synced_at"
	metaKeyPendingChanges = "pending_changes"
	metaKeyEncryptionKey  = "encryption_key"
)

// metaEntry はメタKVストアの1行です。値はJSONエンコードして格納します
type metaEntry struct {
	Key   string `gorm:"primaryKey"`
	Value string `gorm:"not null"`
}

func (metaEntry) TableName() string {
	return "meta"
}

type gormStore struct {
	db *gorm.DB
}

// Open は端末上の SQLite ファイルをローカルレプリカとして開きます
func Open(path string, appLogger *slog.Logger) (Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: slogGorm.New(slogGorm.WithHandler(appLogger.Handler())),
	})
	if err != nil {
		appLogger.Error("Failed to open local replica", slog.Any("error", err), slog.String("path", path))
		return nil, fmt.Errorf("localstore.Open: %w", err)
	}
	return NewWithDB(db)
}

// NewWithDB は既存の GORM 接続からストアを構築します（テスト用のインメモリ接続を含む）
func NewWithDB(db *gorm.DB) (Store, error) {
	if err := db.AutoMigrate(&model.Card{}, &model.ReviewLog{}, &metaEntry{}); err != nil {
		return nil, fmt.Errorf("localstore.NewWithDB: migrate: %w", err)
	}
	return &gormStore{db: db}, nil
}

func (s *gormStore) GetAllCards(ctx context.Context) ([]*model.Card, error) {
	var cards []*model.Card
	result := s.db.WithContext(ctx).Order("created_at").Find(&cards)
	if result.Error != nil {
		return nil, fmt.Errorf("gormStore.GetAllCards: %w", result.Error)
	}
	return cards, nil
}

func (s *gormStore) GetCardByID(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	var card model.Card
	result := s.db.WithContext(ctx).Where("card_id = ?", id).First(&card)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("gormStore.GetCardByID: %w", result.Error)
	}
	return &card, nil
}

func (s *gormStore) PutCard(ctx context.Context, card *model.Card) error {
	return s.BulkPutCards(ctx, []*model.Card{card})
}

// BulkPutCards はIDキーでレコード全体を上書きするアップサートです。
// マージ結果の取り込みが再実行されても冪等。
func (s *gormStore) BulkPutCards(ctx context.Context, cards []*model.Card) error {
	if len(cards) == 0 {
		return nil
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "card_id"}},
		UpdateAll: true,
	}).Create(&cards)
	if result.Error != nil {
		return fmt.Errorf("gormStore.BulkPutCards: %w", result.Error)
	}
	return nil
}

func (s *gormStore) RemoveCard(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Unscoped().Where("card_id = ?", id).Delete(&model.Card{})
	if result.Error != nil {
		return fmt.Errorf("gormStore.RemoveCard: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *gormStore) ClearCards(ctx context.Context) error {
	result := s.db.WithContext(ctx).Unscoped().Where("1 = 1").Delete(&model.Card{})
	if result.Error != nil {
		return fmt.Errorf("gormStore.ClearCards: %w", result.Error)
	}
	return nil
}

func (s *gormStore) CountCards(ctx context.Context) (int64, error) {
	var count int64
	result := s.db.WithContext(ctx).Model(&model.Card{}).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("gormStore.CountCards: %w", result.Error)
	}
	return count, nil
}

func (s *gormStore) CardsUpdatedSince(ctx context.Context, since time.Time) ([]*model.Card, error) {
	var cards []*model.Card
	result := s.db.WithContext(ctx).Where("updated_at > ?", since).Order("updated_at").Find(&cards)
	if result.Error != nil {
		return nil, fmt.Errorf("gormStore.CardsUpdatedSince: %w", result.Error)
	}
	return cards, nil
}

func (s *gormStore) GetAllReviews(ctx context.Context) ([]*model.ReviewLog, error) {
	var reviews []*model.ReviewLog
	result := s.db.WithContext(ctx).Order("reviewed_at").Find(&reviews)
	if result.Error != nil {
		return nil, fmt.Errorf("gormStore.GetAllReviews: %w", result.Error)
	}
	return reviews, nil
}

func (s *gormStore) BulkPutReviews(ctx context.Context, reviews []*model.ReviewLog) error {
	if len(reviews) == 0 {
		return nil
	}
	// レビューは不変なので挿入のみ。同一IDは内容比較せず無視する
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "review_id"}},
		DoNothing: true,
	}).Create(&reviews)
	if result.Error != nil {
		return fmt.Errorf("gormStore.BulkPutReviews: %w", result.Error)
	}
	return nil
}

func (s *gormStore) ReviewsSince(ctx context.Context, since time.Time) ([]*model.ReviewLog, error) {
	var reviews []*model.ReviewLog
	result := s.db.WithContext(ctx).Where("reviewed_at > ?", since).Order("reviewed_at").Find(&reviews)
	if result.Error != nil {
		return nil, fmt.Errorf("gormStore.ReviewsSince: %w", result.Error)
	}
	return reviews, nil
}

func (s *gormStore) ReviewIDs(ctx context.Context) (map[uuid.UUID]bool, error) {
	var ids []uuid.UUID
	result := s.db.WithContext(ctx).Model(&model.ReviewLog{}).Pluck("review_id", &ids)
	if result.Error != nil {
		return nil, fmt.Errorf("gormStore.ReviewIDs: %w", result.Error)
	}
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// --- メタKVストア ---

func (s *gormStore) getMeta(ctx context.Context, key string, out interface{}) (bool, error) {
	var entry metaEntry
	result := s.db.WithContext(ctx).Where("key = ?", key).First(&entry)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("gormStore.getMeta(%s): %w", key, result.Error)
	}
	if err := json.Unmarshal([]byte(entry.Value), out); err != nil {
		return false, fmt.Errorf("gormStore.getMeta(%s): decode: %w", key, err)
	}
	return true, nil
}

func (s *gormStore) setMeta(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("gormStore.setMeta(%s): encode: %w", key, err)
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&metaEntry{Key: key, Value: string(raw)})
	if result.Error != nil {
		return fmt.Errorf("gormStore.setMeta(%s): %w", key, result.Error)
	}
	return nil
}

func (s *gormStore) deleteMeta(ctx context.Context, key string) error {
	result := s.db.WithContext(ctx).Where("key = ?", key).Delete(&metaEntry{})
	if result.Error != nil {
		return fmt.Errorf("gormStore.deleteMeta(%s): %w", key, result.Error)
	}
	return nil
}

// LastSyncedAt はウォーターマークを返します。未設定なら nil（初回同期前）
func (s *gormStore) LastSyncedAt(ctx context.Context) (*time.Time, error) {
	var millis int64
	found, err := s.getMeta(ctx, metaKeyLastSyncedAt, &millis)
	if err != nil || !found {
		return nil, err
	}
	t := time.UnixMilli(millis).UTC()
	return &t, nil
}

func (s *gormStore) SetLastSyncedAt(ctx context.Context, t time.Time) error {
	return s.setMeta(ctx, metaKeyLastSyncedAt, t.UnixMilli())
}

func (s *gormStore) AppendPendingChange(ctx context.Context, change model.PendingChange) error {
	changes, err := s.PendingChanges(ctx)
	if err != nil {
		return err
	}
	changes = append(changes, change)
	return s.setMeta(ctx, metaKeyPendingChanges, changes)
}

func (s *gormStore) PendingChanges(ctx context.Context) ([]model.PendingChange, error) {
	var changes []model.PendingChange
	if _, err := s.getMeta(ctx, metaKeyPendingChanges, &changes); err != nil {
		return nil, err
	}
	return changes, nil
}

func (s *gormStore) ClearPendingChanges(ctx context.Context) error {
	return s.deleteMeta(ctx, metaKeyPendingChanges)
}

func (s *gormStore) CachedKey(ctx context.Context) (string, error) {
	var blob string
	if _, err := s.getMeta(ctx, metaKeyEncryptionKey, &blob); err != nil {
		return "", err
	}
	return blob, nil
}

func (s *gormStore) SetCachedKey(ctx context.Context, blob string) error {
	return s.setMeta(ctx, metaKeyEncryptionKey, blob)
}
