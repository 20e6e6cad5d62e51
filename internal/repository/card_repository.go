//go:generate mockery --name CardRepository --output ./mocks --outpkg mocks --case=underscore
package repository

import (
	"context"
	"fmt"
	"time"

	"go_vocab_sync/internal/middleware"
	"go_vocab_sync/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CardRepository はリモートレプリカの cards テーブルへのアクセスを抽象化します。
// 論理削除された行は GORM のデフォルトスコープにより全クエリから除外されます
// （対応するローカル側のトゥームストーンは存在しない。既知の非対称性）。
type CardRepository interface {
	CountByOwner(ctx context.Context, db *gorm.DB, owner uuid.UUID) (int64, error)
	FindActiveByOwner(ctx context.Context, db *gorm.DB, owner uuid.UUID) ([]*model.Card, error)
	FindUpdatedSince(ctx context.Context, db *gorm.DB, owner uuid.UUID, since time.Time) ([]*model.Card, error)
	Upsert(ctx context.Context, db *gorm.DB, cards []*model.Card) error
}

type gormCardRepository struct {
	now func() time.Time // サーバクロック。テストで差し替える
}

func NewGormCardRepository(now func() time.Time) CardRepository {
	if now == nil {
		now = time.Now
	}
	return &gormCardRepository{now: now}
}

func (r *gormCardRepository) CountByOwner(ctx context.Context, db *gorm.DB, owner uuid.UUID) (int64, error) {
	logger := middleware.GetLogger(ctx)
	var count int64
	result := db.WithContext(ctx).Model(&model.Card{}).Where("owner = ?", owner).Count(&count)
	if result.Error != nil {
		logger.Error("Error counting remote cards",
			"error", result.Error,
			"owner", owner.String(),
		)
		return 0, fmt.Errorf("gormCardRepository.CountByOwner: %w", result.Error)
	}
	return count, nil
}

func (r *gormCardRepository) FindActiveByOwner(ctx context.Context, db *gorm.DB, owner uuid.UUID) ([]*model.Card, error) {
	logger := middleware.GetLogger(ctx)
	var cards []*model.Card
	result := db.WithContext(ctx).Where("owner = ?", owner).Order("created_at").Find(&cards)
	if result.Error != nil {
		logger.Error("Error finding remote cards by owner",
			"error", result.Error,
			"owner", owner.String(),
		)
		return nil, fmt.Errorf("gormCardRepository.FindActiveByOwner: %w", result.Error)
	}
	return cards, nil
}

func (r *gormCardRepository) FindUpdatedSince(ctx context.Context, db *gorm.DB, owner uuid.UUID, since time.Time) ([]*model.Card, error) {
	logger := middleware.GetLogger(ctx)
	var cards []*model.Card
	result := db.WithContext(ctx).
		Where("owner = ? AND server_updated_at > ?", owner, since).
		Order("server_updated_at").
		Find(&cards)
	if result.Error != nil {
		logger.Error("Error finding remote cards updated since watermark",
			"error", result.Error,
			"owner", owner.String(),
			"since", since,
		)
		return nil, fmt.Errorf("gormCardRepository.FindUpdatedSince: %w", result.Error)
	}
	return cards, nil
}

// Upsert はカードをIDでアップサートし、server_updated_at をサーバクロックで刻印します。
// deleted_at と created_at は更新対象から外す（論理削除済み行を復活させない）。
// IDキーのアップサートなので同じウィンドウの再送は冪等。
func (r *gormCardRepository) Upsert(ctx context.Context, db *gorm.DB, cards []*model.Card) error {
	if len(cards) == 0 {
		return nil
	}
	logger := middleware.GetLogger(ctx)

	stamped := r.now()
	for _, card := range cards {
		card.ServerUpdatedAt = stamped
	}

	result := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "card_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"type", "front", "back", "example_source", "example_target",
			"notes", "cloze_sentence", "cloze_target", "tags",
			"ease", "interval_days", "reps", "lapses", "due_at", "last_reviewed_at",
			"updated_at", "server_updated_at",
		}),
	}).Create(&cards)
	if result.Error != nil {
		logger.Error("Error upserting remote cards",
			"error", result.Error,
			"count", len(cards),
		)
		return fmt.Errorf("gormCardRepository.Upsert: %w", result.Error)
	}
	return nil
}
