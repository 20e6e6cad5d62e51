//go:generate mockery --name SyncLogRepository --output ./mocks --outpkg mocks --case=underscore
package repository

import (
	"context"
	"fmt"
	"time"

	"go_vocab_sync/internal/middleware"
	"go_vocab_sync/internal/model"

	"gorm.io/gorm"
)

// SyncLogRepository は sync_log 監査テーブルへの追記を抽象化します（書き込み専用）
type SyncLogRepository interface {
	Append(ctx context.Context, db *gorm.DB, entry *model.SyncLog) error
}

type gormSyncLogRepository struct {
	now func() time.Time
}

func NewGormSyncLogRepository(now func() time.Time) SyncLogRepository {
	if now == nil {
		now = time.Now
	}
	return &gormSyncLogRepository{now: now}
}

func (r *gormSyncLogRepository) Append(ctx context.Context, db *gorm.DB, entry *model.SyncLog) error {
	logger := middleware.GetLogger(ctx)
	entry.CreatedAt = r.now()
	result := db.WithContext(ctx).Create(entry)
	if result.Error != nil {
		logger.Error("Error appending sync log entry",
			"error", result.Error,
			"owner", entry.Owner.String(),
			"action", string(entry.Action),
		)
		return fmt.Errorf("gormSyncLogRepository.Append: %w", result.Error)
	}
	return nil
}
