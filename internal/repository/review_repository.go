//go:generate mockery --name ReviewRepository --output ./mocks --outpkg mocks --case=underscore
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

// ReviewRepository はリモートレプリカの reviews テーブルへのアクセスを抽象化します。
// レビューは不変の追記専用レコードなので、アップサートは「存在しなければ挿入」のみ。
type ReviewRepository interface {
	CountByOwner(ctx context.Context, db *gorm.DB, owner uuid.UUID) (int64, error)
	FindByOwner(ctx context.Context, db *gorm.DB, owner uuid.UUID) ([]*model.ReviewLog, error)
	FindCreatedSince(ctx context.Context, db *gorm.DB, owner uuid.UUID, since time.Time) ([]*model.ReviewLog, error)
	Upsert(ctx context.Context, db *gorm.DB, reviews []*model.ReviewLog) error
}

type gormReviewRepository struct {
	now func() time.Time
}

func NewGormReviewRepository(now func() time.Time) ReviewRepository {
	if now == nil {
		now = time.Now
	}
	return &gormReviewRepository{now: now}
}

func (r *gormReviewRepository) CountByOwner(ctx context.Context, db *gorm.DB, owner uuid.UUID) (int64, error) {
	logger := middleware.GetLogger(ctx)
	var count int64
	result := db.WithContext(ctx).Model(&model.ReviewLog{}).Where("owner = ?", owner).Count(&count)
	if result.Error != nil {
		logger.Error("Error counting remote reviews",
			"error", result.Error,
			"owner", owner.String(),
		)
		return 0, fmt.Errorf("gormReviewRepository.CountByOwner: %w", result.Error)
	}
	return count, nil
}

func (r *gormReviewRepository) FindByOwner(ctx context.Context, db *gorm.DB, owner uuid.UUID) ([]*model.ReviewLog, error) {
	logger := middleware.GetLogger(ctx)
	var reviews []*model.ReviewLog
	result := db.WithContext(ctx).Where("owner = ?", owner).Order("reviewed_at").Find(&reviews)
	if result.Error != nil {
		logger.Error("Error finding remote reviews by owner",
			"error", result.Error,
			"owner", owner.String(),
		)
		return nil, fmt.Errorf("gormReviewRepository.FindByOwner: %w", result.Error)
	}
	return reviews, nil
}

func (r *gormReviewRepository) FindCreatedSince(ctx context.Context, db *gorm.DB, owner uuid.UUID, since time.Time) ([]*model.ReviewLog, error) {
	logger := middleware.GetLogger(ctx)
	var reviews []*model.ReviewLog
	result := db.WithContext(ctx).
		Where("owner = ? AND server_created_at > ?", owner, since).
		Order("server_created_at").
		Find(&reviews)
	if result.Error != nil {
		logger.Error("Error finding remote reviews created since watermark",
			"error", result.Error,
			"owner", owner.String(),
			"since", since,
		)
		return nil, fmt.Errorf("gormReviewRepository.FindCreatedSince: %w", result.Error)
	}
	return reviews, nil
}

func (r *gormReviewRepository) Upsert(ctx context.Context, db *gorm.DB, reviews []*model.ReviewLog) error {
	if len(reviews) == 0 {
		return nil
	}
	logger := middleware.GetLogger(ctx)

	stamped := r.now()
	for _, review := range reviews {
		review.ServerCreatedAt = stamped
	}

	result := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "review_id"}},
		DoNothing: true,
	}).Create(&reviews)
	if result.Error != nil {
		logger.Error("Error upserting remote reviews",
			"error", result.Error,
			"count", len(reviews),
		)
		return fmt.Errorf("gormReviewRepository.Upsert: %w", result.Error)
	}
	return nil
}
