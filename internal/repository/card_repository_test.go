package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go_vocab_sync/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Card{}, &model.ReviewLog{}, &model.SyncLog{}))
	return db
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestGormCardRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	serverNow := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	owner := uuid.New()

	t.Run("正常系: server_updated_at がサーバクロックで刻印される", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormCardRepository(fixedClock(serverNow))

		card := &model.Card{
			CardID:    uuid.New(),
			Owner:     owner,
			Front:     "hola",
			CreatedAt: serverNow.Add(-time.Hour),
			UpdatedAt: serverNow.Add(-time.Hour),
		}
		require.NoError(t, repo.Upsert(ctx, db, []*model.Card{card}))

		var saved model.Card
		require.NoError(t, db.Where("card_id = ?", card.CardID).First(&saved).Error)
		assert.True(t, serverNow.Equal(saved.ServerUpdatedAt))
		// 端末発行の updatedAt はそのまま保存される
		assert.True(t, card.UpdatedAt.Equal(saved.UpdatedAt))
	})

	t.Run("正常系: 同一IDの再送は冪等に上書きする", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormCardRepository(fixedClock(serverNow))

		card := &model.Card{CardID: uuid.New(), Owner: owner, Front: "v1", CreatedAt: serverNow, UpdatedAt: serverNow}
		require.NoError(t, repo.Upsert(ctx, db, []*model.Card{card}))

		later := NewGormCardRepository(fixedClock(serverNow.Add(time.Minute)))
		card.Front = "v2"
		card.UpdatedAt = serverNow.Add(30 * time.Second)
		require.NoError(t, later.Upsert(ctx, db, []*model.Card{card}))

		var count int64
		require.NoError(t, db.Model(&model.Card{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)

		var saved model.Card
		require.NoError(t, db.Where("card_id = ?", card.CardID).First(&saved).Error)
		assert.Equal(t, "v2", saved.Front)
		assert.True(t, serverNow.Add(time.Minute).Equal(saved.ServerUpdatedAt))
	})

	t.Run("正常系: 論理削除済みの行はアップサートで復活しない", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormCardRepository(fixedClock(serverNow))

		card := &model.Card{CardID: uuid.New(), Owner: owner, Front: "borrar", CreatedAt: serverNow, UpdatedAt: serverNow}
		require.NoError(t, repo.Upsert(ctx, db, []*model.Card{card}))
		require.NoError(t, db.Where("card_id = ?", card.CardID).Delete(&model.Card{}).Error)

		// 古い端末が同じカードを再送しても deleted_at は更新対象外
		require.NoError(t, repo.Upsert(ctx, db, []*model.Card{card}))

		var active int64
		require.NoError(t, db.Model(&model.Card{}).Where("card_id = ?", card.CardID).Count(&active).Error)
		assert.Zero(t, active, "soft-deleted card must stay invisible")
	})
}

func TestGormCardRepository_FindUpdatedSince(t *testing.T) {
	ctx := context.Background()
	serverNow := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	owner := uuid.New()
	db := newTestDB(t)

	put := func(front string, stamp time.Time, cardOwner uuid.UUID) *model.Card {
		repo := NewGormCardRepository(fixedClock(stamp))
		card := &model.Card{CardID: uuid.New(), Owner: cardOwner, Front: front, CreatedAt: stamp, UpdatedAt: stamp}
		require.NoError(t, repo.Upsert(ctx, db, []*model.Card{card}))
		return card
	}

	old := put("old", serverNow.Add(-time.Hour), owner)
	boundary := put("boundary", serverNow, owner)
	fresh := put("fresh", serverNow.Add(time.Minute), owner)
	put("other owner", serverNow.Add(time.Minute), uuid.New())

	repo := NewGormCardRepository(nil)
	found, err := repo.FindUpdatedSince(ctx, db, owner, serverNow)
	require.NoError(t, err)

	// 境界は排他的（watermark ちょうどの行は既に同期済み扱い）、他所有者は除外
	require.Len(t, found, 1)
	assert.Equal(t, fresh.CardID, found[0].CardID)
	assert.NotEqual(t, old.CardID, found[0].CardID)
	assert.NotEqual(t, boundary.CardID, found[0].CardID)
}

func TestGormReviewRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	serverNow := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	owner := uuid.New()
	db := newTestDB(t)
	repo := NewGormReviewRepository(fixedClock(serverNow))

	review := &model.ReviewLog{
		ReviewID:   uuid.New(),
		Owner:      owner,
		CardID:     uuid.New(),
		ReviewedAt: serverNow.Add(-time.Minute),
		Grade:      model.GradeGood,
	}
	require.NoError(t, repo.Upsert(ctx, db, []*model.ReviewLog{review}))

	// 同一IDの再送は内容を比較せず無視される
	dup := *review
	dup.Grade = model.GradeAgain
	require.NoError(t, repo.Upsert(ctx, db, []*model.ReviewLog{&dup}))

	var saved []*model.ReviewLog
	require.NoError(t, db.Find(&saved).Error)
	require.Len(t, saved, 1)
	assert.Equal(t, model.GradeGood, saved[0].Grade)
	assert.True(t, serverNow.Equal(saved[0].ServerCreatedAt))
}

func TestGormReviewRepository_FindCreatedSince(t *testing.T) {
	ctx := context.Background()
	serverNow := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	owner := uuid.New()
	db := newTestDB(t)

	oldRepo := NewGormReviewRepository(fixedClock(serverNow.Add(-time.Hour)))
	require.NoError(t, oldRepo.Upsert(ctx, db, []*model.ReviewLog{
		{ReviewID: uuid.New(), Owner: owner, CardID: uuid.New(), ReviewedAt: serverNow, Grade: model.GradeGood},
	}))
	freshRepo := NewGormReviewRepository(fixedClock(serverNow.Add(time.Minute)))
	freshID := uuid.New()
	require.NoError(t, freshRepo.Upsert(ctx, db, []*model.ReviewLog{
		{ReviewID: freshID, Owner: owner, CardID: uuid.New(), ReviewedAt: serverNow, Grade: model.GradeEasy},
	}))

	found, err := freshRepo.FindCreatedSince(ctx, db, owner, serverNow)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, freshID, found[0].ReviewID)
}

func TestGormSyncLogRepository_Append(t *testing.T) {
	ctx := context.Background()
	serverNow := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	owner := uuid.New()
	db := newTestDB(t)
	repo := NewGormSyncLogRepository(fixedClock(serverNow))

	entry := &model.SyncLog{
		Owner:           owner,
		Action:          model.SyncActionMerge,
		CardsAffected:   4,
		ReviewsAffected: 2,
	}
	require.NoError(t, repo.Append(ctx, db, entry))

	var saved []*model.SyncLog
	require.NoError(t, db.Find(&saved).Error)
	require.Len(t, saved, 1)
	assert.Equal(t, model.SyncActionMerge, saved[0].Action)
	assert.Equal(t, 4, saved[0].CardsAffected)
	assert.True(t, serverNow.Equal(saved[0].CreatedAt))
}
