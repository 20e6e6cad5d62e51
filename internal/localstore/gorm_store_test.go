package localstore

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

// newTestStore はテストごとに独立したインメモリSQLiteストアを作ります。
// GORMはコネクションをプールするので、名前付き共有メモリDBにする必要がある。
func newTestStore(t *testing.T) Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	store, err := NewWithDB(db)
	require.NoError(t, err)
	return store
}

func testCard(front string, updatedAt time.Time) *model.Card {
	return &model.Card{
		CardID:    uuid.New(),
		Type:      model.CardTypePlain,
		Front:     front,
		Back:      "back of " + front,
		Tags:      []string{"test"},
		CreatedAt: updatedAt.Add(-time.Hour),
		UpdatedAt: updatedAt,
		DueAt:     updatedAt.Add(24 * time.Hour),
	}
}

func Test_gormStore_Cards(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	c1 := testCard("uno", base)
	c2 := testCard("dos", base.Add(time.Minute))

	require.NoError(t, store.BulkPutCards(ctx, []*model.Card{c1, c2}))

	t.Run("GetAllCards", func(t *testing.T) {
		cards, err := store.GetAllCards(ctx)
		require.NoError(t, err)
		assert.Len(t, cards, 2)
	})

	t.Run("CountCards", func(t *testing.T) {
		count, err := store.CountCards(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("GetCardByID", func(t *testing.T) {
		card, err := store.GetCardByID(ctx, c1.CardID)
		require.NoError(t, err)
		assert.Equal(t, "uno", card.Front)
		assert.Equal(t, []string{"test"}, card.Tags)
	})

	t.Run("GetCardByID 未登録はErrNotFound", func(t *testing.T) {
		_, err := store.GetCardByID(ctx, uuid.New())
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("PutCard はIDで全体上書き", func(t *testing.T) {
		updated := c1.Clone()
		updated.Front = "uno actualizado"
		updated.Touch(base.Add(2 * time.Minute))
		require.NoError(t, store.PutCard(ctx, updated))

		card, err := store.GetCardByID(ctx, c1.CardID)
		require.NoError(t, err)
		assert.Equal(t, "uno actualizado", card.Front)

		count, err := store.CountCards(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("CardsUpdatedSince は境界値を含まない", func(t *testing.T) {
		// c2 は base+1m、更新後の c1 は base+2m
		cards, err := store.CardsUpdatedSince(ctx, base.Add(time.Minute))
		require.NoError(t, err)
		require.Len(t, cards, 1)
		assert.Equal(t, c1.CardID, cards[0].CardID)
	})

	t.Run("RemoveCard", func(t *testing.T) {
		require.NoError(t, store.RemoveCard(ctx, c2.CardID))
		assert.ErrorIs(t, store.RemoveCard(ctx, c2.CardID), model.ErrNotFound)
	})

	t.Run("ClearCards", func(t *testing.T) {
		require.NoError(t, store.ClearCards(ctx))
		count, err := store.CountCards(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})
}

func Test_gormStore_Reviews(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	r1 := &model.ReviewLog{ReviewID: uuid.New(), CardID: uuid.New(), ReviewedAt: base, Grade: model.GradeGood}
	r2 := &model.ReviewLog{ReviewID: uuid.New(), CardID: uuid.New(), ReviewedAt: base.Add(time.Minute), Grade: model.GradeAgain}

	require.NoError(t, store.BulkPutReviews(ctx, []*model.ReviewLog{r1, r2}))

	t.Run("同一IDの再投入は内容に関わらず無視", func(t *testing.T) {
		dup := &model.ReviewLog{ReviewID: r1.ReviewID, CardID: r1.CardID, ReviewedAt: base, Grade: model.GradeEasy}
		require.NoError(t, store.BulkPutReviews(ctx, []*model.ReviewLog{dup}))

		reviews, err := store.GetAllReviews(ctx)
		require.NoError(t, err)
		require.Len(t, reviews, 2)

		// 先勝ち: 元の Grade が残る
		for _, review := range reviews {
			if review.ReviewID == r1.ReviewID {
				assert.Equal(t, model.GradeGood, review.Grade)
			}
		}
	})

	t.Run("ReviewsSince", func(t *testing.T) {
		reviews, err := store.ReviewsSince(ctx, base)
		require.NoError(t, err)
		require.Len(t, reviews, 1)
		assert.Equal(t, r2.ReviewID, reviews[0].ReviewID)
	})

	t.Run("ReviewIDs", func(t *testing.T) {
		ids, err := store.ReviewIDs(ctx)
		require.NoError(t, err)
		assert.True(t, ids[r1.ReviewID])
		assert.True(t, ids[r2.ReviewID])
		assert.False(t, ids[uuid.New()])
	})
}

func Test_gormStore_Meta(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	t.Run("ウォーターマーク未設定はnil", func(t *testing.T) {
		watermark, err := store.LastSyncedAt(ctx)
		require.NoError(t, err)
		assert.Nil(t, watermark)
	})

	t.Run("ウォーターマークの往復 (ミリ秒精度)", func(t *testing.T) {
		at := time.Date(2025, 6, 1, 12, 0, 0, 123_000_000, time.UTC)
		require.NoError(t, store.SetLastSyncedAt(ctx, at))

		watermark, err := store.LastSyncedAt(ctx)
		require.NoError(t, err)
		require.NotNil(t, watermark)
		assert.True(t, at.Equal(*watermark))
	})

	t.Run("保留変更台帳は追記とクリアのみ", func(t *testing.T) {
		change1 := model.PendingChange{Kind: model.PendingKindCard, Action: model.PendingActionUpdate, ID: uuid.New(), Timestamp: time.Now().UTC()}
		change2 := model.PendingChange{Kind: model.PendingKindReview, Action: model.PendingActionCreate, ID: uuid.New(), Timestamp: time.Now().UTC()}

		require.NoError(t, store.AppendPendingChange(ctx, change1))
		require.NoError(t, store.AppendPendingChange(ctx, change2))

		changes, err := store.PendingChanges(ctx)
		require.NoError(t, err)
		require.Len(t, changes, 2)
		assert.Equal(t, change1.ID, changes[0].ID)
		assert.Equal(t, change2.ID, changes[1].ID)

		require.NoError(t, store.ClearPendingChanges(ctx))
		changes, err = store.PendingChanges(ctx)
		require.NoError(t, err)
		assert.Empty(t, changes)
	})

	t.Run("書き出し鍵のキャッシュ", func(t *testing.T) {
		blob, err := store.CachedKey(ctx)
		require.NoError(t, err)
		assert.Equal(t, "", blob)

		require.NoError(t, store.SetCachedKey(ctx, "base64-key-blob"))
		blob, err = store.CachedKey(ctx)
		require.NoError(t, err)
		assert.Equal(t, "base64-key-blob", blob)
	})
}
