// internal/service/merge.go
package service

import (
	"time"

	"github.com/google/uuid"

	"go_vocab_sync/internal/model"
)

// defaultConflictWindow は、両側の updatedAt の差がこれ未満（かつ同値でない）の
// 場合に「ほぼ同時の変更」としてコンフリクトを記録する窓です。
// 窓の内外で解決規則は変わらない（窓は注釈のためだけにある）。
const defaultConflictWindow = 60 * time.Second

// mergeCards はレコード全体の last-write-wins でローカル側とリモート側の
// 変更カード集合を突き合わせる純粋関数です。I/Oは行いません。
//
// 解決規則はただ一つ: updatedAt が厳密に大きい側が勝つ。同値はリモートが勝つ
// （local.After(remote) の厳密比較の否定側）。フィールド単位のマージはしない。
//
// 出力順序はローカル側の元の順序、その後にリモート専用エントリを元の順序で
// 連結したもの。意味は無いがテストで安定していること。
func mergeCards(local, remote []*model.Card, conflictWindow time.Duration) ([]*model.Card, []model.ConflictInfo) {
	if conflictWindow <= 0 {
		conflictWindow = defaultConflictWindow
	}

	remoteByID := make(map[uuid.UUID]*model.Card, len(remote))
	for _, rc := range remote {
		remoteByID[rc.CardID] = rc
	}

	merged := make([]*model.Card, 0, len(local)+len(remote))
	var conflicts []model.ConflictInfo
	seen := make(map[uuid.UUID]bool, len(local))

	for _, lc := range local {
		seen[lc.CardID] = true
		rc, onBoth := remoteByID[lc.CardID]
		if !onBoth {
			merged = append(merged, lc)
			continue
		}

		delta := lc.UpdatedAt.Sub(rc.UpdatedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta < conflictWindow && !lc.UpdatedAt.Equal(rc.UpdatedAt) {
			conflicts = append(conflicts, model.ConflictInfo{
				CardID:          lc.CardID,
				Local:           lc,
				Remote:          rc,
				LocalUpdatedAt:  lc.UpdatedAt,
				RemoteUpdatedAt: rc.UpdatedAt,
			})
		}

		if lc.UpdatedAt.After(rc.UpdatedAt) {
			merged = append(merged, lc)
		} else {
			merged = append(merged, rc)
		}
	}

	for _, rc := range remote {
		if !seen[rc.CardID] {
			merged = append(merged, rc)
		}
	}

	return merged, conflicts
}
