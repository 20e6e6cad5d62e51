// internal/model/review_log.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// ReviewGrade は復習結果の4段階評価です
type ReviewGrade int

const (
	GradeAgain ReviewGrade = iota + 1 // 1: 不正解
	GradeHard                         // 2
	GradeGood                         // 3
	GradeEasy                         // 4
)

// ReviewLog は1回の復習イベントを表す不変の監査レコードです。
// 作成後は変更されず、同期ではマージせずIDで重複排除のみ行います。
// CardID は構造的に強制しない（宙に浮いた参照はエラーではなく許容）。
type ReviewLog struct {
	ReviewID uuid.UUID `gorm:"type:uuid;primaryKey" json:"review_id"`
	Owner    uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`
	CardID   uuid.UUID `gorm:"type:uuid;index" json:"card_id"`

	ReviewedAt       time.Time   `gorm:"index" json:"reviewed_at"`
	Grade            ReviewGrade `json:"grade"`
	PreviousInterval int         `json:"previous_interval"`
	NewInterval      int         `json:"new_interval"`
	PreviousDueAt    time.Time   `json:"previous_due_at"`
	NewDueAt         time.Time   `json:"new_due_at"`

	// リモートレプリカ専用。サーバクロックで刻印される
	ServerCreatedAt time.Time `gorm:"index" json:"-"`
}

func (ReviewLog) TableName() string {
	return "reviews"
}
