// internal/model/sync_log.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// SyncAction は監査ログに記録する同期の種別です
type SyncAction string

const (
	SyncActionUpload   SyncAction = "upload"
	SyncActionDownload SyncAction = "download"
	SyncActionMerge    SyncAction = "merge"
)

// SyncLog は同期1回ごとに追記される監査レコードです（追記専用）。
// CardsAffected / ReviewsAffected はそのパスのアップロード数とダウンロード数の合計。
type SyncLog struct {
	ID              uint       `gorm:"primaryKey" json:"-"`
	Owner           uuid.UUID  `gorm:"type:uuid;not null;index" json:"-"`
	Action          SyncAction `gorm:"not null" json:"action"`
	CardsAffected   int        `json:"cards_affected"`
	ReviewsAffected int        `json:"reviews_affected"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (SyncLog) TableName() string {
	return "sync_log"
}
