// internal/model/sync.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// SyncState は同期エンジンの状態遷移 idle → syncing → {success | error} を表します。
// offline は接続イベント駆動の直交した状態で、syncing への遷移を先取りして防ぎます。
type SyncState string

const (
	SyncStateIdle    SyncState = "idle"
	SyncStateSyncing SyncState = "syncing"
	SyncStateSuccess SyncState = "success"
	SyncStateError   SyncState = "error"
	SyncStateOffline SyncState = "offline"
)

// SyncStatus は状態インジケータ向けのスナップショットです
type SyncStatus struct {
	State      SyncState  `json:"state"`
	Online     bool       `json:"online"`
	LastSynced *time.Time `json:"last_synced,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

// ConflictInfo はコンフリクト窓内で検出された両側変更の注釈です。
// 解決自体は単一の比較規則（updatedAtが厳密に大きい側、同値はリモート）で
// 決定的に行われ、これはその上に載る情報でしかありません。
type ConflictInfo struct {
	CardID          uuid.UUID `json:"card_id"`
	Local           *Card     `json:"local"`
	Remote          *Card     `json:"remote"`
	LocalUpdatedAt  time.Time `json:"local_updated_at"`
	RemoteUpdatedAt time.Time `json:"remote_updated_at"`
}

// SyncResult は同期の公開操作が返す一様な結果値です。
// 同期エンジンの境界を例外（error）は越えません。呼び出し側は Success で分岐します。
type SyncResult struct {
	Success           bool           `json:"success"`
	Message           string         `json:"message,omitempty"`
	CardsUploaded     int            `json:"cards_uploaded"`
	CardsDownloaded   int            `json:"cards_downloaded"`
	ReviewsUploaded   int            `json:"reviews_uploaded"`
	ReviewsDownloaded int            `json:"reviews_downloaded"`
	Conflicts         []ConflictInfo `json:"conflicts,omitempty"`
}

// PendingChangeKind / PendingChangeAction はオフライン変更台帳のエントリ種別です
type PendingChangeKind string

const (
	PendingKindCard   PendingChangeKind = "card"
	PendingKindReview PendingChangeKind = "review"
)

type PendingChangeAction string

const (
	PendingActionCreate PendingChangeAction = "create"
	PendingActionUpdate PendingChangeAction = "update"
	PendingActionDelete PendingChangeAction = "delete"
)

// PendingChange はオフライン中のローカル変更を記録する追記専用の台帳エントリです。
// 現行設計では書き込みのみで、同期パスから読み戻されることはありません。
type PendingChange struct {
	Kind      PendingChangeKind   `json:"kind"`
	Action    PendingChangeAction `json:"action"`
	ID        uuid.UUID           `json:"id"`
	Timestamp time.Time           `json:"timestamp"`
}

// RecordChangeRequest は保留変更台帳への追記リクエストDTO
type RecordChangeRequest struct {
	Kind   string `json:"kind" validate:"required,oneof=card review"`
	Action string `json:"action" validate:"required,oneof=create update delete"`
	ID     string `json:"id" validate:"required,uuid"`
}

// User は外部のアイデンティティプロバイダが返す現在ユーザーです
type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}
