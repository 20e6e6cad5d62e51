// internal/model/error.go
package model

import "errors"

// アプリケーション固有のエラー
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInternalServer = errors.New("internal server error")
	ErrForbidden      = errors.New("forbidden")

	// 同期サブシステム固有。ConflictDetected はエラーではなく SyncResult に
	// 含まれる情報なので、ここには無い。
	ErrNotConfigured   = errors.New("remote backend not configured")
	ErrUnauthenticated = errors.New("no authenticated user")
	ErrNetwork         = errors.New("network failure")
	ErrSyncInProgress  = errors.New("sync already in progress")
	ErrOffline         = errors.New("device is offline")
)

// APIError はAPIエラーレスポンスの構造体
type APIError struct {
	Message string `json:"message"`
}
