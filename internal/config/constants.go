// internal/config/constants.go
package config

// アプリケーション情報
const (
	AppName    = "VocabSync"
	AppVersion = "1.0.0"
)

// デフォルト設定値
const (
	DefaultServerPort       = ":8080"
	DefaultLogLevel         = "info"
	DefaultLocalPath        = "vocab_local.db"
	DefaultConflictWindowMs = 60_000
	DefaultSaltPrefix       = "vocab-sync-salt:"
)
