// internal/config/config.go
package config

import (
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	Database struct {
		URL string `mapstructure:"url"` // リモートレプリカ (Postgres) の接続URL
	} `mapstructure:"database"`
	Local struct {
		Path string `mapstructure:"path"` // ローカルレプリカ (SQLite) のファイルパス
	} `mapstructure:"local"`
	Server struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`
	Sync struct {
		// コンフリクト検出窓（ミリ秒）。両側の updatedAt の差がこれ未満で
		// かつ同値でない場合に ConflictInfo を記録する
		ConflictWindowMs int64 `mapstructure:"conflict_window_ms"`
	} `mapstructure:"sync"`
	Crypto struct {
		// 鍵導出ソルトの固定プレフィックス（デプロイ単位）。
		// ユーザーIDと合わせて決定的に鍵を導出するため、端末間で一致させること
		SaltPrefix string `mapstructure:"salt_prefix"`
	} `mapstructure:"crypto"`
	JWT struct {
		SecretKey string `mapstructure:"secret_key"`
	} `mapstructure:"jwt"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

var Cfg Config

func LoadConfig(path string) error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(path)
	viper.AddConfigPath(".")

	// 環境変数からの上書き (例: APP_DATABASE_URL)
	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("crypto.salt_prefix", "CRYPTO_SALT_PREFIX")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("Warning: Config file not found. Using default settings or environment variables if available.")
		} else {
			log.Printf("Error reading config file: %s\n", err)
			return err
		}
	}

	if err := viper.Unmarshal(&Cfg); err != nil {
		log.Printf("Error unmarshalling config: %s\n", err)
		return err
	}

	// --- デフォルト値の設定 ---
	if Cfg.Server.Port == "" {
		log.Println("Server port not set, using default ':8080'")
		Cfg.Server.Port = DefaultServerPort
	}
	if Cfg.Local.Path == "" {
		log.Println("Local replica path not set, using default 'vocab_local.db'")
		Cfg.Local.Path = DefaultLocalPath
	}
	if Cfg.Sync.ConflictWindowMs <= 0 {
		Cfg.Sync.ConflictWindowMs = DefaultConflictWindowMs
	}
	if Cfg.Crypto.SaltPrefix == "" {
		// 互換性のため固定デフォルトを持つ。これは秘密ではない
		Cfg.Crypto.SaltPrefix = DefaultSaltPrefix
	}
	if Cfg.Log.Level == "" {
		Cfg.Log.Level = DefaultLogLevel
	}
	if Cfg.Database.URL == "" {
		log.Println("Warning: Database URL is not set in config. Sync will report NotConfigured.")
	}

	log.Println("Config loaded successfully")
	log.Printf("Server Port: %s", Cfg.Server.Port)
	log.Printf("Local Replica Path: %s", Cfg.Local.Path)
	log.Printf("Conflict Window (ms): %d", Cfg.Sync.ConflictWindowMs)

	return nil
}
