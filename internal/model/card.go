// internal/model/card.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CardType はカードの種類を表します（閉じた集合）
type CardType string

const (
	CardTypePlain       CardType = "plain"       // 通常の表裏カード
	CardTypeCloze       CardType = "cloze"       // 穴埋めカード
	CardTypeConjugation CardType = "conjugation" // 動詞活用カード
)

// Card は語彙フラッシュカードを表します。
// コンテンツ系フィールド（Front/Back/Example*/Notes/Cloze*）はリモート側では
// 暗号文として保存され、同期エンジンがネットワーク境界で暗号化・復号します。
type Card struct {
	CardID uuid.UUID `gorm:"type:uuid;primaryKey" json:"card_id"`
	Owner  uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`

	Type          CardType `gorm:"not null;default:plain" json:"type"`
	Front         string   `json:"front"`
	Back          string   `json:"back"`
	ExampleSource string   `json:"example_source"`
	ExampleTarget string   `json:"example_target"`
	Notes         string   `json:"notes"`
	ClozeSentence string   `json:"cloze_sentence"`
	ClozeTarget   string   `json:"cloze_target"`
	Tags          []string `gorm:"serializer:json" json:"tags"`

	// 学習スケジュール状態。外部のスケジューラが生成し、同期はそのまま運ぶだけ
	Ease           float64    `json:"ease"`
	IntervalDays   int        `json:"interval_days"`
	Reps           int        `json:"reps"`
	Lapses         int        `json:"lapses"`
	DueAt          time.Time  `json:"due_at"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt は端末側クロック。ローカル変更のたびに必ず厳密に増加させること
	// （コンフリクト検出の要）。gorm の autoUpdateTime には任せない。
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`

	// 以下はリモートレプリカ専用。ServerUpdatedAt はサーバクロックで、
	// リポジトリが upsert 時に刻印する。DeletedAt は論理削除用。
	ServerUpdatedAt time.Time      `gorm:"index" json:"-"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Card) TableName() string {
	return "cards"
}

// Touch は UpdatedAt を厳密に進めます。クロックが進んでいない場合
// （連続変更や時計の巻き戻り）でも前回値+1msを保証します。
func (c *Card) Touch(now time.Time) {
	if !now.After(c.UpdatedAt) {
		now = c.UpdatedAt.Add(time.Millisecond)
	}
	c.UpdatedAt = now
}

// Clone はカードの浅いコピーを返します（Tagsのみ複製）。
// 暗号化がマージ対象の平文を書き換えないようにするために使います。
func (c *Card) Clone() *Card {
	cp := *c
	if c.Tags != nil {
		cp.Tags = append([]string(nil), c.Tags...)
	}
	return &cp
}
