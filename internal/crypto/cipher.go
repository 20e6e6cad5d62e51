// internal/crypto/cipher.go
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"go_vocab_sync/internal/model"
)

const (
	// PBKDF2 の反復回数。全端末で同一の鍵を導出するため固定
	keyIterations = 100_000
	keyLength     = 32 // AES-256
	nonceLength   = 12 // GCM標準の96bitノンス
)

// Cipher は同期エンジンが利用する暗号化サービスのインターフェースです
type Cipher interface {
	DeriveKey(userID string) ([]byte, error)
	EncryptField(plain string, key []byte) (string, error)
	DecryptField(blob string, key []byte) string
	EncryptCard(card *model.Card, key []byte) error
	DecryptCard(card *model.Card, key []byte)
	ExportKey(key []byte) string
	ImportKey(blob string) ([]byte, error)
}

type service struct {
	saltPrefix string
}

func NewService(saltPrefix string) Cipher {
	return &service{saltPrefix: saltPrefix}
}

// DeriveKey はユーザーIDから対称鍵を決定的に導出します。
// 同じユーザーIDはどの端末でも同じ鍵になるため、端末間の鍵交換は不要です。
//
// 注意: ユーザーIDは公開識別子でありソルトプレフィックスもコードから見えるため、
// バックエンドが侵害された場合この鍵は再導出可能で、実質的な機密性はありません。
// 既存データとの互換性のため、この決定的な導出仕様を意図的に維持しています。
func (s *service) DeriveKey(userID string) ([]byte, error) {
	if userID == "" {
		return nil, model.ErrUnauthenticated
	}
	salt := []byte(s.saltPrefix + userID)
	return pbkdf2.Key([]byte(userID), salt, keyIterations, keyLength, sha256.New), nil
}

// EncryptField は平文を AES-256-GCM で認証付き暗号化し、
// base64(nonce ‖ ciphertext) を返します。ノンスは呼び出しごとにランダムなので、
// 同じ平文でも2回の呼び出しは必ず異なるブロブになります。
// 空文字列はノンスを消費せずそのまま空文字列を返します。
func (s *service) EncryptField(plain string, key []byte) (string, error) {
	if plain == "" {
		return "", nil
	}
	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypto.EncryptField: nonce generation: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptField はブロブを復号します。破損・切り詰め・鍵違いなど
// いかなる失敗でも panic や error にせず空文字列を返します（fail-soft方針）。
// 復号失敗を「空フィールド」に落とすことで同期パス全体の失敗を避けるトレードオフで、
// 情報の欠落は黙って起きる。この挙動は互換性要件であり変更しないこと。
func (s *service) DecryptField(blob string, key []byte) string {
	if blob == "" {
		return ""
	}
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil || len(raw) <= nonceLength {
		return ""
	}
	aead, err := newGCM(key)
	if err != nil {
		return ""
	}
	plain, err := aead.Open(nil, raw[:nonceLength], raw[nonceLength:], nil)
	if err != nil {
		return ""
	}
	return string(plain)
}

// encryptedFields はカードのうち暗号化対象となるフィールドを列挙します。
// これ以外のフィールド（種別・タグ・スケジュール状態・各種タイムスタンプ）は
// 平文のままネットワークを渡ります。
func encryptedFields(card *model.Card) []*string {
	return []*string{
		&card.Front,
		&card.Back,
		&card.ExampleSource,
		&card.ExampleTarget,
		&card.Notes,
		&card.ClozeSentence,
		&card.ClozeTarget,
	}
}

// EncryptCard はカードのコンテンツフィールドをその場で暗号化します
func (s *service) EncryptCard(card *model.Card, key []byte) error {
	for _, field := range encryptedFields(card) {
		enc, err := s.EncryptField(*field, key)
		if err != nil {
			return fmt.Errorf("crypto.EncryptCard: %w", err)
		}
		*field = enc
	}
	return nil
}

// DecryptCard はカードのコンテンツフィールドをその場で復号します。
// 各フィールドは fail-soft なのでエラーは返しません。
func (s *service) DecryptCard(card *model.Card, key []byte) {
	for _, field := range encryptedFields(card) {
		*field = s.DecryptField(*field, key)
	}
}

// ExportKey / ImportKey はローカルストアにキャッシュする際の書き出し形式です
func (s *service) ExportKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

func (s *service) ImportKey(blob string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("crypto.ImportKey: %w", err)
	}
	if len(key) != keyLength {
		return nil, fmt.Errorf("crypto.ImportKey: unexpected key length %d", len(key))
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new gcm: %w", err)
	}
	return aead, nil
}
