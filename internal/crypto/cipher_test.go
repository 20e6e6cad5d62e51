package crypto

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go_vocab_sync/internal/model"
)

func newTestCipher() Cipher {
	return NewService("test-salt:")
}

func Test_DeriveKey(t *testing.T) {
	c := newTestCipher()

	t.Run("正常系: 同じユーザーIDは常に同じ鍵", func(t *testing.T) {
		key1, err := c.DeriveKey("user-a")
		require.NoError(t, err)
		key2, err := c.DeriveKey("user-a")
		require.NoError(t, err)
		assert.Equal(t, key1, key2)
		assert.Len(t, key1, 32)
	})

	t.Run("正常系: 異なるユーザーIDは異なる鍵", func(t *testing.T) {
		key1, err := c.DeriveKey("user-a")
		require.NoError(t, err)
		key2, err := c.DeriveKey("user-b")
		require.NoError(t, err)
		assert.NotEqual(t, key1, key2)
	})

	t.Run("正常系: ソルトプレフィックスが違えば鍵も違う", func(t *testing.T) {
		other := NewService("other-salt:")
		key1, err := c.DeriveKey("user-a")
		require.NoError(t, err)
		key2, err := other.DeriveKey("user-a")
		require.NoError(t, err)
		assert.NotEqual(t, key1, key2)
	})

	t.Run("異常系: 空のユーザーID", func(t *testing.T) {
		_, err := c.DeriveKey("")
		assert.ErrorIs(t, err, model.ErrUnauthenticated)
	})
}

func Test_EncryptField_RoundTrip(t *testing.T) {
	c := newTestCipher()
	key, err := c.DeriveKey("user-a")
	require.NoError(t, err)

	// 空文字列とUnicodeを含む任意の文字列で往復すること
	plaintexts := []string{
		"",
		"hola",
		"こんにちは世界",
		"él no habría hablado",
		"emoji 🃏 and \t control \n chars",
		"a",
	}

	for _, plain := range plaintexts {
		blob, err := c.EncryptField(plain, key)
		require.NoError(t, err)
		assert.Equal(t, plain, c.DecryptField(blob, key), "round trip for %q", plain)
	}
}

func Test_EncryptField_EmptyShortCircuit(t *testing.T) {
	c := newTestCipher()
	key, err := c.DeriveKey("user-a")
	require.NoError(t, err)

	// 空文字列はノンスを消費せずそのまま空を返す
	blob, err := c.EncryptField("", key)
	require.NoError(t, err)
	assert.Equal(t, "", blob)
}

func Test_EncryptField_NonDeterministic(t *testing.T) {
	c := newTestCipher()
	key, err := c.DeriveKey("user-a")
	require.NoError(t, err)

	blob1, err := c.EncryptField("hola", key)
	require.NoError(t, err)
	blob2, err := c.EncryptField("hola", key)
	require.NoError(t, err)

	// ノンスがランダムなので同じ平文・同じ鍵でもブロブは必ず異なる
	assert.NotEqual(t, blob1, blob2)
}

func Test_DecryptField_FailSoft(t *testing.T) {
	c := newTestCipher()
	key, err := c.DeriveKey("user-a")
	require.NoError(t, err)

	t.Run("改ざん耐性: どの1バイトを反転しても空文字列", func(t *testing.T) {
		blob, err := c.EncryptField("hola", key)
		require.NoError(t, err)

		raw, err := base64.StdEncoding.DecodeString(blob)
		require.NoError(t, err)

		for i := range raw {
			tampered := append([]byte(nil), raw...)
			tampered[i] ^= 0x01
			result := c.DecryptField(base64.StdEncoding.EncodeToString(tampered), key)
			assert.Equal(t, "", result, "byte %d flipped", i)
		}
	})

	t.Run("鍵違いは空文字列", func(t *testing.T) {
		otherKey, err := c.DeriveKey("user-b")
		require.NoError(t, err)
		blob, err := c.EncryptField("hola", key)
		require.NoError(t, err)
		assert.Equal(t, "", c.DecryptField(blob, otherKey))
	})

	t.Run("base64でないブロブは空文字列", func(t *testing.T) {
		assert.Equal(t, "", c.DecryptField("not-base64!!", key))
	})

	t.Run("切り詰められたブロブは空文字列", func(t *testing.T) {
		short := base64.StdEncoding.EncodeToString([]byte("tiny"))
		assert.Equal(t, "", c.DecryptField(short, key))
	})
}

func Test_EncryptCard_FieldSubset(t *testing.T) {
	c := newTestCipher()
	key, err := c.DeriveKey("user-a")
	require.NoError(t, err)

	now := time.Now()
	card := &model.Card{
		Type:          model.CardTypeCloze,
		Front:         "front text",
		Back:          "back text",
		ExampleSource: "example source",
		ExampleTarget: "example target",
		Notes:         "some notes",
		ClozeSentence: "the {{cloze}} sentence",
		ClozeTarget:   "cloze",
		Tags:          []string{"verbs", "unit-3"},
		Ease:          2.5,
		IntervalDays:  4,
		Reps:          7,
		DueAt:         now,
		UpdatedAt:     now,
	}

	require.NoError(t, c.EncryptCard(card, key))

	// コンテンツフィールドはすべて暗号文になる
	assert.NotEqual(t, "front text", card.Front)
	assert.NotEqual(t, "back text", card.Back)
	assert.NotEqual(t, "example source", card.ExampleSource)
	assert.NotEqual(t, "example target", card.ExampleTarget)
	assert.NotEqual(t, "some notes", card.Notes)
	assert.NotEqual(t, "the {{cloze}} sentence", card.ClozeSentence)
	assert.NotEqual(t, "cloze", card.ClozeTarget)

	// それ以外のフィールドは素通し
	assert.Equal(t, model.CardTypeCloze, card.Type)
	assert.Equal(t, []string{"verbs", "unit-3"}, card.Tags)
	assert.Equal(t, 2.5, card.Ease)
	assert.Equal(t, 4, card.IntervalDays)
	assert.Equal(t, 7, card.Reps)

	c.DecryptCard(card, key)
	assert.Equal(t, "front text", card.Front)
	assert.Equal(t, "back text", card.Back)
	assert.Equal(t, "some notes", card.Notes)
	assert.Equal(t, "the {{cloze}} sentence", card.ClozeSentence)
	assert.Equal(t, "cloze", card.ClozeTarget)
}

func Test_ExportImportKey(t *testing.T) {
	c := newTestCipher()
	key, err := c.DeriveKey("user-a")
	require.NoError(t, err)

	blob := c.ExportKey(key)
	restored, err := c.ImportKey(blob)
	require.NoError(t, err)
	assert.Equal(t, key, restored)

	t.Run("異常系: 壊れたブロブ", func(t *testing.T) {
		_, err := c.ImportKey("%%%")
		assert.Error(t, err)
	})

	t.Run("異常系: 長さ不正", func(t *testing.T) {
		_, err := c.ImportKey(base64.StdEncoding.EncodeToString([]byte("short")))
		assert.Error(t, err)
	})
}
