// internal/webutil/response.go
package webutil

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"go_vocab_sync/internal/model"
)

// MapErrorToStatusCode はアプリケーションエラーをHTTPステータスコードにマッピングします
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, model.ErrSyncInProgress):
		return http.StatusConflict // 409: 同期が既に実行中
	case errors.Is(err, model.ErrOffline), errors.Is(err, model.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrNetwork):
		return http.StatusBadGateway
	default:
		// ハンドリングされていないエラーは内部サーバーエラーとして扱う
		return http.StatusInternalServerError
	}
}

// RespondWithJSON はJSONレスポンスを返します
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshaling JSON response: %v", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"レスポンス生成中にエラーが発生しました。"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// RespondWithError はエラーレスポンスをJSON形式で返します
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, model.APIError{Message: message})
}
