// internal/handlers/sync_handler.go
package handlers

import (
	"errors"
	"net/http"

	"go_vocab_sync/internal/middleware"
	"go_vocab_sync/internal/model"
	"go_vocab_sync/internal/service"
	"go_vocab_sync/internal/webutil"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type SyncHandler struct {
	service service.SyncService
}

func NewSyncHandler(s service.SyncService) *SyncHandler {
	return &SyncHandler{service: s}
}

// TriggerSync は同期1パスを起動します。
// 前提条件の不成立（未認証・オフライン・実行中）はHTTPエラーで返し、
// 同期自体の失敗は 200 + Success=false の結果値として返します。
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if middleware.UserFromContext(r.Context()) == nil {
		webutil.RespondWithError(w, http.StatusUnauthorized, model.ErrUnauthenticated.Error())
		return
	}

	result := h.service.SyncAll(r.Context())
	if !result.Success {
		// 前提条件エラーはステータスコードでも区別できるようにする
		switch result.Message {
		case model.ErrSyncInProgress.Error():
			webutil.RespondWithJSON(w, http.StatusConflict, result)
			return
		case model.ErrOffline.Error(), model.ErrNotConfigured.Error():
			webutil.RespondWithJSON(w, http.StatusServiceUnavailable, result)
			return
		}
	}
	webutil.RespondWithJSON(w, http.StatusOK, result)
}

// GetStatus は状態インジケータ用のスナップショットを返します
func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	webutil.RespondWithJSON(w, http.StatusOK, h.service.Status())
}

// SetConnectivity は接続状態の遷移イベントを受け取ります
func (h *SyncHandler) SetConnectivity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Online *bool `json:"online" validate:"required"`
	}
	if err := webutil.DecodeJSONBody(r, &req); err != nil {
		webutil.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := webutil.Validator.Struct(req); err != nil {
		webutil.RespondWithError(w, http.StatusBadRequest, "Invalid request body: online is required")
		return
	}
	h.service.SetOnline(*req.Online)
	webutil.RespondWithJSON(w, http.StatusOK, h.service.Status())
}

// RecordChange は作成・復習フローがオフライン変更を台帳に記録するためのエンドポイントです
func (h *SyncHandler) RecordChange(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	if middleware.UserFromContext(r.Context()) == nil {
		webutil.RespondWithError(w, http.StatusUnauthorized, model.ErrUnauthenticated.Error())
		return
	}

	var req model.RecordChangeRequest
	if err := webutil.DecodeJSONBody(r, &req); err != nil {
		webutil.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := webutil.Validator.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			webutil.RespondWithError(w, http.StatusBadRequest, verrs[0].Translate(webutil.Trans))
			return
		}
		webutil.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := uuid.Parse(req.ID)
	if err != nil {
		webutil.RespondWithError(w, http.StatusBadRequest, "Invalid ID format")
		return
	}

	if err := h.service.RecordPendingChange(r.Context(),
		model.PendingChangeKind(req.Kind),
		model.PendingChangeAction(req.Action),
		id,
	); err != nil {
		logger.Error("Error recording pending change", "error", err)
		webutil.RespondWithError(w, webutil.MapErrorToStatusCode(err), "Failed to record pending change")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
