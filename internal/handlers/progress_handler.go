package handlers

import (
	"net/http"

	"go_5_habit_keep/internal/middleware"
	"go_5_habit_keep/internal/model"
	"go_5_habit_keep/internal/service"
	"go_5_habit_keep/internal/webutil"
)

// ProgressHandler はセッションを介さない進捗の読み書き口です。
// 外部ストレージが正であるため、クライアントはセッションの射影と別に
// ここから直接リロードできます。
type ProgressHandler struct {
	service service.ProgressService
}

func NewProgressHandler(s service.ProgressService) *ProgressHandler {
	return &ProgressHandler{service: s}
}

// GetProgress はアイテム1件分の進捗をネスト形で返します
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}
	itemID, itemType, err := itemParams(r)
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	progressMap, err := h.service.LoadMap(r.Context(), userID, itemType, itemID)
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	webutil.RespondWithJSON(w, http.StatusOK, progressMap)
}

// SaveProgress は進捗1レコードを保存します (同一キーへの再送は冪等)
func (h *ProgressHandler) SaveProgress(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}
	itemID, itemType, err := itemParams(r)
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	var req model.SaveProgressRequest
	if err := webutil.DecodeAndValidate(r, &req); err != nil {
		logger.Warn("Invalid save progress request", "error", err)
		webutil.HandleError(w, logger, err)
		return
	}

	if err := h.service.Save(r.Context(), userID, itemType, itemID, &req); err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	webutil.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "進捗を保存しました。"})
}
