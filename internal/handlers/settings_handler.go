package handlers

import (
	"net/http"

	"go_5_habit_keep/internal/middleware"
	"go_5_habit_keep/internal/model"
	"go_5_habit_keep/internal/service"
	"go_5_habit_keep/internal/webutil"
)

type SettingsHandler struct {
	service  service.SettingsService
	sessions service.SessionManager
}

func NewSettingsHandler(s service.SettingsService, sessions service.SessionManager) *SettingsHandler {
	return &SettingsHandler{service: s, sessions: sessions}
}

// GetSettings は設定を返します。未作成ならデフォルト値で作成します。
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	settings, err := h.service.GetOrCreate(r.Context(), userID)
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	webutil.RespondWithJSON(w, http.StatusOK, settings)
}

// UpdateSettings は設定を部分更新します。日境界やタイムゾーンが変わった場合、
// セッションの論理日は即時に再計算されます。
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	var req model.UpdateSettingsRequest
	if err := webutil.DecodeAndValidate(r, &req); err != nil {
		logger.Warn("Invalid settings update request", "error", err)
		webutil.HandleError(w, logger, err)
		return
	}

	settings, err := h.service.Update(r.Context(), userID, &req)
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	// セッションが開いていれば新しい設定を反映する (日番号の再計算込み)
	if sess, err := h.sessions.Get(userID); err == nil {
		sess.UpdateSettings(r.Context(), *settings)
	}

	webutil.RespondWithJSON(w, http.StatusOK, settings)
}
