package handlers

import (
	"net/http"

	"go_5_habit_keep/internal/middleware"
	"go_5_habit_keep/internal/model"
	"go_5_habit_keep/internal/service"
	"go_5_habit_keep/internal/session"
	"go_5_habit_keep/internal/webutil"

	"github.com/google/uuid"
)

// SessionHandler はセッション常駐状態 (アクティブアイテム・論理日・タイマー)
// への操作口です。全エンドポイントは認証とセッションの存在を前提とします。
type SessionHandler struct {
	sessions service.SessionManager
}

func NewSessionHandler(sessions service.SessionManager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) getSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	logger := middleware.GetLogger(r.Context())

	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		webutil.HandleError(w, logger, err)
		return nil, false
	}

	sess, err := h.sessions.Get(userID)
	if err != nil {
		// セッションはプロセス再起動で消えるため、JWTが有効なら開き直す
		sess, err = h.sessions.Open(r.Context(), userID)
		if err != nil {
			webutil.HandleError(w, logger, err)
			return nil, false
		}
	}
	return sess, true
}

// GetDay はダッシュボード用の論理日スナップショットを返します
func (h *SessionHandler) GetDay(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSession(w, r)
	if !ok {
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, sess.Snapshot())
}

// RefreshDay は論理日を即時に再計算して返します (通常は30秒ごとの自動再計算)
func (h *SessionHandler) RefreshDay(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSession(w, r)
	if !ok {
		return
	}
	sess.ReconcileDay(r.Context())
	webutil.RespondWithJSON(w, http.StatusOK, sess.Snapshot())
}

// GetProgress はアクティブアイテムの進捗射影全体を返します
func (h *SessionHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSession(w, r)
	if !ok {
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, sess.ProgressSnapshot())
}

type switchItemRequest struct {
	Type   model.ItemType `json:"type" validate:"required,oneof=course tracker"`
	ItemID uuid.UUID      `json:"item_id" validate:"required"`
}

// SwitchItem はアクティブなコース/トラッカーを切り替えます。
// 走行中のタイマーは現在値を保存して破棄されます。
func (h *SessionHandler) SwitchItem(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	sess, ok := h.getSession(w, r)
	if !ok {
		return
	}

	var req switchItemRequest
	if err := webutil.DecodeAndValidate(r, &req); err != nil {
		logger.Warn("Invalid switch item request", "error", err)
		webutil.HandleError(w, logger, err)
		return
	}

	if err := sess.SwitchItem(r.Context(), req.Type, req.ItemID); err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	webutil.RespondWithJSON(w, http.StatusOK, sess.Snapshot())
}

// --- タイマー操作 ---

type startTimerRequest struct {
	ActivityID uuid.UUID `json:"activity_id" validate:"required"`
}

// StartTimer はアクティビティを選択し、一時停止状態のタイマーを用意します。
// カウントダウンは Resume で明示的に始まります。
func (h *SessionHandler) StartTimer(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	sess, ok := h.getSession(w, r)
	if !ok {
		return
	}

	var req startTimerRequest
	if err := webutil.DecodeAndValidate(r, &req); err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	status, err := sess.StartTimer(req.ActivityID)
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, status)
}

func (h *SessionHandler) ResumeTimer(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())
	sess, ok := h.getSession(w, r)
	if !ok {
		return
	}
	status, err := sess.ResumeTimer()
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, status)
}

func (h *SessionHandler) PauseTimer(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())
	sess, ok := h.getSession(w, r)
	if !ok {
		return
	}
	status, err := sess.PauseTimer()
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, status)
}

type seekTimerRequest struct {
	RemainingSeconds int `json:"remaining_seconds" validate:"min=0"`
}

// SeekTimer は残り時間を変更します。巻き戻しのみ有効で、
// セッション内で到達していない位置への早送りはクランプされます。
func (h *SessionHandler) SeekTimer(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	sess, ok := h.getSession(w, r)
	if !ok {
		return
	}

	var req seekTimerRequest
	if err := webutil.DecodeAndValidate(r, &req); err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	status, err := sess.SeekTimer(req.RemainingSeconds)
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, status)
}

// BackTimer はタイマー画面からの離脱です。未完了なら現在値を保存します。
func (h *SessionHandler) BackTimer(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSession(w, r)
	if !ok {
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, sess.BackTimer())
}

// DoneTimer は完了画面からの離脱です (完了時に保存済みのため追加書き込みなし)
func (h *SessionHandler) DoneTimer(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())
	sess, ok := h.getSession(w, r)
	if !ok {
		return
	}
	status, err := sess.DoneTimer()
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, status)
}

func (h *SessionHandler) GetTimer(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSession(w, r)
	if !ok {
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, sess.TimerStatus())
}
