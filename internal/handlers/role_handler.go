package handlers

import (
	"net/http"
	"strconv"

	"go_5_habit_keep/internal/middleware"
	"go_5_habit_keep/internal/model"
	"go_5_habit_keep/internal/service"
	"go_5_habit_keep/internal/webutil"
)

type RoleHandler struct {
	roleService     service.RoleService
	questionService service.QuestionService
}

func NewRoleHandler(roleService service.RoleService, questionService service.QuestionService) *RoleHandler {
	return &RoleHandler{roleService: roleService, questionService: questionService}
}

// GetMyRole は本人の実効ロールを返します。
// 本人宛のロール付与予約があれば、この呼び出しで適用されます。
func (h *RoleHandler) GetMyRole(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	role, err := h.roleService.ResolveRole(r.Context(), userID)
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	webutil.RespondWithJSON(w, http.StatusOK, &model.RoleResponse{Role: role})
}

// AssignRole はメールアドレス宛にロールを付与します。
// ルーティング側で admin に制限されます。
func (h *RoleHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	var req model.AssignRoleRequest
	if err := webutil.DecodeAndValidate(r, &req); err != nil {
		logger.Warn("Invalid assign role request", "error", err)
		webutil.HandleError(w, logger, err)
		return
	}

	if err := h.roleService.Assign(r.Context(), userID, &req); err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	webutil.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "ロールを付与しました。"})
}

// SubmitQuestion はトレーナーへの質問を送信します
func (h *RoleHandler) SubmitQuestion(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	var req model.SubmitQuestionRequest
	if err := webutil.DecodeAndValidate(r, &req); err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	if err := h.questionService.Submit(r.Context(), userID, &req); err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	webutil.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "質問を送信しました。"})
}

// ListQuestions は質問の一覧を返します。ルーティング側で trainer 以上に制限されます。
func (h *RoleHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	questions, err := h.questionService.List(r.Context(), limit)
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	webutil.RespondWithJSON(w, http.StatusOK, questions)
}
