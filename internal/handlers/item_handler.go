package handlers

import (
	"net/http"

	"go_5_habit_keep/internal/middleware"
	"go_5_habit_keep/internal/model"
	"go_5_habit_keep/internal/service"
	"go_5_habit_keep/internal/webutil"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ItemHandler struct {
	service service.ItemService
}

func NewItemHandler(s service.ItemService) *ItemHandler {
	return &ItemHandler{service: s}
}

// CreateItem はコース/トラッカーを作成します。
// コースの作成はルーティング側で trainer 以上に制限されます。
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	var req model.CreateItemRequest
	if err := webutil.DecodeAndValidate(r, &req); err != nil {
		logger.Warn("Invalid item create request", "error", err)
		webutil.HandleError(w, logger, err)
		return
	}

	item, err := h.service.Create(r.Context(), userID, &req)
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	webutil.RespondWithJSON(w, http.StatusCreated, toItemResponse(item))
}

// ListItems は利用可能なアイテム一覧を返します。
// 本人宛の未処理招待はこの時点で参加へ変換されます。
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	items, err := h.service.ListAvailable(r.Context(), userID)
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	responses := make([]*model.ItemResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, toItemResponse(item))
	}
	webutil.RespondWithJSON(w, http.StatusOK, responses)
}

// GetItem はアイテム1件を返します
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
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

	item, err := h.service.GetAvailableItem(r.Context(), userID, itemType, itemID)
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	webutil.RespondWithJSON(w, http.StatusOK, toItemResponse(item))
}

// UpdateItem はアイテムを部分更新します。所有者のみ。
func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "item_id"))
	if err != nil {
		webutil.HandleError(w, logger, model.NewAppError("INVALID_ID", "アイテムIDの形式が正しくありません。", "item_id", model.ErrInvalidInput))
		return
	}

	var req model.UpdateItemRequest
	if err := webutil.DecodeAndValidate(r, &req); err != nil {
		logger.Warn("Invalid item update request", "error", err)
		webutil.HandleError(w, logger, err)
		return
	}

	item, err := h.service.Update(r.Context(), userID, itemID, &req)
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	webutil.RespondWithJSON(w, http.StatusOK, toItemResponse(item))
}

// DeleteItem はアイテムを削除します。所有者のみ。
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "item_id"))
	if err != nil {
		webutil.HandleError(w, logger, model.NewAppError("INVALID_ID", "アイテムIDの形式が正しくありません。", "item_id", model.ErrInvalidInput))
		return
	}

	if err := h.service.Delete(r.Context(), userID, itemID); err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// InviteToItem はコースへメールアドレス宛の招待を作成します
func (h *ItemHandler) InviteToItem(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		webutil.HandleError(w, logger, err)
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "item_id"))
	if err != nil {
		webutil.HandleError(w, logger, model.NewAppError("INVALID_ID", "アイテムIDの形式が正しくありません。", "item_id", model.ErrInvalidInput))
		return
	}

	var req model.InviteRequest
	if err := webutil.DecodeAndValidate(r, &req); err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	if err := h.service.Invite(r.Context(), userID, itemID, req.Email); err != nil {
		webutil.HandleError(w, logger, err)
		return
	}

	webutil.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": "招待を送信しました。相手が次にコース一覧を開いたときに参加が確定します。",
	})
}

func itemParams(r *http.Request) (uuid.UUID, model.ItemType, error) {
	itemID, err := uuid.Parse(chi.URLParam(r, "item_id"))
	if err != nil {
		return uuid.Nil, "", model.NewAppError("INVALID_ID", "アイテムIDの形式が正しくありません。", "item_id", model.ErrInvalidInput)
	}
	itemType := model.ItemType(r.URL.Query().Get("type"))
	if itemType == "" {
		itemType = model.ItemTypeCourse
	}
	if !itemType.Valid() {
		return uuid.Nil, "", model.NewAppError("INVALID_TYPE", "アイテムタイプが不正です。", "type", model.ErrInvalidInput)
	}
	return itemID, itemType, nil
}

func toItemResponse(item *model.Item) *model.ItemResponse {
	return &model.ItemResponse{
		ItemID:     item.ItemID,
		Type:       item.Type,
		Title:      item.Title,
		Icon:       item.Icon,
		DaysCount:  item.DaysCount,
		StartDate:  item.StartDate,
		Activities: item.Activities,
	}
}
