package service

import (
	"context"
	"errors"

	"go_5_habit_keep/internal/config"
	"go_5_habit_keep/internal/middleware"
	"go_5_habit_keep/internal/model"
	"go_5_habit_keep/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ItemService interface {
	Create(ctx context.Context, ownerID uuid.UUID, req *model.CreateItemRequest) (*model.Item, error)
	ListAvailable(ctx context.Context, userID uuid.UUID) ([]*model.Item, error)
	GetAvailableItem(ctx context.Context, userID uuid.UUID, itemType model.ItemType, itemID uuid.UUID) (*model.Item, error)
	Update(ctx context.Context, userID, itemID uuid.UUID, req *model.UpdateItemRequest) (*model.Item, error)
	Delete(ctx context.Context, userID, itemID uuid.UUID) error
	Invite(ctx context.Context, inviterID, itemID uuid.UUID, email string) error
}

type itemService struct {
	db       *gorm.DB
	itemRepo repository.ItemRepository
	userRepo repository.UserRepository
	cfg      *config.Config
}

func NewItemService(db *gorm.DB, itemRepo repository.ItemRepository, userRepo repository.UserRepository, cfg *config.Config) ItemService {
	return &itemService{
		db:       db,
		itemRepo: itemRepo,
		userRepo: userRepo,
		cfg:      cfg,
	}
}

// checkDaysCount は日数が設定の上限を超えないことを確認します
func (s *itemService) checkDaysCount(daysCount int) error {
	limit := s.cfg.App.MaxDaysCount
	if limit > 0 && daysCount > limit {
		return model.NewAppError("DAYS_COUNT_TOO_LARGE", "日数が上限を超えています。", "days_count", model.ErrInvalidInput)
	}
	return nil
}

// Create は新しいコース/トラッカーをアクティビティごと作成します。
// アクティビティの LastDay が未指定 (0) の場合は最終日まで有効とみなします。
func (s *itemService) Create(ctx context.Context, ownerID uuid.UUID, req *model.CreateItemRequest) (*model.Item, error) {
	logger := middleware.GetLogger(ctx)

	if req.Type == model.ItemTypeTracker && req.StartDate == nil {
		return nil, model.NewAppError("START_DATE_REQUIRED", "トラッカーには開始日が必要です。", "start_date", model.ErrInvalidInput)
	}
	if err := s.checkDaysCount(req.DaysCount); err != nil {
		return nil, err
	}

	item := &model.Item{
		ItemID:    uuid.New(),
		Type:      req.Type,
		OwnerID:   ownerID,
		Title:     req.Title,
		Icon:      req.Icon,
		DaysCount: req.DaysCount,
		StartDate: req.StartDate,
	}
	activities, err := buildActivities(item.ItemID, req.DaysCount, req.Activities)
	if err != nil {
		return nil, err
	}
	item.Activities = activities

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.itemRepo.Create(ctx, tx, item)
	})
	if err != nil {
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "アイテムの作成に失敗しました。", "", err)
	}

	logger.Info("Item created",
		"item_id", item.ItemID.String(),
		"type", string(item.Type),
		"owner_id", ownerID.String())
	return item, nil
}

// ListAvailable はユーザーが利用可能なアイテムを返します:
// 所有するもの + 参加中のコース。未処理の招待があれば、この時点で
// 参加へ変換されます (招待はメールアドレス宛のため、本人のメールで照合)。
func (s *itemService) ListAvailable(ctx context.Context, userID uuid.UUID) ([]*model.Item, error) {
	logger := middleware.GetLogger(ctx)

	user, err := s.userRepo.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	if err := s.convertInvitations(ctx, user); err != nil {
		// 変換の失敗で一覧全体を壊さない。次回の取得で再試行される。
		logger.Error("Failed to convert invitations", "error", err, "user_id", userID.String())
	}

	owned, err := s.itemRepo.FindByOwner(ctx, s.db, userID, "")
	if err != nil {
		return nil, err
	}
	enrolled, err := s.itemRepo.FindEnrolled(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]bool, len(owned))
	items := make([]*model.Item, 0, len(owned)+len(enrolled))
	for _, item := range owned {
		seen[item.ItemID] = true
		items = append(items, item)
	}
	for _, item := range enrolled {
		if !seen[item.ItemID] {
			items = append(items, item)
		}
	}
	return items, nil
}

// GetAvailableItem はユーザーが利用可能なアイテム1件を返します。
// トラッカーは所有者のみ、コースは所有者または参加者が利用可能。
// タイプの不一致は NotFound として扱います。
func (s *itemService) GetAvailableItem(ctx context.Context, userID uuid.UUID, itemType model.ItemType, itemID uuid.UUID) (*model.Item, error) {
	item, err := s.itemRepo.FindByID(ctx, s.db, itemID)
	if err != nil {
		return nil, err
	}
	if item.Type != itemType {
		return nil, model.ErrNotFound
	}
	if item.OwnerID == userID {
		return item, nil
	}
	if item.Type == model.ItemTypeCourse {
		enrolled, err := s.itemRepo.IsEnrolled(ctx, s.db, itemID, userID)
		if err != nil {
			return nil, err
		}
		if enrolled {
			return item, nil
		}
	}
	return nil, model.NewAppError("FORBIDDEN", "このアイテムを利用する権限がありません。", "", model.ErrForbidden)
}

// Update はアイテムを部分更新します。所有者のみ。
// アクティビティが指定された場合は一覧を丸ごと入れ替えます。
func (s *itemService) Update(ctx context.Context, userID, itemID uuid.UUID, req *model.UpdateItemRequest) (*model.Item, error) {
	logger := middleware.GetLogger(ctx)

	item, err := s.itemRepo.FindByID(ctx, s.db, itemID)
	if err != nil {
		return nil, err
	}
	if item.OwnerID != userID {
		return nil, model.NewAppError("FORBIDDEN", "このアイテムを編集する権限がありません。", "", model.ErrForbidden)
	}
	if req.DaysCount != nil {
		if err := s.checkDaysCount(*req.DaysCount); err != nil {
			return nil, err
		}
	}

	updates := make(map[string]interface{})
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Icon != nil {
		updates["icon"] = *req.Icon
	}
	if req.DaysCount != nil {
		updates["days_count"] = *req.DaysCount
	}
	if req.StartDate != nil {
		updates["start_date"] = *req.StartDate
	}

	daysCount := item.DaysCount
	if req.DaysCount != nil {
		daysCount = *req.DaysCount
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := s.itemRepo.Update(ctx, tx, itemID, updates); err != nil {
				return err
			}
		}
		if req.Activities != nil {
			activities, err := buildActivities(itemID, daysCount, req.Activities)
			if err != nil {
				return err
			}
			if err := s.itemRepo.ReplaceActivities(ctx, tx, itemID, activities); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var appErr *model.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "アイテムの更新に失敗しました。", "", err)
	}

	logger.Info("Item updated", "item_id", itemID.String())
	return s.itemRepo.FindByID(ctx, s.db, itemID)
}

// Delete はアイテムを削除します。所有者のみ。
func (s *itemService) Delete(ctx context.Context, userID, itemID uuid.UUID) error {
	logger := middleware.GetLogger(ctx)

	item, err := s.itemRepo.FindByID(ctx, s.db, itemID)
	if err != nil {
		return err
	}
	if item.OwnerID != userID {
		return model.NewAppError("FORBIDDEN", "このアイテムを削除する権限がありません。", "", model.ErrForbidden)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.itemRepo.Delete(ctx, tx, itemID)
	})
	if err != nil {
		return model.NewAppError("INTERNAL_SERVER_ERROR", "アイテムの削除に失敗しました。", "", err)
	}

	logger.Info("Item deleted", "item_id", itemID.String())
	return nil
}

// Invite はコースへメールアドレス宛の招待を作成します。所有者のみ。
// 相手が未登録でも招待でき、本人が次にコース一覧を取得した時点で参加に変わります。
func (s *itemService) Invite(ctx context.Context, inviterID, itemID uuid.UUID, email string) error {
	logger := middleware.GetLogger(ctx)

	item, err := s.itemRepo.FindByID(ctx, s.db, itemID)
	if err != nil {
		return err
	}
	if item.Type != model.ItemTypeCourse {
		return model.NewAppError("NOT_A_COURSE", "トラッカーには招待できません。", "", model.ErrInvalidInput)
	}
	if item.OwnerID != inviterID {
		return model.NewAppError("FORBIDDEN", "このコースへ招待する権限がありません。", "", model.ErrForbidden)
	}

	invitation := &model.CourseInvitation{
		ItemID:    itemID,
		Email:     email,
		InvitedBy: inviterID,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.itemRepo.CreateInvitation(ctx, tx, invitation)
	})
	if err != nil {
		return model.NewAppError("INTERNAL_SERVER_ERROR", "招待の作成に失敗しました。", "", err)
	}

	logger.Info("Course invitation created", "item_id", itemID.String(), "email", email)
	return nil
}

// convertInvitations は本人宛の未処理招待を参加へ変換します
func (s *itemService) convertInvitations(ctx context.Context, user *model.User) error {
	invitations, err := s.itemRepo.FindInvitationsByEmail(ctx, s.db, user.Email)
	if err != nil {
		return err
	}
	if len(invitations) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, inv := range invitations {
			enrolled, err := s.itemRepo.IsEnrolled(ctx, tx, inv.ItemID, user.UserID)
			if err != nil {
				return err
			}
			if !enrolled {
				enrollment := &model.CourseEnrollment{
					ItemID: inv.ItemID,
					UserID: user.UserID,
				}
				if err := s.itemRepo.CreateEnrollment(ctx, tx, enrollment); err != nil {
					return err
				}
			}
			if err := s.itemRepo.DeleteInvitation(ctx, tx, inv.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// buildActivities は入力DTOからアクティビティを組み立て、範囲を検証します。
// LastDay が未指定 (0) なら最終日まで有効とみなします。
func buildActivities(itemID uuid.UUID, daysCount int, inputs []model.ActivityInput) ([]model.Activity, error) {
	activities := make([]model.Activity, 0, len(inputs))
	for i, in := range inputs {
		firstDay := in.FirstDay
		if firstDay == 0 {
			firstDay = 1
		}
		lastDay := in.LastDay
		if lastDay == 0 {
			lastDay = daysCount
		}
		if firstDay > lastDay || lastDay > daysCount {
			return nil, model.NewAppError("INVALID_DAY_RANGE", "アクティビティの有効日範囲が不正です。", "activities", model.ErrInvalidInput)
		}
		activities = append(activities, model.Activity{
			ActivityID:  uuid.New(),
			ItemID:      itemID,
			Label:       in.Label,
			Icon:        in.Icon,
			DurationMin: in.DurationMin,
			FirstDay:    firstDay,
			LastDay:     lastDay,
			SortOrder:   i,
		})
	}
	return activities, nil
}
