package service

import (
	"context"

	"go_5_habit_keep/internal/middleware"
	"go_5_habit_keep/internal/model"
	"go_5_habit_keep/internal/repository"
	"go_5_habit_keep/internal/session"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProgressService は進捗の読み書きを担当します。session.Persister として
// セッションの保存キューからも使われます。
type ProgressService interface {
	session.Persister
	LoadMap(ctx context.Context, userID uuid.UUID, itemType model.ItemType, itemID uuid.UUID) (model.ProgressMap, error)
	Save(ctx context.Context, userID uuid.UUID, itemType model.ItemType, itemID uuid.UUID, req *model.SaveProgressRequest) error
}

type progressService struct {
	db           *gorm.DB
	progressRepo repository.ProgressRepository
	settingsRepo repository.SettingsRepository
	itemRepo     repository.ItemRepository
}

func NewProgressService(db *gorm.DB, progressRepo repository.ProgressRepository, settingsRepo repository.SettingsRepository, itemRepo repository.ItemRepository) ProgressService {
	return &progressService{
		db:           db,
		progressRepo: progressRepo,
		settingsRepo: settingsRepo,
		itemRepo:     itemRepo,
	}
}

// LoadMap はアイテム1件分の進捗をネスト形 { day: { activity_id: entry } } で返します
func (s *progressService) LoadMap(ctx context.Context, userID uuid.UUID, itemType model.ItemType, itemID uuid.UUID) (model.ProgressMap, error) {
	records, err := s.progressRepo.FindByItem(ctx, s.db, userID, itemType, itemID)
	if err != nil {
		return nil, err
	}

	m := make(model.ProgressMap)
	for _, rec := range records {
		if m[rec.Day] == nil {
			m[rec.Day] = make(map[uuid.UUID]model.ProgressEntry)
		}
		m[rec.Day][rec.ActivityID] = model.ProgressEntry{
			Elapsed:   rec.ElapsedSeconds,
			Completed: rec.Completed,
		}
	}
	return m, nil
}

// Save は進捗1レコードをupsertします (クライアントからの明示的な保存)。
// アクティビティがアイテムに属することを確認し、経過秒を所要時間で
// 正規化してから書き込みます (completed は満額、超過はクランプ)。
func (s *progressService) Save(ctx context.Context, userID uuid.UUID, itemType model.ItemType, itemID uuid.UUID, req *model.SaveProgressRequest) error {
	item, err := s.itemRepo.FindByID(ctx, s.db, itemID)
	if err != nil {
		return err
	}
	if item.Type != itemType {
		return model.ErrNotFound
	}

	var act *model.Activity
	for i := range item.Activities {
		if item.Activities[i].ActivityID == req.ActivityID {
			act = &item.Activities[i]
			break
		}
	}
	if act == nil {
		return model.NewAppError("UNKNOWN_ACTIVITY", "アクティビティが見つかりません。", "activity_id", model.ErrNotFound)
	}

	elapsed := req.ElapsedSeconds
	total := act.TotalSeconds()
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > total {
		elapsed = total
	}
	if req.Completed {
		elapsed = total
	}

	return s.upsert(ctx, &model.ActivityProgress{
		ProgressID:     uuid.New(),
		UserID:         userID,
		ItemType:       itemType,
		ItemID:         itemID,
		ActivityID:     req.ActivityID,
		Day:            req.Day,
		ElapsedSeconds: elapsed,
		Completed:      req.Completed,
	})
}

// --- session.Persister 実装 ---

func (s *progressService) SaveProgress(ctx context.Context, req session.SaveRequest) error {
	return s.upsert(ctx, &model.ActivityProgress{
		ProgressID:     uuid.New(),
		UserID:         req.UserID,
		ItemType:       req.ItemType,
		ItemID:         req.ItemID,
		ActivityID:     req.ActivityID,
		Day:            req.Day,
		ElapsedSeconds: req.ElapsedSeconds,
		Completed:      req.Completed,
	})
}

func (s *progressService) LoadProgress(ctx context.Context, userID uuid.UUID, itemType model.ItemType, itemID uuid.UUID) (model.ProgressMap, error) {
	return s.LoadMap(ctx, userID, itemType, itemID)
}

func (s *progressService) SaveActiveItem(ctx context.Context, userID uuid.UUID, itemType *model.ItemType, itemID *uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.settingsRepo.Update(ctx, tx, userID, map[string]interface{}{
			"active_item_type": itemType,
			"active_item_id":   itemID,
		})
	})
}

func (s *progressService) SaveCurrentDay(ctx context.Context, userID uuid.UUID, day int) error {
	if day < 1 {
		return model.ErrInvalidInput
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.settingsRepo.Update(ctx, tx, userID, map[string]interface{}{
			"current_day": day,
		})
	})
}

func (s *progressService) upsert(ctx context.Context, progress *model.ActivityProgress) error {
	logger := middleware.GetLogger(ctx)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.progressRepo.Upsert(ctx, tx, progress)
	})
	if err != nil {
		logger.Error("Failed to upsert progress",
			"error", err,
			"user_id", progress.UserID.String(),
			"activity_id", progress.ActivityID.String(),
			"day", progress.Day)
		return model.NewAppError("INTERNAL_SERVER_ERROR", "進捗の保存に失敗しました。", "", err)
	}
	return nil
}
