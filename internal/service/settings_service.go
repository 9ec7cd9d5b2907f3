package service

import (
	"context"
	"errors"
	"time"

	"go_5_habit_keep/internal/clock"
	"go_5_habit_keep/internal/config"
	"go_5_habit_keep/internal/middleware"
	"go_5_habit_keep/internal/model"
	"go_5_habit_keep/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SettingsService interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*model.UserSettings, error)
	Update(ctx context.Context, userID uuid.UUID, req *model.UpdateSettingsRequest) (*model.UserSettings, error)
	SetActiveItem(ctx context.Context, userID uuid.UUID, itemType *model.ItemType, itemID *uuid.UUID) error
	SetCurrentDay(ctx context.Context, userID uuid.UUID, day int) error
}

type settingsService struct {
	db           *gorm.DB
	settingsRepo repository.SettingsRepository
	cfg          *config.Config
}

func NewSettingsService(db *gorm.DB, settingsRepo repository.SettingsRepository, cfg *config.Config) SettingsService {
	return &settingsService{
		db:           db,
		settingsRepo: settingsRepo,
		cfg:          cfg,
	}
}

// GetOrCreate は設定を返します。未作成ならデフォルト値で作成します (遅延作成)。
// 開始日は「現在の論理日の開始瞬間」で初期化するため、作成直後は必ず day 1 です。
func (s *settingsService) GetOrCreate(ctx context.Context, userID uuid.UUID) (*model.UserSettings, error) {
	logger := middleware.GetLogger(ctx)

	settings, err := s.settingsRepo.FindByUserID(ctx, s.db, userID)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "設定の取得に失敗しました。", "", err)
	}

	// 開始日はユーザーのタイムゾーンオフセットで見た現在時刻から求める。
	// サーバーのゾーンで計算すると境界付近の初回ログインが day 2 になる。
	tzOffsetMin := s.cfg.App.DefaultTzOffsetMin
	now := time.Now().In(time.FixedZone("", tzOffsetMin*60))
	startISO := clock.DefaultStartDate(s.cfg.App.DayStartHour, now)
	startDate, _ := time.Parse(time.RFC3339, startISO)

	newSettings := &model.UserSettings{
		UserID:          userID,
		TzOffsetMin:     tzOffsetMin,
		DayStartHour:    s.cfg.App.DayStartHour,
		CourseStartDate: startDate,
		CurrentDay:      1,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.settingsRepo.Create(ctx, tx, newSettings)
	})
	if err != nil {
		// 同時リクエストが先に作成した場合は読み直す
		if existing, findErr := s.settingsRepo.FindByUserID(ctx, s.db, userID); findErr == nil {
			return existing, nil
		}
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "設定の作成に失敗しました。", "", err)
	}

	logger.Info("Default user settings created",
		"user_id", userID.String(),
		"course_start_date", startISO)
	return newSettings, nil
}

// Update は設定を部分更新します。nil のフィールドは変更しません。
func (s *settingsService) Update(ctx context.Context, userID uuid.UUID, req *model.UpdateSettingsRequest) (*model.UserSettings, error) {
	logger := middleware.GetLogger(ctx)

	// 未作成なら先にデフォルトを用意する
	if _, err := s.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.TzOffsetMin != nil {
		updates["tz_offset_min"] = *req.TzOffsetMin
	}
	if req.DayStartHour != nil {
		updates["day_start_hour"] = *req.DayStartHour
	}
	if req.CourseStartDate != nil {
		updates["course_start_date"] = *req.CourseStartDate
	}
	if req.CurrentDay != nil {
		updates["current_day"] = *req.CurrentDay
	}

	if len(updates) > 0 {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.settingsRepo.Update(ctx, tx, userID, updates)
		})
		if err != nil {
			return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "設定の更新に失敗しました。", "", err)
		}
		logger.Info("User settings updated", "user_id", userID.String())
	}

	return s.settingsRepo.FindByUserID(ctx, s.db, userID)
}

// SetActiveItem はアクティブなアイテムの選択を保存します (nilで選択解除)
func (s *settingsService) SetActiveItem(ctx context.Context, userID uuid.UUID, itemType *model.ItemType, itemID *uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.settingsRepo.Update(ctx, tx, userID, map[string]interface{}{
			"active_item_type": itemType,
			"active_item_id":   itemID,
		})
	})
}

// SetCurrentDay は論理日の再計算結果を保存します
func (s *settingsService) SetCurrentDay(ctx context.Context, userID uuid.UUID, day int) error {
	if day < 1 {
		return model.ErrInvalidInput
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.settingsRepo.Update(ctx, tx, userID, map[string]interface{}{
			"current_day": day,
		})
	})
}
