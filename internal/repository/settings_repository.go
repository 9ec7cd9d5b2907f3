package repository

import (
	"context"
	"errors"
	"fmt"

	"go_5_habit_keep/internal/middleware"
	"go_5_habit_keep/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SettingsRepository interface {
	Create(ctx context.Context, tx *gorm.DB, settings *model.UserSettings) error
	FindByUserID(ctx context.Context, db *gorm.DB, userID uuid.UUID) (*model.UserSettings, error)
	Update(ctx context.Context, tx *gorm.DB, userID uuid.UUID, updates map[string]interface{}) error
}

type gormSettingsRepository struct{}

func NewGormSettingsRepository() SettingsRepository {
	return &gormSettingsRepository{}
}

func (r *gormSettingsRepository) Create(ctx context.Context, tx *gorm.DB, settings *model.UserSettings) error {
	logger := middleware.GetLogger(ctx)
	if err := tx.WithContext(ctx).Create(settings).Error; err != nil {
		logger.Error("Error creating user settings in DB",
			"error", err,
			"user_id", settings.UserID.String(),
		)
		return fmt.Errorf("gormSettingsRepository.Create: %w", err)
	}
	return nil
}

func (r *gormSettingsRepository) FindByUserID(ctx context.Context, db *gorm.DB, userID uuid.UUID) (*model.UserSettings, error) {
	logger := middleware.GetLogger(ctx)
	var settings model.UserSettings
	result := db.WithContext(ctx).Where("user_id = ?", userID).First(&settings)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		logger.Error("Error finding user settings in DB",
			"error", result.Error,
			"user_id", userID.String(),
		)
		return nil, fmt.Errorf("gormSettingsRepository.FindByUserID: %w", result.Error)
	}
	return &settings, nil
}

func (r *gormSettingsRepository) Update(ctx context.Context, tx *gorm.DB, userID uuid.UUID, updates map[string]interface{}) error {
	logger := middleware.GetLogger(ctx)
	if len(updates) == 0 {
		return nil
	}
	result := tx.WithContext(ctx).Model(&model.UserSettings{}).Where("user_id = ?", userID).Updates(updates)
	if result.Error != nil {
		logger.Error("Error updating user settings in DB",
			"error", result.Error,
			"user_id", userID.String(),
		)
		return fmt.Errorf("gormSettingsRepository.Update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}
