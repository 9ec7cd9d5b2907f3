package repository

import (
	"context"
	"fmt"

	"go_5_habit_keep/internal/middleware"
	"go_5_habit_keep/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository interface {
	Upsert(ctx context.Context, tx *gorm.DB, progress *model.ActivityProgress) error
	FindByItem(ctx context.Context, db *gorm.DB, userID uuid.UUID, itemType model.ItemType, itemID uuid.UUID) ([]*model.ActivityProgress, error)
	DeleteByItem(ctx context.Context, tx *gorm.DB, userID uuid.UUID, itemType model.ItemType, itemID uuid.UUID) error
}

type gormProgressRepository struct{}

func NewGormProgressRepository() ProgressRepository {
	return &gormProgressRepository{}
}

// Upsert は (user_id, item_type, item_id, activity_id, day) をキーに
// 進捗レコードを作成または更新します。同一キーへの再送は上書きになるため
// 冪等です。
func (r *gormProgressRepository) Upsert(ctx context.Context, tx *gorm.DB, progress *model.ActivityProgress) error {
	logger := middleware.GetLogger(ctx)
	result := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "item_type"},
			{Name: "item_id"},
			{Name: "activity_id"},
			{Name: "day"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"elapsed_seconds", "completed", "updated_at"}),
	}).Create(progress)
	if result.Error != nil {
		logger.Error("Error upserting progress in DB",
			"error", result.Error,
			"user_id", progress.UserID.String(),
			"activity_id", progress.ActivityID.String(),
			"day", progress.Day,
		)
		return fmt.Errorf("gormProgressRepository.Upsert: %w", result.Error)
	}
	return nil
}

func (r *gormProgressRepository) FindByItem(ctx context.Context, db *gorm.DB, userID uuid.UUID, itemType model.ItemType, itemID uuid.UUID) ([]*model.ActivityProgress, error) {
	logger := middleware.GetLogger(ctx)
	var records []*model.ActivityProgress
	result := db.WithContext(ctx).
		Where("user_id = ? AND item_type = ? AND item_id = ?", userID, itemType, itemID).
		Order("day ASC").
		Find(&records)
	if result.Error != nil {
		logger.Error("Error finding progress by item in DB",
			"error", result.Error,
			"user_id", userID.String(),
			"item_id", itemID.String(),
		)
		return nil, fmt.Errorf("gormProgressRepository.FindByItem: %w", result.Error)
	}
	return records, nil
}

func (r *gormProgressRepository) DeleteByItem(ctx context.Context, tx *gorm.DB, userID uuid.UUID, itemType model.ItemType, itemID uuid.UUID) error {
	logger := middleware.GetLogger(ctx)
	result := tx.WithContext(ctx).
		Where("user_id = ? AND item_type = ? AND item_id = ?", userID, itemType, itemID).
		Delete(&model.ActivityProgress{})
	if result.Error != nil {
		logger.Error("Error deleting progress by item in DB",
			"error", result.Error,
			"user_id", userID.String(),
			"item_id", itemID.String(),
		)
		return fmt.Errorf("gormProgressRepository.DeleteByItem: %w", result.Error)
	}
	return nil
}
