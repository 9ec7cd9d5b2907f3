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

type ItemRepository interface {
	Create(ctx context.Context, tx *gorm.DB, item *model.Item) error
	FindByID(ctx context.Context, db *gorm.DB, itemID uuid.UUID) (*model.Item, error)
	FindByOwner(ctx context.Context, db *gorm.DB, ownerID uuid.UUID, itemType model.ItemType) ([]*model.Item, error)
	FindEnrolled(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]*model.Item, error)
	Update(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, updates map[string]interface{}) error
	ReplaceActivities(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, activities []model.Activity) error
	Delete(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) error

	CreateEnrollment(ctx context.Context, tx *gorm.DB, enrollment *model.CourseEnrollment) error
	IsEnrolled(ctx context.Context, db *gorm.DB, itemID, userID uuid.UUID) (bool, error)
	CreateInvitation(ctx context.Context, tx *gorm.DB, invitation *model.CourseInvitation) error
	FindInvitationsByEmail(ctx context.Context, db *gorm.DB, email string) ([]*model.CourseInvitation, error)
	DeleteInvitation(ctx context.Context, tx *gorm.DB, invitationID uint) error
}

type gormItemRepository struct{}

func NewGormItemRepository() ItemRepository {
	return &gormItemRepository{}
}

func (r *gormItemRepository) Create(ctx context.Context, tx *gorm.DB, item *model.Item) error {
	logger := middleware.GetLogger(ctx)
	result := tx.WithContext(ctx).Create(item)
	if result.Error != nil {
		logger.Error("Error creating item in DB",
			"error", result.Error,
			"owner_id", item.OwnerID.String(),
			"title", item.Title,
		)
		return fmt.Errorf("gormItemRepository.Create: %w", result.Error)
	}
	return nil
}

// FindByID はアクティビティを表示順でプリロードして返します
func (r *gormItemRepository) FindByID(ctx context.Context, db *gorm.DB, itemID uuid.UUID) (*model.Item, error) {
	logger := middleware.GetLogger(ctx)
	var item model.Item
	result := db.WithContext(ctx).
		Preload("Activities", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, created_at ASC")
		}).
		Where("item_id = ?", itemID).First(&item)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		logger.Error("Error finding item by ID in DB",
			"error", result.Error,
			"item_id", itemID.String(),
		)
		return nil, fmt.Errorf("gormItemRepository.FindByID: %w", result.Error)
	}
	return &item, nil
}

func (r *gormItemRepository) FindByOwner(ctx context.Context, db *gorm.DB, ownerID uuid.UUID, itemType model.ItemType) ([]*model.Item, error) {
	logger := middleware.GetLogger(ctx)
	var items []*model.Item
	query := db.WithContext(ctx).
		Preload("Activities", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, created_at ASC")
		}).
		Where("owner_id = ?", ownerID)
	if itemType != "" {
		query = query.Where("type = ?", itemType)
	}
	result := query.Order("created_at ASC").Find(&items)
	if result.Error != nil {
		logger.Error("Error finding items by owner in DB",
			"error", result.Error,
			"owner_id", ownerID.String(),
		)
		return nil, fmt.Errorf("gormItemRepository.FindByOwner: %w", result.Error)
	}
	return items, nil
}

// FindEnrolled は参加中のコースを返します
func (r *gormItemRepository) FindEnrolled(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]*model.Item, error) {
	logger := middleware.GetLogger(ctx)
	var items []*model.Item
	result := db.WithContext(ctx).
		Preload("Activities", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, created_at ASC")
		}).
		Joins("JOIN course_enrollments ON course_enrollments.item_id = items.item_id").
		Where("course_enrollments.user_id = ?", userID).
		Order("items.created_at ASC").
		Find(&items)
	if result.Error != nil {
		logger.Error("Error finding enrolled items in DB",
			"error", result.Error,
			"user_id", userID.String(),
		)
		return nil, fmt.Errorf("gormItemRepository.FindEnrolled: %w", result.Error)
	}
	return items, nil
}

func (r *gormItemRepository) Update(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, updates map[string]interface{}) error {
	logger := middleware.GetLogger(ctx)
	if len(updates) == 0 {
		return nil
	}
	result := tx.WithContext(ctx).Model(&model.Item{}).Where("item_id = ?", itemID).Updates(updates)
	if result.Error != nil {
		logger.Error("Error updating item in DB",
			"error", result.Error,
			"item_id", itemID.String(),
		)
		return fmt.Errorf("gormItemRepository.Update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ReplaceActivities はアイテムのアクティビティ一覧を丸ごと入れ替えます。
// 進捗レコードはactivity_idで紐づくため、IDを引き継がない入れ替えは
// 呼び出し側 (service) が新旧の対応を取って行うこと。
func (r *gormItemRepository) ReplaceActivities(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, activities []model.Activity) error {
	logger := middleware.GetLogger(ctx)
	if err := tx.WithContext(ctx).Where("item_id = ?", itemID).Delete(&model.Activity{}).Error; err != nil {
		logger.Error("Error deleting activities in DB", "error", err, "item_id", itemID.String())
		return fmt.Errorf("gormItemRepository.ReplaceActivities: %w", err)
	}
	if len(activities) == 0 {
		return nil
	}
	if err := tx.WithContext(ctx).Create(&activities).Error; err != nil {
		logger.Error("Error creating activities in DB", "error", err, "item_id", itemID.String())
		return fmt.Errorf("gormItemRepository.ReplaceActivities: %w", err)
	}
	return nil
}

func (r *gormItemRepository) Delete(ctx context.Context, tx *gorm.DB, itemID uuid.UUID) error {
	logger := middleware.GetLogger(ctx)
	result := tx.WithContext(ctx).Where("item_id = ?", itemID).Delete(&model.Item{})
	if result.Error != nil {
		logger.Error("Error deleting item in DB",
			"error", result.Error,
			"item_id", itemID.String(),
		)
		return fmt.Errorf("gormItemRepository.Delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *gormItemRepository) CreateEnrollment(ctx context.Context, tx *gorm.DB, enrollment *model.CourseEnrollment) error {
	logger := middleware.GetLogger(ctx)
	if err := tx.WithContext(ctx).Create(enrollment).Error; err != nil {
		logger.Error("Error creating enrollment in DB",
			"error", err,
			"item_id", enrollment.ItemID.String(),
			"user_id", enrollment.UserID.String(),
		)
		return fmt.Errorf("gormItemRepository.CreateEnrollment: %w", err)
	}
	return nil
}

func (r *gormItemRepository) IsEnrolled(ctx context.Context, db *gorm.DB, itemID, userID uuid.UUID) (bool, error) {
	logger := middleware.GetLogger(ctx)
	var count int64
	result := db.WithContext(ctx).Model(&model.CourseEnrollment{}).
		Where("item_id = ? AND user_id = ?", itemID, userID).Count(&count)
	if result.Error != nil {
		logger.Error("Error checking enrollment in DB",
			"error", result.Error,
			"item_id", itemID.String(),
			"user_id", userID.String(),
		)
		return false, fmt.Errorf("gormItemRepository.IsEnrolled: %w", result.Error)
	}
	return count > 0, nil
}

func (r *gormItemRepository) CreateInvitation(ctx context.Context, tx *gorm.DB, invitation *model.CourseInvitation) error {
	logger := middleware.GetLogger(ctx)
	if err := tx.WithContext(ctx).Create(invitation).Error; err != nil {
		logger.Error("Error creating invitation in DB",
			"error", err,
			"item_id", invitation.ItemID.String(),
			"email", invitation.Email,
		)
		return fmt.Errorf("gormItemRepository.CreateInvitation: %w", err)
	}
	return nil
}

func (r *gormItemRepository) FindInvitationsByEmail(ctx context.Context, db *gorm.DB, email string) ([]*model.CourseInvitation, error) {
	logger := middleware.GetLogger(ctx)
	var invitations []*model.CourseInvitation
	result := db.WithContext(ctx).Where("email = ?", email).Find(&invitations)
	if result.Error != nil {
		logger.Error("Error finding invitations by email in DB",
			"error", result.Error,
			"email", email,
		)
		return nil, fmt.Errorf("gormItemRepository.FindInvitationsByEmail: %w", result.Error)
	}
	return invitations, nil
}

func (r *gormItemRepository) DeleteInvitation(ctx context.Context, tx *gorm.DB, invitationID uint) error {
	logger := middleware.GetLogger(ctx)
	result := tx.WithContext(ctx).Delete(&model.CourseInvitation{}, invitationID)
	if result.Error != nil {
		logger.Error("Error deleting invitation in DB", "error", result.Error)
		return fmt.Errorf("gormItemRepository.DeleteInvitation: %w", result.Error)
	}
	return nil
}
