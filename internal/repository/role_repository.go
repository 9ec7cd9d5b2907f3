package repository

import (
	"context"
	"errors"
	"fmt"

	"go_5_habit_keep/internal/middleware"
	"go_5_habit_keep/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RoleRepository interface {
	UpsertPendingGrant(ctx context.Context, tx *gorm.DB, grant *model.PendingRoleGrant) error
	FindPendingGrantByEmail(ctx context.Context, db *gorm.DB, email string) (*model.PendingRoleGrant, error)
	DeletePendingGrant(ctx context.Context, tx *gorm.DB, email string) error
}

type gormRoleRepository struct{}

func NewGormRoleRepository() RoleRepository {
	return &gormRoleRepository{}
}

// UpsertPendingGrant はメールアドレス宛のロール付与予約を作成します。
// 同じメールへの再付与は予約の上書きになります。
func (r *gormRoleRepository) UpsertPendingGrant(ctx context.Context, tx *gorm.DB, grant *model.PendingRoleGrant) error {
	logger := middleware.GetLogger(ctx)
	result := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "granted_by"}),
	}).Create(grant)
	if result.Error != nil {
		logger.Error("Error upserting pending role grant in DB",
			"error", result.Error,
			"email", grant.Email,
			"role", string(grant.Role),
		)
		return fmt.Errorf("gormRoleRepository.UpsertPendingGrant: %w", result.Error)
	}
	return nil
}

func (r *gormRoleRepository) FindPendingGrantByEmail(ctx context.Context, db *gorm.DB, email string) (*model.PendingRoleGrant, error) {
	logger := middleware.GetLogger(ctx)
	var grant model.PendingRoleGrant
	result := db.WithContext(ctx).Where("email = ?", email).First(&grant)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		logger.Error("Error finding pending role grant in DB",
			"error", result.Error,
			"email", email,
		)
		return nil, fmt.Errorf("gormRoleRepository.FindPendingGrantByEmail: %w", result.Error)
	}
	return &grant, nil
}

func (r *gormRoleRepository) DeletePendingGrant(ctx context.Context, tx *gorm.DB, email string) error {
	logger := middleware.GetLogger(ctx)
	result := tx.WithContext(ctx).Where("email = ?", email).Delete(&model.PendingRoleGrant{})
	if result.Error != nil {
		logger.Error("Error deleting pending role grant in DB",
			"error", result.Error,
			"email", email,
		)
		return fmt.Errorf("gormRoleRepository.DeletePendingGrant: %w", result.Error)
	}
	return nil
}
