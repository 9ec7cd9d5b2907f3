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

type TokenRepository interface {
	CreateVerificationToken(ctx context.Context, tx *gorm.DB, token *model.UserVerificationToken) error
	FindVerificationToken(ctx context.Context, db *gorm.DB, token string) (*model.UserVerificationToken, error)
	DeleteVerificationToken(ctx context.Context, tx *gorm.DB, token string) error
	CreatePasswordResetToken(ctx context.Context, tx *gorm.DB, token *model.PasswordResetToken) error
	FindPasswordResetToken(ctx context.Context, db *gorm.DB, token string) (*model.PasswordResetToken, error)
	DeletePasswordResetToken(ctx context.Context, tx *gorm.DB, token string) error
	DeletePasswordResetTokensByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

type gormTokenRepository struct{}

func NewGormTokenRepository() TokenRepository {
	return &gormTokenRepository{}
}

func (r *gormTokenRepository) CreateVerificationToken(ctx context.Context, tx *gorm.DB, token *model.UserVerificationToken) error {
	logger := middleware.GetLogger(ctx)
	if err := tx.WithContext(ctx).Create(token).Error; err != nil {
		logger.Error("Error creating verification token in DB", "error", err, "user_id", token.UserID.String())
		return fmt.Errorf("gormTokenRepository.CreateVerificationToken: %w", err)
	}
	return nil
}

func (r *gormTokenRepository) FindVerificationToken(ctx context.Context, db *gorm.DB, token string) (*model.UserVerificationToken, error) {
	logger := middleware.GetLogger(ctx)
	var vt model.UserVerificationToken
	result := db.WithContext(ctx).Where("token = ?", token).First(&vt)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		logger.Error("Error finding verification token in DB", "error", result.Error)
		return nil, fmt.Errorf("gormTokenRepository.FindVerificationToken: %w", result.Error)
	}
	return &vt, nil
}

func (r *gormTokenRepository) DeleteVerificationToken(ctx context.Context, tx *gorm.DB, token string) error {
	logger := middleware.GetLogger(ctx)
	result := tx.WithContext(ctx).Where("token = ?", token).Delete(&model.UserVerificationToken{})
	if result.Error != nil {
		logger.Error("Error deleting verification token in DB", "error", result.Error)
		return fmt.Errorf("gormTokenRepository.DeleteVerificationToken: %w", result.Error)
	}
	return nil
}

func (r *gormTokenRepository) CreatePasswordResetToken(ctx context.Context, tx *gorm.DB, token *model.PasswordResetToken) error {
	logger := middleware.GetLogger(ctx)
	if err := tx.WithContext(ctx).Create(token).Error; err != nil {
		logger.Error("Error creating password reset token in DB", "error", err, "user_id", token.UserID.String())
		return fmt.Errorf("gormTokenRepository.CreatePasswordResetToken: %w", err)
	}
	return nil
}

func (r *gormTokenRepository) FindPasswordResetToken(ctx context.Context, db *gorm.DB, token string) (*model.PasswordResetToken, error) {
	logger := middleware.GetLogger(ctx)
	var rt model.PasswordResetToken
	result := db.WithContext(ctx).Where("token = ?", token).First(&rt)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		logger.Error("Error finding password reset token in DB", "error", result.Error)
		return nil, fmt.Errorf("gormTokenRepository.FindPasswordResetToken: %w", result.Error)
	}
	return &rt, nil
}

func (r *gormTokenRepository) DeletePasswordResetToken(ctx context.Context, tx *gorm.DB, token string) error {
	logger := middleware.GetLogger(ctx)
	result := tx.WithContext(ctx).Where("token = ?", token).Delete(&model.PasswordResetToken{})
	if result.Error != nil {
		logger.Error("Error deleting password reset token in DB", "error", result.Error)
		return fmt.Errorf("gormTokenRepository.DeletePasswordResetToken: %w", result.Error)
	}
	return nil
}

func (r *gormTokenRepository) DeletePasswordResetTokensByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	logger := middleware.GetLogger(ctx)
	result := tx.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.PasswordResetToken{})
	if result.Error != nil {
		logger.Error("Error deleting password reset tokens in DB", "error", result.Error, "user_id", userID.String())
		return fmt.Errorf("gormTokenRepository.DeletePasswordResetTokensByUserID: %w", result.Error)
	}
	return nil
}
