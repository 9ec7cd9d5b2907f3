package repository

import (
	"context"
	"fmt"

	"go_5_habit_keep/internal/middleware"
	"go_5_habit_keep/internal/model"

	"gorm.io/gorm"
)

type QuestionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, question *model.Question) error
	FindAll(ctx context.Context, db *gorm.DB, limit int) ([]*model.Question, error)
}

type gormQuestionRepository struct{}

func NewGormQuestionRepository() QuestionRepository {
	return &gormQuestionRepository{}
}

func (r *gormQuestionRepository) Create(ctx context.Context, tx *gorm.DB, question *model.Question) error {
	logger := middleware.GetLogger(ctx)
	if err := tx.WithContext(ctx).Create(question).Error; err != nil {
		logger.Error("Error creating question in DB", "error", err, "user_id", question.UserID.String())
		return fmt.Errorf("gormQuestionRepository.Create: %w", err)
	}
	return nil
}

func (r *gormQuestionRepository) FindAll(ctx context.Context, db *gorm.DB, limit int) ([]*model.Question, error) {
	logger := middleware.GetLogger(ctx)
	var questions []*model.Question
	query := db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	result := query.Find(&questions)
	if result.Error != nil {
		logger.Error("Error finding questions in DB", "error", result.Error)
		return nil, fmt.Errorf("gormQuestionRepository.FindAll: %w", result.Error)
	}
	return questions, nil
}
