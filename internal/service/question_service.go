package service

import (
	"context"

	"go_5_habit_keep/internal/middleware"
	"go_5_habit_keep/internal/model"
	"go_5_habit_keep/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QuestionService interface {
	Submit(ctx context.Context, userID uuid.UUID, req *model.SubmitQuestionRequest) error
	List(ctx context.Context, limit int) ([]*model.Question, error)
}

type questionService struct {
	db           *gorm.DB
	questionRepo repository.QuestionRepository
}

func NewQuestionService(db *gorm.DB, questionRepo repository.QuestionRepository) QuestionService {
	return &questionService{
		db:           db,
		questionRepo: questionRepo,
	}
}

func (s *questionService) Submit(ctx context.Context, userID uuid.UUID, req *model.SubmitQuestionRequest) error {
	logger := middleware.GetLogger(ctx)

	question := &model.Question{
		UserID:   userID,
		Question: req.Question,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.questionRepo.Create(ctx, tx, question)
	})
	if err != nil {
		return model.NewAppError("INTERNAL_SERVER_ERROR", "質問の送信に失敗しました。", "", err)
	}

	logger.Info("Question submitted", "user_id", userID.String())
	return nil
}

func (s *questionService) List(ctx context.Context, limit int) ([]*model.Question, error) {
	return s.questionRepo.FindAll(ctx, s.db, limit)
}
