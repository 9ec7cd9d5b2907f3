// internal/model/question.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// Question はトレーナーへの質問です
type Question struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Question  string    `gorm:"not null"`
	CreatedAt time.Time
}

func (Question) TableName() string {
	return "questions"
}

type SubmitQuestionRequest struct {
	Question string `json:"question" validate:"required,min=1,max=2000"`
}
