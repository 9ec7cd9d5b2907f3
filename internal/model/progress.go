// internal/model/progress.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// ActivityProgress は (日, アクティビティ) ごとの進捗レコードです。
// 不変条件: Completed == true のとき ElapsedSeconds == duration*60、
// また ElapsedSeconds は duration*60 を超えない (サービス層で強制)。
type ActivityProgress struct {
	ProgressID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;index:idx_progress_key,unique"`
	ItemType       ItemType  `gorm:"type:varchar(10);not null;index:idx_progress_key,unique"`
	ItemID         uuid.UUID `gorm:"type:uuid;not null;index:idx_progress_key,unique"`
	ActivityID     uuid.UUID `gorm:"type:uuid;not null;index:idx_progress_key,unique"`
	Day            int       `gorm:"not null;index:idx_progress_key,unique"`
	ElapsedSeconds int       `gorm:"not null;default:0"`
	Completed      bool      `gorm:"not null;default:false"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (ActivityProgress) TableName() string {
	return "activity_progress"
}

// ProgressEntry はクライアントへ返す1レコード分の進捗です
type ProgressEntry struct {
	Elapsed   int  `json:"elapsed"`
	Completed bool `json:"completed"`
}

// ProgressMap は { day: { activity_id: entry } } のネスト形です
type ProgressMap map[int]map[uuid.UUID]ProgressEntry

// SaveProgressRequest は進捗保存リクエストのDTO
type SaveProgressRequest struct {
	ActivityID     uuid.UUID `json:"activity_id" validate:"required"`
	Day            int       `json:"day" validate:"required,min=1"`
	ElapsedSeconds int       `json:"elapsed_seconds" validate:"min=0"`
	Completed      bool      `json:"completed"`
}
