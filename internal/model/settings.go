// internal/model/settings.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// UserSettings はユーザーごとのシングルトン設定です。
// 初回ログイン時にデフォルト値で作成されます。
type UserSettings struct {
	UserID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"user_id"`
	TzOffsetMin     int        `gorm:"not null" json:"tz_offset_min"`
	DayStartHour    int        `gorm:"not null;default:5" json:"day_start_hour"`
	CourseStartDate time.Time  `gorm:"not null" json:"course_start_date"`
	CurrentDay      int        `gorm:"not null;default:1" json:"current_day"`
	ActiveItemType  *ItemType  `gorm:"type:varchar(10)" json:"active_item_type,omitempty"`
	ActiveItemID    *uuid.UUID `gorm:"type:uuid" json:"active_item_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (UserSettings) TableName() string {
	return "user_settings"
}

// UpdateSettingsRequest は設定の部分更新リクエストDTO
type UpdateSettingsRequest struct {
	TzOffsetMin     *int       `json:"tz_offset_min,omitempty" validate:"omitempty,min=-720,max=840"`
	DayStartHour    *int       `json:"day_start_hour,omitempty" validate:"omitempty,min=0,max=23"`
	CourseStartDate *time.Time `json:"course_start_date,omitempty"`
	CurrentDay      *int       `json:"current_day,omitempty" validate:"omitempty,min=1"`
}
