// internal/model/item.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ItemType はコース (トレーナー作成・複数人参加) と
// トラッカー (個人作成) を区別するタグです。
type ItemType string

const (
	ItemTypeCourse  ItemType = "course"
	ItemTypeTracker ItemType = "tracker"
)

func (t ItemType) Valid() bool {
	return t == ItemTypeCourse || t == ItemTypeTracker
}

// Item はコース/トラッカーの共通形です。アクティビティ一覧を排他的に所有します。
// StartDate はトラッカーの場合は必須、コースの場合は nil
// (ユーザー設定側の course_start_date にフォールバック)。
type Item struct {
	ItemID    uuid.UUID      `gorm:"type:uuid;primaryKey" json:"item_id"`
	Type      ItemType       `gorm:"type:varchar(10);not null;index" json:"type"`
	OwnerID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_id"`
	Title     string         `gorm:"not null" json:"title"`
	Icon      string         `json:"icon"`
	DaysCount int            `gorm:"not null" json:"days_count"`
	StartDate *time.Time     `json:"start_date,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// 関連 (Preload用)
	Activities []Activity `gorm:"foreignKey:ItemID;references:ItemID" json:"activities"`
}

func (Item) TableName() string {
	return "items"
}

// Activity は1つの練習 (タイマー対象) の定義です。
// [FirstDay, LastDay] が有効な日の範囲 (両端を含む日番号)。
type Activity struct {
	ActivityID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"activity_id"`
	ItemID      uuid.UUID `gorm:"type:uuid;not null;index" json:"-"`
	Label       string    `gorm:"not null" json:"label"`
	Icon        string    `json:"icon"`
	DurationMin int       `gorm:"not null" json:"duration_min"`
	FirstDay    int       `gorm:"not null;default:1" json:"first_day"`
	LastDay     int       `gorm:"not null" json:"last_day"`
	SortOrder   int       `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Activity) TableName() string {
	return "activities"
}

// TotalSeconds はアクティビティの所要時間を秒で返します。
func (a *Activity) TotalSeconds() int {
	return a.DurationMin * 60
}

// AppliesTo は指定日にこのアクティビティが有効かどうかを返します。
// 範囲が壊れている定義 (first > last 等) は常に false。
func (a *Activity) AppliesTo(day, daysCount int) bool {
	if a.FirstDay > a.LastDay || a.FirstDay < 1 || a.LastDay > daysCount {
		return false
	}
	return day >= a.FirstDay && day <= a.LastDay
}

// CourseEnrollment はユーザーのコース参加を表します
type CourseEnrollment struct {
	ID        uint      `gorm:"primaryKey"`
	ItemID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_enrollment"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_enrollment"`
	CreatedAt time.Time
}

func (CourseEnrollment) TableName() string {
	return "course_enrollments"
}

// CourseInvitation はメールアドレス宛のコース招待です。
// 招待されたメールのユーザーが次にコース一覧を取得した時点で参加へ変換されます。
type CourseInvitation struct {
	ID        uint      `gorm:"primaryKey"`
	ItemID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_invitation"`
	Email     string    `gorm:"not null;uniqueIndex:uq_invitation"`
	InvitedBy uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt time.Time
}

func (CourseInvitation) TableName() string {
	return "course_invitations"
}

// --- DTO ---

type ActivityInput struct {
	Label       string `json:"label" validate:"required,min=1,max=100"`
	Icon        string `json:"icon" validate:"max=100"`
	DurationMin int    `json:"duration_min" validate:"required,min=1,max=480"`
	FirstDay    int    `json:"first_day" validate:"omitempty,min=1"`
	LastDay     int    `json:"last_day" validate:"omitempty,min=1"`
}

type CreateItemRequest struct {
	Type       ItemType        `json:"type" validate:"required,oneof=course tracker"`
	Title      string          `json:"title" validate:"required,min=1,max=200"`
	Icon       string          `json:"icon" validate:"max=100"`
	DaysCount  int             `json:"days_count" validate:"required,min=1"`
	StartDate  *time.Time      `json:"start_date,omitempty"`
	Activities []ActivityInput `json:"activities" validate:"required,min=1,dive"`
}

type UpdateItemRequest struct {
	Title      *string         `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Icon       *string         `json:"icon,omitempty" validate:"omitempty,max=100"`
	DaysCount  *int            `json:"days_count,omitempty" validate:"omitempty,min=1"`
	StartDate  *time.Time      `json:"start_date,omitempty"`
	Activities []ActivityInput `json:"activities,omitempty" validate:"omitempty,min=1,dive"`
}

type InviteRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ItemResponse は一覧向けのレスポンスDTO
type ItemResponse struct {
	ItemID     uuid.UUID  `json:"item_id"`
	Type       ItemType   `json:"type"`
	Title      string     `json:"title"`
	Icon       string     `json:"icon"`
	DaysCount  int        `json:"days_count"`
	StartDate  *time.Time `json:"start_date,omitempty"`
	Activities []Activity `json:"activities"`
}
