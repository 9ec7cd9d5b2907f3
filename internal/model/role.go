// internal/model/role.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleCurator Role = "curator"
	RoleTrainer Role = "trainer"
	RoleAdmin   Role = "admin"
)

// roleRank は役割の階層を定義します (大きいほど強い)
var roleRank = map[Role]int{
	RoleStudent: 1,
	RoleCurator: 2,
	RoleTrainer: 3,
	RoleAdmin:   4,
}

func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast は r が required 以上の権限を持つかを返します
func (r Role) AtLeast(required Role) bool {
	return roleRank[r] >= roleRank[required]
}

// PendingRoleGrant は未登録ユーザー宛のロール付与予約です。
// メールアドレスをキーとし、対象ユーザーの次回ロール解決時に適用されます。
type PendingRoleGrant struct {
	ID        uint      `gorm:"primaryKey"`
	Email     string    `gorm:"unique;not null"`
	Role      Role      `gorm:"type:varchar(20);not null"`
	GrantedBy uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt time.Time
}

func (PendingRoleGrant) TableName() string {
	return "pending_role_grants"
}

// AssignRoleRequest はロール割り当てリクエストのDTO
type AssignRoleRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  Role   `json:"role" validate:"required,oneof=student curator trainer admin"`
}

// RoleResponse はロール解決結果のレスポンスDTO
type RoleResponse struct {
	Role Role `json:"role"`
}
