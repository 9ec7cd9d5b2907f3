package service

import (
	"context"
	"errors"

	"go_5_habit_keep/internal/middleware"
	"go_5_habit_keep/internal/model"
	"go_5_habit_keep/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RoleService interface {
	// ResolveRole はユーザーの実効ロールを返します。本人宛のロール付与予約が
	// あればこの時点で適用します (middleware.RoleResolver 実装)。
	ResolveRole(ctx context.Context, userID uuid.UUID) (model.Role, error)
	// Assign はメールアドレス宛にロールを付与します。登録済みなら即時反映、
	// 未登録なら予約として保存します。
	Assign(ctx context.Context, granterID uuid.UUID, req *model.AssignRoleRequest) error
}

type roleService struct {
	db       *gorm.DB
	userRepo repository.UserRepository
	roleRepo repository.RoleRepository
}

func NewRoleService(db *gorm.DB, userRepo repository.UserRepository, roleRepo repository.RoleRepository) RoleService {
	return &roleService{
		db:       db,
		userRepo: userRepo,
		roleRepo: roleRepo,
	}
}

func (s *roleService) ResolveRole(ctx context.Context, userID uuid.UUID) (model.Role, error) {
	logger := middleware.GetLogger(ctx)

	user, err := s.userRepo.FindByID(ctx, s.db, userID)
	if err != nil {
		return "", err
	}

	grant, err := s.roleRepo.FindPendingGrantByEmail(ctx, s.db, user.Email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return user.Role, nil
		}
		return "", err
	}

	// 予約されたロールが現在のロールより強い場合のみ昇格する
	role := user.Role
	if grant.Role.AtLeast(role) {
		role = grant.Role
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if role != user.Role {
			if err := s.userRepo.Update(ctx, tx, userID, map[string]interface{}{"role": role}); err != nil {
				return err
			}
		}
		return s.roleRepo.DeletePendingGrant(ctx, tx, user.Email)
	})
	if err != nil {
		logger.Error("Failed to apply pending role grant", "error", err, "user_id", userID.String())
		// 適用に失敗しても解決自体は続行する。次回の解決で再試行される。
		return user.Role, nil
	}

	if role != user.Role {
		logger.Info("Pending role grant applied",
			"user_id", userID.String(),
			"from", string(user.Role),
			"to", string(role))
	}
	return role, nil
}

func (s *roleService) Assign(ctx context.Context, granterID uuid.UUID, req *model.AssignRoleRequest) error {
	logger := middleware.GetLogger(ctx)

	if !req.Role.Valid() {
		return model.NewAppError("INVALID_ROLE", "不正なロールです。", "role", model.ErrInvalidInput)
	}

	user, err := s.userRepo.FindByEmail(ctx, s.db, req.Email)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			return err
		}
		// 未登録ユーザー宛: 予約として保存
		grant := &model.PendingRoleGrant{
			Email:     req.Email,
			Role:      req.Role,
			GrantedBy: granterID,
		}
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.roleRepo.UpsertPendingGrant(ctx, tx, grant)
		})
		if err != nil {
			return model.NewAppError("INTERNAL_SERVER_ERROR", "ロール付与の保存に失敗しました。", "", err)
		}
		logger.Info("Pending role grant saved", "email", req.Email, "role", string(req.Role))
		return nil
	}

	// 登録済みユーザー: 即時反映
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.userRepo.Update(ctx, tx, user.UserID, map[string]interface{}{"role": req.Role})
	})
	if err != nil {
		return model.NewAppError("INTERNAL_SERVER_ERROR", "ロールの更新に失敗しました。", "", err)
	}

	logger.Info("Role assigned",
		"user_id", user.UserID.String(),
		"role", string(req.Role),
		"granted_by", granterID.String())
	return nil
}
