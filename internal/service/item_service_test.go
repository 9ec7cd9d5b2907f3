package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go_5_habit_keep/internal/model"
	"go_5_habit_keep/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDBItem() *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic("failed to connect database for item service testing: " + err.Error())
	}
	err = db.AutoMigrate(
		&model.User{},
		&model.Item{},
		&model.Activity{},
		&model.CourseEnrollment{},
		&model.CourseInvitation{},
	)
	if err != nil {
		panic("failed to migrate database for item service testing: " + err.Error())
	}
	return db
}

func newItemService(db *gorm.DB) ItemService {
	return NewItemService(db, repository.NewGormItemRepository(), repository.NewGormUserRepository(), testAppConfig())
}

func createItemTestUser(t *testing.T, db *gorm.DB) *model.User {
	t.Helper()
	user := &model.User{
		UserID:       uuid.New(),
		Name:         "item test user",
		Email:        fmt.Sprintf("%s@example.com", uuid.NewString()),
		PasswordHash: "hash",
		Role:         model.RoleStudent,
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func trackerRequest(days int) *model.CreateItemRequest {
	start := time.Date(2025, 3, 1, 5, 0, 0, 0, time.UTC)
	return &model.CreateItemRequest{
		Type:      model.ItemTypeTracker,
		Title:     "morning routine",
		DaysCount: days,
		StartDate: &start,
		Activities: []model.ActivityInput{
			{Label: "meditation", DurationMin: 10},
			{Label: "reading", DurationMin: 20, FirstDay: 1, LastDay: 7},
		},
	}
}

func Test_itemService_Create(t *testing.T) {
	ctx := context.Background()
	db := setupTestDBItem()
	svc := newItemService(db)
	owner := createItemTestUser(t, db)

	t.Run("正常系: トラッカー作成 (日範囲のデフォルト補完)", func(t *testing.T) {
		item, err := svc.Create(ctx, owner.UserID, trackerRequest(90))
		require.NoError(t, err)
		assert.Equal(t, owner.UserID, item.OwnerID)
		require.Len(t, item.Activities, 2)

		// LastDay 未指定は最終日まで有効
		assert.Equal(t, 1, item.Activities[0].FirstDay)
		assert.Equal(t, 90, item.Activities[0].LastDay)
		assert.Equal(t, 7, item.Activities[1].LastDay)
		assert.Equal(t, 0, item.Activities[0].SortOrder)
		assert.Equal(t, 1, item.Activities[1].SortOrder)
	})

	t.Run("異常系: トラッカーに開始日なし", func(t *testing.T) {
		req := trackerRequest(90)
		req.StartDate = nil
		_, err := svc.Create(ctx, owner.UserID, req)
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})

	t.Run("異常系: 日範囲が日数を超える", func(t *testing.T) {
		req := trackerRequest(30)
		req.Activities = []model.ActivityInput{
			{Label: "bad", DurationMin: 5, FirstDay: 1, LastDay: 31},
		}
		_, err := svc.Create(ctx, owner.UserID, req)
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})

	t.Run("異常系: 日数が上限を超える", func(t *testing.T) {
		_, err := svc.Create(ctx, owner.UserID, trackerRequest(91))
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})

	t.Run("正常系: コースは開始日なしで作成できる", func(t *testing.T) {
		req := &model.CreateItemRequest{
			Type:      model.ItemTypeCourse,
			Title:     "group course",
			DaysCount: 30,
			Activities: []model.ActivityInput{
				{Label: "practice", DurationMin: 15},
			},
		}
		item, err := svc.Create(ctx, owner.UserID, req)
		require.NoError(t, err)
		assert.Nil(t, item.StartDate)
	})
}

func Test_itemService_GetAvailableItem(t *testing.T) {
	ctx := context.Background()
	db := setupTestDBItem()
	svc := newItemService(db)
	owner := createItemTestUser(t, db)
	other := createItemTestUser(t, db)

	tracker, err := svc.Create(ctx, owner.UserID, trackerRequest(90))
	require.NoError(t, err)

	course, err := svc.Create(ctx, owner.UserID, &model.CreateItemRequest{
		Type: model.ItemTypeCourse, Title: "course", DaysCount: 30,
		Activities: []model.ActivityInput{{Label: "practice", DurationMin: 15}},
	})
	require.NoError(t, err)

	t.Run("正常系: 所有者は取得できる", func(t *testing.T) {
		got, err := svc.GetAvailableItem(ctx, owner.UserID, model.ItemTypeTracker, tracker.ItemID)
		require.NoError(t, err)
		assert.Equal(t, tracker.ItemID, got.ItemID)
		assert.Len(t, got.Activities, 2, "アクティビティはPreloadされる")
	})

	t.Run("異常系: タイプ不一致は NotFound", func(t *testing.T) {
		_, err := svc.GetAvailableItem(ctx, owner.UserID, model.ItemTypeCourse, tracker.ItemID)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("異常系: 他人のトラッカーは Forbidden", func(t *testing.T) {
		_, err := svc.GetAvailableItem(ctx, other.UserID, model.ItemTypeTracker, tracker.ItemID)
		assert.ErrorIs(t, err, model.ErrForbidden)
	})

	t.Run("正常系: 参加者はコースを取得できる", func(t *testing.T) {
		require.NoError(t, db.Create(&model.CourseEnrollment{
			ItemID: course.ItemID, UserID: other.UserID,
		}).Error)

		got, err := svc.GetAvailableItem(ctx, other.UserID, model.ItemTypeCourse, course.ItemID)
		require.NoError(t, err)
		assert.Equal(t, course.ItemID, got.ItemID)
	})

	t.Run("異常系: 未参加のコースは Forbidden", func(t *testing.T) {
		stranger := createItemTestUser(t, db)
		_, err := svc.GetAvailableItem(ctx, stranger.UserID, model.ItemTypeCourse, course.ItemID)
		assert.ErrorIs(t, err, model.ErrForbidden)
	})
}

// 一覧取得時に本人宛の招待が参加へ変換されること
func Test_itemService_ListAvailable_ConvertsInvitations(t *testing.T) {
	ctx := context.Background()
	db := setupTestDBItem()
	svc := newItemService(db)
	trainer := createItemTestUser(t, db)
	student := createItemTestUser(t, db)

	course, err := svc.Create(ctx, trainer.UserID, &model.CreateItemRequest{
		Type: model.ItemTypeCourse, Title: "invited course", DaysCount: 30,
		Activities: []model.ActivityInput{{Label: "practice", DurationMin: 15}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Invite(ctx, trainer.UserID, course.ItemID, student.Email))

	items, err := svc.ListAvailable(ctx, student.UserID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, course.ItemID, items[0].ItemID)

	// 招待は消費され、参加レコードに変わっている
	var invCount, enrollCount int64
	db.Model(&model.CourseInvitation{}).Where("email = ?", student.Email).Count(&invCount)
	db.Model(&model.CourseEnrollment{}).Where("item_id = ? AND user_id = ?", course.ItemID, student.UserID).Count(&enrollCount)
	assert.Equal(t, int64(0), invCount)
	assert.Equal(t, int64(1), enrollCount)

	// 2回目の一覧でも重複しない
	items, err = svc.ListAvailable(ctx, student.UserID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func Test_itemService_Update(t *testing.T) {
	ctx := context.Background()
	db := setupTestDBItem()
	svc := newItemService(db)
	owner := createItemTestUser(t, db)
	other := createItemTestUser(t, db)

	item, err := svc.Create(ctx, owner.UserID, trackerRequest(90))
	require.NoError(t, err)

	t.Run("正常系: タイトルのみ更新", func(t *testing.T) {
		title := "evening routine"
		got, err := svc.Update(ctx, owner.UserID, item.ItemID, &model.UpdateItemRequest{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, "evening routine", got.Title)
		assert.Len(t, got.Activities, 2, "アクティビティは据え置き")
	})

	t.Run("正常系: アクティビティの丸ごと入れ替え", func(t *testing.T) {
		got, err := svc.Update(ctx, owner.UserID, item.ItemID, &model.UpdateItemRequest{
			Activities: []model.ActivityInput{
				{Label: "stretching", DurationMin: 5},
			},
		})
		require.NoError(t, err)
		require.Len(t, got.Activities, 1)
		assert.Equal(t, "stretching", got.Activities[0].Label)
	})

	t.Run("異常系: 日数の上限超過は拒否", func(t *testing.T) {
		days := 91
		_, err := svc.Update(ctx, owner.UserID, item.ItemID, &model.UpdateItemRequest{DaysCount: &days})
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})

	t.Run("異常系: 所有者以外は Forbidden", func(t *testing.T) {
		title := "hijack"
		_, err := svc.Update(ctx, other.UserID, item.ItemID, &model.UpdateItemRequest{Title: &title})
		assert.ErrorIs(t, err, model.ErrForbidden)
	})
}

func Test_itemService_Invite(t *testing.T) {
	ctx := context.Background()
	db := setupTestDBItem()
	svc := newItemService(db)
	owner := createItemTestUser(t, db)
	other := createItemTestUser(t, db)

	tracker, err := svc.Create(ctx, owner.UserID, trackerRequest(90))
	require.NoError(t, err)
	course, err := svc.Create(ctx, owner.UserID, &model.CreateItemRequest{
		Type: model.ItemTypeCourse, Title: "course", DaysCount: 30,
		Activities: []model.ActivityInput{{Label: "practice", DurationMin: 15}},
	})
	require.NoError(t, err)

	t.Run("正常系: コースへの招待", func(t *testing.T) {
		err := svc.Invite(ctx, owner.UserID, course.ItemID, "someone@example.com")
		require.NoError(t, err)
	})

	t.Run("異常系: トラッカーには招待できない", func(t *testing.T) {
		err := svc.Invite(ctx, owner.UserID, tracker.ItemID, "someone@example.com")
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})

	t.Run("異常系: 所有者以外は招待できない", func(t *testing.T) {
		err := svc.Invite(ctx, other.UserID, course.ItemID, "someone@example.com")
		assert.ErrorIs(t, err, model.ErrForbidden)
	})
}

func Test_itemService_Delete(t *testing.T) {
	ctx := context.Background()
	db := setupTestDBItem()
	svc := newItemService(db)
	owner := createItemTestUser(t, db)
	other := createItemTestUser(t, db)

	item, err := svc.Create(ctx, owner.UserID, trackerRequest(90))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, other.UserID, item.ItemID), model.ErrForbidden)

	require.NoError(t, svc.Delete(ctx, owner.UserID, item.ItemID))
	_, err = svc.GetAvailableItem(ctx, owner.UserID, model.ItemTypeTracker, item.ItemID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
