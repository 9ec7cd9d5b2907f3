package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go_5_habit_keep/internal/model"
	"go_5_habit_keep/internal/repository"
	"go_5_habit_keep/internal/session"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDBProgress() *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic("failed to connect database for progress service testing: " + err.Error())
	}
	err = db.AutoMigrate(&model.ActivityProgress{}, &model.UserSettings{}, &model.Item{}, &model.Activity{})
	if err != nil {
		panic("failed to migrate database for progress service testing: " + err.Error())
	}
	return db
}

func newProgressService(db *gorm.DB) ProgressService {
	return NewProgressService(db,
		repository.NewGormProgressRepository(),
		repository.NewGormSettingsRepository(),
		repository.NewGormItemRepository())
}

// createProgressItem は保存先のアイテムをアクティビティごと直接作成します。
// durations は各アクティビティの所要時間 (分)。
func createProgressItem(t *testing.T, db *gorm.DB, itemType model.ItemType, durations ...int) *model.Item {
	t.Helper()
	itemID := uuid.New()
	item := &model.Item{
		ItemID:    itemID,
		Type:      itemType,
		OwnerID:   uuid.New(),
		Title:     "progress item",
		DaysCount: 90,
	}
	for i, min := range durations {
		item.Activities = append(item.Activities, model.Activity{
			ActivityID:  uuid.New(),
			ItemID:      itemID,
			Label:       fmt.Sprintf("activity %d", i),
			DurationMin: min,
			FirstDay:    1,
			LastDay:     90,
			SortOrder:   i,
		})
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

// 同一キーへの再保存は上書きになること (冪等)
func Test_progressService_Save_IsIdempotentUpsert(t *testing.T) {
	ctx := context.Background()
	db := setupTestDBProgress()
	svc := newProgressService(db)

	userID := uuid.New()
	item := createProgressItem(t, db, model.ItemTypeTracker, 10) // 600秒
	activityID := item.Activities[0].ActivityID

	req := &model.SaveProgressRequest{
		ActivityID:     activityID,
		Day:            3,
		ElapsedSeconds: 120,
	}
	require.NoError(t, svc.Save(ctx, userID, model.ItemTypeTracker, item.ItemID, req))

	// 自動保存の再送を想定した上書き
	req.ElapsedSeconds = 240
	require.NoError(t, svc.Save(ctx, userID, model.ItemTypeTracker, item.ItemID, req))

	// 完了書き込み
	req.ElapsedSeconds = 600
	req.Completed = true
	require.NoError(t, svc.Save(ctx, userID, model.ItemTypeTracker, item.ItemID, req))

	var records []model.ActivityProgress
	require.NoError(t, db.Where("user_id = ?", userID).Find(&records).Error)
	require.Len(t, records, 1, "同一キーでは1行のまま")
	assert.Equal(t, 600, records[0].ElapsedSeconds)
	assert.True(t, records[0].Completed)
}

// 保存値はアクティビティの所要時間で正規化されること (クライアント値を信用しない)
func Test_progressService_Save_NormalizesElapsed(t *testing.T) {
	ctx := context.Background()
	db := setupTestDBProgress()
	svc := newProgressService(db)

	userID := uuid.New()
	item := createProgressItem(t, db, model.ItemTypeTracker, 10) // 600秒
	activityID := item.Activities[0].ActivityID

	t.Run("正常系: completed は経過秒を満額へスナップ", func(t *testing.T) {
		require.NoError(t, svc.Save(ctx, userID, model.ItemTypeTracker, item.ItemID,
			&model.SaveProgressRequest{ActivityID: activityID, Day: 1, ElapsedSeconds: 5, Completed: true}))

		m, err := svc.LoadMap(ctx, userID, model.ItemTypeTracker, item.ItemID)
		require.NoError(t, err)
		assert.Equal(t, model.ProgressEntry{Elapsed: 600, Completed: true}, m[1][activityID])
	})

	t.Run("境界系: 所要時間を超える経過秒はクランプ", func(t *testing.T) {
		require.NoError(t, svc.Save(ctx, userID, model.ItemTypeTracker, item.ItemID,
			&model.SaveProgressRequest{ActivityID: activityID, Day: 2, ElapsedSeconds: 10000}))

		m, err := svc.LoadMap(ctx, userID, model.ItemTypeTracker, item.ItemID)
		require.NoError(t, err)
		assert.Equal(t, model.ProgressEntry{Elapsed: 600, Completed: false}, m[2][activityID])
	})

	t.Run("異常系: アイテムに属さないアクティビティは拒否", func(t *testing.T) {
		err := svc.Save(ctx, userID, model.ItemTypeTracker, item.ItemID,
			&model.SaveProgressRequest{ActivityID: uuid.New(), Day: 1, ElapsedSeconds: 10})
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("異常系: アイテムタイプの不一致は NotFound", func(t *testing.T) {
		err := svc.Save(ctx, userID, model.ItemTypeCourse, item.ItemID,
			&model.SaveProgressRequest{ActivityID: activityID, Day: 1, ElapsedSeconds: 10})
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func Test_progressService_LoadMap(t *testing.T) {
	ctx := context.Background()
	db := setupTestDBProgress()
	svc := newProgressService(db)

	userID := uuid.New()
	item := createProgressItem(t, db, model.ItemTypeCourse, 10, 20)
	actA := item.Activities[0].ActivityID
	actB := item.Activities[1].ActivityID

	saves := []*model.SaveProgressRequest{
		{ActivityID: actA, Day: 1, ElapsedSeconds: 600, Completed: true},
		{ActivityID: actB, Day: 1, ElapsedSeconds: 90},
		{ActivityID: actA, Day: 2, ElapsedSeconds: 30},
	}
	for _, req := range saves {
		require.NoError(t, svc.Save(ctx, userID, model.ItemTypeCourse, item.ItemID, req))
	}
	// 別アイテムのレコードは混ざらない
	otherItem := createProgressItem(t, db, model.ItemTypeCourse, 15)
	require.NoError(t, svc.Save(ctx, userID, model.ItemTypeCourse, otherItem.ItemID,
		&model.SaveProgressRequest{ActivityID: otherItem.Activities[0].ActivityID, Day: 1, ElapsedSeconds: 300}))

	m, err := svc.LoadMap(ctx, userID, model.ItemTypeCourse, item.ItemID)
	require.NoError(t, err)
	require.Len(t, m, 2)
	assert.Equal(t, model.ProgressEntry{Elapsed: 600, Completed: true}, m[1][actA])
	assert.Equal(t, model.ProgressEntry{Elapsed: 90, Completed: false}, m[1][actB])
	assert.Equal(t, model.ProgressEntry{Elapsed: 30, Completed: false}, m[2][actA])
}

func Test_progressService_LoadMap_Empty(t *testing.T) {
	ctx := context.Background()
	db := setupTestDBProgress()
	svc := newProgressService(db)

	m, err := svc.LoadMap(ctx, uuid.New(), model.ItemTypeTracker, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, m)
}

// session.Persister 実装としての保存経路
func Test_progressService_Persister(t *testing.T) {
	ctx := context.Background()
	db := setupTestDBProgress()
	svc := newProgressService(db)

	userID := uuid.New()
	itemID := uuid.New()
	activityID := uuid.New()

	settings := &model.UserSettings{
		UserID:          userID,
		TzOffsetMin:     180,
		DayStartHour:    5,
		CourseStartDate: time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC),
		CurrentDay:      1,
	}
	require.NoError(t, db.Create(settings).Error)

	t.Run("正常系: SaveProgress はupsertに落ちる", func(t *testing.T) {
		err := svc.SaveProgress(ctx, session.SaveRequest{
			UserID:         userID,
			ItemType:       model.ItemTypeTracker,
			ItemID:         itemID,
			ActivityID:     activityID,
			Day:            1,
			ElapsedSeconds: 45,
		})
		require.NoError(t, err)

		m, err := svc.LoadProgress(ctx, userID, model.ItemTypeTracker, itemID)
		require.NoError(t, err)
		assert.Equal(t, 45, m[1][activityID].Elapsed)
	})

	t.Run("正常系: SaveActiveItem と SaveCurrentDay は設定に反映される", func(t *testing.T) {
		itemType := model.ItemTypeTracker
		require.NoError(t, svc.SaveActiveItem(ctx, userID, &itemType, &itemID))
		require.NoError(t, svc.SaveCurrentDay(ctx, userID, 4))

		var got model.UserSettings
		require.NoError(t, db.Where("user_id = ?", userID).First(&got).Error)
		require.NotNil(t, got.ActiveItemID)
		assert.Equal(t, itemID, *got.ActiveItemID)
		assert.Equal(t, 4, got.CurrentDay)
	})

	t.Run("異常系: 日番号 0 の保存は拒否", func(t *testing.T) {
		assert.ErrorIs(t, svc.SaveCurrentDay(ctx, userID, 0), model.ErrInvalidInput)
	})

	t.Run("異常系: 設定未作成ユーザーへの SaveActiveItem は NotFound", func(t *testing.T) {
		itemType := model.ItemTypeTracker
		err := svc.SaveActiveItem(ctx, uuid.New(), &itemType, &itemID)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}
