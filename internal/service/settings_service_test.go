package service

import (
	"context"
	"testing"
	"time"

	"go_5_habit_keep/internal/clock"
	"go_5_habit_keep/internal/config"
	"go_5_habit_keep/internal/model"
	"go_5_habit_keep/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// --- テストヘルパー関数 (インメモリDBセットアップ) ---
func setupTestDBSettings() *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // テスト中はログを抑制
	})
	if err != nil {
		panic("failed to connect database for settings service testing: " + err.Error())
	}
	err = db.AutoMigrate(&model.UserSettings{})
	if err != nil {
		panic("failed to migrate database for settings service testing: " + err.Error())
	}
	return db
}

func testAppConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			DayStartHour:       5,
			DefaultTzOffsetMin: 180,
			AutosaveIntervalS:  10,
			DayPollIntervalS:   30,
			MaxDaysCount:       90,
		},
	}
}

func Test_settingsService_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	db := setupTestDBSettings()
	svc := NewSettingsService(db, repository.NewGormSettingsRepository(), testAppConfig())

	userID := uuid.New()

	// 未作成ならデフォルト値で遅延作成される
	settings, err := svc.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, userID, settings.UserID)
	assert.Equal(t, 180, settings.TzOffsetMin)
	assert.Equal(t, 5, settings.DayStartHour)
	assert.Equal(t, 1, settings.CurrentDay)
	assert.False(t, settings.CourseStartDate.IsZero())
	assert.Nil(t, settings.ActiveItemType)

	// 開始日は「現在の論理日の開始瞬間」なので過去24時間以内
	assert.True(t, time.Since(settings.CourseStartDate) < 24*time.Hour)
	assert.True(t, time.Since(settings.CourseStartDate) >= 0)

	// 2回目は作成済みの行が返る
	again, err := svc.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, settings.UserID, again.UserID)
	assert.Equal(t, settings.CourseStartDate.Unix(), again.CourseStartDate.Unix())

	var count int64
	db.Model(&model.UserSettings{}).Where("user_id = ?", userID).Count(&count)
	assert.Equal(t, int64(1), count)
}

// 作成直後の開始日が必ず day 1 へ往復すること。開始日はユーザーの
// タイムゾーンオフセットで計算されるため、サーバーのゾーンに依存しない。
func Test_settingsService_GetOrCreate_StartDateRoundTripsToDayOne(t *testing.T) {
	ctx := context.Background()
	db := setupTestDBSettings()
	svc := NewSettingsService(db, repository.NewGormSettingsRepository(), testAppConfig())

	settings, err := svc.GetOrCreate(ctx, uuid.New())
	require.NoError(t, err)

	tz := settings.TzOffsetMin
	day := clock.CourseDay(settings.CourseStartDate.Format(time.RFC3339), &tz,
		settings.DayStartHour, 90, time.Now())
	assert.Equal(t, 1, day)
}

func Test_settingsService_Update(t *testing.T) {
	ctx := context.Background()
	db := setupTestDBSettings()
	svc := NewSettingsService(db, repository.NewGormSettingsRepository(), testAppConfig())

	userID := uuid.New()
	_, err := svc.GetOrCreate(ctx, userID)
	require.NoError(t, err)

	newTz := -300
	tests := []struct {
		name   string
		req    *model.UpdateSettingsRequest
		verify func(t *testing.T, s *model.UserSettings)
	}{
		{
			name: "正常系: タイムゾーンのみ更新 (他は据え置き)",
			req:  &model.UpdateSettingsRequest{TzOffsetMin: &newTz},
			verify: func(t *testing.T, s *model.UserSettings) {
				assert.Equal(t, -300, s.TzOffsetMin)
				assert.Equal(t, 5, s.DayStartHour)
				assert.Equal(t, 1, s.CurrentDay)
			},
		},
		{
			name: "正常系: 空の更新は何も変えない",
			req:  &model.UpdateSettingsRequest{},
			verify: func(t *testing.T, s *model.UserSettings) {
				assert.Equal(t, -300, s.TzOffsetMin)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Update(ctx, userID, tt.req)
			require.NoError(t, err)
			tt.verify(t, got)
		})
	}
}

// 未作成ユーザーへの Update は先にデフォルトを作ってから適用されること
func Test_settingsService_Update_CreatesDefaultsFirst(t *testing.T) {
	ctx := context.Background()
	db := setupTestDBSettings()
	svc := NewSettingsService(db, repository.NewGormSettingsRepository(), testAppConfig())

	userID := uuid.New()
	hour := 6
	got, err := svc.Update(ctx, userID, &model.UpdateSettingsRequest{DayStartHour: &hour})
	require.NoError(t, err)
	assert.Equal(t, 6, got.DayStartHour)
	assert.Equal(t, 180, got.TzOffsetMin, "未指定のフィールドはデフォルト値のまま")
}

func Test_settingsService_SetActiveItem(t *testing.T) {
	ctx := context.Background()
	db := setupTestDBSettings()
	svc := NewSettingsService(db, repository.NewGormSettingsRepository(), testAppConfig())

	userID := uuid.New()
	_, err := svc.GetOrCreate(ctx, userID)
	require.NoError(t, err)

	itemType := model.ItemTypeTracker
	itemID := uuid.New()
	require.NoError(t, svc.SetActiveItem(ctx, userID, &itemType, &itemID))

	settings, err := svc.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, settings.ActiveItemType)
	require.NotNil(t, settings.ActiveItemID)
	assert.Equal(t, itemType, *settings.ActiveItemType)
	assert.Equal(t, itemID, *settings.ActiveItemID)

	// nil で選択解除
	require.NoError(t, svc.SetActiveItem(ctx, userID, nil, nil))
	settings, err = svc.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, settings.ActiveItemType)
	assert.Nil(t, settings.ActiveItemID)
}

func Test_settingsService_SetCurrentDay(t *testing.T) {
	ctx := context.Background()
	db := setupTestDBSettings()
	svc := NewSettingsService(db, repository.NewGormSettingsRepository(), testAppConfig())

	userID := uuid.New()
	_, err := svc.GetOrCreate(ctx, userID)
	require.NoError(t, err)

	require.NoError(t, svc.SetCurrentDay(ctx, userID, 7))
	settings, err := svc.GetOrCreate(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 7, settings.CurrentDay)

	assert.ErrorIs(t, svc.SetCurrentDay(ctx, userID, 0), model.ErrInvalidInput, "日番号は1始まり")
}
