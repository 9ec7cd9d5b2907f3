// internal/config/constants.go
package config

import "time"

// アプリケーション情報
const (
	AppName    = "HabitKeep"
	AppVersion = "1.0.0"
)

// デフォルト設定値
const (
	DefaultServerPort = ":8080"
	DefaultLogLevel   = "info"

	// 論理日は朝5時に切り替わる
	DefaultDayStartHour = 5
	// タイムゾーン未設定ユーザーのフォールバック (UTC+3, 分単位)
	DefaultTzOffsetMin = 180

	// タイマー実行中の自動保存間隔 (秒)
	DefaultAutosaveIntervalS = 10
	// 現在日の再計算間隔 (秒)
	DefaultDayPollIntervalS = 30

	// コース/トラッカーの日数上限
	DefaultMaxDaysCount = 90

	DefaultAccessTokenTTL = 24 * time.Hour
)
