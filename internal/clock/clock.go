// Package clock はコースの「論理日」に関する純粋な計算を提供します。
// 論理日は深夜0時ではなく dayStartHour (例: 朝5時) で切り替わります。
package clock

import (
	"fmt"
	"time"
)

const (
	msPerMinute = int64(60 * 1000)
	msPerHour   = int64(60 * 60 * 1000)
	msPerDay    = int64(24 * 60 * 60 * 1000)
)

// CourseDay は開始日時から見た現在のコース日番号を返します (1..totalDays)。
//
// アルゴリズム: now と start の両方をタイムゾーンオフセット分シフトし、
// さらに dayStartHour 時間を引いてから暦日に切り捨てる。これにより
// 日境界がちょうど dayStartHour に落ちる。差+1 を [1, totalDays] にクランプ。
//
// startISO が空の場合は 1 を返す。tzOffsetMin が nil の場合は now のローカル
// オフセットを使う。時計が巻き戻っていても 1 未満にはならず、コース終了後も
// totalDays を超えて進まない。
func CourseDay(startISO string, tzOffsetMin *int, dayStartHour, totalDays int, now time.Time) int {
	if startISO == "" {
		return 1
	}
	if totalDays < 1 {
		totalDays = 1
	}

	start, err := time.Parse(time.RFC3339, startISO)
	if err != nil {
		// 壊れた開始日時は day 1 として扱う
		return 1
	}

	offsetMin := localOffsetMin(now)
	if tzOffsetMin != nil {
		offsetMin = *tzOffsetMin
	}

	shift := int64(offsetMin)*msPerMinute - int64(dayStartHour)*msPerHour

	nowDay := floorDiv(now.UnixMilli()+shift, msPerDay)
	startDay := floorDiv(start.UnixMilli()+shift, msPerDay)

	dayNum := int(nowDay-startDay) + 1
	if dayNum < 1 {
		return 1
	}
	if dayNum > totalDays {
		return totalDays
	}
	return dayNum
}

// DefaultStartDate は「現在の論理日の開始瞬間」を返します。
// 現在時刻が dayStartHour より前なら前日の dayStartHour。
// これにより day 1 が必ず現在の論理日になる。
func DefaultStartDate(dayStartHour int, now time.Time) string {
	d := now
	if now.Hour() < dayStartHour {
		d = d.AddDate(0, 0, -1)
	}
	d = time.Date(d.Year(), d.Month(), d.Day(), dayStartHour, 0, 0, 0, d.Location())
	return d.Format(time.RFC3339)
}

// DayElapsedFraction は現在の論理日のうち経過した割合を返します [0, 1)。
// 直近の dayStartHour 通過からの秒数 / 86400。表示専用で、
// 日番号の計算には使いません。
func DayElapsedFraction(dayStartHour int, now time.Time) float64 {
	hours := (now.Hour() - dayStartHour + 24) % 24
	secs := hours*3600 + now.Minute()*60 + now.Second()
	return float64(secs) / 86400.0
}

// 表示用の曜日/月名テーブル (元UIのロケールに合わせてロシア語固定)
var weekdayNames = [7]string{
	"Воскресенье", "Понедельник", "Вторник", "Среда", "Четверг", "Пятница", "Суббота",
}

var monthNames = [12]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

// FormatDate は "Понедельник, 2 марта" 形式の表示文字列を返します。
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%s, %d %s", weekdayNames[int(t.Weekday())], t.Day(), monthNames[int(t.Month())-1])
}

func localOffsetMin(t time.Time) int {
	_, offsetSec := t.Zone()
	return offsetSec / 60
}

// floorDiv は負の値でも床方向に丸める整数除算です
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
