package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestCourseDay(t *testing.T) {
	// 開始: 2025-03-01T05:00:00+03:00 (MSK, 境界5時ちょうど)
	startISO := "2025-03-01T05:00:00+03:00"
	msk := intPtr(180)

	tests := []struct {
		name         string
		startISO     string
		tzOffsetMin  *int
		dayStartHour int
		totalDays    int
		now          time.Time
		want         int
	}{
		{
			name:         "正常系: 開始直後は day 1",
			startISO:     startISO,
			tzOffsetMin:  msk,
			dayStartHour: 5,
			totalDays:    90,
			now:          time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("MSK", 3*3600)),
			want:         1,
		},
		{
			name:         "正常系: 翌日の境界直前はまだ day 1",
			startISO:     startISO,
			tzOffsetMin:  msk,
			dayStartHour: 5,
			totalDays:    90,
			now:          time.Date(2025, 3, 2, 4, 59, 59, 0, time.FixedZone("MSK", 3*3600)),
			want:         1,
		},
		{
			name:         "正常系: 翌日の境界ちょうどで day 2",
			startISO:     startISO,
			tzOffsetMin:  msk,
			dayStartHour: 5,
			totalDays:    90,
			now:          time.Date(2025, 3, 2, 5, 0, 0, 0, time.FixedZone("MSK", 3*3600)),
			want:         2,
		},
		{
			name:         "正常系: 深夜0時を過ぎても境界前なら前日扱い",
			startISO:     startISO,
			tzOffsetMin:  msk,
			dayStartHour: 5,
			totalDays:    90,
			now:          time.Date(2025, 3, 3, 1, 30, 0, 0, time.FixedZone("MSK", 3*3600)),
			want:         2,
		},
		{
			name:         "正常系: 10日後",
			startISO:     startISO,
			tzOffsetMin:  msk,
			dayStartHour: 5,
			totalDays:    90,
			now:          time.Date(2025, 3, 11, 12, 0, 0, 0, time.FixedZone("MSK", 3*3600)),
			want:         11,
		},
		{
			name:         "境界系: コース終了後は totalDays で頭打ち",
			startISO:     startISO,
			tzOffsetMin:  msk,
			dayStartHour: 5,
			totalDays:    10,
			now:          time.Date(2025, 6, 1, 12, 0, 0, 0, time.FixedZone("MSK", 3*3600)),
			want:         10,
		},
		{
			name:         "境界系: 時計が開始より前でも day 1 未満にならない",
			startISO:     startISO,
			tzOffsetMin:  msk,
			dayStartHour: 5,
			totalDays:    90,
			now:          time.Date(2025, 2, 20, 12, 0, 0, 0, time.FixedZone("MSK", 3*3600)),
			want:         1,
		},
		{
			name:         "境界系: 開始日時が空なら day 1",
			startISO:     "",
			tzOffsetMin:  msk,
			dayStartHour: 5,
			totalDays:    90,
			now:          time.Date(2025, 3, 11, 12, 0, 0, 0, time.UTC),
			want:         1,
		},
		{
			name:         "境界系: 開始日時が壊れていても day 1",
			startISO:     "not-a-date",
			tzOffsetMin:  msk,
			dayStartHour: 5,
			totalDays:    90,
			now:          time.Date(2025, 3, 11, 12, 0, 0, 0, time.UTC),
			want:         1,
		},
		{
			name:         "正常系: 境界0時は暦日と一致",
			startISO:     "2025-03-01T00:00:00+03:00",
			tzOffsetMin:  msk,
			dayStartHour: 0,
			totalDays:    90,
			now:          time.Date(2025, 3, 2, 0, 0, 0, 0, time.FixedZone("MSK", 3*3600)),
			want:         2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CourseDay(tt.startISO, tt.tzOffsetMin, tt.dayStartHour, tt.totalDays, tt.now)
			assert.Equal(t, tt.want, got)
		})
	}
}

// 同一瞬間なら now の表現タイムゾーンに関係なく同じ日番号になること
func TestCourseDay_InstantIndependentOfNowLocation(t *testing.T) {
	startISO := "2025-03-01T05:00:00+03:00"
	tz := intPtr(180)

	instant := time.Date(2025, 3, 5, 9, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	inUTC := instant.UTC()
	inJST := instant.In(time.FixedZone("JST", 9*3600))

	dayMSK := CourseDay(startISO, tz, 5, 90, instant)
	dayUTC := CourseDay(startISO, tz, 5, 90, inUTC)
	dayJST := CourseDay(startISO, tz, 5, 90, inJST)

	assert.Equal(t, dayMSK, dayUTC)
	assert.Equal(t, dayMSK, dayJST)
}

func TestDefaultStartDate(t *testing.T) {
	loc := time.FixedZone("MSK", 3*3600)

	tests := []struct {
		name         string
		dayStartHour int
		now          time.Time
		want         string
	}{
		{
			name:         "正常系: 境界後なら当日の境界時刻",
			dayStartHour: 5,
			now:          time.Date(2025, 3, 10, 14, 30, 0, 0, loc),
			want:         "2025-03-10T05:00:00+03:00",
		},
		{
			name:         "正常系: 境界前なら前日の境界時刻",
			dayStartHour: 5,
			now:          time.Date(2025, 3, 10, 3, 0, 0, 0, loc),
			want:         "2025-03-09T05:00:00+03:00",
		},
		{
			name:         "境界系: 境界ちょうどは当日",
			dayStartHour: 5,
			now:          time.Date(2025, 3, 10, 5, 0, 0, 0, loc),
			want:         "2025-03-10T05:00:00+03:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultStartDate(tt.dayStartHour, tt.now)
			assert.Equal(t, tt.want, got)
		})
	}
}

// DefaultStartDate の結果をそのまま CourseDay に渡すと必ず day 1 になること
func TestDefaultStartDate_RoundTripIsDayOne(t *testing.T) {
	loc := time.FixedZone("MSK", 3*3600)
	tz := intPtr(180)

	for _, now := range []time.Time{
		time.Date(2025, 3, 10, 3, 0, 0, 0, loc),  // 境界前
		time.Date(2025, 3, 10, 5, 0, 0, 0, loc),  // 境界ちょうど
		time.Date(2025, 3, 10, 23, 0, 0, 0, loc), // 境界後
	} {
		startISO := DefaultStartDate(5, now)
		assert.Equal(t, 1, CourseDay(startISO, tz, 5, 90, now), "now=%s", now)
	}
}

func TestDayElapsedFraction(t *testing.T) {
	loc := time.FixedZone("MSK", 3*3600)

	tests := []struct {
		name         string
		dayStartHour int
		now          time.Time
		want         float64
	}{
		{
			name:         "境界ちょうどは 0",
			dayStartHour: 5,
			now:          time.Date(2025, 3, 10, 5, 0, 0, 0, loc),
			want:         0,
		},
		{
			name:         "境界から12時間で 0.5",
			dayStartHour: 5,
			now:          time.Date(2025, 3, 10, 17, 0, 0, 0, loc),
			want:         0.5,
		},
		{
			name:         "深夜は前日の論理日の後半",
			dayStartHour: 5,
			now:          time.Date(2025, 3, 10, 2, 0, 0, 0, loc),
			want:         21.0 / 24.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DayElapsedFraction(tt.dayStartHour, tt.now)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestFormatDate(t *testing.T) {
	// 2025-03-03 は月曜日
	got := FormatDate(time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, "Понедельник, 3 марта", got)

	// 2025-01-05 は日曜日
	got = FormatDate(time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, "Воскресенье, 5 января", got)
}
