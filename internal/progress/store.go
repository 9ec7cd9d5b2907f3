// Package progress はアクティブなコース/トラッカー1件分の進捗レコードを
// メモリ上に射影し、日単位の集計ビューを提供します。
//
// Store は単一セッションが排他的に所有する前提で、同期は呼び出し側
// (session.Session) が行います。外部ストレージが正であり、この射影は
// リロードで置き換え可能なキャッシュです。
package progress

import (
	"github.com/google/uuid"

	"go_5_habit_keep/internal/model"
)

type recordKey struct {
	Day        int
	ActivityID uuid.UUID
}

type Store struct {
	daysCount  int
	activities []model.Activity
	byID       map[uuid.UUID]*model.Activity
	records    map[recordKey]model.ProgressEntry
}

func NewStore(activities []model.Activity, daysCount int) *Store {
	s := &Store{
		daysCount:  daysCount,
		activities: activities,
		byID:       make(map[uuid.UUID]*model.Activity, len(activities)),
		records:    make(map[recordKey]model.ProgressEntry),
	}
	for i := range s.activities {
		s.byID[s.activities[i].ActivityID] = &s.activities[i]
	}
	return s
}

// Load は射影全体を置き換えます。アクティブアイテムの切り替え時と
// ログイン直後に呼ばれます。未知のアクティビティのレコードは捨てます。
func (s *Store) Load(m model.ProgressMap) {
	s.records = make(map[recordKey]model.ProgressEntry)
	for day, byActivity := range m {
		for activityID, entry := range byActivity {
			act, ok := s.byID[activityID]
			if !ok {
				continue
			}
			s.records[recordKey{Day: day, ActivityID: activityID}] = normalize(entry, act)
		}
	}
}

// GetElapsed はレコードが無ければ 0 を返します (遅延作成)。
func (s *Store) GetElapsed(activityID uuid.UUID, day int) int {
	return s.records[recordKey{Day: day, ActivityID: activityID}].Elapsed
}

func (s *Store) IsCompleted(activityID uuid.UUID, day int) bool {
	return s.records[recordKey{Day: day, ActivityID: activityID}].Completed
}

// IsDayComplete はその日に有効な全アクティビティが完了している場合のみ true。
// 有効なアクティビティが1つも無い日は false (偽の連続記録を防ぐ)。
func (s *Store) IsDayComplete(day int) bool {
	applicable := s.ApplicableActivities(day)
	if len(applicable) == 0 {
		return false
	}
	for _, act := range applicable {
		if !s.IsCompleted(act.ActivityID, day) {
			return false
		}
	}
	return true
}

// DayProgressFraction は有効アクティビティの実効経過秒の合計 /
// 所要秒の合計を返します。完了済みは所要時間満額として数えます。
func (s *Store) DayProgressFraction(day int) float64 {
	applicable := s.ApplicableActivities(day)
	if len(applicable) == 0 {
		return 0
	}
	var elapsedSum, totalSum int
	for _, act := range applicable {
		total := act.TotalSeconds()
		totalSum += total
		if s.IsCompleted(act.ActivityID, day) {
			elapsedSum += total
		} else {
			elapsedSum += s.GetElapsed(act.ActivityID, day)
		}
	}
	if totalSum == 0 {
		return 0
	}
	return float64(elapsedSum) / float64(totalSum)
}

// CompletedDaysCount は完了した日数を返します
func (s *Store) CompletedDaysCount() int {
	count := 0
	for day := 1; day <= s.daysCount; day++ {
		if s.IsDayComplete(day) {
			count++
		}
	}
	return count
}

// Record は1レコードをupsertします。不変条件 (completed ⇒ elapsed =
// duration*60、elapsed <= duration*60) を強制した上で格納し、
// 正規化済みのエントリを返します。呼び出し側はこの戻り値をそのまま
// 永続化することで、過去の書き込み欠落も自己修復されます。
// 未知のアクティビティは model.ErrNotFound。
func (s *Store) Record(activityID uuid.UUID, day int, elapsedSeconds int, completed bool) (model.ProgressEntry, error) {
	act, ok := s.byID[activityID]
	if !ok {
		return model.ProgressEntry{}, model.ErrNotFound
	}
	if day < 1 {
		return model.ProgressEntry{}, model.ErrInvalidInput
	}
	entry := normalize(model.ProgressEntry{Elapsed: elapsedSeconds, Completed: completed}, act)
	s.records[recordKey{Day: day, ActivityID: activityID}] = entry
	return entry, nil
}

// Snapshot は現在の射影をネスト形で返します (リロード往復の検証や保存用)。
func (s *Store) Snapshot() model.ProgressMap {
	m := make(model.ProgressMap)
	for key, entry := range s.records {
		if m[key.Day] == nil {
			m[key.Day] = make(map[uuid.UUID]model.ProgressEntry)
		}
		m[key.Day][key.ActivityID] = entry
	}
	return m
}

// ApplicableActivities は指定日に有効なアクティビティを定義順で返します。
// 範囲が壊れた定義は除外されます。
func (s *Store) ApplicableActivities(day int) []model.Activity {
	var out []model.Activity
	for _, act := range s.activities {
		if act.AppliesTo(day, s.daysCount) {
			out = append(out, act)
		}
	}
	return out
}

// Activity はIDからアクティビティ定義を引きます
func (s *Store) Activity(activityID uuid.UUID) (*model.Activity, bool) {
	act, ok := s.byID[activityID]
	return act, ok
}

func (s *Store) DaysCount() int {
	return s.daysCount
}

func normalize(entry model.ProgressEntry, act *model.Activity) model.ProgressEntry {
	total := act.TotalSeconds()
	if entry.Completed {
		entry.Elapsed = total
		return entry
	}
	if entry.Elapsed < 0 {
		entry.Elapsed = 0
	}
	if entry.Elapsed > total {
		entry.Elapsed = total
	}
	return entry
}
