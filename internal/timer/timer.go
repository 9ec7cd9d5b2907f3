// Package timer は単一アクティビティのカウントダウンを状態機械として
// 実装します。1秒ごとの Tick は呼び出し側 (session) のティッカーが駆動し、
// このパッケージ自身はゴルーチンを持ちません。
package timer

import (
	"github.com/google/uuid"

	"go_5_habit_keep/internal/model"
)

type State int

const (
	StateIdle      State = iota // アクティビティ未選択
	StateArmed                  // 選択済み・開始/再開待ち (paused)
	StateRunning                // 毎秒減算中
	StatePaused                 // ユーザーによる明示的な一時停止
	StateCompleted              // remaining が 0 に到達
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	}
	return "unknown"
}

// Saver はタイマーからの永続化要求の送り先です。呼び出しはブロックせず、
// 書き込みは発行順に適用されなければなりません (session の保存キューが実装)。
type Saver interface {
	SaveProgress(activityID uuid.UUID, day, elapsedSeconds int, completed bool)
}

// Timer はアクティビティ1件のカウントダウンです。同期は呼び出し側が行います。
type Timer struct {
	saver         Saver
	autosaveEvery int // Running 中、何Tickごとに自動保存するか

	state      State
	activity   *model.Activity
	day        int
	remaining  int
	elapsed    int
	maxElapsed int // セッション内で到達した最大経過秒 (巻き戻し専用シークの上限)
	sinceSave  int
}

func New(saver Saver, autosaveEverySeconds int) *Timer {
	if autosaveEverySeconds <= 0 {
		autosaveEverySeconds = 10
	}
	return &Timer{
		saver:         saver,
		autosaveEvery: autosaveEverySeconds,
		state:         StateIdle,
	}
}

// Start はアクティビティを選択し Armed (paused) 状態に入ります。
// 再開の場合は priorElapsed から remaining を計算します。開始確認は
// ユーザーが明示的に行う設計 (paused-first)。
func (t *Timer) Start(activity *model.Activity, day, priorElapsed int) error {
	if activity == nil || day < 1 {
		return model.ErrInvalidInput
	}
	total := activity.TotalSeconds()
	if priorElapsed < 0 {
		priorElapsed = 0
	}
	if priorElapsed > total {
		priorElapsed = total
	}

	t.activity = activity
	t.day = day
	t.elapsed = priorElapsed
	t.maxElapsed = priorElapsed
	t.remaining = total - priorElapsed
	t.sinceSave = 0
	t.state = StateArmed
	return nil
}

// Resume は Armed/Paused から Running へ遷移します
func (t *Timer) Resume() error {
	if t.state != StateArmed && t.state != StatePaused {
		return model.ErrInvalidInput
	}
	t.state = StateRunning
	return nil
}

// Pause は Running から Paused へ遷移し、現在の経過秒を即座に
// (非ブロッキングで) 永続化します。
func (t *Timer) Pause() error {
	if t.state != StateRunning {
		return model.ErrInvalidInput
	}
	t.state = StatePaused
	t.save(false)
	return nil
}

// Tick は Running 中に毎秒1回呼ばれます。remaining が 0 に達した時点で
// Completed へ遷移し、経過秒を所要時間満額にスナップして完了レコードを
// 即座に発行します。自動保存カウンタは完了時に破棄されるため、完了後に
// 古い経過値が書き込まれることはありません。Running 以外では何もしません。
func (t *Timer) Tick() {
	if t.state != StateRunning {
		return
	}

	t.remaining--
	t.elapsed++
	if t.elapsed > t.maxElapsed {
		t.maxElapsed = t.elapsed
	}

	if t.remaining <= 0 {
		total := t.activity.TotalSeconds()
		t.remaining = 0
		t.elapsed = total
		t.maxElapsed = total
		t.state = StateCompleted
		t.sinceSave = 0
		// 完了書き込みは自動保存より先に発行される
		t.saver.SaveProgress(t.activity.ActivityID, t.day, total, true)
		return
	}

	t.sinceSave++
	if t.sinceSave >= t.autosaveEvery {
		t.sinceSave = 0
		t.save(false)
	}
}

// Seek は remaining を指定値へ変更します (巻き戻し専用)。
// 経過秒がセッション内最大値を超える値 (早送り) はその最大値へクランプされ、
// ごまかしの完了を防ぎます。完了後のシークは不可。完了判定は行いません。
func (t *Timer) Seek(newRemainingSeconds int) error {
	if t.state != StateArmed && t.state != StateRunning && t.state != StatePaused {
		return model.ErrInvalidInput
	}
	total := t.activity.TotalSeconds()
	if newRemainingSeconds < 0 {
		newRemainingSeconds = 0
	}
	if newRemainingSeconds > total {
		newRemainingSeconds = total
	}

	newElapsed := total - newRemainingSeconds
	if newElapsed > t.maxElapsed {
		newElapsed = t.maxElapsed
	}
	t.elapsed = newElapsed
	t.remaining = total - newElapsed
	return nil
}

// Back はタイマー画面から離れる操作です。完了済みでなければ現在の経過秒を
// 永続化し、Idle へ戻ります。呼び出し側はティッカーを停止すること。
func (t *Timer) Back() {
	if t.state == StateIdle {
		return
	}
	if t.state != StateCompleted && t.activity != nil {
		t.save(false)
	}
	t.reset()
}

// Done は Completed からの正常な離脱です。完了時に永続化済みのため
// 追加の書き込みは行いません。
func (t *Timer) Done() error {
	if t.state != StateCompleted {
		return model.ErrInvalidInput
	}
	t.reset()
	return nil
}

// Abort は保存なしで Idle へ戻します (ログアウトやセッション破棄用)
func (t *Timer) Abort() {
	t.reset()
}

func (t *Timer) State() State {
	return t.state
}

// Status はAPI向けのスナップショットです
type Status struct {
	State      string     `json:"state"`
	ActivityID *uuid.UUID `json:"activity_id,omitempty"`
	Day        int        `json:"day,omitempty"`
	Remaining  int        `json:"remaining_seconds"`
	Elapsed    int        `json:"elapsed_seconds"`
	MaxElapsed int        `json:"max_elapsed_seconds"`
}

func (t *Timer) Snapshot() Status {
	st := Status{
		State:      t.state.String(),
		Day:        t.day,
		Remaining:  t.remaining,
		Elapsed:    t.elapsed,
		MaxElapsed: t.maxElapsed,
	}
	if t.activity != nil {
		id := t.activity.ActivityID
		st.ActivityID = &id
	}
	return st
}

func (t *Timer) save(completed bool) {
	t.saver.SaveProgress(t.activity.ActivityID, t.day, t.elapsed, completed)
}

func (t *Timer) reset() {
	t.state = StateIdle
	t.activity = nil
	t.day = 0
	t.remaining = 0
	t.elapsed = 0
	t.maxElapsed = 0
	t.sinceSave = 0
}
