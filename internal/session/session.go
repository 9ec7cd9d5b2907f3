// Package session はログイン中ユーザー1人分のメモリ常駐状態を管理します。
// アクティブなコース/トラッカー、進捗の射影 (progress.Store)、カウントダウン
// (timer.Timer)、保存キュー、日番号の定期再計算をここで束ねます。
//
// 外部ストレージが常に正であり、Session はリロード可能なキャッシュ+
// 実行状態です。ログアウトで破棄されます。
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"go_5_habit_keep/internal/clock"
	"go_5_habit_keep/internal/model"
	"go_5_habit_keep/internal/progress"
	"go_5_habit_keep/internal/timer"
)

const saveQueueSize = 256

// SaveRequest は保存キューに積まれる1件分の書き込みです
type SaveRequest struct {
	UserID         uuid.UUID
	ItemType       model.ItemType
	ItemID         uuid.UUID
	ActivityID     uuid.UUID
	Day            int
	ElapsedSeconds int
	Completed      bool
}

// Persister は進捗と設定の永続化先です (service層が実装)
type Persister interface {
	SaveProgress(ctx context.Context, req SaveRequest) error
	LoadProgress(ctx context.Context, userID uuid.UUID, itemType model.ItemType, itemID uuid.UUID) (model.ProgressMap, error)
	SaveActiveItem(ctx context.Context, userID uuid.UUID, itemType *model.ItemType, itemID *uuid.UUID) error
	SaveCurrentDay(ctx context.Context, userID uuid.UUID, day int) error
}

// ItemSource はアクティブ化対象のアイテム取得先です。呼び出しユーザーが
// 閲覧可能なアイテムのみ返すこと (所有・参加チェック込み)。
type ItemSource interface {
	GetAvailableItem(ctx context.Context, userID uuid.UUID, itemType model.ItemType, itemID uuid.UUID) (*model.Item, error)
}

// Session は1ユーザー分の実行状態です。全公開メソッドはmutexで直列化されます。
type Session struct {
	userID    uuid.UUID
	persister Persister
	items     ItemSource
	logger    *slog.Logger

	tickInterval time.Duration
	pollInterval time.Duration
	nowFn        func() time.Time

	mu         sync.Mutex
	settings   model.UserSettings
	activeItem *model.Item
	store      *progress.Store
	timer      *timer.Timer
	currentDay int

	saveCh chan SaveRequest
	done   chan struct{}
	wg     sync.WaitGroup
}

type Options struct {
	AutosaveIntervalS int
	DayPollIntervalS  int
	NowFn             func() time.Time // テスト用。nilなら time.Now
	Logger            *slog.Logger
}

func New(userID uuid.UUID, settings model.UserSettings, persister Persister, items ItemSource, opts Options) *Session {
	if opts.NowFn == nil {
		opts.NowFn = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DayPollIntervalS <= 0 {
		opts.DayPollIntervalS = 30
	}

	s := &Session{
		userID:       userID,
		persister:    persister,
		items:        items,
		logger:       opts.Logger.With(slog.String("user_id", userID.String())),
		tickInterval: time.Second,
		pollInterval: time.Duration(opts.DayPollIntervalS) * time.Second,
		nowFn:        opts.NowFn,
		settings:     settings,
		currentDay:   settings.CurrentDay,
		saveCh:       make(chan SaveRequest, saveQueueSize),
		done:         make(chan struct{}),
	}
	s.timer = timer.New(s, opts.AutosaveIntervalS)
	return s
}

// Run は保存ワーカーとティッカーを起動します。Close まで動き続けます。
func (s *Session) Run(ctx context.Context) {
	s.wg.Add(2)
	go s.saveWorker(ctx)
	go s.tickLoop(ctx)
}

// Close はティッカーを止め、キューに残った書き込みを吐き切ってから戻ります。
// タイマーが走っていれば現在の経過秒を保存してから破棄します。
func (s *Session) Close() {
	s.mu.Lock()
	s.timer.Back() // 未完了なら保存要求を積む
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
}

// --- アクティブアイテムの切り替え ---

// SwitchItem はアクティブなコース/トラッカーを原子的に切り替えます。
// 選択中のアイテムと同じ type+id なら何もしません (走行中のタイマーも維持)。
// 走行中のタイマーは現在値を保存して破棄し、選択の永続化・進捗リロード・
// 日番号の再計算までを1つのロックの下で行います。途中で失敗した場合は
// 旧状態のまま戻ります (選択の永続化以降で失敗したときのみ再ロードが必要)。
func (s *Session) SwitchItem(ctx context.Context, itemType model.ItemType, itemID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeItem != nil && s.activeItem.Type == itemType && s.activeItem.ItemID == itemID {
		return nil
	}

	item, err := s.items.GetAvailableItem(ctx, s.userID, itemType, itemID)
	if err != nil {
		return err
	}

	if err := s.persister.SaveActiveItem(ctx, s.userID, &itemType, &itemID); err != nil {
		return err
	}

	progressMap, err := s.persister.LoadProgress(ctx, s.userID, itemType, itemID)
	if err != nil {
		return err
	}

	s.timer.Back()
	s.activeItem = item
	s.settings.ActiveItemType = &itemType
	s.settings.ActiveItemID = &itemID

	store := progress.NewStore(item.Activities, item.DaysCount)
	store.Load(progressMap)
	s.store = store

	s.recomputeDayLocked(ctx)
	s.logger.InfoContext(ctx, "active item switched",
		slog.String("item_id", itemID.String()),
		slog.String("item_type", string(itemType)),
		slog.Int("day", s.currentDay))
	return nil
}

// ActivateStored は設定に保存されたアクティブアイテムを復元します
// (ログイン直後のセッション作成時)。何も選択されていなければ何もしません。
// アイテムが消えていた場合は選択をクリアして続行します。
func (s *Session) ActivateStored(ctx context.Context) error {
	s.mu.Lock()
	t, id := s.settings.ActiveItemType, s.settings.ActiveItemID
	s.mu.Unlock()

	if t == nil || id == nil {
		return nil
	}
	err := s.SwitchItem(ctx, *t, *id)
	if err == nil {
		return nil
	}
	s.logger.WarnContext(ctx, "stored active item unavailable, clearing selection", slog.Any("error", err))
	s.mu.Lock()
	s.settings.ActiveItemType = nil
	s.settings.ActiveItemID = nil
	s.mu.Unlock()
	return s.persister.SaveActiveItem(ctx, s.userID, nil, nil)
}

// --- 日番号の再計算 ---

// recomputeDayLocked は現在の論理日を計算し直します。mu保持前提。
// 開始日はアイテム固有の StartDate があればそれ、無ければ設定の
// course_start_date。日が変わっていたら設定へ保存要求を出します。
func (s *Session) recomputeDayLocked(ctx context.Context) {
	if s.activeItem == nil {
		return
	}
	start := s.settings.CourseStartDate
	if s.activeItem.StartDate != nil {
		start = *s.activeItem.StartDate
	}
	tz := s.settings.TzOffsetMin
	day := clock.CourseDay(start.Format(time.RFC3339), &tz, s.settings.DayStartHour, s.activeItem.DaysCount, s.nowFn())
	if day == s.currentDay {
		return
	}

	prev := s.currentDay
	s.currentDay = day
	s.settings.CurrentDay = day
	if err := s.persister.SaveCurrentDay(ctx, s.userID, day); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist current day", slog.Any("error", err))
	}
	s.logger.InfoContext(ctx, "course day advanced", slog.Int("from", prev), slog.Int("to", day))
}

// ReconcileDay は日番号を即時に再計算します (テストおよび手動リフレッシュ用)
func (s *Session) ReconcileDay(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recomputeDayLocked(ctx)
	return s.currentDay
}

// --- タイマー操作 ---

// StartTimer はアクティビティを選択し、一時停止状態のタイマーを準備します。
// 開始はユーザーが ResumeTimer で明示的に行います。保存済みの経過秒が
// あればそこから再開します。
func (s *Session) StartTimer(activityID uuid.UUID) (timer.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return timer.Status{}, model.NewAppError("NO_ACTIVE_ITEM", "アクティブなアイテムがありません", "", model.ErrInvalidInput)
	}
	act, ok := s.store.Activity(activityID)
	if !ok {
		return timer.Status{}, model.ErrNotFound
	}
	if !act.AppliesTo(s.currentDay, s.store.DaysCount()) {
		return timer.Status{}, model.NewAppError("ACTIVITY_NOT_APPLICABLE", "このアクティビティは今日の予定に含まれていません", "activity_id", model.ErrInvalidInput)
	}
	if s.store.IsCompleted(activityID, s.currentDay) {
		return timer.Status{}, model.NewAppError("ALREADY_COMPLETED", "本日分は完了済みです", "activity_id", model.ErrConflict)
	}

	prior := s.store.GetElapsed(activityID, s.currentDay)
	if err := s.timer.Start(act, s.currentDay, prior); err != nil {
		return timer.Status{}, err
	}
	return s.timer.Snapshot(), nil
}

func (s *Session) ResumeTimer() (timer.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.timer.Resume(); err != nil {
		return timer.Status{}, err
	}
	return s.timer.Snapshot(), nil
}

func (s *Session) PauseTimer() (timer.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.timer.Pause(); err != nil {
		return timer.Status{}, err
	}
	return s.timer.Snapshot(), nil
}

// SeekTimer は残り時間を変更します (巻き戻し専用、早送りはクランプ)
func (s *Session) SeekTimer(remainingSeconds int) (timer.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.timer.Seek(remainingSeconds); err != nil {
		return timer.Status{}, err
	}
	return s.timer.Snapshot(), nil
}

// BackTimer はタイマー画面からの離脱です。未完了なら現在値を保存します。
func (s *Session) BackTimer() timer.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timer.Back()
	return s.timer.Snapshot()
}

// DoneTimer は完了画面からの離脱です。完了時に保存済みのため書き込みません。
func (s *Session) DoneTimer() (timer.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.timer.Done(); err != nil {
		return timer.Status{}, err
	}
	return s.timer.Snapshot(), nil
}

func (s *Session) TimerStatus() timer.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer.Snapshot()
}

// Tick はタイマーを1秒分進めます (テスト用の直接駆動口)
func (s *Session) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timer.Tick()
}

// --- timer.Saver 実装 ---

// SaveProgress はタイマーからの保存要求を受け、射影を更新した上で
// 正規化済みの値を保存キューへ積みます。ブロックしません。
// キューが満杯なら落としてログに残します (次の自動保存が上書きする)。
func (s *Session) SaveProgress(activityID uuid.UUID, day, elapsedSeconds int, completed bool) {
	if s.store == nil || s.activeItem == nil {
		return
	}
	entry, err := s.store.Record(activityID, day, elapsedSeconds, completed)
	if err != nil {
		s.logger.Error("progress record rejected", slog.Any("error", err))
		return
	}

	req := SaveRequest{
		UserID:         s.userID,
		ItemType:       s.activeItem.Type,
		ItemID:         s.activeItem.ItemID,
		ActivityID:     activityID,
		Day:            day,
		ElapsedSeconds: entry.Elapsed,
		Completed:      entry.Completed,
	}
	select {
	case s.saveCh <- req:
	default:
		s.logger.Warn("save queue full, dropping write",
			slog.String("activity_id", activityID.String()), slog.Int("day", day))
	}
}

// --- スナップショット ---

// DayActivity はダッシュボード1行分のビューです
type DayActivity struct {
	Activity  model.Activity `json:"activity"`
	Elapsed   int            `json:"elapsed_seconds"`
	Completed bool           `json:"completed"`
}

// DaySnapshot はダッシュボード表示に必要な値の一括スナップショットです
type DaySnapshot struct {
	Day           int           `json:"day"`
	DaysCount     int           `json:"days_count"`
	DateLabel     string        `json:"date_label"`
	DayFraction   float64       `json:"day_elapsed_fraction"`
	IsDayComplete bool          `json:"is_day_complete"`
	CompletedDays int           `json:"completed_days"`
	Activities    []DayActivity `json:"activities"`
	Item          *model.Item   `json:"item,omitempty"`
}

// Snapshot は現在の論理日のビューを返します。アクティブアイテムが
// 未選択の場合は日付まわりのみ埋まります。
func (s *Session) Snapshot() DaySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFn()
	snap := DaySnapshot{
		Day:         s.currentDay,
		DateLabel:   clock.FormatDate(now),
		DayFraction: clock.DayElapsedFraction(s.settings.DayStartHour, now),
	}
	if s.store == nil {
		return snap
	}

	snap.Item = s.activeItem
	snap.DaysCount = s.store.DaysCount()
	snap.IsDayComplete = s.store.IsDayComplete(s.currentDay)
	snap.CompletedDays = s.store.CompletedDaysCount()
	ts := s.timer.Snapshot()
	for _, act := range s.store.ApplicableActivities(s.currentDay) {
		elapsed := s.store.GetElapsed(act.ActivityID, s.currentDay)
		// 走行中のタイマーは自動保存前でも現在の経過秒を見せる
		if ts.ActivityID != nil && *ts.ActivityID == act.ActivityID && ts.Day == s.currentDay && ts.Elapsed > elapsed {
			elapsed = ts.Elapsed
		}
		snap.Activities = append(snap.Activities, DayActivity{
			Activity:  act,
			Elapsed:   elapsed,
			Completed: s.store.IsCompleted(act.ActivityID, s.currentDay),
		})
	}
	return snap
}

// ProgressSnapshot は射影全体のネスト形を返します
func (s *Session) ProgressSnapshot() model.ProgressMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return model.ProgressMap{}
	}
	return s.store.Snapshot()
}

// Settings は設定のコピーを返します
func (s *Session) Settings() model.UserSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings はセッション内の設定スナップショットを差し替え、
// 日番号へ影響する変更を即時反映します (永続化はservice層が済ませてから呼ぶ)。
func (s *Session) UpdateSettings(ctx context.Context, settings model.UserSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	s.recomputeDayLocked(ctx)
}

// --- 内部ゴルーチン ---

// saveWorker はキューの書き込みを積まれた順に1件ずつ適用します。
// 失敗はログに残すのみで呼び出し元へは返しません。次の自動保存、
// もしくは再ログイン時のリロードが正しい状態へ収束させます。
func (s *Session) saveWorker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case req := <-s.saveCh:
			s.applySave(ctx, req)
		case <-s.done:
			// 残りを吐き切る
			for {
				select {
				case req := <-s.saveCh:
					s.applySave(ctx, req)
				default:
					return
				}
			}
		}
	}
}

func (s *Session) applySave(ctx context.Context, req SaveRequest) {
	if err := s.persister.SaveProgress(ctx, req); err != nil {
		s.logger.ErrorContext(ctx, "progress save failed",
			slog.String("activity_id", req.ActivityID.String()),
			slog.Int("day", req.Day),
			slog.Any("error", err))
	}
}

func (s *Session) tickLoop(ctx context.Context) {
	defer s.wg.Done()
	tick := time.NewTicker(s.tickInterval)
	poll := time.NewTicker(s.pollInterval)
	defer tick.Stop()
	defer poll.Stop()

	for {
		select {
		case <-tick.C:
			s.Tick()
		case <-poll.C:
			s.ReconcileDay(ctx)
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}
