package service

import (
	"context"
	"log/slog"
	"sync"

	"go_5_habit_keep/internal/config"
	"go_5_habit_keep/internal/middleware"
	"go_5_habit_keep/internal/model"
	"go_5_habit_keep/internal/session"

	"github.com/google/uuid"
)

// SessionManager はログイン中ユーザーのセッションのレジストリです。
// セッションはログイン時に作成され、ログアウトで破棄されます。
type SessionManager interface {
	// Open はユーザーのセッションを作成して起動します。既存のセッションが
	// あればそれを返します (多重ログインは同一セッションを共有)。
	Open(ctx context.Context, userID uuid.UUID) (*session.Session, error)
	// Get は起動済みのセッションを返します。無ければ ErrNotFound。
	Get(userID uuid.UUID) (*session.Session, error)
	// CloseSession はセッションを停止して破棄します (ログアウト)
	CloseSession(userID uuid.UUID)
	// CloseAll は全セッションを停止します (シャットダウン時)
	CloseAll()
}

type sessionManager struct {
	settingsService SettingsService
	progressService ProgressService
	itemService     ItemService
	cfg             *config.Config
	logger          *slog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*session.Session
}

func NewSessionManager(settingsService SettingsService, progressService ProgressService, itemService ItemService, cfg *config.Config, logger *slog.Logger) SessionManager {
	return &sessionManager{
		settingsService: settingsService,
		progressService: progressService,
		itemService:     itemService,
		cfg:             cfg,
		logger:          logger,
		sessions:        make(map[uuid.UUID]*session.Session),
	}
}

func (m *sessionManager) Open(ctx context.Context, userID uuid.UUID) (*session.Session, error) {
	logger := middleware.GetLogger(ctx)

	m.mu.Lock()
	if sess, ok := m.sessions[userID]; ok {
		m.mu.Unlock()
		return sess, nil
	}
	m.mu.Unlock()

	// 設定は遅延作成される (初回ログインでデフォルト値)
	settings, err := m.settingsService.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	sess := session.New(userID, *settings, m.progressService, m.itemService, session.Options{
		AutosaveIntervalS: m.cfg.App.AutosaveIntervalS,
		DayPollIntervalS:  m.cfg.App.DayPollIntervalS,
		Logger:            m.logger,
	})

	m.mu.Lock()
	// ロックを外している間に別リクエストが先に作った場合はそちらを使う
	if existing, ok := m.sessions[userID]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.sessions[userID] = sess
	m.mu.Unlock()

	// ティッカーと保存ワーカーはプロセスのライフタイムで動く
	sess.Run(context.Background())
	if err := sess.ActivateStored(ctx); err != nil {
		logger.Error("Failed to restore active item", "error", err, "user_id", userID.String())
	}

	logger.Info("Session opened", "user_id", userID.String())
	return sess, nil
}

func (m *sessionManager) Get(userID uuid.UUID) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[userID]
	if !ok {
		return nil, model.NewAppError("NO_SESSION", "セッションがありません。再度ログインしてください。", "", model.ErrNotFound)
	}
	return sess, nil
}

func (m *sessionManager) CloseSession(userID uuid.UUID) {
	m.mu.Lock()
	sess, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if ok {
		sess.Close()
		m.logger.Info("Session closed", slog.String("user_id", userID.String()))
	}
}

func (m *sessionManager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*session.Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[uuid.UUID]*session.Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
}
