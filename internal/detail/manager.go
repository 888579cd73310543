package detail

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL はアイドル状態のセッションを破棄するまでの既定時間。
const DefaultSessionTTL = 30 * time.Minute

// Manager は詳細セッションの生成・参照・破棄を管理する。
// 一定時間操作も購読もないセッションはEvictIdleで破棄される。
type Manager struct {
	deps Deps
	ttl  time.Duration
	now  func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager はManagerを生成する。ttlが0以下の場合はDefaultSessionTTLを使う。
func NewManager(deps Deps, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		deps:     deps,
		ttl:      ttl,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Create は新しいセッションを開始して登録する。
// 入力がない場合は入力不足状態のセッションを終了済みで返し、model.ErrInputMissingを返す。
// このセッションは登録されない。
func (m *Manager) Create(input Input) (*Session, error) {
	s := NewSession(uuid.NewString(), input, m.deps)
	s.now = m.now
	s.touch(m.now())

	if err := s.Start(m.ctx); err != nil {
		s.Close()
		return s, err
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.deps.Logger.Info("詳細セッションを開始しました",
		slog.String("session_id", s.ID()),
		slog.String("name", s.Key()),
	)
	return s, nil
}

// Get は指定IDのセッションを返し、最終操作時刻を更新する。
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	s.touch(m.now())
	return s, true
}

// Close は指定IDのセッションを終了して登録を解除する。存在しない場合はfalseを返す。
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.Close()
	return true
}

// Len は登録中のセッション数を返す。
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// EvictIdle はTTLを超えてアイドル状態のセッションを終了し、終了した件数を返す。
// 購読中のセッションは対象外。
func (m *Manager) EvictIdle() int {
	now := m.now()

	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		last, watching := s.idleSince()
		if watching || now.Sub(last) <= m.ttl {
			continue
		}
		expired = append(expired, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		m.deps.Logger.Info("アイドル状態の詳細セッションを破棄しました",
			slog.Int("evicted_count", len(expired)),
			slog.Int("remaining", m.Len()),
		)
	}
	return len(expired)
}

// Run はintervalごとにEvictIdleを実行する。ctxがキャンセルされるまでブロックする。
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.EvictIdle()
		}
	}
}

// Shutdown は全セッションを終了する。以後のCreateで開始されるセッションは即座に取得を中止する。
func (m *Manager) Shutdown() {
	m.cancel()

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	m.deps.Logger.Info("全ての詳細セッションを終了しました", slog.Int("count", len(sessions)))
}
