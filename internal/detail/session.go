// Package detail はキャラクター詳細画面1件分の状態を調停するセッションを提供する。
//
// セッションは種族・映画・惑星の取得結果を到着順に集約し、
// お気に入りトグルの楽観的更新とローカルストアの確定値を突き合わせる。
// 接続が回復すると、エラー中のセクションだけを再取得する。
package detail

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/theforce/internal/metrics"
	"github.com/hitoshi/theforce/internal/model"
	"github.com/hitoshi/theforce/internal/stream"
)

var (
	// ErrNotReady は詳細の読み込み完了前にお気に入り追加しようとした場合のエラー。
	// 状態は変更されない。
	ErrNotReady = errors.New("キャラクター詳細の読み込みが完了していません")
	// ErrClosed は終了済みのセッションを操作した場合のエラー。
	ErrClosed = errors.New("セッションは終了しています")
	// ErrNotStarted は開始前のセッションを操作した場合のエラー。
	ErrNotStarted = errors.New("セッションが開始されていません")
)

// SectionFetcher はセクション単位の並列取得を行う。
type SectionFetcher interface {
	FetchSections(ctx context.Context, characterURL string, sections ...model.Section) <-chan model.SectionResult
}

// FavoriteStore はお気に入りの読み書きを行う。
type FavoriteStore interface {
	GetFavorite(ctx context.Context, name string) model.FavoriteViewState
	Save(ctx context.Context, fav *model.Favorite) error
	Delete(ctx context.Context, name string) error
}

// ConnectivitySource は接続状態の購読元。
type ConnectivitySource interface {
	Subscribe() (<-chan bool, func())
}

// Input はセッションの入力。Favoriteがあればそちらを優先する。
type Input struct {
	Character *model.Character
	Favorite  *model.Favorite
}

// Deps はセッションが利用するコンポーネント。Connectivityはnilでもよい。
type Deps struct {
	Fetcher      SectionFetcher
	Store        FavoriteStore
	Connectivity ConnectivitySource
	Metrics      metrics.MetricsCollector
	Logger       *slog.Logger
}

// Event はWatchで配信される状態変化。DetailとFavoriteのどちらか一方が設定される。
type Event struct {
	Detail   *model.DetailViewState
	Favorite *model.FavoriteViewState
}

// Session はキャラクター詳細画面1件分の状態調停を行う。
type Session struct {
	id    string
	input Input
	key   string
	deps  Deps

	detail   *stream.Stream[model.DetailViewState]
	favorite *stream.Stream[model.FavoriteViewState]
	results  chan model.SectionResult

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup

	mu         sync.Mutex
	snapshot   *model.Favorite
	queue      []func(context.Context)
	wake       chan struct{}
	seq        uint64
	started    bool
	closed     bool
	watchers   int
	lastActive time.Time
	now        func() time.Time

	closeOnce sync.Once
}

// NewSession は開始前のセッションを生成する。Startを呼ぶまで取得は始まらない。
func NewSession(id string, input Input, deps Deps) *Session {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	key := ""
	switch {
	case input.Favorite != nil:
		key = input.Favorite.Name()
	case input.Character != nil:
		key = input.Character.Name
	}

	return &Session{
		id:         id,
		input:      input,
		key:        key,
		deps:       deps,
		detail:     stream.NewWithValue(model.NewLoadingDetailState()),
		favorite:   stream.NewWithValue(model.FavoriteViewState{}),
		results:    make(chan model.SectionResult),
		wake:       make(chan struct{}, 1),
		lastActive: time.Now(),
		now:        time.Now,
	}
}

// Start はセッションを開始する。ctxはセッションの寿命を決める。
//
// お気に入りが渡されていればそれを完了状態として即座に発行し、リモート取得は行わない。
// キャラクターのみの場合は3セクションを並列に取得する。
// どちらもない場合は入力不足の終端状態を発行し、model.ErrInputMissingを返す。
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.deps.Metrics.SessionStarted()

	switch {
	case s.input.Favorite != nil:
		snap := cloneFavorite(s.input.Favorite)
		s.mu.Lock()
		s.snapshot = snap
		s.mu.Unlock()
		s.detail.Publish(model.NewFavoriteDetailState(snap))

	case s.input.Character != nil:
		s.spawn(s.applyLoop)

		if s.deps.Connectivity != nil {
			ch, unsubscribe := s.deps.Connectivity.Subscribe()
			s.mu.Lock()
			s.unsubscribe = unsubscribe
			s.mu.Unlock()
			// 購読時に届く現在値はここで読み、以後の回復の起点にする。
			initial, seen := false, false
			select {
			case v, ok := <-ch:
				initial, seen = v, ok
			default:
			}
			s.spawn(func() { s.watchConnectivity(ch, initial, seen) })
		}

		s.fetch(model.AllSections())

	default:
		s.detail.Publish(model.NewInputMissingDetailState())
		s.deps.Logger.Warn("入力のないセッションが開始されました", slog.String("session_id", s.id))
		return model.ErrInputMissing
	}

	s.spawn(s.opLoop)

	// 初回のお気に入り確認は書き込みと同じキューで行い、後続の書き込みより先に確定させる
	s.mu.Lock()
	s.enqueueLocked(func(ctx context.Context) {
		s.reconcile(ctx, 0, false, nil)
	})
	s.mu.Unlock()

	return nil
}

// ID はセッションIDを返す。
func (s *Session) ID() string {
	return s.id
}

// Key はお気に入りのキー（キャラクター名）を返す。
func (s *Session) Key() string {
	return s.key
}

// Character はセッションの対象キャラクターを返す。
func (s *Session) Character() model.Character {
	if s.input.Favorite != nil {
		return s.input.Favorite.Character
	}
	if s.input.Character != nil {
		return *s.input.Character
	}
	return model.Character{}
}

// Detail は現在の詳細状態を返す。
func (s *Session) Detail() model.DetailViewState {
	v, _ := s.detail.Value()
	return v
}

// Favorite は現在のお気に入り表示状態を返す。
func (s *Session) Favorite() model.FavoriteViewState {
	v, _ := s.favorite.Value()
	return v
}

// DetailStream は詳細状態のストリームを返す。Closeで閉じられる。
func (s *Session) DetailStream() *stream.Stream[model.DetailViewState] {
	return s.detail
}

// FavoriteStream はお気に入り表示状態のストリームを返す。Closeで閉じられる。
func (s *Session) FavoriteStream() *stream.Stream[model.FavoriteViewState] {
	return s.favorite
}

// Snapshot は保存に使うお気に入りスナップショットの複製を返す。
// 読み込み完了前はnil。
func (s *Session) Snapshot() *model.Favorite {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return nil
	}
	return cloneFavorite(s.snapshot)
}

// AddFavorite はお気に入り登録を楽観的に反映し、保存をキューに積む。
// スナップショットがまだない場合は何もせずErrNotReadyを返す。
func (s *Session) AddFavorite() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	return s.addLocked()
}

// RemoveFavorite はお気に入り解除を楽観的に反映し、削除をキューに積む。
func (s *Session) RemoveFavorite() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	return s.removeLocked()
}

// ToggleFavorite は現在の表示状態を反転する。
func (s *Session) ToggleFavorite() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	if cur, _ := s.favorite.Value(); cur.IsFavorite {
		return s.removeLocked()
	}
	return s.addLocked()
}

// Sync はキューに積まれた書き込みと確認が全て終わるまで待つ。
func (s *Session) Sync(ctx context.Context) error {
	done := make(chan struct{})

	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.enqueueLocked(func(context.Context) { close(done) })
	sessionDone := s.ctx.Done()
	s.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-sessionDone:
		return ErrClosed
	}
}

// RetryErrored はエラー中のセクションを取得中に戻して再取得し、対象セクションを返す。
// エラー中のセクションがなければ何もしない。
func (s *Session) RetryErrored() []model.Section {
	s.mu.Lock()
	if !s.started || s.closed || s.input.Character == nil || s.input.Favorite != nil {
		s.mu.Unlock()
		return nil
	}

	var retry []model.Section
	s.detail.Update(func(cur model.DetailViewState) model.DetailViewState {
		retry = cur.ErroredSections()
		if len(retry) == 0 {
			return cur
		}
		return cur.BeginRetry(retry)
	})
	s.mu.Unlock()

	if len(retry) == 0 {
		return nil
	}

	for _, sec := range retry {
		s.deps.Metrics.RecordSectionRetry(string(sec))
	}
	s.deps.Logger.Info("エラー中のセクションを再取得します",
		slog.String("session_id", s.id),
		slog.Any("sections", retry),
	)
	s.fetch(retry)
	return retry
}

// Watch は詳細状態とお気に入り表示状態の変化を1本のチャネルで配信する。
// 購読開始時には両方の現在値が届く。ctxの終了またはセッションの終了でチャネルは閉じられる。
// 購読中のセッションはアイドル扱いにならない。
func (s *Session) Watch(ctx context.Context) <-chan Event {
	out := make(chan Event)
	detailCh, unsubDetail := s.detail.Subscribe()
	favCh, unsubFav := s.favorite.Subscribe()

	s.mu.Lock()
	s.watchers++
	s.mu.Unlock()

	go func() {
		defer close(out)
		defer unsubDetail()
		defer unsubFav()
		defer func() {
			s.mu.Lock()
			s.watchers--
			s.lastActive = s.now()
			s.mu.Unlock()
		}()

		for detailCh != nil || favCh != nil {
			var ev Event
			select {
			case d, ok := <-detailCh:
				if !ok {
					detailCh = nil
					continue
				}
				ev.Detail = &d
			case f, ok := <-favCh:
				if !ok {
					favCh = nil
					continue
				}
				ev.Favorite = &f
			case <-ctx.Done():
				return
			}

			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// Close は進行中の取得を中止し、未実行の書き込みを破棄してストリームを閉じる。
// 複数回呼び出しても安全。
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.queue = nil
		started := s.started
		cancel := s.cancel
		unsubscribe := s.unsubscribe
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if unsubscribe != nil {
			unsubscribe()
		}
		s.wg.Wait()

		s.detail.Close()
		s.favorite.Close()

		if started {
			s.deps.Metrics.SessionClosed()
		}
		s.deps.Logger.Debug("セッションを終了しました", slog.String("session_id", s.id))
	})
}

// Closed はセッションが終了済みかを返す。
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
}

// idleSince は最終操作時刻と購読中かどうかを返す。
func (s *Session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive, s.watchers > 0
}

func (s *Session) usableLocked() error {
	if s.closed {
		return ErrClosed
	}
	if !s.started {
		return ErrNotStarted
	}
	if s.input.Character == nil && s.input.Favorite == nil {
		return model.ErrInputMissing
	}
	return nil
}

func (s *Session) addLocked() error {
	if s.snapshot == nil {
		return ErrNotReady
	}
	snap := cloneFavorite(s.snapshot)
	s.submitLocked(true, model.StoreOpSave, func(ctx context.Context) error {
		return s.deps.Store.Save(ctx, snap)
	})
	return nil
}

func (s *Session) removeLocked() error {
	if s.key == "" {
		return model.ErrInputMissing
	}
	key := s.key
	s.submitLocked(false, model.StoreOpDelete, func(ctx context.Context) error {
		return s.deps.Store.Delete(ctx, key)
	})
	return nil
}

// submitLocked は楽観的な表示状態を発行し、書き込みとその後の確認をキューに積む。
func (s *Session) submitLocked(want bool, op model.StoreOp, write func(ctx context.Context) error) {
	s.seq++
	seq := s.seq
	prev, _ := s.favorite.Value()

	s.favorite.Publish(model.FavoriteViewState{IsFavorite: want})
	s.enqueueLocked(func(ctx context.Context) {
		err := write(ctx)
		if err != nil {
			s.deps.Logger.Warn("お気に入りの書き込みに失敗しました",
				slog.String("session_id", s.id),
				slog.String("op", string(op)),
				slog.String("error", err.Error()),
			)
		}
		s.reconcile(ctx, seq, prev.IsFavorite, err)
	})
}

// reconcile はストアの確定値を読み直して表示状態を更新する。
// より新しい書き込みがキューに積まれている場合は発行しない。
func (s *Session) reconcile(ctx context.Context, seq uint64, prevFlag bool, writeErr error) {
	state := s.deps.Store.GetFavorite(ctx, s.key)
	if writeErr != nil {
		if state.Error != nil {
			// 確定値が読めない場合は書き込み前の状態に戻す
			state.IsFavorite = prevFlag
		}
		state.Error = writeErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || seq != s.seq {
		return
	}
	s.favorite.Publish(state)
}

func (s *Session) enqueueLocked(op func(context.Context)) {
	s.queue = append(s.queue, op)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// spawn はセッションが終了していなければfnをgoroutineで実行する。
// Closeはfnの終了を待つ。
func (s *Session) spawn(fn func()) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		fn()
	}()
	return true
}

// opLoop はキューの操作を積まれた順に1件ずつ実行する。
func (s *Session) opLoop() {
	for {
		select {
		case <-s.wake:
		case <-s.ctx.Done():
			return
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			op := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			if s.ctx.Err() != nil {
				return
			}
			op(s.ctx)
		}
	}
}

// fetch は指定セクションの取得を開始し、結果をapplyLoopへ渡す。
func (s *Session) fetch(sections []model.Section) {
	s.spawn(func() {
		for r := range s.deps.Fetcher.FetchSections(s.ctx, s.input.Character.URL, sections...) {
			select {
			case s.results <- r:
			case <-s.ctx.Done():
				return
			}
		}
	})
}

// applyLoop は取得結果を届いた順に1件ずつ状態へ反映する。
// 完了状態の発行とスナップショットの作成はs.muの下でまとめて行う。
func (s *Session) applyLoop() {
	for {
		select {
		case r := <-s.results:
			s.mu.Lock()
			next := s.detail.Update(func(cur model.DetailViewState) model.DetailViewState {
				return cur.Apply(r)
			})
			if next.IsComplete && s.snapshot == nil {
				s.snapshot = BuildFavorite(*s.input.Character, next)
				s.deps.Logger.Debug("詳細の読み込みが完了しました",
					slog.String("session_id", s.id),
					slog.String("name", s.key),
				)
			}
			s.mu.Unlock()
		case <-s.ctx.Done():
			return
		}
	}
}

// watchConnectivity は切断から接続ありへ戻った時だけエラー中のセクションを再取得する。
// lastとseenは購読開始時の現在値で、それ自体は回復として扱わない。
func (s *Session) watchConnectivity(ch <-chan bool, last, seen bool) {
	for {
		select {
		case connected, ok := <-ch:
			if !ok {
				return
			}
			restored := seen && !last && connected
			last, seen = connected, true
			if restored {
				s.RetryErrored()
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func cloneFavorite(f *model.Favorite) *model.Favorite {
	out := *f
	out.Films = make([]model.Film, len(f.Films))
	copy(out.Films, f.Films)
	return &out
}
