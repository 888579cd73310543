// Package stream は最新値を保持し購読者へ配信する値ストリームを提供する。
// 詳細画面の状態や接続状態のように、常に最新のスナップショットだけが意味を持つ値を扱う。
package stream

import "sync"

// Stream は最新値を保持し、購読者へ配信するストリーム。
// 購読者ごとのバッファは1件で、読み出しが遅い購読者には最新値のみが届く。
// ゼロ値は使用不可のため、New で生成すること。
type Stream[T any] struct {
	mu       sync.Mutex
	value    T
	hasValue bool
	subs     map[int]chan T
	nextID   int
	closed   bool
}

// New は値を持たない新しいStreamを生成する。
func New[T any]() *Stream[T] {
	return &Stream[T]{
		subs: make(map[int]chan T),
	}
}

// NewWithValue は初期値を持つ新しいStreamを生成する。
func NewWithValue[T any](initial T) *Stream[T] {
	s := New[T]()
	s.value = initial
	s.hasValue = true
	return s
}

// Publish は値を最新値として保存し、全購読者へ配信する。
// Close後の呼び出しは無視される。
func (s *Stream[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.value = v
	s.hasValue = true
	for _, ch := range s.subs {
		deliver(ch, v)
	}
}

// Update は現在値に関数を適用した結果を発行し、その値を返す。
// 読み込みと発行の間に他の発行が割り込まない。
func (s *Stream[T]) Update(fn func(T) T) T {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.value
	}
	s.value = fn(s.value)
	s.hasValue = true
	for _, ch := range s.subs {
		deliver(ch, s.value)
	}
	return s.value
}

// UpdateIf は現在値にfnを適用し、fnがtrueを返した場合だけ結果を発行する。
// falseの場合は値も購読者も変わらない。発行したかどうかを返す。
func (s *Stream[T]) UpdateIf(fn func(T) (T, bool)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	next, ok := fn(s.value)
	if !ok {
		return false
	}
	s.value = next
	s.hasValue = true
	for _, ch := range s.subs {
		deliver(ch, next)
	}
	return true
}

// Value は現在の最新値と、値が発行済みかどうかを返す。
func (s *Stream[T]) Value() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.hasValue
}

// Subscribe は購読を開始し、受信チャネルと購読解除関数を返す。
// 値が発行済みであれば、その最新値が最初に届く。
// Close済みのStreamでは閉じたチャネルを返す。
// 購読解除関数は複数回呼び出しても安全。
func (s *Stream[T]) Subscribe() (<-chan T, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan T, 1)
	if s.closed {
		if s.hasValue {
			ch <- s.value
		}
		close(ch)
		return ch, func() {}
	}

	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	if s.hasValue {
		ch <- s.value
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() { s.unsubscribe(id) })
	}
}

func (s *Stream[T]) unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

// Close はストリームを終了し、全購読者のチャネルを閉じる。
// 最新値はValueで引き続き参照できる。
func (s *Stream[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// Closed はストリームが終了済みかを返す。
func (s *Stream[T]) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// deliver はバッファ1件のチャネルへ値を送る。
// 未読の古い値があれば捨てて最新値に置き換える。送信はロック下でのみ行われるためブロックしない。
func deliver[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- v
}
