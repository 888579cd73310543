// Package connectivity はSWAPIへの接続状態を監視し、変化をストリームとして配信する。
package connectivity

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/theforce/internal/stream"
)

// DefaultProbeInterval は接続確認の既定間隔。
const DefaultProbeInterval = 15 * time.Second

// Pinger は接続確認を行う。
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor は接続状態を保持し、変化した時だけ発行する。
// 初期状態は接続ありとみなす。
type Monitor struct {
	pinger       Pinger
	logger       *slog.Logger
	probeTimeout time.Duration
	state        *stream.Stream[bool]
}

// NewMonitor はMonitorを生成する。pingerがnilの場合、状態はSetでのみ変化する。
func NewMonitor(pinger Pinger, logger *slog.Logger) *Monitor {
	return &Monitor{
		pinger:       pinger,
		logger:       logger,
		probeTimeout: 5 * time.Second,
		state:        stream.NewWithValue(true),
	}
}

// Subscribe は接続状態の購読を開始する。現在値が最初に届く。
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	return m.state.Subscribe()
}

// Connected は現在の接続状態を返す。
func (m *Monitor) Connected() bool {
	v, _ := m.state.Value()
	return v
}

// Set はクライアントから報告された接続状態を反映する。変化した場合のみ発行する。
func (m *Monitor) Set(connected bool) bool {
	changed := m.state.UpdateIf(func(cur bool) (bool, bool) {
		return connected, cur != connected
	})
	if changed {
		m.logger.Info("接続状態が変化しました", slog.Bool("connected", connected))
	}
	return changed
}

// Probe は1回接続確認を行い、結果を反映して返す。
func (m *Monitor) Probe(ctx context.Context) bool {
	if m.pinger == nil {
		return m.Connected()
	}

	ctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	err := m.pinger.Ping(ctx)
	if err != nil && ctx.Err() == nil {
		m.logger.Debug("接続確認に失敗しました", slog.String("error", err.Error()))
	}
	connected := err == nil
	m.Set(connected)
	return connected
}

// Run はintervalごとに接続確認を行う。ctxがキャンセルされるまでブロックする。
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("接続監視を開始しました", slog.String("interval", interval.String()))
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("接続監視を停止しました")
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// Close はストリームを閉じ、全購読を終了する。
func (m *Monitor) Close() {
	m.state.Close()
}
