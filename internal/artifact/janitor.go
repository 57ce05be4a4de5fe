package artifact

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EvictionCounter は削除したアーティファクト数を受け取る。*metrics.Metrics が実装する。
type EvictionCounter interface {
	AddEvicted(n int)
}

// Janitor は保持期間を過ぎたアーティファクトを定期的に削除するバックグラウンドプロセス。
type Janitor struct {
	store    Store
	ttl      time.Duration
	interval time.Duration
	logger   *zap.Logger
	counter  EvictionCounter
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewJanitor は新しいJanitorを生成する。counterはnilでもよい。
func NewJanitor(store Store, ttl, interval time.Duration, logger *zap.Logger, counter EvictionCounter) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{
		store:    store,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
		counter:  counter,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start はバックグラウンドで定期削除を開始する。ctxがキャンセルされるかStopで停止する。
// 2回目以降の呼び出しは何もしない。
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	j.cancel = cancel

	go func() {
		defer close(j.done)

		j.logger.Info("Janitor: 期限切れアーティファクトの定期削除を開始します",
			zap.Duration("ttl", j.ttl),
			zap.Duration("interval", j.interval),
		)
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				j.logger.Info("Janitor: 定期削除を停止しました")
				return
			case <-ticker.C:
				if _, err := j.Sweep(ctx); err != nil {
					j.logger.Error("Janitor: 削除に失敗", zap.Error(err))
				}
			}
		}
	}()
}

// Stop は定期削除を停止し、ゴルーチンの終了を待つ。何度呼んでもよい。
func (j *Janitor) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-j.done
}

// Sweep は期限切れのアーティファクトを1回削除し、件数を返す。
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	n, err := j.store.DeleteExpired(ctx, j.now().Add(-j.ttl))
	if n > 0 {
		if j.counter != nil {
			j.counter.AddEvicted(n)
		}
		j.logger.Info("Janitor: 期限切れアーティファクトを削除しました", zap.Int("count", n))
	}
	return n, err
}
