package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-flight-reservation/internal/pkg/logger"
)

// BlockExpirer は失効した仮押さえを解放するインターフェース
type BlockExpirer interface {
	ExpireStaleBlocks(ctx context.Context, now time.Time) (int, error)
}

// StaleBlockSweeper は失効した仮押さえを定期的に解放するワーカー
type StaleBlockSweeper struct {
	expirer  BlockExpirer
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewStaleBlockSweeper は新しいスイーパーを作成
func NewStaleBlockSweeper(expirer BlockExpirer, interval time.Duration) *StaleBlockSweeper {
	return &StaleBlockSweeper{
		expirer:  expirer,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start はスイーパーを開始
func (s *StaleBlockSweeper) Start(ctx context.Context) {
	logger.Info("仮押さえスイーパー開始", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("仮押さえスイーパー停止（コンテキストキャンセル）")
			return
		case <-s.stopCh:
			logger.Info("仮押さえスイーパー停止（シグナル受信）")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop はスイーパーを停止
func (s *StaleBlockSweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *StaleBlockSweeper) sweep(ctx context.Context) {
	log := logger.Get()
	log.Debug("仮押さえの失効処理開始")

	count, err := s.expirer.ExpireStaleBlocks(ctx, s.now())
	if err != nil {
		log.Error("仮押さえの失効処理失敗", zap.Error(err))
		return
	}

	if count > 0 {
		log.Info("失効した仮押さえを解放", zap.Int("count", count))
	} else {
		log.Debug("失効した仮押さえなし")
	}
}
