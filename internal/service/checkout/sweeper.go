package checkout

import (
	"context"
	"time"

	"designer-marketplace/internal/logging"
	"designer-marketplace/internal/metrics"
	"go.uber.org/zap"
)

type holdSweeperLedger interface {
	Expired(ctx context.Context, now time.Time, limit int) ([]string, error)
	Release(ctx context.Context, holdID string) (bool, error)
}

// Sweeper returns stock from holds that outlived their TTL, e.g. a checkout
// whose process died between reserving and settling.
type Sweeper struct {
	ledger   holdSweeperLedger
	interval time.Duration
	batch    int
	now      func() time.Time
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewSweeper(ledger holdSweeperLedger, interval time.Duration, m *metrics.Metrics, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{
		ledger:   ledger,
		interval: interval,
		batch:    100,
		now:      func() time.Time { return time.Now().UTC() },
		metrics:  m,
		logger:   logging.OrNop(logger).Named("hold_sweeper"),
	}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce releases up to one batch of expired holds and returns how many it released.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	ids, err := s.ledger.Expired(ctx, s.now(), s.batch)
	if err != nil {
		return 0, err
	}
	released := 0
	for _, id := range ids {
		ok, err := s.ledger.Release(ctx, id)
		if err != nil {
			s.logger.Warn("release expired hold", zap.String("hold_id", id), zap.Error(err))
			continue
		}
		if ok {
			released++
			s.metrics.ReservationReleased("expired")
		}
	}
	if released > 0 {
		s.logger.Info("expired holds released", zap.Int("count", released))
	}
	return released, nil
}
