package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/thnhpht/ITS/internal/config"
	"github.com/thnhpht/ITS/internal/domain"
	"github.com/thnhpht/ITS/internal/lock"
	"github.com/thnhpht/ITS/internal/observability"
	"github.com/thnhpht/ITS/internal/repository"
	"github.com/thnhpht/ITS/internal/service"
)

// ErrLocked is returned by RunOnce when another instance holds the lock.
var ErrLocked = errors.New("poller lock held elsewhere")

// DeltaSource fetches pending deltas, oldest first.
type DeltaSource interface {
	FetchPending(ctx context.Context, filter repository.PendingFilter) ([]domain.Delta, error)
}

// DeltaProcessor runs the pipeline for one delta.
type DeltaProcessor interface {
	Process(ctx context.Context, delta domain.Delta) service.ProcessResult
}

// Poller is the outer loop: lock, fetch, process, unlock, sleep.
type Poller struct {
	lock      lock.Locker
	source    DeltaSource
	processor DeltaProcessor
	cfg       config.PollerConfig
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// PollerDependencies bundles collaborators for the poller.
type PollerDependencies struct {
	Lock      lock.Locker
	Source    DeltaSource
	Processor DeltaProcessor
	Config    config.PollerConfig
	Metrics   *observability.Metrics
	Logger    *zap.Logger
}

// NewPoller constructs the poller.
func NewPoller(deps PollerDependencies) *Poller {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		lock:      deps.Lock,
		source:    deps.Source,
		processor: deps.Processor,
		cfg:       deps.Config,
		metrics:   deps.Metrics,
		logger:    logger,
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	p.logger.Info("poller started", zap.Duration("interval", interval), zap.Int("batch_size", p.cfg.BatchSize))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := p.RunOnce(ctx); err != nil && !errors.Is(err, ErrLocked) {
			p.logger.Error("poll cycle failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce holds the lock for a single fetch and dispatch pass and returns
// the number of deltas processed.
func (p *Poller) RunOnce(ctx context.Context) (int, error) {
	started := time.Now()
	locked, err := p.lock.TryLock(ctx)
	if err != nil {
		p.metrics.ObserveCycle("lock_error", time.Since(started))
		return 0, err
	}
	if !locked {
		p.logger.Debug("lock busy, skipping cycle")
		p.metrics.ObserveCycle("locked", time.Since(started))
		return 0, ErrLocked
	}
	defer func() {
		if err := p.lock.Unlock(context.Background()); err != nil {
			p.logger.Error("unlock failed", zap.Error(err))
		}
	}()

	cycleCtx := ctx
	if p.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(ctx, p.cfg.CycleTimeout)
		defer cancel()
	}

	deltas, err := p.source.FetchPending(cycleCtx, repository.PendingFilter{
		ExcludeModifiers: p.cfg.SystemActors,
		Limit:            p.cfg.BatchSize,
	})
	if err != nil {
		p.metrics.ObserveCycle("fetch_error", time.Since(started))
		return 0, err
	}
	if len(deltas) == 0 {
		p.metrics.ObserveCycle("idle", time.Since(started))
		return 0, nil
	}

	failed := 0
	for _, delta := range deltas {
		if res := p.processor.Process(cycleCtx, delta); res.Err != nil {
			failed++
		}
	}

	result := "ok"
	if failed > 0 {
		result = "partial"
	}
	p.metrics.ObserveCycle(result, time.Since(started))
	p.logger.Info("poll cycle finished",
		zap.Int("deltas", len(deltas)),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(started)),
	)
	return len(deltas), nil
}
