package tokens

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/hellojohn-tokens/internal/observability/logger"
)

// Sweeper corre SweepExpired cada Interval hasta que ctx se cancela.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	log      *zap.Logger
}

func NewSweeper(svc *Service, interval time.Duration, log *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if log == nil {
		log = logger.Named("sweeper")
	}
	return &Sweeper{svc: svc, interval: interval, log: log}
}

// Run bloquea hasta que ctx termine. Los errores se loguean y el loop sigue.
func (w *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("sweeper started", logger.Duration(w.interval))
	for {
		select {
		case <-ctx.Done():
			w.log.Info("sweeper stopped")
			return nil
		case <-ticker.C:
			w.sweepOnce(ctx)
		}
	}
}

func (w *Sweeper) sweepOnce(ctx context.Context) {
	start := time.Now()
	n, err := w.svc.SweepExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error("sweep failed", logger.Err(err))
		}
		return
	}
	if n > 0 {
		w.log.Info("expired tokens swept", logger.Count(n), logger.Duration(time.Since(start)))
	}
}
