package worker

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

var sweepRuns = promauto.NewCounter(prometheus.CounterOpts{
	Name: "pairing_sweep_runs_total",
	Help: "The total number of pairing registry sweeps",
})

// Sweepable drops expired entries and reports how many were removed.
type Sweepable interface {
	Sweep(now time.Time) int
}

// PairingSweeper evicts expired pairing entries on a fixed interval. Only
// the in-memory registry needs it; Redis expires keys on its own.
type PairingSweeper struct {
	target   Sweepable
	interval time.Duration
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewPairingSweeper(target Sweepable, interval time.Duration, log logrus.FieldLogger) *PairingSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &PairingSweeper{
		target:   target,
		interval: interval,
		log:      log.WithField("component", "pairing_sweeper"),
		now:      time.Now,
	}
}

func (w *PairingSweeper) Run(ctx context.Context) error {
	w.log.WithField("interval", w.interval).Info("pairing sweeper started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.sweepOnce()
		}
	}
}

func (w *PairingSweeper) sweepOnce() int {
	sweepRuns.Inc()
	n := w.target.Sweep(w.now())
	if n > 0 {
		w.log.WithField("evicted", n).Debug("expired pairing entries evicted")
	}
	return n
}
