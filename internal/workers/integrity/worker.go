// Package integrity runs a scheduled sweep that re-verifies the
// hash-chain or signature integrity token of every dataset's event
// log, surfacing drift that the synchronous request path never
// notices on its own (a backend rewritten out from under gonk, or
// a restore from a stale backup). It follows the shutdown/waitgroup
// shape of the teacher's background processors.
package integrity

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/computeheavy/gonk/internal/domain/services/core"
)

// Worker periodically calls core.Service.VerifyIntegrity for every
// known dataset. VerifyIntegrity itself updates the shared Prometheus
// gauges and logs on failure; the worker only needs to drive the
// schedule and fan the call out across datasets.
type Worker struct {
	svc  *core.Service
	log  *zap.Logger
	cron *cron.Cron

	wg sync.WaitGroup
}

// New builds a Worker. schedule is a standard five-field cron
// expression (e.g. "0 * * * *" for hourly).
func New(svc *core.Service, log *zap.Logger, schedule string) (*Worker, error) {
	w := &Worker{
		svc:  svc,
		log:  log,
		cron: cron.New(),
	}
	if _, err := w.cron.AddFunc(schedule, w.sweep); err != nil {
		return nil, err
	}
	return w, nil
}

// Start launches the cron scheduler. It returns immediately; the
// scheduler runs on its own goroutine until Stop is called.
func (w *Worker) Start() {
	w.cron.Start()
}

// Stop drains in-flight sweeps and stops the scheduler. It blocks
// until the current sweep, if any, has returned.
func (w *Worker) Stop() {
	stopCtx := w.cron.Stop()
	<-stopCtx.Done()
	w.wg.Wait()
}

// sweep runs one verification pass over every dataset. Failures to
// open or list datasets are logged and do not stop the sweep of the
// remaining datasets.
func (w *Worker) sweep() {
	w.wg.Add(1)
	defer w.wg.Done()

	ctx := context.Background()
	names, err := w.svc.ListDatasets(ctx)
	if err != nil {
		w.log.Error("integrity sweep: failed to list datasets", zap.Error(err))
		return
	}

	for _, name := range names {
		if _, _, err := w.svc.VerifyIntegrity(ctx, name); err != nil {
			w.log.Error("integrity sweep: verification failed",
				zap.String("dataset", name), zap.Error(err))
		}
	}
}
