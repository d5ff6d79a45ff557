package service

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ─────────────────────────────────────────────────────────────
// Reconciler — scheduled re-push of unconfirmed writes
// ─────────────────────────────────────────────────────────────

// Reconciler periodically sweeps the composition cache and replays every
// write the gateway failed to confirm. It is the durable half of the
// optimistic-update contract: the engine never rolls back in-memory state,
// so something has to keep pushing until storage agrees.
type Reconciler struct {
	compositions *CompositionService
	log          zerolog.Logger
	sched        *cron.Cron
}

// NewReconciler creates a Reconciler sweeping on the given cron spec
// (e.g. "@every 30s").
func NewReconciler(compositions *CompositionService, spec string, log zerolog.Logger) (*Reconciler, error) {
	r := &Reconciler{compositions: compositions, log: log, sched: cron.New()}
	if _, err := r.sched.AddFunc(spec, func() {
		clean := r.compositions.ReconcileAll(context.Background())
		if clean > 0 {
			r.log.Info().Int("documents", clean).Msg("reconciled unconfirmed writes")
		}
	}); err != nil {
		return nil, fmt.Errorf("reconcile schedule %q: %w", spec, err)
	}
	return r, nil
}

// Start begins the sweep schedule.
func (r *Reconciler) Start() {
	r.sched.Start()
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (r *Reconciler) Stop() {
	<-r.sched.Stop().Done()
}
