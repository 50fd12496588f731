// Package redispatch periodically sweeps assignments stuck in ASSIGNED and
// reopens their reports. A volunteer who never responds should not park a
// rescue forever.
package redispatch

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/strayaid/rescuedispatch/config"
	"github.com/strayaid/rescuedispatch/core/dispatch"
	"github.com/strayaid/rescuedispatch/core/model"
	"github.com/strayaid/rescuedispatch/core/store"
	"github.com/strayaid/rescuedispatch/infra/logger"
)

// Sweeper cancels stale assignments and re-runs dispatch for their reports.
type Sweeper struct {
	store   store.Store
	manager *dispatch.Manager
	stale   time.Duration
	log     logger.Logger
	now     func() time.Time
}

// NewSweeper builds a sweeper from the redispatch configuration.
func NewSweeper(st store.Store, manager *dispatch.Manager, cfg config.RedispatchConfig, log logger.Logger) *Sweeper {
	return &Sweeper{
		store:   st,
		manager: manager,
		stale:   time.Duration(cfg.StaleAfterMinutes) * time.Minute,
		log:     log,
		now:     time.Now,
	}
}

// Schedule registers the sweep on the given cron runner.
func (s *Sweeper) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		if err := s.Sweep(context.Background()); err != nil {
			s.log.Errorf("redispatch sweep: %v", err)
		}
	})
}

// Sweep runs one pass. Each stale assignment is cancelled as a no-show;
// afterwards every affected report gets one fresh dispatch attempt.
func (s *Sweeper) Sweep(ctx context.Context) error {
	cutoff := s.now().Add(-s.stale)
	stale, err := s.store.StaleAssigned(ctx, cutoff)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}
	s.log.Infof("redispatch sweep found %d stale assignments", len(stale))

	reports := make(map[string]bool)
	for _, a := range stale {
		if _, err := s.manager.Cancel(ctx, a.ID, "no response within window"); err != nil {
			// Terminal in the meantime, e.g. accepted while sweeping.
			if errors.Is(err, model.ErrInvalidTransition) {
				continue
			}
			s.log.Errorf("cancel stale assignment %s: %v", a.ID, err)
			continue
		}
		reports[a.ReportID] = true
	}

	for reportID := range reports {
		if _, err := s.manager.Dispatch(ctx, reportID); err != nil {
			if errors.Is(err, model.ErrNoCandidates) {
				s.log.Warnf("redispatch of report %s found no candidates", reportID)
				continue
			}
			s.log.Errorf("redispatch report %s: %v", reportID, err)
		}
	}
	return nil
}
