package app

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// QuotaResetScheduler periodically restores every user's allowance for
// their current plan.
type QuotaResetScheduler struct {
	cron     *cron.Cron
	quotas   *Quotas
	schedule string
	log      *zap.Logger
}

func NewQuotaResetScheduler(quotas *Quotas, schedule string, log *zap.Logger) *QuotaResetScheduler {
	return &QuotaResetScheduler{
		cron:     cron.New(),
		quotas:   quotas,
		schedule: schedule,
		log:      log,
	}
}

// Start registers the reset job and begins the cron loop.
func (s *QuotaResetScheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if err := s.quotas.ResetAll(ctx); err != nil {
			s.log.Error("quota reset failed", zap.Error(err))
			return
		}
		s.log.Info("quota reset complete", zap.String("schedule", s.schedule))
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *QuotaResetScheduler) Stop() {
	<-s.cron.Stop().Done()
}
