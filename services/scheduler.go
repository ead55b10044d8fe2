// services/scheduler.go
package services

import (
	"context"
	"time"

	"scavenger-hunt/utils"

	"github.com/go-co-op/gocron/v2"
)

// StartInventoryScheduler runs ReconcileInventory every interval until the
// returned scheduler is shut down.
func (s *ClaimService) StartInventoryScheduler(interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			n, err := s.ReconcileInventory(context.Background())
			if err != nil {
				utils.Sugar.Errorf("[Scheduler] inventory reconcile failed: %v", err)
				return
			}
			if n > 0 {
				utils.Sugar.Infof("✅ [Scheduler] marked %d prize(s) out of stock", n)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	sched.Start()
	return sched, nil
}
