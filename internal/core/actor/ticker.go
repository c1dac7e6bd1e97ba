package actor

import (
	"context"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

const SNAPSHOT_JOB_KEY = "fleet-snapshot"

// SnapshotTicker delivers a snapshotTick to the fleet actor on a fixed
// interval, independently of write activity.
type SnapshotTicker struct {
	scheduler quartz.Scheduler
	cancel    context.CancelFunc
}

func StartSnapshotTicker(root *actor.RootContext, target *actor.PID, interval time.Duration, logger *zap.Logger) (*SnapshotTicker, error) {
	sched := quartz.NewStdScheduler()
	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)

	tick := job.NewFunctionJob(func(_ context.Context) (bool, error) {
		root.Send(target, snapshotTick{})
		return true, nil
	})
	err := sched.ScheduleJob(quartz.NewJobDetail(tick, quartz.NewJobKey(SNAPSHOT_JOB_KEY)), quartz.NewSimpleTrigger(interval))
	if err != nil {
		cancel()
		return nil, err
	}
	logger.Debug("fleet@ticker scheduled", zap.Duration("interval", interval))

	return &SnapshotTicker{
		scheduler: sched,
		cancel:    cancel,
	}, nil
}

func (t *SnapshotTicker) Stop() {
	t.scheduler.Stop()
	t.cancel()
}
