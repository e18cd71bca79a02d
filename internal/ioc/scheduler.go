package ioc

import (
	"time"

	broadcastevt "gitee.com/flycash/broadcast-platform/internal/event/broadcast"
	"gitee.com/flycash/broadcast-platform/internal/repository"
	"gitee.com/flycash/broadcast-platform/internal/service/coordinator"
	"gitee.com/flycash/broadcast-platform/internal/service/scheduler"
	"github.com/gotomicro/ego/core/econf"
	"github.com/meoying/dlock-go"
)

func InitScheduler(
	broadcastRepo repository.BroadcastRepository,
	jobRepo repository.ScheduledJobRepository,
	producer broadcastevt.Producer,
	dclient dlock.Client,
) *scheduler.Scheduler {
	cfg := scheduler.Config{BatchSize: 100, Interval: time.Second}
	if err := econf.UnmarshalKey("scheduler", &cfg); err != nil {
		panic(err)
	}
	return scheduler.NewScheduler(broadcastRepo, jobRepo, producer, dclient, cfg)
}

func InitRecoverer(
	broadcastRepo repository.BroadcastRepository,
	producer broadcastevt.Producer,
	dclient dlock.Client,
) *coordinator.Recoverer {
	cfg := coordinator.RecoverConfig{OlderThan: 10 * time.Minute, BatchSize: 100, Interval: time.Minute}
	if err := econf.UnmarshalKey("recover", &cfg); err != nil {
		panic(err)
	}
	return coordinator.NewRecoverer(broadcastRepo, producer, dclient, cfg)
}
