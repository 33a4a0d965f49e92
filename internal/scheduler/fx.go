package scheduler

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(New),
	fx.Invoke(registerLifecycle),
)

// OnceMode, when provided as true, keeps the cron loop off so the binary
// can drive a single RunOnce itself.
type OnceMode bool

type lifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Scheduler *Scheduler
	Once      OnceMode `optional:"true"`
}

func registerLifecycle(p lifecycleParams) {
	if p.Once {
		return
	}
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return p.Scheduler.Start()
		},
		OnStop: func(ctx context.Context) error {
			return p.Scheduler.Stop(ctx)
		},
	})
}
