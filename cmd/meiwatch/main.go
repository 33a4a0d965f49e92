package main

import (
	"context"
	"flag"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/meiwatch/internal/audit"
	"github.com/smallbiznis/meiwatch/internal/ceiling"
	"github.com/smallbiznis/meiwatch/internal/clock"
	"github.com/smallbiznis/meiwatch/internal/config"
	"github.com/smallbiznis/meiwatch/internal/entity"
	"github.com/smallbiznis/meiwatch/internal/housekeeping"
	"github.com/smallbiznis/meiwatch/internal/invoice"
	"github.com/smallbiznis/meiwatch/internal/lock"
	"github.com/smallbiznis/meiwatch/internal/migration"
	"github.com/smallbiznis/meiwatch/internal/notification"
	"github.com/smallbiznis/meiwatch/internal/obligation"
	"github.com/smallbiznis/meiwatch/internal/observability"
	"github.com/smallbiznis/meiwatch/internal/providers/email"
	"github.com/smallbiznis/meiwatch/internal/revenue"
	"github.com/smallbiznis/meiwatch/internal/scheduler"
	"github.com/smallbiznis/meiwatch/internal/server"
	"github.com/smallbiznis/meiwatch/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	once := flag.Bool("once", false, "run every enabled job once and exit")
	job := flag.String("job", "", "with -once, run only this job")
	flag.Parse()

	opts := []fx.Option{
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		lock.Module,

		entity.Module,
		invoice.Module,
		revenue.Module,
		ceiling.Module,
		obligation.Module,
		notification.Module,
		email.Module,
		audit.Module,
		housekeeping.Module,
		scheduler.Module,
	}

	if *once {
		opts = append(opts,
			fx.Supply(scheduler.OnceMode(true)),
			fx.Invoke(func(lc fx.Lifecycle, sd fx.Shutdowner, s *scheduler.Scheduler, log *zap.Logger) {
				runOnce(lc, sd, s, log, *job)
			}),
		)
	} else {
		opts = append(opts, server.Module)
	}

	fx.New(opts...).Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

// runOnce drives a single pass after startup and shuts the app down with a
// non-zero exit code when any job failed.
func runOnce(lc fx.Lifecycle, sd fx.Shutdowner, s *scheduler.Scheduler, log *zap.Logger, job string) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				ctx := context.Background()
				var err error
				if job != "" {
					err = s.Trigger(ctx, job)
				} else {
					err = s.RunOnce(ctx)
				}
				code := 0
				if err != nil {
					log.Error("scheduler.once.failed", zap.Error(err))
					code = 1
				}
				if err := sd.Shutdown(fx.ExitCode(code)); err != nil {
					log.Error("scheduler.once.shutdown_failed", zap.Error(err))
					os.Exit(code)
				}
			}()
			return nil
		},
	})
}
