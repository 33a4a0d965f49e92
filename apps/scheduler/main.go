package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/meiwatch/internal/audit"
	"github.com/smallbiznis/meiwatch/internal/ceiling"
	"github.com/smallbiznis/meiwatch/internal/clock"
	"github.com/smallbiznis/meiwatch/internal/config"
	"github.com/smallbiznis/meiwatch/internal/entity"
	"github.com/smallbiznis/meiwatch/internal/housekeeping"
	"github.com/smallbiznis/meiwatch/internal/invoice"
	"github.com/smallbiznis/meiwatch/internal/lock"
	"github.com/smallbiznis/meiwatch/internal/notification"
	"github.com/smallbiznis/meiwatch/internal/obligation"
	"github.com/smallbiznis/meiwatch/internal/observability"
	"github.com/smallbiznis/meiwatch/internal/providers/email"
	"github.com/smallbiznis/meiwatch/internal/revenue"
	"github.com/smallbiznis/meiwatch/internal/scheduler"
	"github.com/smallbiznis/meiwatch/pkg/db"
	"go.uber.org/fx"
)

// Worker-only build: cron jobs without the ops HTTP server or migrations.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
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

		// No server module!
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
