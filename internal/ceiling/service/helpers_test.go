package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/meiwatch/internal/ceiling/repository"
	"github.com/smallbiznis/meiwatch/internal/clock"
	"github.com/smallbiznis/meiwatch/internal/config"
	entitydomain "github.com/smallbiznis/meiwatch/internal/entity/domain"
	"github.com/smallbiznis/meiwatch/internal/migration"
	notificationdomain "github.com/smallbiznis/meiwatch/internal/notification/domain"
	notificationrepo "github.com/smallbiznis/meiwatch/internal/notification/repository"
	notificationservice "github.com/smallbiznis/meiwatch/internal/notification/service"
	"github.com/smallbiznis/meiwatch/internal/revenue"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migration.AutoMigrate(db))
	return db
}

// fakeRevenue serves a settable year-to-date total.
type fakeRevenue struct {
	total decimal.Decimal
	err   error
}

func (f *fakeRevenue) Snapshot(_ context.Context, entity entitydomain.Entity, year int) (revenue.Snapshot, error) {
	if f.err != nil {
		return revenue.Snapshot{}, f.err
	}
	return revenue.Snapshot{
		EntityID:    entity.ID,
		Year:        year,
		TotalToDate: f.total,
		Ceiling:     entity.AnnualCeiling,
		Ratio:       revenue.Ratio(f.total, entity.AnnualCeiling),
	}, nil
}

type fakeRegistry struct {
	entities map[snowflake.ID]entitydomain.Entity
}

func (f *fakeRegistry) ListActive(context.Context) ([]entitydomain.Entity, error) {
	out := make([]entitydomain.Entity, 0, len(f.entities))
	for _, e := range f.entities {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeRegistry) Get(_ context.Context, id snowflake.ID) (entitydomain.Entity, error) {
	e, ok := f.entities[id]
	if !ok {
		return entitydomain.Entity{}, entitydomain.ErrEntityNotFound
	}
	return e, nil
}

type monitorFixture struct {
	db      *gorm.DB
	clock   *clock.FakeClock
	revenue *fakeRevenue
	notify  notificationdomain.Service
	monitor *Monitor
	entity  entitydomain.Entity
}

func newMonitorFixture(t *testing.T, mode notificationdomain.DedupMode) *monitorFixture {
	t.Helper()
	db := newTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2025, time.June, 2, 11, 0, 0, 0, time.UTC))
	cfg := config.Config{
		FiscalTimezone: "UTC",
		Notification: config.NotificationConfig{
			Cooldown:  24 * time.Hour,
			DedupMode: string(mode),
		},
	}

	entity := entitydomain.Entity{
		ID:            node.Generate(),
		LegalName:     "Padaria da Ana",
		CNPJ:          "12345678000190",
		Email:         "ana@example.com",
		Category:      entitydomain.CategoryCommerce,
		AnnualCeiling: decimal.RequireFromString("81000"),
		AlertPct:      entitydomain.DefaultAlertPct,
		Active:        true,
		CreatedAt:     clk.Now(),
		UpdatedAt:     clk.Now(),
	}
	require.NoError(t, db.Create(&entity).Error)

	notifRepo := notificationrepo.Provide()
	notify := notificationservice.New(notificationservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  notifRepo,
		Clock: clk,
	})
	dedup := notificationservice.NewDedup(notificationservice.DedupParams{
		DB:     db,
		Repo:   notifRepo,
		Clock:  clk,
		Config: cfg,
	})

	rev := &fakeRevenue{total: decimal.Zero}
	monitor := NewMonitor(MonitorParams{
		DB:      db,
		Log:     zap.NewNop(),
		Repo:    repository.Provide(),
		Revenue: rev,
		Dedup:   dedup,
		Sink:    notify,
		Clock:   clk,
		Config:  cfg,
	}).(*Monitor)

	return &monitorFixture{
		db:      db,
		clock:   clk,
		revenue: rev,
		notify:  notify,
		monitor: monitor,
		entity:  entity,
	}
}

func (f *monitorFixture) setTotal(v string) {
	f.revenue.total = decimal.RequireFromString(v)
}

func (f *monitorFixture) notifications(t *testing.T) []notificationdomain.Notification {
	t.Helper()
	items, err := f.notify.List(context.Background(), f.entity.ID, false)
	require.NoError(t, err)
	return items
}
