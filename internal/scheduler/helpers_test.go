package scheduler

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	auditrepo "github.com/smallbiznis/meiwatch/internal/audit/repository"
	auditservice "github.com/smallbiznis/meiwatch/internal/audit/service"
	ceilingrepo "github.com/smallbiznis/meiwatch/internal/ceiling/repository"
	ceilingservice "github.com/smallbiznis/meiwatch/internal/ceiling/service"
	"github.com/smallbiznis/meiwatch/internal/clock"
	"github.com/smallbiznis/meiwatch/internal/config"
	entitydomain "github.com/smallbiznis/meiwatch/internal/entity/domain"
	entityrepo "github.com/smallbiznis/meiwatch/internal/entity/repository"
	entityservice "github.com/smallbiznis/meiwatch/internal/entity/service"
	"github.com/smallbiznis/meiwatch/internal/housekeeping"
	invoicedomain "github.com/smallbiznis/meiwatch/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/meiwatch/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/meiwatch/internal/invoice/service"
	"github.com/smallbiznis/meiwatch/internal/lock"
	"github.com/smallbiznis/meiwatch/internal/migration"
	notificationdomain "github.com/smallbiznis/meiwatch/internal/notification/domain"
	notificationrepo "github.com/smallbiznis/meiwatch/internal/notification/repository"
	notificationservice "github.com/smallbiznis/meiwatch/internal/notification/service"
	obsmetrics "github.com/smallbiznis/meiwatch/internal/observability/metrics"
	obligationdomain "github.com/smallbiznis/meiwatch/internal/obligation/domain"
	obligationrepo "github.com/smallbiznis/meiwatch/internal/obligation/repository"
	obligationservice "github.com/smallbiznis/meiwatch/internal/obligation/service"
	"github.com/smallbiznis/meiwatch/internal/revenue"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	registry *prometheus.Registry
	cfg      config.Config
	entities entitydomain.Service
	invoices invoicedomain.Service
	notify   notificationdomain.Service
	params   Params
	purger   Purger
}

func newFixture(t *testing.T, start time.Time) *fixture {
	t.Helper()

	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	t.Cleanup(restore)
	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{ServiceName: "meiwatch", Environment: "test"})

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migration.AutoMigrate(db))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(start)
	cfg := config.Config{
		FiscalTimezone: "UTC",
		Scheduler: config.SchedulerConfig{
			Concurrency:   4,
			JobTimeout:    time.Minute,
			EntityTimeout: 10 * time.Second,
			DueSoonWindow: 5 * 24 * time.Hour,
		},
		Notification: config.NotificationConfig{
			Cooldown:  24 * time.Hour,
			DedupMode: string(notificationdomain.DedupCrossingAndCooldown),
		},
		Housekeeping: config.HousekeepingConfig{RetentionDays: 90},
	}
	log := zap.NewNop()
	fiscal := config.NewStaticFiscalPolicyHolder(config.DefaultFiscalPolicy())

	entities := entityservice.New(entityservice.Params{
		DB:     db,
		Log:    log,
		GenID:  node,
		Repo:   entityrepo.Provide(),
		Clock:  clk,
		Fiscal: fiscal,
	})
	invRepo := invoicerepo.Provide()
	invoices := invoiceservice.New(invoiceservice.Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Repo:     invRepo,
		Registry: entities,
		Clock:    clk,
		Config:   cfg,
	})
	agg := revenue.NewAggregator(invoiceservice.NewLedger(db, invRepo))

	notifRepo := notificationrepo.Provide()
	notify := notificationservice.New(notificationservice.Params{
		DB:    db,
		Log:   log,
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
	monitor := ceilingservice.NewMonitor(ceilingservice.MonitorParams{
		DB:      db,
		Log:     log,
		Repo:    ceilingrepo.Provide(),
		Revenue: agg,
		Dedup:   dedup,
		Sink:    notify,
		Clock:   clk,
		Config:  cfg,
	})

	auditRepo := auditrepo.Provide()
	obligations := obligationservice.NewService(obligationservice.Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Repo:     obligationrepo.Provide(),
		Registry: entities,
		Revenue:  agg,
		Audit: auditservice.NewService(auditservice.Params{
			DB:    db,
			Log:   log,
			GenID: node,
			Repo:  auditRepo,
			Clock: clk,
		}),
		Clock:  clk,
		Config: cfg,
		Fiscal: fiscal,
	})
	hk := housekeeping.NewService(housekeeping.Params{
		DB:         db,
		Log:        log,
		Clock:      clk,
		Config:     cfg,
		AuditRepo:  auditRepo,
		MarkerRepo: notifRepo,
	})

	return &fixture{
		db:       db,
		node:     node,
		clock:    clk,
		registry: registry,
		cfg:      cfg,
		entities: entities,
		invoices: invoices,
		notify:   notify,
		params: Params{
			Log:          log,
			Clock:        clk,
			Config:       cfg,
			Registry:     entities,
			Monitor:      monitor,
			Obligations:  obligations,
			Dedup:        dedup,
			Sink:         notify,
			Housekeeping: hk,
			Locker:       lock.NewLocalLocker(clk),
		},
		purger: hk,
	}
}

func (f *fixture) scheduler(t *testing.T) *Scheduler {
	t.Helper()
	f.params.Config = f.cfg
	s, err := newScheduler(f.params, f.purger)
	require.NoError(t, err)
	return s
}

func (f *fixture) register(t *testing.T, legalName, cnpj string) entitydomain.Entity {
	t.Helper()
	entity, err := f.entities.Register(context.Background(), entitydomain.RegisterRequest{
		LegalName: legalName,
		CNPJ:      cnpj,
		Email:     strings.ToLower(strings.Fields(legalName)[0]) + "@example.com",
		Category:  entitydomain.CategoryCommerce,
	})
	require.NoError(t, err)
	return entity
}

func (f *fixture) issue(t *testing.T, entity entitydomain.Entity, value string) {
	t.Helper()
	_, err := f.invoices.Issue(context.Background(), invoicedomain.IssueRequest{
		EntityID: entity.ID,
		Number:   f.node.Generate().String(),
		Value:    decimal.RequireFromString(value),
		IssuedAt: f.clock.Now(),
	})
	require.NoError(t, err)
}

func (f *fixture) notifications(t *testing.T, entity entitydomain.Entity) []notificationdomain.Notification {
	t.Helper()
	items, err := f.notify.List(context.Background(), entity.ID, false)
	require.NoError(t, err)
	return items
}

func countKind(items []notificationdomain.Notification, kind string) int {
	n := 0
	for _, item := range items {
		if item.Kind == kind {
			n++
		}
	}
	return n
}

func swapPrometheusRegistry(registry *prometheus.Registry) func() {
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	return func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetSchedulerMetricsForTest()
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}

func jobLabels(job string) map[string]string {
	return map[string]string{"service": "meiwatch", "env": "test", "job": job}
}

func (f *fixture) guides(t *testing.T, entity entitydomain.Entity) []obligationdomain.DASGuide {
	t.Helper()
	var guides []obligationdomain.DASGuide
	require.NoError(t, f.db.Where("entity_id = ?", entity.ID).Order("month").Find(&guides).Error)
	return guides
}
