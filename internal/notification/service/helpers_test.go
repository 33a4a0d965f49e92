package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/meiwatch/internal/clock"
	"github.com/smallbiznis/meiwatch/internal/notification/domain"
	"github.com/smallbiznis/meiwatch/internal/notification/repository"
	"github.com/smallbiznis/meiwatch/internal/observability/metrics"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
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
	require.NoError(t, db.AutoMigrate(&domain.Notification{}, &domain.Marker{}))
	return db
}

type recordingChannel struct {
	name string
	err  error

	mu        sync.Mutex
	delivered []string
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Deliver(_ context.Context, n domain.Notification, recipient string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delivered = append(c.delivered, recipient+":"+n.Kind)
	return c.err
}

var errSMTPDown = errors.New("smtp down")

type fixture struct {
	db      *gorm.DB
	clock   *clock.FakeClock
	repo    domain.Repository
	metrics *metrics.Metrics
	reader  *sdkmetric.ManualReader
	svc     domain.Service
}

func newFixture(t *testing.T, channels ...domain.Channel) *fixture {
	t.Helper()
	db := newTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	reader := sdkmetric.NewManualReader()
	m, err := metrics.New(metrics.Config{ServiceName: "meiwatch"}, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC))
	repo := repository.Provide()
	return &fixture{
		db:      db,
		clock:   clk,
		repo:    repo,
		metrics: m,
		reader:  reader,
		svc: New(Params{
			DB:       db,
			Log:      zap.NewNop(),
			GenID:    node,
			Repo:     repo,
			Clock:    clk,
			Metrics:  m,
			Channels: channels,
		}),
	}
}

func (f *fixture) counter(t *testing.T, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, f.reader.Collect(context.Background(), &rm))
	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}
