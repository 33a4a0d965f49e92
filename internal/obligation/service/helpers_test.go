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
	auditdomain "github.com/smallbiznis/meiwatch/internal/audit/domain"
	auditrepo "github.com/smallbiznis/meiwatch/internal/audit/repository"
	auditservice "github.com/smallbiznis/meiwatch/internal/audit/service"
	"github.com/smallbiznis/meiwatch/internal/clock"
	"github.com/smallbiznis/meiwatch/internal/config"
	entitydomain "github.com/smallbiznis/meiwatch/internal/entity/domain"
	"github.com/smallbiznis/meiwatch/internal/migration"
	"github.com/smallbiznis/meiwatch/internal/obligation/domain"
	"github.com/smallbiznis/meiwatch/internal/obligation/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

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

type fakeRevenue struct {
	total decimal.Decimal
}

func (f *fakeRevenue) YearToDate(context.Context, snowflake.ID, int) (decimal.Decimal, error) {
	return f.total, nil
}

type fixture struct {
	db      *gorm.DB
	clock   *clock.FakeClock
	repo    domain.Repository
	audit   auditdomain.Service
	revenue *fakeRevenue
	svc     *Service
	entity  entitydomain.Entity
	loc     *time.Location
}

func newFixture(t *testing.T, category entitydomain.Category) *fixture {
	t.Helper()
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

	clk := clock.NewFakeClock(time.Date(2025, time.January, 2, 12, 0, 0, 0, time.UTC))
	cfg := config.Config{FiscalTimezone: "UTC"}
	entity := entitydomain.Entity{
		ID:            node.Generate(),
		LegalName:     "Oficina do Beto",
		Email:         "beto@example.com",
		Category:      category,
		AnnualCeiling: decimal.RequireFromString("81000"),
		Active:        true,
	}

	audit := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepo.Provide(),
		Clock: clk,
	})
	rev := &fakeRevenue{total: decimal.Zero}
	repo := repository.Provide()
	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     repo,
		Registry: &fakeRegistry{entities: map[snowflake.ID]entitydomain.Entity{entity.ID: entity}},
		Revenue:  rev,
		Audit:    audit,
		Clock:    clk,
		Config:   cfg,
		Fiscal:   config.NewStaticFiscalPolicyHolder(config.DefaultFiscalPolicy()),
	}).(*Service)

	return &fixture{
		db:      db,
		clock:   clk,
		repo:    repo,
		audit:   audit,
		revenue: rev,
		svc:     svc,
		entity:  entity,
		loc:     time.UTC,
	}
}

func (f *fixture) guides(t *testing.T) []domain.DASGuide {
	t.Helper()
	guides, err := f.repo.ListGuides(context.Background(), f.db, f.entity.ID)
	require.NoError(t, err)
	return guides
}
