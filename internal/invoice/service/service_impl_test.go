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
	"github.com/smallbiznis/meiwatch/internal/clock"
	"github.com/smallbiznis/meiwatch/internal/config"
	entitydomain "github.com/smallbiznis/meiwatch/internal/entity/domain"
	entityrepo "github.com/smallbiznis/meiwatch/internal/entity/repository"
	entityservice "github.com/smallbiznis/meiwatch/internal/entity/service"
	"github.com/smallbiznis/meiwatch/internal/invoice/domain"
	"github.com/smallbiznis/meiwatch/internal/invoice/repository"
	"github.com/smallbiznis/meiwatch/internal/revenue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	invoices domain.Service
	agg      *revenue.Aggregator
	entity   entitydomain.Entity
	clock    *clock.FakeClock
}

func newFixture(t *testing.T, tz string) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&entitydomain.Entity{}, &domain.Invoice{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC))
	cfg := config.Config{FiscalTimezone: tz}

	entities := entityservice.New(entityservice.Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Repo:   entityrepo.Provide(),
		Clock:  clk,
		Fiscal: config.NewStaticFiscalPolicyHolder(config.DefaultFiscalPolicy()),
	})
	entity, err := entities.Register(context.Background(), entitydomain.RegisterRequest{
		LegalName: "Oficina do Beto",
		CNPJ:      "11222333000144",
		Email:     "beto@example.com",
		Category:  entitydomain.CategoryService,
	})
	require.NoError(t, err)

	repo := repository.Provide()
	return &fixture{
		invoices: New(Params{
			DB:       db,
			Log:      zap.NewNop(),
			GenID:    node,
			Repo:     repo,
			Registry: entities,
			Clock:    clk,
			Config:   cfg,
		}),
		agg:    revenue.NewAggregator(NewLedger(db, repo)),
		entity: entity,
		clock:  clk,
	}
}

func (f *fixture) issue(t *testing.T, number, value string, competency time.Time) domain.Invoice {
	t.Helper()
	inv, err := f.invoices.Issue(context.Background(), domain.IssueRequest{
		EntityID:       f.entity.ID,
		Number:         number,
		Value:          decimal.RequireFromString(value),
		CompetencyDate: &competency,
	})
	require.NoError(t, err)
	return inv
}

func TestDecemberCompetencyCountsInThatYear(t *testing.T) {
	f := newFixture(t, "UTC")
	ctx := context.Background()

	// issued in January 2025 for services rendered in December 2024
	f.issue(t, "NF-001", "3000", time.Date(2024, time.December, 28, 0, 0, 0, 0, time.UTC))

	y2024, err := f.agg.YearToDate(ctx, f.entity.ID, 2024)
	require.NoError(t, err)
	assert.Equal(t, "3000.00", y2024.StringFixed(2))

	y2025, err := f.agg.YearToDate(ctx, f.entity.ID, 2025)
	require.NoError(t, err)
	assert.True(t, y2025.IsZero())
}

func TestCancellationDecreasesYearToDateByValue(t *testing.T) {
	f := newFixture(t, "UTC")
	ctx := context.Background()

	f.issue(t, "NF-001", "1200.40", time.Date(2025, time.January, 3, 0, 0, 0, 0, time.UTC))
	target := f.issue(t, "NF-002", "799.60", time.Date(2025, time.January, 9, 0, 0, 0, 0, time.UTC))
	outside := f.issue(t, "NF-003", "500", time.Date(2024, time.November, 9, 0, 0, 0, 0, time.UTC))

	before, err := f.agg.YearToDate(ctx, f.entity.ID, 2025)
	require.NoError(t, err)
	assert.Equal(t, "2000.00", before.StringFixed(2))

	cancelled, err := f.invoices.Cancel(ctx, target.ID, "emitida em duplicidade")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	after, err := f.agg.YearToDate(ctx, f.entity.ID, 2025)
	require.NoError(t, err)
	assert.True(t, before.Sub(after).Equal(target.Value))

	// cancelling an invoice outside the year leaves it unchanged
	_, err = f.invoices.Cancel(ctx, outside.ID, "")
	require.NoError(t, err)
	unchanged, err := f.agg.YearToDate(ctx, f.entity.ID, 2025)
	require.NoError(t, err)
	assert.True(t, unchanged.Equal(after))
}

func TestCancelIsOneWay(t *testing.T) {
	f := newFixture(t, "UTC")
	ctx := context.Background()
	inv := f.issue(t, "NF-001", "100", time.Date(2025, time.January, 3, 0, 0, 0, 0, time.UTC))

	_, err := f.invoices.Cancel(ctx, inv.ID, "erro")
	require.NoError(t, err)
	_, err = f.invoices.Cancel(ctx, inv.ID, "erro")
	assert.ErrorIs(t, err, domain.ErrAlreadyCancelled)

	_, err = f.invoices.Cancel(ctx, 424242, "")
	assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)
}

func TestIssueValidation(t *testing.T) {
	f := newFixture(t, "UTC")
	ctx := context.Background()

	_, err := f.invoices.Issue(ctx, domain.IssueRequest{EntityID: f.entity.ID, Number: "NF-1", Value: decimal.Zero})
	assert.ErrorIs(t, err, domain.ErrInvalidInvoice)

	_, err = f.invoices.Issue(ctx, domain.IssueRequest{EntityID: f.entity.ID, Number: " ", Value: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrInvalidInvoice)

	_, err = f.invoices.Issue(ctx, domain.IssueRequest{EntityID: 1, Number: "NF-1", Value: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, entitydomain.ErrEntityNotFound)
}

func TestCompetencyDefaultsToLocalIssueDate(t *testing.T) {
	if _, err := time.LoadLocation("America/Sao_Paulo"); err != nil {
		t.Skip("tzdata unavailable")
	}
	f := newFixture(t, "America/Sao_Paulo")

	// 01:30 UTC on Jan 1 is still Dec 31 in São Paulo
	inv, err := f.invoices.Issue(context.Background(), domain.IssueRequest{
		EntityID: f.entity.ID,
		Number:   "NF-001",
		Value:    decimal.NewFromInt(250),
		IssuedAt: time.Date(2025, time.January, 1, 1, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC), inv.CompetencyDate)
}
