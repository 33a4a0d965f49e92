package revenue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	entitydomain "github.com/smallbiznis/meiwatch/internal/entity/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	entries []LedgerEntry
	err     error
}

func (f *fakeLedger) ListIssuedInvoices(_ context.Context, _ snowflake.ID, r DateRange) ([]LedgerEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []LedgerEntry
	for _, e := range f.entries {
		if r.Contains(e.CompetencyDate) {
			out = append(out, e)
		}
	}
	return out, nil
}

func entry(value string, year int, month time.Month, day int) LedgerEntry {
	return LedgerEntry{
		Value:          decimal.RequireFromString(value),
		CompetencyDate: time.Date(year, month, day, 0, 0, 0, 0, time.UTC),
	}
}

func TestYearToDateAndMonthBreakdown(t *testing.T) {
	ledger := &fakeLedger{entries: []LedgerEntry{
		entry("1000.50", 2025, time.January, 1),
		entry("2000", 2025, time.January, 31),
		entry("500", 2025, time.December, 31),
		entry("999", 2024, time.December, 31),
		entry("999", 2026, time.January, 1),
	}}
	agg := NewAggregator(ledger)
	ctx := context.Background()

	total, err := agg.YearToDate(ctx, 1, 2025)
	require.NoError(t, err)
	assert.Equal(t, "3500.50", total.StringFixed(2))

	jan, err := agg.MonthToDate(ctx, 1, 2025, time.January)
	require.NoError(t, err)
	assert.Equal(t, "3000.50", jan.StringFixed(2))

	months, err := agg.MonthlyTotals(ctx, 1, 2025)
	require.NoError(t, err)
	assert.Equal(t, "3000.50", months[0].StringFixed(2))
	assert.True(t, months[5].IsZero())
	assert.Equal(t, "500.00", months[11].StringFixed(2))
}

func TestSnapshotRatio(t *testing.T) {
	ledger := &fakeLedger{entries: []LedgerEntry{entry("70000", 2025, time.March, 5)}}
	agg := NewAggregator(ledger)
	entity := entitydomain.Entity{ID: 3, AnnualCeiling: decimal.RequireFromString("81000")}

	snap, err := agg.Snapshot(context.Background(), entity, 2025)
	require.NoError(t, err)
	assert.Equal(t, 2025, snap.Year)
	assert.InDelta(t, 0.8641975, snap.Ratio, 1e-6)
}

func TestSnapshotRejectsMissingCeiling(t *testing.T) {
	agg := NewAggregator(&fakeLedger{})
	_, err := agg.Snapshot(context.Background(), entitydomain.Entity{ID: 3}, 2025)
	assert.ErrorIs(t, err, entitydomain.ErrInvalidCeiling)
}

func TestStorageErrorsPropagate(t *testing.T) {
	boom := errors.New("connection reset")
	agg := NewAggregator(&fakeLedger{err: boom})

	_, err := agg.YearToDate(context.Background(), 1, 2025)
	assert.ErrorIs(t, err, boom)
	_, err = agg.MonthlyTotals(context.Background(), 1, 2025)
	assert.ErrorIs(t, err, boom)
}

func TestRanges(t *testing.T) {
	r := YearRange(2024)
	assert.True(t, r.Contains(time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)))

	feb := MonthRange(2024, time.February)
	assert.True(t, feb.Contains(time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)))
	assert.False(t, feb.Contains(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)))

	assert.Zero(t, Ratio(decimal.NewFromInt(10), decimal.Zero))
}
