// Package revenue sums issued invoices by competency period. It never
// caches: every figure is recomputed from the ledger.
package revenue

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	entitydomain "github.com/smallbiznis/meiwatch/internal/entity/domain"
)

// DateRange is the half-open calendar interval [From, To) over competency dates.
type DateRange struct {
	From time.Time
	To   time.Time
}

func YearRange(year int) DateRange {
	return DateRange{
		From: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func MonthRange(year int, month time.Month) DateRange {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return DateRange{From: from, To: from.AddDate(0, 1, 0)}
}

func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

type LedgerEntry struct {
	InvoiceID      snowflake.ID
	Value          decimal.Decimal
	CompetencyDate time.Time
}

// Ledger lists ISSUED invoices only; cancelled ones never reach the aggregator.
type Ledger interface {
	ListIssuedInvoices(ctx context.Context, entityID snowflake.ID, r DateRange) ([]LedgerEntry, error)
}

type Snapshot struct {
	EntityID    snowflake.ID
	Year        int
	TotalToDate decimal.Decimal
	Ceiling     decimal.Decimal
	Ratio       float64
}

type Aggregator struct {
	ledger Ledger
}

func NewAggregator(ledger Ledger) *Aggregator {
	return &Aggregator{ledger: ledger}
}

func (a *Aggregator) YearToDate(ctx context.Context, entityID snowflake.ID, year int) (decimal.Decimal, error) {
	return a.sum(ctx, entityID, YearRange(year))
}

func (a *Aggregator) MonthToDate(ctx context.Context, entityID snowflake.ID, year int, month time.Month) (decimal.Decimal, error) {
	return a.sum(ctx, entityID, MonthRange(year, month))
}

// MonthlyTotals breaks the year down by competency month; index 0 is January.
func (a *Aggregator) MonthlyTotals(ctx context.Context, entityID snowflake.ID, year int) ([12]decimal.Decimal, error) {
	var totals [12]decimal.Decimal
	for i := range totals {
		totals[i] = decimal.Zero
	}

	r := YearRange(year)
	entries, err := a.ledger.ListIssuedInvoices(ctx, entityID, r)
	if err != nil {
		return totals, fmt.Errorf("monthly totals: %w", err)
	}
	for _, entry := range entries {
		if !r.Contains(entry.CompetencyDate) {
			continue
		}
		idx := int(entry.CompetencyDate.Month()) - 1
		totals[idx] = totals[idx].Add(entry.Value)
	}
	return totals, nil
}

// Snapshot computes the year-to-date total and its ratio to the entity ceiling.
func (a *Aggregator) Snapshot(ctx context.Context, entity entitydomain.Entity, year int) (Snapshot, error) {
	if !entity.AnnualCeiling.IsPositive() {
		return Snapshot{}, fmt.Errorf("entity %s: %w", entity.ID, entitydomain.ErrInvalidCeiling)
	}
	total, err := a.YearToDate(ctx, entity.ID, year)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		EntityID:    entity.ID,
		Year:        year,
		TotalToDate: total,
		Ceiling:     entity.AnnualCeiling,
		Ratio:       Ratio(total, entity.AnnualCeiling),
	}, nil
}

// Ratio divides total by ceiling; a non-positive ceiling yields 0.
func Ratio(total, ceiling decimal.Decimal) float64 {
	if !ceiling.IsPositive() {
		return 0
	}
	return total.DivRound(ceiling, 8).InexactFloat64()
}

func (a *Aggregator) sum(ctx context.Context, entityID snowflake.ID, r DateRange) (decimal.Decimal, error) {
	entries, err := a.ledger.ListIssuedInvoices(ctx, entityID, r)
	if err != nil {
		return decimal.Zero, fmt.Errorf("aggregate revenue: %w", err)
	}
	total := decimal.Zero
	for _, entry := range entries {
		if !r.Contains(entry.CompetencyDate) {
			continue
		}
		total = total.Add(entry.Value)
	}
	return total, nil
}
