package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/meiwatch/internal/invoice/domain"
	"github.com/smallbiznis/meiwatch/internal/revenue"
	"gorm.io/gorm"
)

// Ledger exposes issued invoices to the revenue aggregator.
type Ledger struct {
	db   *gorm.DB
	repo domain.Repository
}

func NewLedger(db *gorm.DB, repo domain.Repository) revenue.Ledger {
	return &Ledger{db: db, repo: repo}
}

func (l *Ledger) ListIssuedInvoices(ctx context.Context, entityID snowflake.ID, r revenue.DateRange) ([]revenue.LedgerEntry, error) {
	invoices, err := l.repo.ListIssued(ctx, l.db, entityID, r.From, r.To)
	if err != nil {
		return nil, fmt.Errorf("list issued invoices: %w", err)
	}
	entries := make([]revenue.LedgerEntry, 0, len(invoices))
	for _, inv := range invoices {
		entries = append(entries, revenue.LedgerEntry{
			InvoiceID:      inv.ID,
			Value:          inv.Value,
			CompetencyDate: inv.CompetencyDate,
		})
	}
	return entries, nil
}
