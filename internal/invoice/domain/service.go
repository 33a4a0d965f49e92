package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type IssueRequest struct {
	EntityID snowflake.ID
	Number   string
	Value    decimal.Decimal
	IssuedAt time.Time
	// CompetencyDate defaults to the issue date in the fiscal time zone.
	CompetencyDate *time.Time
}

type Service interface {
	Issue(ctx context.Context, req IssueRequest) (Invoice, error)
	Cancel(ctx context.Context, id snowflake.ID, reason string) (Invoice, error)
	Get(ctx context.Context, id snowflake.ID) (Invoice, error)
}

var (
	ErrInvalidInvoice   = errors.New("invalid_invoice")
	ErrInvoiceNotFound  = errors.New("invoice_not_found")
	ErrAlreadyCancelled = errors.New("invoice_already_cancelled")
)
