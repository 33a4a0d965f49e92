package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type RegisterRequest struct {
	LegalName    string
	CNPJ         string
	Email        string
	ActivityCode string
	Category     Category
	// AlertPct is optional; zero keeps DefaultAlertPct.
	AlertPct int
}

// Registry is the read side used by reconciliation jobs.
type Registry interface {
	ListActive(ctx context.Context) ([]Entity, error)
	Get(ctx context.Context, id snowflake.ID) (Entity, error)
}

type Service interface {
	Registry
	Register(ctx context.Context, req RegisterRequest) (Entity, error)
	Deactivate(ctx context.Context, id snowflake.ID) error
}

var (
	ErrEntityNotFound  = errors.New("entity_not_found")
	ErrInvalidCategory = errors.New("invalid_category")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrInvalidCNPJ     = errors.New("invalid_cnpj")
	ErrInvalidAlertPct = errors.New("invalid_alert_pct")
	ErrDuplicateCNPJ   = errors.New("duplicate_cnpj")
	ErrInvalidCeiling  = errors.New("invalid_ceiling")
)
