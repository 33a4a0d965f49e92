package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	EnsureGuidesForYear(ctx context.Context, entityID snowflake.ID, year int) (int, error)
	SweepOverdue(ctx context.Context, entityID snowflake.ID, now time.Time) ([]DASGuide, error)
	DueSoon(ctx context.Context, entityID snowflake.ID, now time.Time, window time.Duration) ([]DASGuide, error)
	RegisterPayment(ctx context.Context, guideID snowflake.ID, paidAt time.Time) (DASGuide, error)

	CreateDeclaration(ctx context.Context, entityID snowflake.ID, year int) (AnnualDeclaration, error)
	SubmitDeclaration(ctx context.Context, declarationID snowflake.ID, receipt string) (AnnualDeclaration, error)
	DeclarationSubmitted(ctx context.Context, entityID snowflake.ID, year int) (bool, error)

	ListObligations(ctx context.Context, entityID snowflake.ID) ([]Obligation, error)
}

var (
	ErrGuideNotFound       = errors.New("guide_not_found")
	ErrDeclarationNotFound = errors.New("declaration_not_found")
	ErrAlreadySubmitted    = errors.New("declaration_already_submitted")
	ErrInvalidYear         = errors.New("invalid_year")
	ErrInvalidPaymentDate  = errors.New("invalid_payment_date")
)
