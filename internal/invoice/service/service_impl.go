package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/meiwatch/internal/clock"
	"github.com/smallbiznis/meiwatch/internal/config"
	entitydomain "github.com/smallbiznis/meiwatch/internal/entity/domain"
	"github.com/smallbiznis/meiwatch/internal/invoice/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Registry entitydomain.Registry
	Clock    clock.Clock
	Config   config.Config
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	registry entitydomain.Registry
	clock    clock.Clock
	loc      *time.Location
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("invoice.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		registry: p.Registry,
		clock:    p.Clock,
		loc:      p.Config.Location(),
	}
}

func (s *Service) Issue(ctx context.Context, req domain.IssueRequest) (domain.Invoice, error) {
	number := strings.TrimSpace(req.Number)
	if number == "" || !req.Value.IsPositive() {
		return domain.Invoice{}, domain.ErrInvalidInvoice
	}

	if _, err := s.registry.Get(ctx, req.EntityID); err != nil {
		return domain.Invoice{}, err
	}

	now := s.clock.Now()
	issuedAt := req.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = now
	}
	competency := issuedAt.In(s.loc)
	if req.CompetencyDate != nil {
		competency = *req.CompetencyDate
	}

	invoice := domain.Invoice{
		ID:             s.genID.Generate(),
		EntityID:       req.EntityID,
		Number:         number,
		Value:          req.Value.Round(2),
		IssuedAt:       issuedAt.UTC(),
		CompetencyDate: CalendarDate(competency),
		Status:         domain.StatusIssued,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Insert(ctx, s.db, &invoice); err != nil {
		return domain.Invoice{}, err
	}
	return invoice, nil
}

// Cancel is one-way: cancelling a cancelled invoice is rejected.
func (s *Service) Cancel(ctx context.Context, id snowflake.ID, reason string) (domain.Invoice, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if current.Status == domain.StatusCancelled {
		return domain.Invoice{}, domain.ErrAlreadyCancelled
	}

	now := s.clock.Now()
	affected, err := s.repo.MarkCancelled(ctx, s.db, id, strings.TrimSpace(reason), now)
	if err != nil {
		return domain.Invoice{}, err
	}
	if affected == 0 {
		// Lost a race with a concurrent cancel.
		return domain.Invoice{}, domain.ErrAlreadyCancelled
	}

	s.log.Info("invoice cancelled",
		zap.String("invoice_id", id.String()),
		zap.String("entity_id", current.EntityID.String()),
	)
	return s.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Invoice, error) {
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if item == nil {
		return domain.Invoice{}, domain.ErrInvoiceNotFound
	}
	return *item, nil
}

// CalendarDate keeps the wall-clock date of t and drops the time of day,
// so competency dates compare as plain dates.
func CalendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
