package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/meiwatch/internal/audit/domain"
	"github.com/smallbiznis/meiwatch/internal/clock"
	"github.com/smallbiznis/meiwatch/internal/config"
	entitydomain "github.com/smallbiznis/meiwatch/internal/entity/domain"
	"github.com/smallbiznis/meiwatch/internal/obligation/domain"
	"github.com/smallbiznis/meiwatch/internal/observability/logger"
	"github.com/smallbiznis/meiwatch/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	minYear = 2000
	maxYear = 2100
)

// RevenueReader is the slice of the aggregator used for declaration snapshots.
type RevenueReader interface {
	YearToDate(ctx context.Context, entityID snowflake.ID, year int) (decimal.Decimal, error)
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Registry entitydomain.Registry
	Revenue  RevenueReader
	Audit    auditdomain.Service
	Clock    clock.Clock
	Config   config.Config
	Fiscal   *config.FiscalPolicyHolder
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	registry entitydomain.Registry
	revenue  RevenueReader
	audit    auditdomain.Service
	clock    clock.Clock
	loc      *time.Location
	fiscal   *config.FiscalPolicyHolder
	metrics  *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("obligation.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		registry: p.Registry,
		revenue:  p.Revenue,
		audit:    p.Audit,
		clock:    p.Clock,
		loc:      p.Config.Location(),
		fiscal:   p.Fiscal,
		metrics:  p.Metrics,
	}
}

// EnsureGuidesForYear creates the twelve monthly guides of a year in one
// insert-if-absent batch. Running it again creates nothing.
func (s *Service) EnsureGuidesForYear(ctx context.Context, entityID snowflake.ID, year int) (int, error) {
	if year < minYear || year > maxYear {
		return 0, domain.ErrInvalidYear
	}
	entity, err := s.registry.Get(ctx, entityID)
	if err != nil {
		return 0, err
	}

	inss, icms, iss, err := entitydomain.MonthlyGuideAmount(entity.Category, s.fiscal.Get())
	if err != nil {
		return 0, err
	}
	amount := inss.Add(icms).Add(iss)

	now := s.clock.Now()
	guides := make([]domain.DASGuide, 0, 12)
	for month := time.January; month <= time.December; month++ {
		guides = append(guides, domain.DASGuide{
			ID:        s.genID.Generate(),
			EntityID:  entityID,
			Year:      year,
			Month:     int(month),
			DueDate:   domain.GuideDueDate(year, month, s.loc).UTC(),
			Amount:    amount,
			INSS:      inss,
			ICMS:      icms,
			ISS:       iss,
			Status:    domain.GuideStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	created, err := s.repo.InsertGuides(ctx, s.db, guides)
	if err != nil {
		return 0, fmt.Errorf("insert guides: %w", err)
	}
	if created > 0 {
		s.metrics.RecordGuidesCreated(ctx, string(entity.Category), int(created))
		logger.WithContext(ctx, s.log).Info("obligation.guides.created",
			zap.String("entity_id", entityID.String()),
			zap.Int("year", year),
			zap.Int64("created", created),
			zap.String("amount", amount.StringFixed(2)),
		)
	}
	return int(created), nil
}

// SweepOverdue flips PENDING guides due before the start of today to
// OVERDUE and returns only the guides this call transitioned. Guides for
// months before the entity's registration are left alone.
func (s *Service) SweepOverdue(ctx context.Context, entityID snowflake.ID, now time.Time) ([]domain.DASGuide, error) {
	entity, err := s.registry.Get(ctx, entityID)
	if err != nil {
		return nil, err
	}
	cutoff := domain.StartOfDay(now, s.loc).UTC()
	pending, err := s.repo.ListPendingDueBefore(ctx, s.db, entityID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list pending guides: %w", err)
	}

	transitioned := make([]domain.DASGuide, 0, len(pending))
	for _, guide := range pending {
		if domain.BeforeRegistration(guide, entity.CreatedAt, s.loc) {
			continue
		}
		at := s.clock.Now()
		affected, err := s.repo.MarkOverdue(ctx, s.db, guide.ID, at)
		if err != nil {
			return transitioned, fmt.Errorf("mark guide %s overdue: %w", guide.ID, err)
		}
		if affected == 0 {
			continue
		}
		guide.Status = domain.GuideStatusOverdue
		guide.UpdatedAt = at
		transitioned = append(transitioned, guide)

		s.recordAudit(ctx, auditdomain.Entry{
			EntityID:   guide.EntityID,
			Action:     auditdomain.ActionGuideOverdue,
			TargetType: string(domain.ObligationTypeGuide),
			TargetID:   guide.ID.String(),
			Metadata: map[string]any{
				"year":     guide.Year,
				"month":    guide.Month,
				"due_date": guide.DueDate.Format(time.RFC3339),
			},
		})
	}
	s.metrics.RecordGuideTransition(ctx, string(domain.GuideStatusPending), string(domain.GuideStatusOverdue), len(transitioned))
	return transitioned, nil
}

// DueSoon lists PENDING guides due within [today, today+window].
func (s *Service) DueSoon(ctx context.Context, entityID snowflake.ID, now time.Time, window time.Duration) ([]domain.DASGuide, error) {
	if window <= 0 {
		return nil, nil
	}
	from := domain.StartOfDay(now, s.loc)
	to := from.Add(window)
	return s.repo.ListPendingDueBetween(ctx, s.db, entityID, from.UTC(), to.UTC())
}

// RegisterPayment marks a guide as PAID. Paying a PAID guide returns it
// unchanged.
func (s *Service) RegisterPayment(ctx context.Context, guideID snowflake.ID, paidAt time.Time) (domain.DASGuide, error) {
	guide, err := s.findGuide(ctx, guideID)
	if err != nil {
		return domain.DASGuide{}, err
	}
	if guide.Status == domain.GuideStatusPaid {
		return guide, nil
	}

	now := s.clock.Now()
	if paidAt.IsZero() {
		paidAt = now
	}
	if paidAt.After(now) {
		return domain.DASGuide{}, domain.ErrInvalidPaymentDate
	}
	paidAt = paidAt.UTC()

	affected, err := s.repo.MarkPaid(ctx, s.db, guideID, paidAt, now)
	if err != nil {
		return domain.DASGuide{}, fmt.Errorf("mark guide paid: %w", err)
	}
	if affected > 0 {
		s.metrics.RecordGuideTransition(ctx, string(guide.Status), string(domain.GuideStatusPaid), 1)
		s.recordAudit(ctx, auditdomain.Entry{
			EntityID:   guide.EntityID,
			Action:     auditdomain.ActionGuidePaid,
			TargetType: string(domain.ObligationTypeGuide),
			TargetID:   guide.ID.String(),
			Metadata: map[string]any{
				"from":    string(guide.Status),
				"paid_at": paidAt.Format(time.RFC3339),
			},
		})
	}
	return s.findGuide(ctx, guideID)
}

// CreateDeclaration returns the declaration for the year, creating a DRAFT
// with the current year-to-date revenue when none exists.
func (s *Service) CreateDeclaration(ctx context.Context, entityID snowflake.ID, year int) (domain.AnnualDeclaration, error) {
	if year < minYear || year > maxYear {
		return domain.AnnualDeclaration{}, domain.ErrInvalidYear
	}
	if _, err := s.registry.Get(ctx, entityID); err != nil {
		return domain.AnnualDeclaration{}, err
	}

	existing, err := s.repo.FindDeclarationByYear(ctx, s.db, entityID, year)
	if err != nil {
		return domain.AnnualDeclaration{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	gross, err := s.revenue.YearToDate(ctx, entityID, year)
	if err != nil {
		return domain.AnnualDeclaration{}, err
	}

	now := s.clock.Now()
	decl := domain.AnnualDeclaration{
		ID:           s.genID.Generate(),
		EntityID:     entityID,
		Year:         year,
		GrossRevenue: gross,
		DueDate:      domain.DeclarationDeadline(year, s.loc).UTC(),
		Status:       domain.DeclarationStatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.repo.InsertDeclarationIfAbsent(ctx, s.db, &decl); err != nil {
		return domain.AnnualDeclaration{}, fmt.Errorf("insert declaration: %w", err)
	}

	stored, err := s.repo.FindDeclarationByYear(ctx, s.db, entityID, year)
	if err != nil {
		return domain.AnnualDeclaration{}, err
	}
	if stored == nil {
		return domain.AnnualDeclaration{}, domain.ErrDeclarationNotFound
	}
	return *stored, nil
}

// SubmitDeclaration moves a DRAFT to SUBMITTED. A receipt number is
// generated when none is given.
func (s *Service) SubmitDeclaration(ctx context.Context, declarationID snowflake.ID, receipt string) (domain.AnnualDeclaration, error) {
	decl, err := s.findDeclaration(ctx, declarationID)
	if err != nil {
		return domain.AnnualDeclaration{}, err
	}
	if decl.Status == domain.DeclarationStatusSubmitted {
		return domain.AnnualDeclaration{}, domain.ErrAlreadySubmitted
	}

	receipt = strings.TrimSpace(receipt)
	if receipt == "" {
		receipt = fmt.Sprintf("DASN-%d-%s", decl.Year, s.genID.Generate().String())
	}

	now := s.clock.Now()
	affected, err := s.repo.MarkSubmitted(ctx, s.db, declarationID, receipt, now)
	if err != nil {
		return domain.AnnualDeclaration{}, fmt.Errorf("mark declaration submitted: %w", err)
	}
	if affected == 0 {
		return domain.AnnualDeclaration{}, domain.ErrAlreadySubmitted
	}

	s.metrics.RecordDeclarationSubmitted(ctx)
	s.recordAudit(ctx, auditdomain.Entry{
		EntityID:   decl.EntityID,
		Action:     auditdomain.ActionDeclarationSubmitted,
		TargetType: string(domain.ObligationTypeDeclaration),
		TargetID:   decl.ID.String(),
		Metadata: map[string]any{
			"year":    decl.Year,
			"receipt": receipt,
		},
	})
	return s.findDeclaration(ctx, declarationID)
}

func (s *Service) DeclarationSubmitted(ctx context.Context, entityID snowflake.ID, year int) (bool, error) {
	decl, err := s.repo.FindDeclarationByYear(ctx, s.db, entityID, year)
	if err != nil {
		return false, err
	}
	return decl != nil && decl.Status == domain.DeclarationStatusSubmitted, nil
}

// ListObligations merges guides and declarations ordered by due date.
func (s *Service) ListObligations(ctx context.Context, entityID snowflake.ID) ([]domain.Obligation, error) {
	guides, err := s.repo.ListGuides(ctx, s.db, entityID)
	if err != nil {
		return nil, err
	}
	decls, err := s.repo.ListDeclarations(ctx, s.db, entityID)
	if err != nil {
		return nil, err
	}

	items := make([]domain.Obligation, 0, len(guides)+len(decls))
	for _, g := range guides {
		items = append(items, domain.Obligation{
			Type:     domain.ObligationTypeGuide,
			ID:       g.ID,
			EntityID: g.EntityID,
			Year:     g.Year,
			Month:    g.Month,
			DueDate:  g.DueDate,
			Amount:   g.Amount,
			Status:   string(g.Status),
		})
	}
	for _, d := range decls {
		items = append(items, domain.Obligation{
			Type:     domain.ObligationTypeDeclaration,
			ID:       d.ID,
			EntityID: d.EntityID,
			Year:     d.Year,
			DueDate:  d.DueDate,
			Amount:   d.GrossRevenue,
			Status:   string(d.Status),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].DueDate.Equal(items[j].DueDate) {
			return items[i].DueDate.Before(items[j].DueDate)
		}
		return items[i].Type < items[j].Type
	})
	return items, nil
}

func (s *Service) findGuide(ctx context.Context, id snowflake.ID) (domain.DASGuide, error) {
	guide, err := s.repo.FindGuide(ctx, s.db, id)
	if err != nil {
		return domain.DASGuide{}, err
	}
	if guide == nil {
		return domain.DASGuide{}, domain.ErrGuideNotFound
	}
	return *guide, nil
}

func (s *Service) findDeclaration(ctx context.Context, id snowflake.ID) (domain.AnnualDeclaration, error) {
	decl, err := s.repo.FindDeclaration(ctx, s.db, id)
	if err != nil {
		return domain.AnnualDeclaration{}, err
	}
	if decl == nil {
		return domain.AnnualDeclaration{}, domain.ErrDeclarationNotFound
	}
	return *decl, nil
}

// recordAudit never fails the transition it describes.
func (s *Service) recordAudit(ctx context.Context, entry auditdomain.Entry) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		logger.WithContext(ctx, s.log).Warn("obligation.audit.failed",
			zap.String("action", entry.Action),
			zap.String("target_id", entry.TargetID),
			zap.Error(err),
		)
	}
}
