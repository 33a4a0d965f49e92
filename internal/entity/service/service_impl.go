package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/meiwatch/internal/clock"
	"github.com/smallbiznis/meiwatch/internal/config"
	"github.com/smallbiznis/meiwatch/internal/entity/domain"
	"github.com/smallbiznis/meiwatch/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Repo   domain.Repository
	Clock  clock.Clock
	Fiscal *config.FiscalPolicyHolder
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	repo   domain.Repository
	clock  clock.Clock
	fiscal *config.FiscalPolicyHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("entity.service"),
		genID:  p.GenID,
		repo:   p.Repo,
		clock:  p.Clock,
		fiscal: p.Fiscal,
	}
}

// Register validates and stores a new MEI. The ceiling is resolved from the
// fiscal policy in force now and never recomputed.
func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (domain.Entity, error) {
	name := strings.TrimSpace(req.LegalName)
	if name == "" {
		return domain.Entity{}, domain.ErrInvalidName
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.Entity{}, domain.ErrInvalidEmail
	}

	cnpj := digitsOnly(req.CNPJ)
	if len(cnpj) != 14 {
		return domain.Entity{}, domain.ErrInvalidCNPJ
	}

	activityCode := strings.TrimSpace(req.ActivityCode)
	category := domain.Category(strings.ToLower(strings.TrimSpace(string(req.Category))))
	if category == "" && strings.HasPrefix(digitsOnly(activityCode), domain.TruckingActivityCode) {
		category = domain.CategoryTrucking
	}
	if !category.Valid() {
		return domain.Entity{}, domain.ErrInvalidCategory
	}

	alertPct := req.AlertPct
	if alertPct == 0 {
		alertPct = domain.DefaultAlertPct
	}
	if alertPct < 1 || alertPct > 100 {
		return domain.Entity{}, domain.ErrInvalidAlertPct
	}

	ceiling, err := domain.CeilingFor(category, s.fiscal.Get())
	if err != nil {
		return domain.Entity{}, err
	}
	if !ceiling.IsPositive() {
		return domain.Entity{}, domain.ErrInvalidCeiling
	}

	existing, err := s.repo.FindByCNPJ(ctx, s.db, cnpj)
	if err != nil {
		return domain.Entity{}, err
	}
	if existing != nil {
		return domain.Entity{}, domain.ErrDuplicateCNPJ
	}

	now := s.clock.Now()
	entity := domain.Entity{
		ID:            s.genID.Generate(),
		LegalName:     name,
		CNPJ:          cnpj,
		Email:         email,
		ActivityCode:  activityCode,
		Category:      category,
		AnnualCeiling: ceiling,
		AlertPct:      alertPct,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Insert(ctx, s.db, &entity); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Entity{}, domain.ErrDuplicateCNPJ
		}
		return domain.Entity{}, err
	}

	s.log.Info("entity registered",
		zap.String("entity_id", entity.ID.String()),
		zap.String("category", string(category)),
		zap.String("annual_ceiling", ceiling.StringFixed(2)),
	)
	return entity, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Entity, error) {
	if id == 0 {
		return domain.Entity{}, domain.ErrEntityNotFound
	}
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Entity{}, err
	}
	if item == nil {
		return domain.Entity{}, domain.ErrEntityNotFound
	}
	return *item, nil
}

func (s *Service) ListActive(ctx context.Context) ([]domain.Entity, error) {
	return s.repo.ListActive(ctx, s.db)
}

func (s *Service) Deactivate(ctx context.Context, id snowflake.ID) error {
	affected, err := s.repo.SetActive(ctx, s.db, id, false, s.clock.Now())
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrEntityNotFound
	}
	return nil
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
