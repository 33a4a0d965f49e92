// Package housekeeping purges rows that only matter for a bounded time.
package housekeeping

import (
	"context"
	"errors"
	"fmt"
	"time"

	auditdomain "github.com/smallbiznis/meiwatch/internal/audit/domain"
	"github.com/smallbiznis/meiwatch/internal/clock"
	"github.com/smallbiznis/meiwatch/internal/config"
	notificationdomain "github.com/smallbiznis/meiwatch/internal/notification/domain"
	"github.com/smallbiznis/meiwatch/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultRetentionDays = 90

// MarkerRetention outlives every reminder a marker guards: a guide's due
// date and a declaration countdown both fall within one year.
const MarkerRetention = 400 * 24 * time.Hour

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Config     config.Config
	AuditRepo  auditdomain.Repository
	MarkerRepo notificationdomain.Repository
}

type Result struct {
	AuditLogs int64
	Markers   int64
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	retention  time.Duration
	auditRepo  auditdomain.Repository
	markerRepo notificationdomain.Repository
}

func NewService(p Params) *Service {
	days := p.Config.Housekeeping.RetentionDays
	if days <= 0 {
		days = defaultRetentionDays
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("housekeeping"),
		clock:      p.Clock,
		retention:  time.Duration(days) * 24 * time.Hour,
		auditRepo:  p.AuditRepo,
		markerRepo: p.MarkerRepo,
	}
}

// Purge deletes audit logs older than the retention and markers older
// than MarkerRetention. Both deletes run even if one fails.
func (s *Service) Purge(ctx context.Context) (Result, error) {
	now := s.clock.Now()
	var res Result
	var errs []error

	n, err := s.auditRepo.DeleteBefore(ctx, s.db, now.Add(-s.retention))
	if err != nil {
		errs = append(errs, fmt.Errorf("purge audit logs: %w", err))
	}
	res.AuditLogs = n

	n, err = s.markerRepo.DeleteMarkersBefore(ctx, s.db, now.Add(-MarkerRetention))
	if err != nil {
		errs = append(errs, fmt.Errorf("purge notification markers: %w", err))
	}
	res.Markers = n

	logger.WithContext(ctx, s.log).Info("housekeeping.purged",
		zap.Int64("audit_logs", res.AuditLogs),
		zap.Int64("markers", res.Markers),
		zap.Duration("retention", s.retention),
	)
	return res, errors.Join(errs...)
}
