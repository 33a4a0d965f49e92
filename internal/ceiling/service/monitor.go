package service

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/meiwatch/internal/ceiling/domain"
	"github.com/smallbiznis/meiwatch/internal/clock"
	"github.com/smallbiznis/meiwatch/internal/config"
	entitydomain "github.com/smallbiznis/meiwatch/internal/entity/domain"
	notificationdomain "github.com/smallbiznis/meiwatch/internal/notification/domain"
	obscontext "github.com/smallbiznis/meiwatch/internal/observability/context"
	"github.com/smallbiznis/meiwatch/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MonitorParams struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    domain.Repository
	Revenue Snapshotter
	Dedup   notificationdomain.Deduplicator
	Sink    notificationdomain.Sink
	Clock   clock.Clock
	Config  config.Config
}

type Monitor struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	revenue Snapshotter
	dedup   notificationdomain.Deduplicator
	sink    notificationdomain.Sink
	clock   clock.Clock
	loc     *time.Location
}

func NewMonitor(p MonitorParams) domain.Monitor {
	return &Monitor{
		db:      p.DB,
		log:     p.Log.Named("ceiling.monitor"),
		repo:    p.Repo,
		revenue: p.Revenue,
		dedup:   p.Dedup,
		sink:    p.Sink,
		clock:   p.Clock,
		loc:     p.Config.Location(),
	}
}

// Check evaluates the entity for the fiscal year containing now. The
// observation is only advanced after a permitted alert was persisted, so a
// failed emission is retried on the next tick.
func (m *Monitor) Check(ctx context.Context, entity entitydomain.Entity, now time.Time) (domain.CheckResult, error) {
	year := yearIn(now, m.loc)
	log := logger.WithContext(obscontext.WithEntityID(ctx, entity.ID.String()), m.log)

	snap, err := m.revenue.Snapshot(ctx, entity, year)
	if err != nil {
		return domain.CheckResult{}, err
	}

	band := domain.ClassifyWithAttention(snap.Ratio, entity.AttentionEdge())
	result := domain.CheckResult{
		EntityID:     entity.ID,
		Year:         year,
		Ratio:        snap.Ratio,
		PreviousBand: domain.BandNormal,
		Band:         band,
	}

	prev, err := m.repo.FindObservation(ctx, m.db, entity.ID, year)
	if err != nil {
		return result, fmt.Errorf("find observation: %w", err)
	}
	if prev != nil {
		result.PreviousBand = domain.ParseBand(prev.Band)
	}

	if band > domain.BandNormal {
		crossed := band > result.PreviousBand
		ok, reason, err := m.dedup.Permit(ctx, entity.ID, band.Kind(), crossed)
		if err != nil {
			return result, fmt.Errorf("dedup: %w", err)
		}
		if ok {
			title, body := domain.Message(band, entity.LegalName, snap.TotalToDate, snap.Ceiling, snap.Ratio)
			_, err := m.sink.Emit(ctx, notificationdomain.Emission{
				EntityID:  entity.ID,
				Kind:      band.Kind(),
				Severity:  band.Severity(),
				Title:     title,
				Body:      body,
				Recipient: entity.Email,
				Metadata: map[string]any{
					"year":          year,
					"band":          band.String(),
					"previous_band": result.PreviousBand.String(),
					"ratio":         snap.Ratio,
					"total":         snap.TotalToDate.StringFixed(2),
					"ceiling":       snap.Ceiling.StringFixed(2),
				},
			})
			if err != nil {
				return result, fmt.Errorf("emit ceiling alert: %w: %w", notificationdomain.ErrEmitFailed, err)
			}
			result.Emitted = true
			log.Info("ceiling.notification.emitted",
				zap.String("band", band.String()),
				zap.String("previous_band", result.PreviousBand.String()),
				zap.Float64("ratio", snap.Ratio),
			)
		} else {
			result.SuppressedReason = reason
			log.Debug("ceiling.notification.suppressed",
				zap.String("band", band.String()),
				zap.String("reason", reason),
			)
		}
	}

	if err := m.repo.UpsertObservation(ctx, m.db, &domain.Observation{
		EntityID:   entity.ID,
		Year:       year,
		Ratio:      snap.Ratio,
		Band:       band.String(),
		ObservedAt: m.clock.Now(),
	}); err != nil {
		return result, fmt.Errorf("upsert observation: %w", err)
	}
	return result, nil
}
