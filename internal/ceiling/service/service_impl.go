package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/meiwatch/internal/ceiling/domain"
	entitydomain "github.com/smallbiznis/meiwatch/internal/entity/domain"
	"github.com/smallbiznis/meiwatch/internal/revenue"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Snapshotter is the aggregator surface the ceiling package reads.
type Snapshotter interface {
	Snapshot(ctx context.Context, entity entitydomain.Entity, year int) (revenue.Snapshot, error)
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Registry entitydomain.Registry
	Revenue  Snapshotter
}

type Service struct {
	log      *zap.Logger
	registry entitydomain.Registry
	revenue  Snapshotter
}

func NewService(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("ceiling.service"),
		registry: p.Registry,
		revenue:  p.Revenue,
	}
}

func (s *Service) Status(ctx context.Context, entityID snowflake.ID, year int) (domain.Status, error) {
	entity, err := s.registry.Get(ctx, entityID)
	if err != nil {
		return domain.Status{}, err
	}
	snap, err := s.revenue.Snapshot(ctx, entity, year)
	if err != nil {
		return domain.Status{}, err
	}
	return BuildStatus(snap, entity.AttentionEdge()), nil
}

// BuildStatus derives the ceiling picture from a snapshot. Remaining and
// excess are never negative.
func BuildStatus(snap revenue.Snapshot, attentionEdge float64) domain.Status {
	band := domain.ClassifyWithAttention(snap.Ratio, attentionEdge)

	remaining := snap.Ceiling.Sub(snap.TotalToDate)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	excess := snap.TotalToDate.Sub(snap.Ceiling)
	if excess.IsNegative() {
		excess = decimal.Zero
	}

	return domain.Status{
		EntityID:              snap.EntityID,
		Year:                  snap.Year,
		Ceiling:               snap.Ceiling,
		TotalRevenue:          snap.TotalToDate,
		Ratio:                 snap.Ratio,
		Band:                  band,
		BandName:              band.String(),
		Remaining:             remaining,
		Excess:                excess,
		DisqualificationLimit: snap.Ceiling.Mul(domain.DisqualificationFactor).Round(2),
	}
}

// yearIn returns the fiscal calendar year of now.
func yearIn(now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Year()
}
