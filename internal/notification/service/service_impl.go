package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/meiwatch/internal/clock"
	"github.com/smallbiznis/meiwatch/internal/notification/domain"
	"github.com/smallbiznis/meiwatch/internal/observability/logger"
	"github.com/smallbiznis/meiwatch/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Clock    clock.Clock
	Metrics  *metrics.Metrics `optional:"true"`
	Channels []domain.Channel `group:"notification_channels"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	clock    clock.Clock
	metrics  *metrics.Metrics
	channels []domain.Channel
}

func New(p Params) domain.Service {
	channels := make([]domain.Channel, 0, len(p.Channels))
	for _, ch := range p.Channels {
		if ch != nil {
			channels = append(channels, ch)
		}
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("notification.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		clock:    p.Clock,
		metrics:  p.Metrics,
		channels: channels,
	}
}

// Emit persists the notification, then hands it to every channel. Channel
// failures are logged and never undo the stored notification.
func (s *Service) Emit(ctx context.Context, e domain.Emission) (*domain.Notification, error) {
	kind := strings.TrimSpace(e.Kind)
	title := strings.TrimSpace(e.Title)
	if e.EntityID == 0 || kind == "" || title == "" {
		return nil, domain.ErrInvalidEmission
	}
	severity := e.Severity
	if severity == "" {
		severity = domain.SeverityNormal
	}

	metadata := datatypes.JSONMap{}
	for key, value := range e.Metadata {
		if key == "" {
			continue
		}
		metadata[key] = value
	}

	n := domain.Notification{
		ID:        s.genID.Generate(),
		EntityID:  e.EntityID,
		Kind:      kind,
		Severity:  severity,
		Title:     title,
		Body:      strings.TrimSpace(e.Body),
		Metadata:  metadata,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, &n); err != nil {
		return nil, err
	}

	s.metrics.RecordNotificationEmitted(ctx, kind, string(severity))
	log := logger.WithContext(ctx, s.log)
	log.Info("notification.emitted",
		zap.String("notification_id", n.ID.String()),
		zap.String("entity_id", n.EntityID.String()),
		zap.String("kind", kind),
		zap.String("severity", string(severity)),
	)

	recipient := strings.TrimSpace(e.Recipient)
	if recipient == "" {
		return &n, nil
	}
	for _, ch := range s.channels {
		if err := ch.Deliver(ctx, n, recipient); err != nil {
			s.metrics.RecordChannelFailure(ctx, ch.Name())
			log.Warn("notification.channel.failed",
				zap.String("notification_id", n.ID.String()),
				zap.String("channel", ch.Name()),
				zap.Error(err),
			)
		}
	}
	return &n, nil
}

func (s *Service) List(ctx context.Context, entityID snowflake.ID, unreadOnly bool) ([]domain.Notification, error) {
	return s.repo.List(ctx, s.db, entityID, unreadOnly)
}

// MarkRead is idempotent: marking a read notification returns it unchanged.
func (s *Service) MarkRead(ctx context.Context, id snowflake.ID) (domain.Notification, error) {
	if _, err := s.repo.MarkRead(ctx, s.db, id, s.clock.Now()); err != nil {
		return domain.Notification{}, err
	}
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Notification{}, err
	}
	if item == nil {
		return domain.Notification{}, domain.ErrNotificationNotFound
	}
	return *item, nil
}
