package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/meiwatch/internal/ceiling/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindObservation(ctx context.Context, db *gorm.DB, entityID snowflake.ID, year int) (*domain.Observation, error) {
	var obs domain.Observation
	err := db.WithContext(ctx).Raw(
		`SELECT entity_id, year, ratio, band, observed_at
		 FROM ceiling_observations WHERE entity_id = ? AND year = ?`,
		entityID,
		year,
	).Scan(&obs).Error
	if err != nil {
		return nil, err
	}
	if obs.EntityID == 0 {
		return nil, nil
	}
	return &obs, nil
}

func (r *repo) UpsertObservation(ctx context.Context, db *gorm.DB, obs *domain.Observation) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entity_id"}, {Name: "year"}},
			DoUpdates: clause.AssignmentColumns([]string{"ratio", "band", "observed_at"}),
		}).
		Create(obs).Error
}
