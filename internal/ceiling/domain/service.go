package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	entitydomain "github.com/smallbiznis/meiwatch/internal/entity/domain"
)

type Service interface {
	// Status is always computed from the live ledger.
	Status(ctx context.Context, entityID snowflake.ID, year int) (Status, error)
}

// Monitor runs one ceiling check for an entity: aggregate, classify,
// detect a crossing, consult the deduplicator, emit and remember.
type Monitor interface {
	Check(ctx context.Context, entity entitydomain.Entity, now time.Time) (CheckResult, error)
}
