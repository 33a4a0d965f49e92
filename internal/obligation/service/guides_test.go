package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/meiwatch/internal/audit/domain"
	entitydomain "github.com/smallbiznis/meiwatch/internal/entity/domain"
	"github.com/smallbiznis/meiwatch/internal/obligation/domain"
	obscontext "github.com/smallbiznis/meiwatch/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureGuidesForYearIsIdempotent(t *testing.T) {
	f := newFixture(t, entitydomain.CategoryCommerceService)
	ctx := context.Background()

	created, err := f.svc.EnsureGuidesForYear(ctx, f.entity.ID, 2025)
	require.NoError(t, err)
	assert.Equal(t, 12, created)

	created, err = f.svc.EnsureGuidesForYear(ctx, f.entity.ID, 2025)
	require.NoError(t, err)
	assert.Zero(t, created)

	guides := f.guides(t)
	require.Len(t, guides, 12)
	for i, g := range guides {
		assert.Equal(t, i+1, g.Month)
		assert.Equal(t, domain.GuideStatusPending, g.Status)
		assert.Equal(t, 20, g.DueDate.Day())
		assert.True(t, g.Amount.Equal(decimal.RequireFromString("81.90")), g.Amount.String())
	}
}

func TestEnsureGuidesAmountPerCategory(t *testing.T) {
	cases := map[entitydomain.Category]string{
		entitydomain.CategoryCommerce: "76.90",
		entitydomain.CategoryService:  "80.90",
		entitydomain.CategoryTrucking: "187.16",
	}
	for category, want := range cases {
		t.Run(string(category), func(t *testing.T) {
			f := newFixture(t, category)
			_, err := f.svc.EnsureGuidesForYear(context.Background(), f.entity.ID, 2025)
			require.NoError(t, err)
			guides := f.guides(t)
			require.NotEmpty(t, guides)
			assert.True(t, guides[0].Amount.Equal(decimal.RequireFromString(want)), guides[0].Amount.String())
		})
	}
}

func TestEnsureGuidesRejectsBadInput(t *testing.T) {
	f := newFixture(t, entitydomain.CategoryCommerce)

	_, err := f.svc.EnsureGuidesForYear(context.Background(), f.entity.ID, 1999)
	assert.ErrorIs(t, err, domain.ErrInvalidYear)

	_, err = f.svc.EnsureGuidesForYear(context.Background(), 1, 2025)
	assert.ErrorIs(t, err, entitydomain.ErrEntityNotFound)
}

func TestSweepOverdueFlipsOnlyPending(t *testing.T) {
	f := newFixture(t, entitydomain.CategoryService)
	ctx := obscontext.WithActor(context.Background(), obscontext.ActorScheduler)

	_, err := f.svc.EnsureGuidesForYear(ctx, f.entity.ID, 2025)
	require.NoError(t, err)
	guides := f.guides(t)

	// February is paid before it falls due
	f.clock.Set(time.Date(2025, time.February, 10, 9, 0, 0, 0, time.UTC))
	_, err = f.svc.RegisterPayment(ctx, guides[1].ID, time.Time{})
	require.NoError(t, err)

	// on March 21 January and March are past due
	now := time.Date(2025, time.March, 21, 9, 0, 0, 0, time.UTC)
	f.clock.Set(now)
	flipped, err := f.svc.SweepOverdue(ctx, f.entity.ID, now)
	require.NoError(t, err)
	require.Len(t, flipped, 2)
	assert.Equal(t, 1, flipped[0].Month)
	assert.Equal(t, 3, flipped[1].Month)

	again, err := f.svc.SweepOverdue(ctx, f.entity.ID, now)
	require.NoError(t, err)
	assert.Empty(t, again)

	after := f.guides(t)
	assert.Equal(t, domain.GuideStatusOverdue, after[0].Status)
	assert.Equal(t, domain.GuideStatusPaid, after[1].Status)
	assert.Equal(t, domain.GuideStatusOverdue, after[2].Status)
	assert.Equal(t, domain.GuideStatusPending, after[3].Status)

	logs, err := f.audit.ListByTarget(ctx, f.entity.ID, string(domain.ObligationTypeGuide), strconv.FormatInt(int64(after[0].ID), 10))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, auditdomain.ActionGuideOverdue, logs[0].Action)
	assert.Equal(t, obscontext.ActorScheduler, logs[0].Actor)
}

func TestSweepOverdueOnDueDateKeepsGuidePending(t *testing.T) {
	f := newFixture(t, entitydomain.CategoryService)
	ctx := context.Background()
	_, err := f.svc.EnsureGuidesForYear(ctx, f.entity.ID, 2025)
	require.NoError(t, err)

	// the guide is still payable during its due day
	now := time.Date(2025, time.January, 20, 23, 0, 0, 0, time.UTC)
	flipped, err := f.svc.SweepOverdue(ctx, f.entity.ID, now)
	require.NoError(t, err)
	assert.Empty(t, flipped)

	flipped, err = f.svc.SweepOverdue(ctx, f.entity.ID, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Len(t, flipped, 1)
}

func TestSweepOverdueSkipsMonthsBeforeRegistration(t *testing.T) {
	f := newFixture(t, entitydomain.CategoryService)
	ctx := context.Background()

	registered := f.entity
	registered.CreatedAt = time.Date(2025, time.October, 14, 10, 0, 0, 0, time.UTC)
	f.svc.registry.(*fakeRegistry).entities[registered.ID] = registered

	_, err := f.svc.EnsureGuidesForYear(ctx, f.entity.ID, 2025)
	require.NoError(t, err)

	now := time.Date(2025, time.October, 14, 12, 0, 0, 0, time.UTC)
	flipped, err := f.svc.SweepOverdue(ctx, f.entity.ID, now)
	require.NoError(t, err)
	assert.Empty(t, flipped)

	// October is the first month the entity owes
	flipped, err = f.svc.SweepOverdue(ctx, f.entity.ID, time.Date(2025, time.October, 21, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, flipped, 1)
	assert.Equal(t, 10, flipped[0].Month)

	guides := f.guides(t)
	for _, g := range guides[:9] {
		assert.Equal(t, domain.GuideStatusPending, g.Status, "month %d", g.Month)
	}
}

func TestBeforeRegistration(t *testing.T) {
	registered := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)
	assert.True(t, domain.BeforeRegistration(domain.DASGuide{Year: 2025, Month: 2}, registered, time.UTC))
	assert.True(t, domain.BeforeRegistration(domain.DASGuide{Year: 2024, Month: 12}, registered, time.UTC))
	assert.False(t, domain.BeforeRegistration(domain.DASGuide{Year: 2025, Month: 3}, registered, time.UTC))
	assert.False(t, domain.BeforeRegistration(domain.DASGuide{Year: 2026, Month: 1}, registered, time.UTC))
	assert.False(t, domain.BeforeRegistration(domain.DASGuide{Year: 2025, Month: 1}, time.Time{}, time.UTC))
}

func TestDueSoonWindow(t *testing.T) {
	f := newFixture(t, entitydomain.CategoryService)
	ctx := context.Background()
	_, err := f.svc.EnsureGuidesForYear(ctx, f.entity.ID, 2025)
	require.NoError(t, err)

	window := 5 * 24 * time.Hour
	soon, err := f.svc.DueSoon(ctx, f.entity.ID, time.Date(2025, time.March, 15, 18, 0, 0, 0, time.UTC), window)
	require.NoError(t, err)
	require.Len(t, soon, 1)
	assert.Equal(t, 3, soon[0].Month)

	soon, err = f.svc.DueSoon(ctx, f.entity.ID, time.Date(2025, time.March, 14, 18, 0, 0, 0, time.UTC), window)
	require.NoError(t, err)
	assert.Empty(t, soon)

	soon, err = f.svc.DueSoon(ctx, f.entity.ID, time.Date(2025, time.March, 20, 18, 0, 0, 0, time.UTC), window)
	require.NoError(t, err)
	assert.Len(t, soon, 1, "due today still counts")
}

func TestRegisterPaymentTwiceIsNoop(t *testing.T) {
	f := newFixture(t, entitydomain.CategoryCommerce)
	ctx := context.Background()
	_, err := f.svc.EnsureGuidesForYear(ctx, f.entity.ID, 2025)
	require.NoError(t, err)
	guide := f.guides(t)[0]

	f.clock.Set(time.Date(2025, time.February, 1, 10, 0, 0, 0, time.UTC))
	paidAt := time.Date(2025, time.January, 18, 15, 0, 0, 0, time.UTC)
	first, err := f.svc.RegisterPayment(ctx, guide.ID, paidAt)
	require.NoError(t, err)
	assert.Equal(t, domain.GuideStatusPaid, first.Status)
	require.NotNil(t, first.PaidAt)
	assert.True(t, first.PaidAt.Equal(paidAt))

	f.clock.Advance(24 * time.Hour)
	second, err := f.svc.RegisterPayment(ctx, guide.ID, time.Time{})
	require.NoError(t, err)
	assert.True(t, second.PaidAt.Equal(paidAt))
	assert.True(t, second.UpdatedAt.Equal(first.UpdatedAt))

	logs, err := f.audit.ListByTarget(ctx, f.entity.ID, string(domain.ObligationTypeGuide), strconv.FormatInt(int64(guide.ID), 10))
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestRegisterPaymentOnOverdueGuide(t *testing.T) {
	f := newFixture(t, entitydomain.CategoryCommerce)
	ctx := context.Background()
	_, err := f.svc.EnsureGuidesForYear(ctx, f.entity.ID, 2025)
	require.NoError(t, err)

	now := time.Date(2025, time.February, 3, 8, 0, 0, 0, time.UTC)
	f.clock.Set(now)
	flipped, err := f.svc.SweepOverdue(ctx, f.entity.ID, now)
	require.NoError(t, err)
	require.Len(t, flipped, 1)

	paid, err := f.svc.RegisterPayment(ctx, flipped[0].ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, domain.GuideStatusPaid, paid.Status)
}

func TestRegisterPaymentErrors(t *testing.T) {
	f := newFixture(t, entitydomain.CategoryCommerce)
	ctx := context.Background()

	_, err := f.svc.RegisterPayment(ctx, 1234, time.Time{})
	assert.ErrorIs(t, err, domain.ErrGuideNotFound)

	_, err = f.svc.EnsureGuidesForYear(ctx, f.entity.ID, 2025)
	require.NoError(t, err)
	guide := f.guides(t)[0]
	_, err = f.svc.RegisterPayment(ctx, guide.ID, f.clock.Now().Add(48*time.Hour))
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentDate)
}
