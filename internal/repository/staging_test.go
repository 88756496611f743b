package repository

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biciregistro/biciregistro-prod-sub000/internal/model"
)

func paidEvent() *model.Event {
	return &model.Event{
		ID:              "ev-1",
		CostType:        model.CostPaid,
		FeeMode:         model.FeePassedThrough,
		MaxParticipants: 100,
		Bib: model.BibConfig{
			Enabled:    true,
			Mode:       model.BibAutomatic,
			NextNumber: 42,
		},
	}
}

func roadTier() *model.Tier {
	return &model.Tier{
		ID:       "tier-1",
		EventID:  "ev-1",
		Name:     "Ruta 100km",
		Price:    decimal.NewFromInt(600),
		Fee:      decimal.NewFromInt(47),
		NetPrice: decimal.NewFromInt(553),
		Limit:    50,
	}
}

func TestStageRegistration_CapacityExceeded(t *testing.T) {
	event := paidEvent()
	event.MaxParticipants = 10
	event.CurrentParticipants = 10

	_, err := stageRegistration(event, nil, nil, time.Now())
	assert.ErrorIs(t, err, ErrEventFull)
}

func TestStageRegistration_UnlimitedCapacity(t *testing.T) {
	event := paidEvent()
	event.MaxParticipants = 0 // unlimited
	event.CurrentParticipants = 1_000_000

	_, err := stageRegistration(event, nil, nil, time.Now())
	require.NoError(t, err)
}

func TestStageRegistration_DuplicateConfirmed(t *testing.T) {
	existing := &model.Registration{ID: "reg-1", Status: model.StatusConfirmed}

	_, err := stageRegistration(paidEvent(), roadTier(), existing, time.Now())
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestStageRegistration_CancelledRowIsReused(t *testing.T) {
	existing := &model.Registration{ID: "reg-1", Status: model.StatusCancelled}

	plan, err := stageRegistration(paidEvent(), roadTier(), existing, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "reg-1", plan.reuseID)
}

func TestStageRegistration_TierSoldOut(t *testing.T) {
	tier := roadTier()
	tier.Limit = 5
	tier.SoldCount = 5

	_, err := stageRegistration(paidEvent(), tier, nil, time.Now())
	assert.ErrorIs(t, err, ErrTierSoldOut)
}

func TestStageRegistration_TierUnlimited(t *testing.T) {
	tier := roadTier()
	tier.Limit = 0
	tier.SoldCount = 9999

	plan, err := stageRegistration(paidEvent(), tier, nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, plan.paymentStatus)
}

func TestStageRegistration_PaymentStatusResolution(t *testing.T) {
	now := time.Now()

	t.Run("free event", func(t *testing.T) {
		event := paidEvent()
		event.CostType = model.CostFree
		plan, err := stageRegistration(event, nil, nil, now)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentNotApplicable, plan.paymentStatus)
	})

	t.Run("paid event without tier", func(t *testing.T) {
		plan, err := stageRegistration(paidEvent(), nil, nil, now)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentPaid, plan.paymentStatus)
	})

	t.Run("zero-price tier", func(t *testing.T) {
		tier := roadTier()
		tier.Price = decimal.Zero
		plan, err := stageRegistration(paidEvent(), tier, nil, now)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentPaid, plan.paymentStatus)
	})

	t.Run("priced tier", func(t *testing.T) {
		plan, err := stageRegistration(paidEvent(), roadTier(), nil, now)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentPending, plan.paymentStatus)
	})
}

func TestStageRegistration_BibAllocation(t *testing.T) {
	now := time.Now()

	t.Run("allocated when settled and automatic", func(t *testing.T) {
		event := paidEvent()
		event.CostType = model.CostFree
		plan, err := stageRegistration(event, nil, nil, now)
		require.NoError(t, err)
		require.NotNil(t, plan.bibNumber)
		assert.Equal(t, 42, *plan.bibNumber)
		assert.Equal(t, 43, plan.bibNext)
	})

	t.Run("deferred while payment pending", func(t *testing.T) {
		plan, err := stageRegistration(paidEvent(), roadTier(), nil, now)
		require.NoError(t, err)
		assert.Nil(t, plan.bibNumber)
		assert.Equal(t, 42, plan.bibNext)
	})

	t.Run("skipped when disabled", func(t *testing.T) {
		event := paidEvent()
		event.CostType = model.CostFree
		event.Bib.Enabled = false
		plan, err := stageRegistration(event, nil, nil, now)
		require.NoError(t, err)
		assert.Nil(t, plan.bibNumber)
	})

	t.Run("skipped in manual mode", func(t *testing.T) {
		event := paidEvent()
		event.CostType = model.CostFree
		event.Bib.Mode = model.BibManual
		plan, err := stageRegistration(event, nil, nil, now)
		require.NoError(t, err)
		assert.Nil(t, plan.bibNumber)
	})
}

func TestStageRegistration_SnapshotFromTier(t *testing.T) {
	now := time.Now()
	tier := roadTier()

	plan, err := stageRegistration(paidEvent(), tier, nil, now)
	require.NoError(t, err)

	require.NotNil(t, plan.snapshot)
	assert.True(t, plan.snapshot.AmountPaid.Equal(tier.Price))
	assert.True(t, plan.snapshot.PlatformFee.Equal(tier.Fee))
	assert.True(t, plan.snapshot.OrganizerNet.Equal(tier.NetPrice))
	assert.False(t, plan.snapshot.IsFeeAbsorbed)
	assert.Equal(t, now, plan.snapshot.CalculatedAt)
}

func TestStageRegistration_SnapshotMarksAbsorbedFees(t *testing.T) {
	event := paidEvent()
	event.FeeMode = model.FeeAbsorbed

	plan, err := stageRegistration(event, roadTier(), nil, time.Now())
	require.NoError(t, err)
	require.NotNil(t, plan.snapshot)
	assert.True(t, plan.snapshot.IsFeeAbsorbed)
}

func TestStageRegistration_NoSnapshotForFreeEvent(t *testing.T) {
	event := paidEvent()
	event.CostType = model.CostFree

	plan, err := stageRegistration(event, nil, nil, time.Now())
	require.NoError(t, err)
	assert.Nil(t, plan.snapshot)
}
