package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biciregistro/biciregistro-prod-sub000/internal/fees"
	"github.com/biciregistro/biciregistro-prod-sub000/internal/model"
)

func testService() *EventService {
	// Repositories stay nil: these tests only cover paths that must fail
	// validation (or stay pure) before any persistence is touched.
	return NewEventService(nil, nil, nil, fees.Settings{
		CommissionRate: decimal.NewFromFloat(3.5),
		PasarelaRate:   decimal.NewFromFloat(3.5),
		PasarelaFixed:  decimal.NewFromFloat(4.50),
		IVARate:        decimal.NewFromFloat(16),
	})
}

func TestCreateEvent_Validation(t *testing.T) {
	svc := testService()
	ctx := context.Background()

	cases := []struct {
		name string
		req  model.CreateEventRequest
	}{
		{"empty name", model.CreateEventRequest{}},
		{"negative capacity", model.CreateEventRequest{Name: "x", MaxParticipants: -1}},
		{"absurd capacity", model.CreateEventRequest{Name: "x", MaxParticipants: 200_000}},
		{"bad cost type", model.CreateEventRequest{Name: "x", CostType: "donation"}},
		{"bad fee mode", model.CreateEventRequest{Name: "x", FeeMode: "split"}},
		{"paid without tiers", model.CreateEventRequest{Name: "x", CostType: model.CostPaid}},
		{"free with tiers", model.CreateEventRequest{
			Name: "x", CostType: model.CostFree,
			Tiers: []model.CreateTierRequest{{Name: "t", Amount: decimal.NewFromInt(10)}},
		}},
		{"bad bib mode", model.CreateEventRequest{Name: "x", BibMode: "random"}},
		{"tier without name", model.CreateEventRequest{
			Name: "x", CostType: model.CostPaid,
			Tiers: []model.CreateTierRequest{{Amount: decimal.NewFromInt(10)}},
		}},
		{"tier with zero amount", model.CreateEventRequest{
			Name: "x", CostType: model.CostPaid,
			Tiers: []model.CreateTierRequest{{Name: "t"}},
		}},
		{"tier with negative limit", model.CreateEventRequest{
			Name: "x", CostType: model.CostPaid,
			Tiers: []model.CreateTierRequest{{Name: "t", Amount: decimal.NewFromInt(10), Limit: -1}},
		}},
		{"empty category name", model.CreateEventRequest{Name: "x", Categories: []string{" "}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateEvent(ctx, tc.req)
			assert.Error(t, err)
		})
	}
}

func TestCreateEvent_AbsorbedPriceBelowFees(t *testing.T) {
	svc := testService()

	_, err := svc.CreateEvent(context.Background(), model.CreateEventRequest{
		Name:     "Rodada",
		CostType: model.CostPaid,
		FeeMode:  model.FeeAbsorbed,
		// 3 pesos cannot cover the 4.50 fixed gateway fee.
		Tiers: []model.CreateTierRequest{{Name: "General", Amount: decimal.NewFromInt(3)}},
	})
	assert.Error(t, err)
}

func TestRegister_Validation(t *testing.T) {
	svc := testService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "", model.RegisterRequest{UserID: "u"})
	assert.Error(t, err)

	_, err = svc.Register(ctx, "ev-1", model.RegisterRequest{UserID: "  "})
	assert.Error(t, err)

	_, err = svc.Register(ctx, "ev-1", model.RegisterRequest{UserID: "u", PaymentMethod: "bitcoin"})
	assert.Error(t, err)
}

func TestCancel_Validation(t *testing.T) {
	svc := testService()
	ctx := context.Background()

	_, err := svc.Cancel(ctx, "", "u")
	assert.Error(t, err)

	_, err = svc.Cancel(ctx, "ev-1", "")
	assert.Error(t, err)
}

func TestAppendPayout_Validation(t *testing.T) {
	svc := testService()
	ctx := context.Background()

	_, err := svc.AppendPayout(ctx, "ev-1", model.AppendPayoutRequest{
		Amount: decimal.Zero, ProofReference: "transfer-123",
	})
	assert.Error(t, err)

	_, err = svc.AppendPayout(ctx, "ev-1", model.AppendPayoutRequest{
		Amount: decimal.NewFromInt(100),
	})
	assert.Error(t, err)
}

func TestQuoteGrossUp(t *testing.T) {
	svc := testService()

	quote, err := svc.QuoteGrossUp(decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.True(t, quote.Gross.Equal(decimal.NewFromInt(114)), "gross: %s", quote.Gross)
	assert.True(t, quote.Net.Equal(decimal.NewFromInt(100)))
	assert.True(t, quote.Fee.Equal(decimal.NewFromInt(14)))

	_, err = svc.QuoteGrossUp(decimal.Zero)
	assert.Error(t, err)
}

func TestQuoteAbsorbed(t *testing.T) {
	svc := testService()

	quote, err := svc.QuoteAbsorbed(decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.True(t, quote.Gross.Equal(decimal.NewFromInt(500)))
	assert.True(t, quote.Fee.Add(quote.Net).Equal(decimal.NewFromInt(500)))

	_, err = svc.QuoteAbsorbed(decimal.NewFromInt(-1))
	assert.Error(t, err)
}
