package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biciregistro/biciregistro-prod-sub000/internal/model"
)

func snapRow(method model.PaymentMethod, gross, fee int64) model.FinanceRow {
	g := decimal.NewFromInt(gross)
	f := decimal.NewFromInt(fee)
	return model.FinanceRow{
		Method: method,
		Snapshot: &model.PricedSnapshot{
			AmountPaid:   g,
			PlatformFee:  f,
			OrganizerNet: g.Sub(f),
		},
	}
}

func TestBuildSummary_ChannelsAndBalance(t *testing.T) {
	rows := []model.FinanceRow{
		snapRow(model.MethodPlatform, 100, 10),
		snapRow(model.MethodPlatform, 200, 20),
		snapRow(model.MethodPlatform, 300, 30),
		snapRow(model.MethodManual, 50, 5),
	}

	s := BuildSummary("ev-1", rows, decimal.Zero)

	assert.Equal(t, 3, s.Platform.Count)
	assert.True(t, s.Platform.Gross.Equal(decimal.NewFromInt(600)), "platform gross: %s", s.Platform.Gross)
	assert.True(t, s.Platform.Fee.Equal(decimal.NewFromInt(60)))

	assert.Equal(t, 1, s.Manual.Count)
	assert.True(t, s.Manual.Gross.Equal(decimal.NewFromInt(50)))
	assert.True(t, s.Manual.Fee.Equal(decimal.NewFromInt(5)))

	assert.Equal(t, 4, s.Total.Count)
	assert.True(t, s.Total.Gross.Equal(decimal.NewFromInt(650)))
	assert.True(t, s.Total.Fee.Equal(decimal.NewFromInt(65)))

	// (600 − 60) − 5: platform money held net of its cost, minus the
	// commission owed on cash sales the organizer collected directly.
	assert.True(t, s.BalanceToDisperse.Equal(decimal.NewFromInt(535)),
		"balance: %s", s.BalanceToDisperse)
}

func TestBuildSummary_Empty(t *testing.T) {
	s := BuildSummary("ev-1", nil, decimal.Zero)

	assert.Equal(t, 0, s.Total.Count)
	assert.True(t, s.BalanceToDisperse.IsZero())
	assert.True(t, s.TotalDispersed.IsZero())
}

func TestBuildSummary_TierFallbackForLegacyRows(t *testing.T) {
	rows := []model.FinanceRow{
		{
			Method: model.MethodPlatform,
			TierFallback: &model.TierMoney{
				Price:    decimal.NewFromInt(120),
				Fee:      decimal.NewFromInt(12),
				NetPrice: decimal.NewFromInt(108),
			},
		},
	}

	s := BuildSummary("ev-1", rows, decimal.Zero)

	assert.True(t, s.Platform.Gross.Equal(decimal.NewFromInt(120)))
	assert.True(t, s.Platform.Fee.Equal(decimal.NewFromInt(12)))
	assert.True(t, s.BalanceToDisperse.Equal(decimal.NewFromInt(108)))
}

func TestBuildSummary_SnapshotWinsOverTier(t *testing.T) {
	row := snapRow(model.MethodPlatform, 100, 10)
	// A later tier edit must not change what was charged.
	row.TierFallback = &model.TierMoney{
		Price: decimal.NewFromInt(999),
		Fee:   decimal.NewFromInt(99),
	}

	s := BuildSummary("ev-1", []model.FinanceRow{row}, decimal.Zero)
	assert.True(t, s.Platform.Gross.Equal(decimal.NewFromInt(100)))
}

func TestBuildSummary_DispersedDoesNotReduceBalance(t *testing.T) {
	rows := []model.FinanceRow{snapRow(model.MethodPlatform, 100, 10)}

	s := BuildSummary("ev-1", rows, decimal.NewFromInt(40))

	assert.True(t, s.BalanceToDisperse.Equal(decimal.NewFromInt(90)))
	assert.True(t, s.TotalDispersed.Equal(decimal.NewFromInt(40)))
}

func TestBuildSummary_RowsWithoutMoneyCountAsZero(t *testing.T) {
	rows := []model.FinanceRow{{Method: model.MethodPlatform}}

	s := BuildSummary("ev-1", rows, decimal.Zero)
	require.Equal(t, 1, s.Platform.Count)
	assert.True(t, s.Platform.Gross.IsZero())
}
