// Package fees implements the pricing algebra that converts between the
// amount an organizer wants to net and the public charge a participant pays.
// All functions are pure: the caller supplies the rate settings in effect at
// computation time and past snapshots are never recomputed.
package fees

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrRateConfig is returned when the configured rates are so high that no
// positive public price can cover them (gross-up denominator ≤ 0).
var ErrRateConfig = errors.New("fee rates leave no positive gross-up denominator")

// Settings is the platform-wide rate snapshot. Rates are percentages
// (3.5 means 3.5%); PasarelaFixed is a flat gateway fee per charge.
type Settings struct {
	CommissionRate decimal.Decimal `json:"commission_rate"`
	PasarelaRate   decimal.Decimal `json:"pasarela_rate"`
	PasarelaFixed  decimal.Decimal `json:"pasarela_fixed"`
	IVARate        decimal.Decimal `json:"iva_rate"`
}

// Breakdown splits a public charge into its fee and organizer-net portions.
type Breakdown struct {
	Fee decimal.Decimal `json:"fee"`
	Net decimal.Decimal `json:"net"`
}

var hundred = decimal.NewFromInt(100)

// GrossUp solves for the public charge such that, after commission, gateway
// percentage + fixed fee, and tax are deducted, the organizer nets exactly
// net. The result is rounded up to the next whole currency unit so the
// organizer never nets less than requested.
func GrossUp(net decimal.Decimal, s Settings) (decimal.Decimal, error) {
	c := s.CommissionRate.Div(hundred)
	g := s.PasarelaRate.Div(hundred)
	taxed := decimal.NewFromInt(1).Add(s.IVARate.Div(hundred))

	denom := decimal.NewFromInt(1).Sub(g.Mul(taxed))
	if denom.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrRateConfig
	}

	numer := net.
		Add(net.Mul(c).Mul(taxed)).
		Add(s.PasarelaFixed.Mul(taxed))

	return numer.Div(denom).Ceil(), nil
}

// AbsorbedFee is the inverse direction: the organizer publishes a flat
// public price and the fees come out of it. Non-positive totals, or totals
// too small to cover the fees, yield a zero breakdown.
func AbsorbedFee(total decimal.Decimal, s Settings) Breakdown {
	if total.LessThanOrEqual(decimal.Zero) {
		return Breakdown{Fee: decimal.Zero, Net: decimal.Zero}
	}

	c := s.CommissionRate.Div(hundred)
	g := s.PasarelaRate.Div(hundred)
	taxed := decimal.NewFromInt(1).Add(s.IVARate.Div(hundred))

	commission := total.Mul(c).Mul(taxed)
	gateway := total.Mul(g).Mul(taxed).Add(s.PasarelaFixed.Mul(taxed))

	fee := commission.Add(gateway)
	net := total.Sub(fee)
	if net.LessThanOrEqual(decimal.Zero) {
		return Breakdown{Fee: decimal.Zero, Net: decimal.Zero}
	}

	return Breakdown{Fee: fee, Net: net}
}
