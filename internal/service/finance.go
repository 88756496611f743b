package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/biciregistro/biciregistro-prod-sub000/internal/fees"
	"github.com/biciregistro/biciregistro-prod-sub000/internal/model"
	"github.com/biciregistro/biciregistro-prod-sub000/internal/monitoring"
	"github.com/biciregistro/biciregistro-prod-sub000/internal/repository"
)

// BuildSummary accumulates resolved finance rows into per-channel buckets.
//
// balance_to_disperse = (platform.gross − platform.fee) − manual.fee:
// platform-channel money is held by the operator net of its processing
// cost, and the commission on cash sales the organizer collected directly
// still has to be settled out of that held balance. Recorded payouts do not
// reduce the figure; they are reported separately as total_dispersed.
func BuildSummary(eventID string, rows []model.FinanceRow, dispersed decimal.Decimal) model.EventSummary {
	summary := model.EventSummary{
		EventID:        eventID,
		TotalDispersed: dispersed,
	}

	for _, row := range rows {
		gross, fee, net := row.Resolve()

		bucket := &summary.Platform
		if row.Method == model.MethodManual {
			bucket = &summary.Manual
		}
		bucket.Count++
		bucket.Gross = bucket.Gross.Add(gross)
		bucket.Fee = bucket.Fee.Add(fee)
		bucket.Net = bucket.Net.Add(net)

		summary.Total.Count++
		summary.Total.Gross = summary.Total.Gross.Add(gross)
		summary.Total.Fee = summary.Total.Fee.Add(fee)
		summary.Total.Net = summary.Total.Net.Add(net)
	}

	summary.BalanceToDisperse = summary.Platform.Gross.
		Sub(summary.Platform.Fee).
		Sub(summary.Manual.Fee)

	return summary
}

// SummarizeEvent scans the committed registrations of an event and produces
// its financial rollup. It runs outside any registration transaction.
func (s *EventService) SummarizeEvent(ctx context.Context, eventID string) (*model.EventSummary, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event id is required")
	}
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("summarize event: %w", err)
	}

	rows, err := s.registrations.FinanceRows(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("summarize event: %w", err)
	}
	dispersed, err := s.payouts.SumByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("summarize event: %w", err)
	}

	summary := BuildSummary(eventID, rows, dispersed)
	return &summary, nil
}

// AppendPayout records one dispersal to the organizer. Pure append: the
// derived balance is not decremented here.
func (s *EventService) AppendPayout(ctx context.Context, eventID string, req model.AppendPayoutRequest) (*model.Payout, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event id is required")
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount must be positive")
	}
	req.ProofReference = strings.TrimSpace(req.ProofReference)
	if req.ProofReference == "" {
		return nil, fmt.Errorf("proof_reference is required")
	}

	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("append payout: %w", err)
	}

	payout, err := s.payouts.Append(ctx, eventID, req)
	if err != nil {
		return nil, fmt.Errorf("append payout: %w", err)
	}
	monitoring.TrackPayout(eventID)
	return payout, nil
}

// ListPayouts returns the dispersal history of an event.
func (s *EventService) ListPayouts(ctx context.Context, eventID string) ([]model.Payout, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, repository.ErrNotFound
	}
	return s.payouts.ListByEvent(ctx, eventID)
}

// FeeQuote exposes the pure fee algebra with the configured settings
// snapshot: gross-up when a target net is given, absorption when a flat
// total is given.
type FeeQuote struct {
	Gross decimal.Decimal `json:"gross"`
	Fee   decimal.Decimal `json:"fee"`
	Net   decimal.Decimal `json:"net"`
}

// QuoteGrossUp computes the public charge needed to net the given amount.
func (s *EventService) QuoteGrossUp(net decimal.Decimal) (*FeeQuote, error) {
	if net.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("net must be positive")
	}
	gross, err := fees.GrossUp(net, s.settings)
	if err != nil {
		return nil, err
	}
	return &FeeQuote{Gross: gross, Fee: gross.Sub(net), Net: net}, nil
}

// QuoteAbsorbed splits a flat public price into fee and organizer net.
func (s *EventService) QuoteAbsorbed(total decimal.Decimal) (*FeeQuote, error) {
	if total.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("total must be positive")
	}
	b := fees.AbsorbedFee(total, s.settings)
	return &FeeQuote{Gross: total, Fee: b.Fee, Net: b.Net}, nil
}
