// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
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

// EventService orchestrates event, registration, and payout operations.
type EventService struct {
	events        *repository.EventRepository
	registrations *repository.RegistrationRepository
	payouts       *repository.PayoutRepository
	settings      fees.Settings
}

// NewEventService constructs an EventService with its dependencies. The fee
// settings are the platform-wide snapshot in effect for new computations;
// committed registrations keep their own.
func NewEventService(
	events *repository.EventRepository,
	registrations *repository.RegistrationRepository,
	payouts *repository.PayoutRepository,
	settings fees.Settings,
) *EventService {
	return &EventService{
		events:        events,
		registrations: registrations,
		payouts:       payouts,
		settings:      settings,
	}
}

// CreateEvent validates the request, prices the tiers through the fee
// algebra, and delegates to the repository.
func (s *EventService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, fmt.Errorf("event name is required")
	}
	if req.MaxParticipants < 0 {
		return nil, fmt.Errorf("max_participants cannot be negative")
	}
	if req.MaxParticipants > 100_000 {
		return nil, fmt.Errorf("max_participants cannot exceed 100,000")
	}

	if req.CostType == "" {
		req.CostType = model.CostFree
	}
	if req.CostType != model.CostFree && req.CostType != model.CostPaid {
		return nil, fmt.Errorf("cost_type must be %q or %q", model.CostFree, model.CostPaid)
	}
	if req.FeeMode == "" {
		req.FeeMode = model.FeePassedThrough
	}
	if req.FeeMode != model.FeePassedThrough && req.FeeMode != model.FeeAbsorbed {
		return nil, fmt.Errorf("fee_mode must be %q or %q", model.FeePassedThrough, model.FeeAbsorbed)
	}

	if req.CostType == model.CostPaid && len(req.Tiers) == 0 {
		return nil, fmt.Errorf("a paid event needs at least one tier")
	}
	if req.CostType == model.CostFree && len(req.Tiers) > 0 {
		return nil, fmt.Errorf("a free event cannot have priced tiers")
	}

	if req.BibMode == "" {
		req.BibMode = model.BibAutomatic
	}
	if req.BibMode != model.BibAutomatic && req.BibMode != model.BibManual {
		return nil, fmt.Errorf("bib_mode must be %q or %q", model.BibAutomatic, model.BibManual)
	}
	if req.BibStart <= 0 {
		req.BibStart = 1
	}

	tiers, err := s.priceTiers(req.FeeMode, req.Tiers)
	if err != nil {
		return nil, err
	}

	event := &model.Event{
		Name:            req.Name,
		Description:     strings.TrimSpace(req.Description),
		CostType:        req.CostType,
		FeeMode:         req.FeeMode,
		MaxParticipants: req.MaxParticipants,
		Bib: model.BibConfig{
			Enabled:    req.BibEnabled,
			Mode:       req.BibMode,
			NextNumber: req.BibStart,
		},
		Tiers: tiers,
	}
	for _, name := range req.Categories {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("category name cannot be empty")
		}
		event.Categories = append(event.Categories, model.Category{Name: name})
	}

	return s.events.Create(ctx, event)
}

// priceTiers turns the organizer's asking amounts into the stored
// price/fee/net triple. Pass-through pricing grosses the target net up;
// absorbed pricing splits the flat public price.
func (s *EventService) priceTiers(mode model.FeeMode, reqs []model.CreateTierRequest) ([]model.Tier, error) {
	var tiers []model.Tier
	for _, tr := range reqs {
		tr.Name = strings.TrimSpace(tr.Name)
		if tr.Name == "" {
			return nil, fmt.Errorf("tier name is required")
		}
		if tr.Amount.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("tier %q: amount must be positive", tr.Name)
		}
		if tr.Limit < 0 {
			return nil, fmt.Errorf("tier %q: limit cannot be negative", tr.Name)
		}

		tier := model.Tier{Name: tr.Name, Limit: tr.Limit}
		switch mode {
		case model.FeeAbsorbed:
			b := fees.AbsorbedFee(tr.Amount, s.settings)
			if b.Net.IsZero() {
				return nil, fmt.Errorf("tier %q: price %s does not cover the fees", tr.Name, tr.Amount)
			}
			tier.Price = tr.Amount
			tier.Fee = b.Fee
			tier.NetPrice = b.Net
		default:
			gross, err := fees.GrossUp(tr.Amount, s.settings)
			if err != nil {
				return nil, fmt.Errorf("tier %q: %w", tr.Name, err)
			}
			tier.Price = gross
			tier.Fee = gross.Sub(tr.Amount)
			tier.NetPrice = tr.Amount
		}
		tiers = append(tiers, tier)
	}
	return tiers, nil
}

// ListEvents returns all events.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.events.List(ctx)
}

// GetEvent returns a single event with its tiers and categories.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if id == "" {
		return nil, fmt.Errorf("event id is required")
	}
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// Register validates the request and delegates the atomic admission to the
// transactional repository. Notification of the participant happens outside
// this path, from the committed registration.
func (s *EventService) Register(ctx context.Context, eventID string, req model.RegisterRequest) (*model.Registration, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event id is required")
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	switch req.PaymentMethod {
	case "", model.MethodPlatform, model.MethodManual:
	default:
		return nil, fmt.Errorf("payment_method must be %q or %q", model.MethodPlatform, model.MethodManual)
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = model.MethodPlatform
	}

	reg, err := s.registrations.Register(ctx, eventID, req)
	if err != nil {
		monitoring.TrackRegistration(eventID, registrationOutcome(err))
		// Surface domain errors directly so handlers can set correct HTTP
		// status; anything else from the store is a transient failure the
		// caller may retry.
		if isDomainErr(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: register for event: %v", repository.ErrStoreConflict, err)
	}
	monitoring.TrackRegistration(eventID, "success")
	return reg, nil
}

// Cancel releases a user's confirmed registration.
func (s *EventService) Cancel(ctx context.Context, eventID, userID string) (*model.Registration, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event id is required")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	reg, err := s.registrations.Cancel(ctx, eventID, userID)
	if err != nil {
		if isDomainErr(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: cancel registration: %v", repository.ErrStoreConflict, err)
	}
	monitoring.TrackCancellation(eventID)
	return reg, nil
}

// ConfirmPayment marks a pending registration as paid. It serves both the
// organizer's manual (cash) confirmation and the gateway collaborator's
// callback; repeated confirmations are no-ops.
func (s *EventService) ConfirmPayment(ctx context.Context, registrationID string) (*model.Registration, error) {
	if registrationID == "" {
		return nil, fmt.Errorf("registration id is required")
	}
	reg, err := s.registrations.ConfirmPayment(ctx, registrationID)
	if err != nil {
		if isDomainErr(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: confirm payment: %v", repository.ErrStoreConflict, err)
	}
	return reg, nil
}

// ListRegistrations returns all registrations for an event.
func (s *EventService) ListRegistrations(ctx context.Context, eventID string) ([]model.Registration, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, repository.ErrNotFound
	}
	return s.registrations.ListByEvent(ctx, eventID)
}

func isDomainErr(err error) bool {
	return errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, repository.ErrEventFull) ||
		errors.Is(err, repository.ErrTierSoldOut) ||
		errors.Is(err, repository.ErrAlreadyRegistered) ||
		errors.Is(err, repository.ErrStoreConflict)
}

func registrationOutcome(err error) string {
	switch {
	case errors.Is(err, repository.ErrEventFull):
		return "capacity_exceeded"
	case errors.Is(err, repository.ErrTierSoldOut):
		return "tier_sold_out"
	case errors.Is(err, repository.ErrAlreadyRegistered):
		return "duplicate"
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	case errors.Is(err, repository.ErrStoreConflict):
		return "store_conflict"
	default:
		return "error"
	}
}
