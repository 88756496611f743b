// Package model defines the core domain types for the registration platform.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostType distinguishes free events from paid ones.
type CostType string

const (
	CostFree CostType = "free"
	CostPaid CostType = "paid"
)

// FeeMode controls how platform fees reach the public price of a tier.
// With pass-through pricing the public price is grossed up so the organizer
// nets their asking amount; with absorbed pricing the organizer publishes a
// flat price and the fees come out of it.
type FeeMode string

const (
	FeePassedThrough FeeMode = "passed"
	FeeAbsorbed      FeeMode = "absorbed"
)

// BibMode controls how bib numbers are handed out.
type BibMode string

const (
	BibAutomatic BibMode = "automatic"
	BibManual    BibMode = "manual"
)

// RegistrationStatus is the lifecycle state of a registration.
// The only permitted transition back is cancelled → confirmed, and only for
// the same (event, user) pair: re-registration reuses the cancelled row.
type RegistrationStatus string

const (
	StatusConfirmed RegistrationStatus = "confirmed"
	StatusCancelled RegistrationStatus = "cancelled"
)

// PaymentStatus tracks money, independently of the registration state.
type PaymentStatus string

const (
	PaymentPaid          PaymentStatus = "paid"
	PaymentPending       PaymentStatus = "pending"
	PaymentNotApplicable PaymentStatus = "not_applicable"
)

// PaymentMethod is the channel the money moved through.
type PaymentMethod string

const (
	// MethodPlatform means the platform's gateway collected the money.
	MethodPlatform PaymentMethod = "platform"
	// MethodManual means the organizer collected cash directly.
	MethodManual PaymentMethod = "manual"
)

// BibConfig is the per-event bib numbering policy.
type BibConfig struct {
	Enabled    bool    `json:"enabled"`
	Mode       BibMode `json:"mode"`
	NextNumber int     `json:"next_number"`
}

// Event represents a published event created by an organizer.
type Event struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Description         string     `json:"description"`
	CostType            CostType   `json:"cost_type"`
	FeeMode             FeeMode    `json:"fee_mode"`
	MaxParticipants     int        `json:"max_participants"` // 0 = unlimited
	CurrentParticipants int        `json:"current_participants"`
	Bib                 BibConfig  `json:"bib"`
	Tiers               []Tier     `json:"tiers,omitempty"`
	Categories          []Category `json:"categories,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// IsFull returns true when the event has a capacity limit and it is reached.
func (e *Event) IsFull() bool {
	return e.MaxParticipants > 0 && e.CurrentParticipants >= e.MaxParticipants
}

// Tier is a priced registration option with its own inventory.
type Tier struct {
	ID        string          `json:"id"`
	EventID   string          `json:"event_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`     // public charge
	Fee       decimal.Decimal `json:"fee"`       // platform + gateway portion
	NetPrice  decimal.Decimal `json:"net_price"` // due to the organizer
	Limit     int             `json:"limit"`     // 0 = unlimited
	SoldCount int             `json:"sold_count"`
}

// SoldOut returns true when the tier has an inventory limit and it is reached.
func (t *Tier) SoldOut() bool {
	return t.Limit > 0 && t.SoldCount >= t.Limit
}

// Category is a competitive category within an event (age group, discipline).
// Categories carry no inventory of their own.
type Category struct {
	ID      string `json:"id"`
	EventID string `json:"event_id"`
	Name    string `json:"name"`
}

// PricedSnapshot records the commercial terms at the moment a registration
// was committed. It is immutable: later tier edits never touch it. A nil
// *PricedSnapshot on a Registration means no charge (free event).
type PricedSnapshot struct {
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	PlatformFee   decimal.Decimal `json:"platform_fee"`
	OrganizerNet  decimal.Decimal `json:"organizer_net"`
	IsFeeAbsorbed bool            `json:"is_fee_absorbed"`
	CalculatedAt  time.Time       `json:"calculated_at"`
}

// Registration represents a user's registration for an event. At most one
// row exists per (event, user) pair; cancellation keeps the row so a later
// re-registration reuses its id.
type Registration struct {
	ID            string             `json:"id"`
	EventID       string             `json:"event_id"`
	UserID        string             `json:"user_id"`
	TierID        string             `json:"tier_id,omitempty"`
	CategoryID    string             `json:"category_id,omitempty"`
	Status        RegistrationStatus `json:"status"`
	PaymentStatus PaymentStatus      `json:"payment_status"`
	PaymentMethod PaymentMethod      `json:"payment_method,omitempty"`
	BibNumber     *int               `json:"bib_number,omitempty"`
	Snapshot      *PricedSnapshot    `json:"financial_snapshot,omitempty"`
	Extra         map[string]string  `json:"extra,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Payout is one recorded dispersal from the platform to an organizer.
// Append-only: payouts are never edited or deleted.
type Payout struct {
	ID             string          `json:"id"`
	EventID        string          `json:"event_id"`
	Amount         decimal.Decimal `json:"amount"`
	ProofReference string          `json:"proof_reference"`
	Notes          string          `json:"notes,omitempty"`
	PaidAt         time.Time       `json:"paid_at"`
	CreatedAt      time.Time       `json:"created_at"`
}

// TierMoney is the current money configuration of a tier, used only as the
// fallback when a registration predates financial snapshots.
type TierMoney struct {
	Price    decimal.Decimal `json:"price"`
	Fee      decimal.Decimal `json:"fee"`
	NetPrice decimal.Decimal `json:"net_price"`
}

// FinanceRow is one money-bearing registration as the aggregator consumes
// it: the recorded snapshot when present, the tier's current configuration
// otherwise.
type FinanceRow struct {
	Method       PaymentMethod   `json:"method"`
	Snapshot     *PricedSnapshot `json:"snapshot,omitempty"`
	TierFallback *TierMoney      `json:"tier_fallback,omitempty"`
}

// Resolve returns the (gross, fee, net) amounts for the row, preferring the
// immutable snapshot over the live tier configuration.
func (fr FinanceRow) Resolve() (gross, fee, net decimal.Decimal) {
	switch {
	case fr.Snapshot != nil:
		return fr.Snapshot.AmountPaid, fr.Snapshot.PlatformFee, fr.Snapshot.OrganizerNet
	case fr.TierFallback != nil:
		return fr.TierFallback.Price, fr.TierFallback.Fee, fr.TierFallback.NetPrice
	default:
		return decimal.Zero, decimal.Zero, decimal.Zero
	}
}

// ChannelTotals accumulates money collected through one payment channel.
type ChannelTotals struct {
	Count int             `json:"count"`
	Gross decimal.Decimal `json:"gross"`
	Fee   decimal.Decimal `json:"fee"`
	Net   decimal.Decimal `json:"net"`
}

// EventSummary is the per-event financial rollup produced by the aggregator.
type EventSummary struct {
	EventID           string          `json:"event_id"`
	Total             ChannelTotals   `json:"total"`
	Platform          ChannelTotals   `json:"platform"`
	Manual            ChannelTotals   `json:"manual"`
	BalanceToDisperse decimal.Decimal `json:"balance_to_disperse"`
	TotalDispersed    decimal.Decimal `json:"total_dispersed"`
}

// ─── Request payloads ────────────────────────────────────────────────────────

// CreateTierRequest describes one tier at event-creation time. Amount is the
// organizer's asking price: the target net for pass-through pricing, or the
// flat public price for absorbed pricing.
type CreateTierRequest struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
	Limit  int             `json:"limit"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Name            string              `json:"name"`
	Description     string              `json:"description"`
	CostType        CostType            `json:"cost_type"`
	FeeMode         FeeMode             `json:"fee_mode"`
	MaxParticipants int                 `json:"max_participants"`
	BibEnabled      bool                `json:"bib_enabled"`
	BibMode         BibMode             `json:"bib_mode"`
	BibStart        int                 `json:"bib_start"`
	Tiers           []CreateTierRequest `json:"tiers"`
	Categories      []string            `json:"categories"`
}

// RegisterRequest is the payload for registering a user for an event.
type RegisterRequest struct {
	UserID        string            `json:"user_id"`
	TierID        string            `json:"tier_id,omitempty"`
	CategoryID    string            `json:"category_id,omitempty"`
	PaymentMethod PaymentMethod     `json:"payment_method,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// CancelRequest is the payload for cancelling a user's registration.
type CancelRequest struct {
	UserID string `json:"user_id"`
}

// AppendPayoutRequest is the payload for recording a dispersal.
type AppendPayoutRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	ProofReference string          `json:"proof_reference"`
	Notes          string          `json:"notes"`
	PaidAt         time.Time       `json:"paid_at"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
