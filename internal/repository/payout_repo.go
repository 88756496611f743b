package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/biciregistro/biciregistro-prod-sub000/internal/model"
)

// PayoutRepository handles the append-only dispersal ledger. Payouts are
// never updated or deleted.
type PayoutRepository struct {
	db *pgxpool.Pool
}

// NewPayoutRepository constructs a PayoutRepository.
func NewPayoutRepository(db *pgxpool.Pool) *PayoutRepository {
	return &PayoutRepository{db: db}
}

// Append records one dispersal against an event and returns it with a
// generated id.
func (r *PayoutRepository) Append(ctx context.Context, eventID string, req model.AppendPayoutRequest) (*model.Payout, error) {
	paidAt := req.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}

	payout := &model.Payout{
		ID:             uuid.New().String(),
		EventID:        eventID,
		Amount:         req.Amount,
		ProofReference: req.ProofReference,
		Notes:          req.Notes,
		PaidAt:         paidAt,
		CreatedAt:      time.Now().UTC(),
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO payouts (id, event_id, amount, proof_reference, notes, paid_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		payout.ID, payout.EventID, payout.Amount, payout.ProofReference,
		payout.Notes, payout.PaidAt, payout.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert payout: %w", err)
	}
	return payout, nil
}

// ListByEvent returns all payouts for an event, most recent first.
func (r *PayoutRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Payout, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, event_id, amount, proof_reference, notes, paid_at, created_at
		 FROM payouts
		 WHERE event_id = $1
		 ORDER BY paid_at DESC, created_at DESC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()

	var payouts []model.Payout
	for rows.Next() {
		var p model.Payout
		if err := rows.Scan(&p.ID, &p.EventID, &p.Amount, &p.ProofReference, &p.Notes, &p.PaidAt, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payout: %w", err)
		}
		payouts = append(payouts, p)
	}
	return payouts, rows.Err()
}

// SumByEvent returns the total amount already dispersed for an event.
func (r *PayoutRepository) SumByEvent(ctx context.Context, eventID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payouts WHERE event_id = $1`,
		eventID,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum payouts: %w", err)
	}
	return total, nil
}
