package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/biciregistro/biciregistro-prod-sub000/internal/model"
)

// RegistrationRepository is the transactional engine for registrations.
//
// Every operation here follows the same discipline: all reads and writes for
// one request happen inside a single serializable transaction with FOR
// UPDATE row locks on the event (capacity + bib counter) and, when relevant,
// the tier (inventory). Two concurrent requests against the same
// capacity-constrained resource therefore cannot both observe room and both
// commit: the second blocks on the row lock and re-reads the committed
// counters. Nothing with effects outside the transaction (mail, push) may
// run in here, because the transaction body can be re-executed on conflict.
type RegistrationRepository struct {
	db *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// registrationPlan is the staged outcome of the pure admission decision:
// everything the transaction will write if it commits.
type registrationPlan struct {
	reuseID       string // non-empty: overwrite this cancelled row instead of inserting
	paymentStatus model.PaymentStatus
	bibNumber     *int
	bibNext       int // staged event bib counter
	snapshot      *model.PricedSnapshot
}

// stageRegistration applies the admission invariants to a consistent read of
// the event, the chosen tier (nil if none), and any existing registration
// row for the (event, user) pair. It performs no I/O so the rules can be
// tested without a database; the caller is responsible for having locked the
// rows it passes in.
func stageRegistration(event *model.Event, tier *model.Tier, existing *model.Registration, now time.Time) (*registrationPlan, error) {
	if event.IsFull() {
		return nil, ErrEventFull
	}

	plan := &registrationPlan{bibNext: event.Bib.NextNumber}

	if existing != nil {
		if existing.Status == model.StatusConfirmed {
			return nil, ErrAlreadyRegistered
		}
		// Cancelled → confirmed is the one permitted reuse: the row keeps
		// its id and the pair key stays unique.
		plan.reuseID = existing.ID
	}

	if tier != nil && tier.SoldOut() {
		return nil, ErrTierSoldOut
	}

	switch {
	case event.CostType == model.CostFree:
		plan.paymentStatus = model.PaymentNotApplicable
	case tier == nil || tier.Price.IsZero():
		plan.paymentStatus = model.PaymentPaid
	default:
		plan.paymentStatus = model.PaymentPending
	}

	if plan.paymentStatus != model.PaymentPending && event.Bib.Enabled && event.Bib.Mode == model.BibAutomatic {
		n := event.Bib.NextNumber
		plan.bibNumber = &n
		plan.bibNext = n + 1
	}

	if tier != nil && event.CostType == model.CostPaid {
		plan.snapshot = &model.PricedSnapshot{
			AmountPaid:    tier.Price,
			PlatformFee:   tier.Fee,
			OrganizerNet:  tier.NetPrice,
			IsFeeAbsorbed: event.FeeMode == model.FeeAbsorbed,
			CalculatedAt:  now,
		}
	}

	return plan, nil
}

// Register atomically admits a user to an event. It either commits the
// registration row, the tier inventory bump, the capacity bump, and the bib
// counter bump together, or none of them.
func (r *RegistrationRepository) Register(ctx context.Context, eventID string, req model.RegisterRequest) (*model.Registration, error) {
	var reg *model.Registration

	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		now := time.Now().UTC()

		event, err := lockEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}

		existing, err := lockRegistration(ctx, tx, eventID, req.UserID)
		if err != nil {
			return err
		}

		var tier *model.Tier
		if req.TierID != "" {
			tier, err = lockTier(ctx, tx, eventID, req.TierID)
			if err != nil {
				return err
			}
		}

		if req.CategoryID != "" {
			if err := checkCategory(ctx, tx, eventID, req.CategoryID); err != nil {
				return err
			}
		}

		plan, err := stageRegistration(event, tier, existing, now)
		if err != nil {
			return err
		}

		reg = &model.Registration{
			ID:            plan.reuseID,
			EventID:       eventID,
			UserID:        req.UserID,
			TierID:        req.TierID,
			CategoryID:    req.CategoryID,
			Status:        model.StatusConfirmed,
			PaymentStatus: plan.paymentStatus,
			BibNumber:     plan.bibNumber,
			Snapshot:      plan.snapshot,
			Extra:         req.Extra,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if plan.paymentStatus != model.PaymentNotApplicable {
			reg.PaymentMethod = req.PaymentMethod
		}

		if plan.reuseID != "" {
			if err := overwriteRegistration(ctx, tx, reg); err != nil {
				return err
			}
		} else {
			reg.ID = uuid.New().String()
			if err := insertRegistration(ctx, tx, reg); err != nil {
				return err
			}
		}

		if tier != nil {
			if _, err := tx.Exec(ctx,
				`UPDATE tiers SET sold_count = sold_count + 1 WHERE id = $1`,
				tier.ID,
			); err != nil {
				return fmt.Errorf("increment sold_count: %w", err)
			}
		}

		if _, err := tx.Exec(ctx,
			`UPDATE events
			 SET current_participants = current_participants + 1, bib_next = $2
			 WHERE id = $1`,
			eventID, plan.bibNext,
		); err != nil {
			return fmt.Errorf("increment participants: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// Cancel releases a user's confirmed registration: the row flips to
// cancelled (keeping its id for later reuse), the event capacity and tier
// inventory are released. The bib number stays on the row; bib numbers are
// never returned to the pool.
func (r *RegistrationRepository) Cancel(ctx context.Context, eventID, userID string) (*model.Registration, error) {
	var reg *model.Registration

	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := lockEvent(ctx, tx, eventID); err != nil {
			return err
		}

		existing, err := lockRegistration(ctx, tx, eventID, userID)
		if err != nil {
			return err
		}
		if existing == nil || existing.Status != model.StatusConfirmed {
			return ErrNotFound
		}

		now := time.Now().UTC()
		if _, err := tx.Exec(ctx,
			`UPDATE registrations SET status = $2, updated_at = $3 WHERE id = $1`,
			existing.ID, model.StatusCancelled, now,
		); err != nil {
			return fmt.Errorf("cancel registration: %w", err)
		}

		if existing.TierID != "" {
			if _, err := tx.Exec(ctx,
				`UPDATE tiers SET sold_count = sold_count - 1 WHERE id = $1 AND sold_count > 0`,
				existing.TierID,
			); err != nil {
				return fmt.Errorf("release tier inventory: %w", err)
			}
		}

		if _, err := tx.Exec(ctx,
			`UPDATE events
			 SET current_participants = current_participants - 1
			 WHERE id = $1 AND current_participants > 0`,
			eventID,
		); err != nil {
			return fmt.Errorf("release capacity: %w", err)
		}

		existing.Status = model.StatusCancelled
		existing.UpdatedAt = now
		reg = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// ConfirmPayment marks a pending registration as paid and performs the
// deferred automatic bib allocation under the event row lock. Confirming an
// already-paid registration is a no-op, so gateway callbacks can be
// delivered more than once.
func (r *RegistrationRepository) ConfirmPayment(ctx context.Context, registrationID string) (*model.Registration, error) {
	var reg *model.Registration

	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		existing, err := lockRegistrationByID(ctx, tx, registrationID)
		if err != nil {
			return err
		}
		if existing.Status != model.StatusConfirmed {
			return ErrNotFound
		}
		if existing.PaymentStatus == model.PaymentPaid || existing.PaymentStatus == model.PaymentNotApplicable {
			reg = existing
			return nil
		}

		event, err := lockEvent(ctx, tx, existing.EventID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		existing.PaymentStatus = model.PaymentPaid
		existing.UpdatedAt = now

		if existing.BibNumber == nil && event.Bib.Enabled && event.Bib.Mode == model.BibAutomatic {
			n := event.Bib.NextNumber
			existing.BibNumber = &n
			if _, err := tx.Exec(ctx,
				`UPDATE events SET bib_next = $2 WHERE id = $1`,
				event.ID, n+1,
			); err != nil {
				return fmt.Errorf("advance bib counter: %w", err)
			}
		}

		if _, err := tx.Exec(ctx,
			`UPDATE registrations
			 SET payment_status = $2, bib_number = $3, updated_at = $4
			 WHERE id = $1`,
			existing.ID, existing.PaymentStatus, existing.BibNumber, now,
		); err != nil {
			return fmt.Errorf("confirm payment: %w", err)
		}

		reg = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// ListByEvent returns all registrations for an event, oldest first.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	rows, err := r.db.Query(ctx,
		registrationColumns+`
		 FROM registrations
		 WHERE event_id = $1
		 ORDER BY created_at ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

// FinanceRows returns the resolved money rows the aggregator consumes:
// confirmed, paid registrations with their snapshot, falling back to the
// tier's current configuration for legacy rows without one.
func (r *RegistrationRepository) FinanceRows(ctx context.Context, eventID string) ([]model.FinanceRow, error) {
	rows, err := r.db.Query(ctx,
		`SELECT r.payment_method,
		        r.amount_paid, r.platform_fee, r.organizer_net,
		        t.price, t.fee, t.net_price
		 FROM registrations r
		 LEFT JOIN tiers t ON t.id = r.tier_id
		 WHERE r.event_id = $1
		   AND r.status = 'confirmed'
		   AND r.payment_status = 'paid'`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("query finance rows: %w", err)
	}
	defer rows.Close()

	var out []model.FinanceRow
	for rows.Next() {
		var (
			method                      *string
			amountPaid, platformFee     decimal.NullDecimal
			organizerNet                decimal.NullDecimal
			tierPrice, tierFee, tierNet decimal.NullDecimal
		)
		if err := rows.Scan(&method, &amountPaid, &platformFee, &organizerNet, &tierPrice, &tierFee, &tierNet); err != nil {
			return nil, fmt.Errorf("scan finance row: %w", err)
		}

		fr := model.FinanceRow{}
		if method != nil {
			fr.Method = model.PaymentMethod(*method)
		}
		if amountPaid.Valid {
			fr.Snapshot = &model.PricedSnapshot{
				AmountPaid:   amountPaid.Decimal,
				PlatformFee:  platformFee.Decimal,
				OrganizerNet: organizerNet.Decimal,
			}
		} else if tierPrice.Valid {
			fr.TierFallback = &model.TierMoney{
				Price:    tierPrice.Decimal,
				Fee:      tierFee.Decimal,
				NetPrice: tierNet.Decimal,
			}
		}
		out = append(out, fr)
	}
	return out, rows.Err()
}

// ─── Row locking and scanning helpers ────────────────────────────────────────

func lockEvent(ctx context.Context, tx pgx.Tx, eventID string) (*model.Event, error) {
	var e model.Event
	err := tx.QueryRow(ctx,
		`SELECT id, name, description, cost_type, fee_mode,
		        max_participants, current_participants,
		        bib_enabled, bib_mode, bib_next, created_at
		 FROM events WHERE id = $1
		 FOR UPDATE`,
		eventID,
	).Scan(
		&e.ID, &e.Name, &e.Description, &e.CostType, &e.FeeMode,
		&e.MaxParticipants, &e.CurrentParticipants,
		&e.Bib.Enabled, &e.Bib.Mode, &e.Bib.NextNumber, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock event row: %w", err)
	}
	return &e, nil
}

func lockTier(ctx context.Context, tx pgx.Tx, eventID, tierID string) (*model.Tier, error) {
	var t model.Tier
	err := tx.QueryRow(ctx,
		`SELECT id, event_id, name, price, fee, net_price, sold_limit, sold_count
		 FROM tiers WHERE id = $1 AND event_id = $2
		 FOR UPDATE`,
		tierID, eventID,
	).Scan(&t.ID, &t.EventID, &t.Name, &t.Price, &t.Fee, &t.NetPrice, &t.Limit, &t.SoldCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock tier row: %w", err)
	}
	return &t, nil
}

func checkCategory(ctx context.Context, tx pgx.Tx, eventID, categoryID string) error {
	var one int
	err := tx.QueryRow(ctx,
		`SELECT 1 FROM categories WHERE id = $1 AND event_id = $2`,
		categoryID, eventID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check category: %w", err)
	}
	return nil
}

const registrationColumns = `SELECT id, event_id, user_id, tier_id, category_id,
	status, payment_status, payment_method, bib_number,
	amount_paid, platform_fee, organizer_net, fee_absorbed, snapshot_at,
	extra, created_at, updated_at`

// lockRegistration loads the (event, user) row under FOR UPDATE, or nil when
// the pair has never registered.
func lockRegistration(ctx context.Context, tx pgx.Tx, eventID, userID string) (*model.Registration, error) {
	row := tx.QueryRow(ctx,
		registrationColumns+`
		 FROM registrations
		 WHERE event_id = $1 AND user_id = $2
		 FOR UPDATE`,
		eventID, userID,
	)
	reg, err := scanRegistration(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock registration row: %w", err)
	}
	return reg, nil
}

func lockRegistrationByID(ctx context.Context, tx pgx.Tx, id string) (*model.Registration, error) {
	row := tx.QueryRow(ctx,
		registrationColumns+`
		 FROM registrations
		 WHERE id = $1
		 FOR UPDATE`,
		id,
	)
	reg, err := scanRegistration(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock registration row: %w", err)
	}
	return reg, nil
}

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var (
		reg                     model.Registration
		tierID, categoryID      *string
		method                  *string
		amountPaid, platformFee decimal.NullDecimal
		organizerNet            decimal.NullDecimal
		feeAbsorbed             *bool
		snapshotAt              *time.Time
	)
	err := row.Scan(
		&reg.ID, &reg.EventID, &reg.UserID, &tierID, &categoryID,
		&reg.Status, &reg.PaymentStatus, &method, &reg.BibNumber,
		&amountPaid, &platformFee, &organizerNet, &feeAbsorbed, &snapshotAt,
		&reg.Extra, &reg.CreatedAt, &reg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if tierID != nil {
		reg.TierID = *tierID
	}
	if categoryID != nil {
		reg.CategoryID = *categoryID
	}
	if method != nil {
		reg.PaymentMethod = model.PaymentMethod(*method)
	}
	if amountPaid.Valid {
		snap := &model.PricedSnapshot{
			AmountPaid:   amountPaid.Decimal,
			PlatformFee:  platformFee.Decimal,
			OrganizerNet: organizerNet.Decimal,
		}
		if feeAbsorbed != nil {
			snap.IsFeeAbsorbed = *feeAbsorbed
		}
		if snapshotAt != nil {
			snap.CalculatedAt = *snapshotAt
		}
		reg.Snapshot = snap
	}
	return &reg, nil
}

func insertRegistration(ctx context.Context, tx pgx.Tx, reg *model.Registration) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO registrations
		   (id, event_id, user_id, tier_id, category_id,
		    status, payment_status, payment_method, bib_number,
		    amount_paid, platform_fee, organizer_net, fee_absorbed, snapshot_at,
		    extra, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		registrationArgs(reg)...,
	)
	if err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

// overwriteRegistration reuses a cancelled row in place: same id, fresh
// everything else, including a fresh financial snapshot.
func overwriteRegistration(ctx context.Context, tx pgx.Tx, reg *model.Registration) error {
	_, err := tx.Exec(ctx,
		`UPDATE registrations SET
		    event_id = $2, user_id = $3, tier_id = $4, category_id = $5,
		    status = $6, payment_status = $7, payment_method = $8, bib_number = $9,
		    amount_paid = $10, platform_fee = $11, organizer_net = $12,
		    fee_absorbed = $13, snapshot_at = $14,
		    extra = $15, created_at = $16, updated_at = $17
		 WHERE id = $1`,
		registrationArgs(reg)...,
	)
	if err != nil {
		return fmt.Errorf("reuse cancelled registration: %w", err)
	}
	return nil
}

func registrationArgs(reg *model.Registration) []any {
	var (
		tierID, categoryID, method *string
		amountPaid, platformFee    *decimal.Decimal
		organizerNet               *decimal.Decimal
		feeAbsorbed                *bool
		snapshotAt                 *time.Time
	)
	if reg.TierID != "" {
		tierID = &reg.TierID
	}
	if reg.CategoryID != "" {
		categoryID = &reg.CategoryID
	}
	if reg.PaymentMethod != "" {
		m := string(reg.PaymentMethod)
		method = &m
	}
	if snap := reg.Snapshot; snap != nil {
		amountPaid = &snap.AmountPaid
		platformFee = &snap.PlatformFee
		organizerNet = &snap.OrganizerNet
		feeAbsorbed = &snap.IsFeeAbsorbed
		snapshotAt = &snap.CalculatedAt
	}
	extra := reg.Extra
	if extra == nil {
		extra = map[string]string{}
	}
	return []any{
		reg.ID, reg.EventID, reg.UserID, tierID, categoryID,
		reg.Status, reg.PaymentStatus, method, reg.BibNumber,
		amountPaid, platformFee, organizerNet, feeAbsorbed, snapshotAt,
		extra, reg.CreatedAt, reg.UpdatedAt,
	}
}
