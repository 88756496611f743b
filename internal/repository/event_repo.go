package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/biciregistro/biciregistro-prod-sub000/internal/model"
)

// EventRepository handles persistence for events, tiers, and categories.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts an event together with its tiers and categories. The tier
// money columns (price/fee/net_price) arrive already computed by the caller.
func (r *EventRepository) Create(ctx context.Context, event *model.Event) (*model.Event, error) {
	event.ID = uuid.New().String()
	event.CreatedAt = time.Now().UTC()
	event.CurrentParticipants = 0
	if event.CostType == "" {
		event.CostType = model.CostFree
	}
	if event.FeeMode == "" {
		event.FeeMode = model.FeePassedThrough
	}
	if event.Bib.Mode == "" {
		event.Bib.Mode = model.BibAutomatic
	}
	if event.Bib.NextNumber <= 0 {
		event.Bib.NextNumber = 1
	}

	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO events (id, name, description, cost_type, fee_mode,
			                     max_participants, current_participants,
			                     bib_enabled, bib_mode, bib_next, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			event.ID, event.Name, event.Description, event.CostType, event.FeeMode,
			event.MaxParticipants, event.CurrentParticipants,
			event.Bib.Enabled, event.Bib.Mode, event.Bib.NextNumber, event.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}

		for i := range event.Tiers {
			tier := &event.Tiers[i]
			tier.ID = uuid.New().String()
			tier.EventID = event.ID
			tier.SoldCount = 0
			_, err := tx.Exec(ctx,
				`INSERT INTO tiers (id, event_id, name, price, fee, net_price, sold_limit, sold_count)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				tier.ID, tier.EventID, tier.Name, tier.Price, tier.Fee, tier.NetPrice, tier.Limit, tier.SoldCount,
			)
			if err != nil {
				return fmt.Errorf("insert tier: %w", err)
			}
		}

		for i := range event.Categories {
			cat := &event.Categories[i]
			cat.ID = uuid.New().String()
			cat.EventID = event.ID
			_, err := tx.Exec(ctx,
				`INSERT INTO categories (id, event_id, name) VALUES ($1, $2, $3)`,
				cat.ID, cat.EventID, cat.Name,
			)
			if err != nil {
				return fmt.Errorf("insert category: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// List returns all events ordered by creation time descending, without
// their tier and category children.
func (r *EventRepository) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, description, cost_type, fee_mode,
		        max_participants, current_participants,
		        bib_enabled, bib_mode, bib_next, created_at
		 FROM events
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := scanEvent(rows, &e); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetByID returns a single event with its tiers and categories, or
// ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event
	row := r.db.QueryRow(ctx,
		`SELECT id, name, description, cost_type, fee_mode,
		        max_participants, current_participants,
		        bib_enabled, bib_mode, bib_next, created_at
		 FROM events WHERE id = $1`,
		id,
	)
	if err := scanEvent(row, &e); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	tiers, err := r.tiersByEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Tiers = tiers

	cats, err := r.categoriesByEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Categories = cats

	return &e, nil
}

func scanEvent(row pgx.Row, e *model.Event) error {
	return row.Scan(
		&e.ID, &e.Name, &e.Description, &e.CostType, &e.FeeMode,
		&e.MaxParticipants, &e.CurrentParticipants,
		&e.Bib.Enabled, &e.Bib.Mode, &e.Bib.NextNumber, &e.CreatedAt,
	)
}

func (r *EventRepository) tiersByEvent(ctx context.Context, eventID string) ([]model.Tier, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, event_id, name, price, fee, net_price, sold_limit, sold_count
		 FROM tiers WHERE event_id = $1
		 ORDER BY price ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	defer rows.Close()

	var tiers []model.Tier
	for rows.Next() {
		var t model.Tier
		if err := rows.Scan(&t.ID, &t.EventID, &t.Name, &t.Price, &t.Fee, &t.NetPrice, &t.Limit, &t.SoldCount); err != nil {
			return nil, fmt.Errorf("scan tier: %w", err)
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

func (r *EventRepository) categoriesByEvent(ctx context.Context, eventID string) ([]model.Category, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, event_id, name
		 FROM categories WHERE event_id = $1
		 ORDER BY name ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.EventID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}
