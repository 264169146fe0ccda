package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/JustinTDCT/StoryDraw/internal/lottery"
)

// Entry is the audit row for a credited lottery entry. Contact details are
// delivered to the sheet endpoint and never stored here.
type Entry struct {
	ID          uuid.UUID `json:"id"`
	VisitorID   string    `json:"visitor_id"`
	DrawLabel   string    `json:"draw_label"`
	RedeemCount int       `json:"redeem_count"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type RedemptionRepository struct {
	db *sql.DB
}

func NewRedemptionRepository(db *sql.DB) *RedemptionRepository {
	return &RedemptionRepository{db: db}
}

// Count returns the visitor's redemption count, 0 when none is recorded.
func (r *RedemptionRepository) Count(ctx context.Context, visitorID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT redeem_count FROM redemptions WHERE visitor_id = $1`, visitorID,
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

// Increment adds one redemption if the stored count is still from and
// returns the new count. A moved count yields lottery.ErrRedeemCountChanged.
func (r *RedemptionRepository) Increment(ctx context.Context, visitorID string, from int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO redemptions (visitor_id, redeem_count, updated_at)
		SELECT $1, 1, NOW() WHERE $2::int = 0
		ON CONFLICT (visitor_id)
		DO UPDATE SET redeem_count = redemptions.redeem_count + 1, updated_at = NOW()
		WHERE redemptions.redeem_count = $2::int
		RETURNING redeem_count`, visitorID, from,
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, lottery.ErrRedeemCountChanged
	}
	return n, err
}

func (r *RedemptionRepository) RecordEntry(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lottery_entries (id, visitor_id, draw_label, redeem_count, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`,
		e.ID, e.VisitorID, e.DrawLabel, e.RedeemCount, e.SubmittedAt)
	return err
}

// ListEntries returns the newest entries, optionally for one drawing.
func (r *RedemptionRepository) ListEntries(ctx context.Context, drawLabel string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, visitor_id, draw_label, redeem_count, submitted_at
		FROM lottery_entries
		WHERE ($1 = '' OR draw_label = $1)
		ORDER BY submitted_at DESC LIMIT $2`, drawLabel, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.VisitorID, &e.DrawLabel, &e.RedeemCount, &e.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *RedemptionRepository) CountEntries(ctx context.Context, drawLabel string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM lottery_entries WHERE ($1 = '' OR draw_label = $1)`, drawLabel,
	).Scan(&n)
	return n, err
}
