package quotation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the quotation does not exist.
	ErrNotFound = errors.New("quotation: not found")
	// ErrForbidden signals the caller may not act on the quotation.
	ErrForbidden = errors.New("quotation: forbidden")
	// ErrBadStatus signals the quotation was already decided.
	ErrBadStatus = errors.New("quotation: already decided")
)

const quotationColumns = `
    id, chatroom_id, sender_id, product, amount, timeline, note, status::text, created_at, updated_at`

// Repository handles data access for quotations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert creates a pending quotation. The INSERT..SELECT matches only when
// the sender is a member of the chatroom.
func (r *Repository) Insert(ctx context.Context, params CreateParams) (Record, error) {
	const insertSQL = `
INSERT INTO quotations (chatroom_id, sender_id, product, amount, timeline, note)
SELECT id, $2, $3, $4, $5, $6
FROM chatrooms
WHERE id = $1 AND (brand_id = $2 OR creator_id = $2)
RETURNING` + quotationColumns

	rec, err := scanQuotation(r.pool.QueryRow(ctx, insertSQL,
		params.ChatroomID,
		params.SenderID,
		params.Product,
		params.Amount,
		params.Timeline,
		params.Note,
	))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("quotation: insert: %w", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM chatrooms WHERE id = $1)`, params.ChatroomID).Scan(&exists); err != nil {
		return Record{}, fmt.Errorf("quotation: insert fetch: %w", err)
	}
	if !exists {
		return Record{}, ErrNotFound
	}
	return Record{}, ErrForbidden
}

// GetByID fetches a quotation by its primary key.
func (r *Repository) GetByID(ctx context.Context, quotationID string) (Record, error) {
	const selectSQL = `SELECT` + quotationColumns + ` FROM quotations WHERE id = $1`

	rec, err := scanQuotation(r.pool.QueryRow(ctx, selectSQL, quotationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("quotation: get by id: %w", err)
	}
	return rec, nil
}

// ListByChatroom returns the chatroom's quotations, newest first.
func (r *Repository) ListByChatroom(ctx context.Context, chatroomID string) ([]Record, error) {
	const query = `SELECT` + quotationColumns + `
FROM quotations
WHERE chatroom_id = $1
ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, chatroomID)
	if err != nil {
		return nil, fmt.Errorf("quotation: list: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanQuotation(rows)
		if err != nil {
			return nil, fmt.Errorf("quotation: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("quotation: iterate: %w", err)
	}
	return out, nil
}

// LockedQuotation bundles a row-locked quotation with its chatroom parties.
type LockedQuotation struct {
	Record    Record
	BrandID   string
	CreatorID string
}

// LockForDecision loads the quotation FOR UPDATE together with the room's
// parties so the surrounding transaction serialises competing decisions.
func (r *Repository) LockForDecision(ctx context.Context, tx pgx.Tx, quotationID string) (LockedQuotation, error) {
	const lockSQL = `
SELECT q.id, q.chatroom_id, q.sender_id, q.product, q.amount, q.timeline, q.note, q.status::text,
       q.created_at, q.updated_at, c.brand_id, c.creator_id
FROM quotations q
JOIN chatrooms c ON c.id = q.chatroom_id
WHERE q.id = $1
FOR UPDATE OF q`

	var locked LockedQuotation
	err := tx.QueryRow(ctx, lockSQL, quotationID).Scan(
		&locked.Record.ID,
		&locked.Record.ChatroomID,
		&locked.Record.SenderID,
		&locked.Record.Product,
		&locked.Record.Amount,
		&locked.Record.Timeline,
		&locked.Record.Note,
		&locked.Record.Status,
		&locked.Record.CreatedAt,
		&locked.Record.UpdatedAt,
		&locked.BrandID,
		&locked.CreatorID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LockedQuotation{}, ErrNotFound
		}
		return LockedQuotation{}, fmt.Errorf("quotation: lock: %w", err)
	}
	return locked, nil
}

// MarkDecided flips a pending quotation to the given terminal status inside
// the caller's transaction.
func (r *Repository) MarkDecided(ctx context.Context, tx pgx.Tx, quotationID string, status Status) (Record, error) {
	const updateSQL = `
UPDATE quotations
SET status = $2::quotation_status,
    updated_at = get_tx_timestamp()
WHERE id = $1 AND status = 'pending'
RETURNING` + quotationColumns

	rec, err := scanQuotation(tx.QueryRow(ctx, updateSQL, quotationID, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrBadStatus
		}
		return Record{}, fmt.Errorf("quotation: mark %s: %w", status, err)
	}
	return rec, nil
}

func scanQuotation(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.ChatroomID,
		&rec.SenderID,
		&rec.Product,
		&rec.Amount,
		&rec.Timeline,
		&rec.Note,
		&rec.Status,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}
