package contract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no contract row exists for the identifier.
	ErrNotFound = errors.New("contract: not found")
	// ErrAlreadySigned is returned when the role's signature slot is already
	// occupied. Signatures are write-once; the losing side of a concurrent
	// duplicate-sign race lands here too.
	ErrAlreadySigned = errors.New("contract: already signed for this role")
	// ErrDuplicateTerms signals an identical (parties, terms) tuple already
	// has a contract. The integrity hash column is unique.
	ErrDuplicateTerms = errors.New("contract: identical terms already contracted")
	// ErrDuplicateIdempotencyKey signals the idempotency insert hit an existing key.
	ErrDuplicateIdempotencyKey = errors.New("contract: duplicate idempotency key")
	// ErrIdempotencyKeyReuse signals a key replayed against a different
	// contract or role than the one it was reserved for.
	ErrIdempotencyKeyReuse = errors.New("contract: idempotency key bound to a different signing request")
)

const contractColumns = `
    id, chatroom_id, brand_id, creator_id, product, rate, timeline, status::text,
    brand_signature, creator_signature, brand_signed_at, creator_signed_at,
    integrity_hash, created_at, updated_at`

// Repository handles data access for contracts. Write methods take the
// caller's transaction so events and outbox rows commit atomically with the
// contract mutation.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertParams contains the write parameters for a new contract row.
type InsertParams struct {
	ChatroomID    string
	BrandID       string
	CreatorID     string
	Product       string
	Rate          float64
	Timeline      string
	IntegrityHash string
}

// Insert creates a contract in the pending state with both signature slots empty.
func (r *Repository) Insert(ctx context.Context, tx pgx.Tx, params InsertParams) (Contract, error) {
	const insertSQL = `
INSERT INTO contracts (chatroom_id, brand_id, creator_id, product, rate, timeline, integrity_hash, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending')
RETURNING` + contractColumns

	rec, err := scanContract(tx.QueryRow(ctx, insertSQL,
		params.ChatroomID,
		params.BrandID,
		params.CreatorID,
		params.Product,
		params.Rate,
		params.Timeline,
		params.IntegrityHash,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Contract{}, ErrDuplicateTerms
		}
		return Contract{}, fmt.Errorf("contract: insert: %w", err)
	}

	return rec, nil
}

// Per-role signing statements. The WHERE <signature> IS NULL predicate makes
// the first-signature transition atomic: a concurrent duplicate signer
// matches zero rows instead of silently overwriting the earlier write, and a
// fully signed contract (both columns populated) can never match either
// statement again.
const signAsBrandSQL = `
UPDATE contracts
SET brand_signature = $2,
    brand_signed_at = get_tx_timestamp(),
    status = CASE WHEN creator_signature IS NULL
                  THEN 'partially_signed' ELSE 'fully_signed' END::contract_status,
    updated_at = get_tx_timestamp()
WHERE id = $1
  AND brand_signature IS NULL
RETURNING` + contractColumns

const signAsCreatorSQL = `
UPDATE contracts
SET creator_signature = $2,
    creator_signed_at = get_tx_timestamp(),
    status = CASE WHEN brand_signature IS NULL
                  THEN 'partially_signed' ELSE 'fully_signed' END::contract_status,
    updated_at = get_tx_timestamp()
WHERE id = $1
  AND creator_signature IS NULL
RETURNING` + contractColumns

// ApplySignature writes the role's signature and signed-at timestamp exactly
// once and recomputes the derived status in the same statement. Zero matched
// rows are disambiguated with a follow-up read: ErrNotFound for an unknown
// contract, ErrAlreadySigned when the slot is occupied.
func (r *Repository) ApplySignature(ctx context.Context, tx pgx.Tx, contractID string, role Role, signature string) (Contract, error) {
	var updateSQL string
	switch role {
	case RoleBrand:
		updateSQL = signAsBrandSQL
	case RoleCreator:
		updateSQL = signAsCreatorSQL
	default:
		return Contract{}, fmt.Errorf("contract: unknown role %q", role)
	}

	rec, err := scanContract(tx.QueryRow(ctx, updateSQL, contractID, signature))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Contract{}, fmt.Errorf("contract: apply %s signature: %w", role, err)
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM contracts WHERE id = $1)`, contractID).Scan(&exists); err != nil {
		return Contract{}, fmt.Errorf("contract: apply signature fetch: %w", err)
	}
	if !exists {
		return Contract{}, ErrNotFound
	}
	return Contract{}, ErrAlreadySigned
}

// GetByID fetches a contract by its primary key.
func (r *Repository) GetByID(ctx context.Context, contractID string) (Contract, error) {
	const selectSQL = `SELECT` + contractColumns + ` FROM contracts WHERE id = $1`

	rec, err := scanContract(r.pool.QueryRow(ctx, selectSQL, contractID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contract{}, ErrNotFound
		}
		return Contract{}, fmt.Errorf("contract: get by id: %w", err)
	}

	return rec, nil
}

// ListByChatroom returns the chatroom's contracts, newest first.
func (r *Repository) ListByChatroom(ctx context.Context, chatroomID string) ([]Contract, error) {
	const query = `SELECT` + contractColumns + `
FROM contracts
WHERE chatroom_id = $1
ORDER BY created_at DESC`

	return r.list(ctx, query, chatroomID)
}

// ListForUser returns every contract the user participates in, as either party.
func (r *Repository) ListForUser(ctx context.Context, userID string) ([]Contract, error) {
	const query = `SELECT` + contractColumns + `
FROM contracts
WHERE brand_id = $1 OR creator_id = $1
ORDER BY created_at DESC`

	return r.list(ctx, query, userID)
}

func (r *Repository) list(ctx context.Context, query string, arg any) ([]Contract, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("contract: list: %w", err)
	}
	defer rows.Close()

	out := []Contract{}
	for rows.Next() {
		rec, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("contract: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("contract: iterate: %w", err)
	}
	return out, nil
}

// AppendEvent records an immutable business event for the contract inside the
// caller's transaction.
func (r *Repository) AppendEvent(ctx context.Context, tx pgx.Tx, contractID, eventType, actorID string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("contract: marshal event payload: %w", err)
	}

	var actor any
	if actorID != "" {
		actor = actorID
	}

	const insertSQL = `
INSERT INTO contract_events (contract_id, type, payload, actor_id)
VALUES ($1, $2::contract_event_type, $3::jsonb, $4::uuid)`

	if _, err := tx.Exec(ctx, insertSQL, contractID, eventType, body, actor); err != nil {
		return fmt.Errorf("contract: insert event: %w", err)
	}
	return nil
}

// EnqueueOutbox writes an outbox message inside the caller's transaction.
func (r *Repository) EnqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("contract: marshal outbox payload: %w", err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO outbox (topic, payload) VALUES ($1, $2::jsonb)`, topic, body); err != nil {
		return fmt.Errorf("contract: enqueue outbox: %w", err)
	}
	return nil
}

// InsertIdempotencyKey attempts to reserve the idempotency key for one
// contract/role signing request inside the active transaction.
func (r *Repository) InsertIdempotencyKey(ctx context.Context, tx pgx.Tx, key, contractID string, role Role) error {
	if key == "" {
		return fmt.Errorf("contract: empty idempotency key")
	}

	const insertSQL = `INSERT INTO idempotency (key, contract_id, role) VALUES ($1, $2, $3)`
	if _, err := tx.Exec(ctx, insertSQL, key, contractID, string(role)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("contract: insert idempotency key: %w", err)
	}

	return nil
}

// LookupIdempotencyKey returns the contract and role a reserved key is bound
// to, or ErrNotFound when the key was never reserved.
func (r *Repository) LookupIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) (string, Role, error) {
	var (
		contractID string
		role       string
	)
	err := tx.QueryRow(ctx, `SELECT contract_id, role FROM idempotency WHERE key = $1`, key).
		Scan(&contractID, &role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", ErrNotFound
		}
		return "", "", fmt.Errorf("contract: lookup idempotency key: %w", err)
	}
	return contractID, Role(role), nil
}

func scanContract(row pgx.Row) (Contract, error) {
	var rec Contract
	err := row.Scan(
		&rec.ID,
		&rec.ChatroomID,
		&rec.BrandID,
		&rec.CreatorID,
		&rec.Product,
		&rec.Rate,
		&rec.Timeline,
		&rec.Status,
		&rec.BrandSignature,
		&rec.CreatorSignature,
		&rec.BrandSignedAt,
		&rec.CreatorSignedAt,
		&rec.IntegrityHash,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return Contract{}, err
	}
	return rec, nil
}
