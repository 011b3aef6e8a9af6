package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"collabflow/contract"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isTransient reports whether the error is expected noise under chaos:
// terminated backends and dropped connections.
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "57P01", "57P02", "57P03", "08006", "08003":
			return true
		}
	}
	return pgconn.SafeToRetry(err)
}

// Proposer keeps posting pending quotations into the chatroom.
func Proposer(ctx context.Context, pool *pgxpool.Pool, chatroomID, senderID string, stop <-chan struct{}) error {
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, err := pool.Exec(ctx, `INSERT INTO quotations (chatroom_id, sender_id, product, amount, timeline, note)
                                   VALUES ($1,$2,$3,$4,'2 weeks','stress')`,
			chatroomID, senderID, fmt.Sprintf("campaign-%d-%d", rand.Int63(), i), float64(100+rand.Intn(900)))
		if err != nil && !isTransient(err) {
			return fmt.Errorf("proposer insert: %w", err)
		}
		time.Sleep(time.Duration(15+rand.Intn(30)) * time.Millisecond)
	}
}

// Accepter locks one pending quotation, flips it to accepted, and seeds the
// contract inside the same transaction. Competing accepters contend on the
// row lock; only one decision can land.
func Accepter(ctx context.Context, pool *pgxpool.Pool, chatroomID, brandID, creatorID, actorID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			if isTransient(err) {
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return err
		}
		var (
			qID, product, timeline string
			amount                 float64
		)
		err = tx.QueryRow(ctx, `SELECT id, product, amount, timeline FROM quotations
                                 WHERE chatroom_id=$1 AND status='pending'
                                 ORDER BY created_at LIMIT 1 FOR UPDATE SKIP LOCKED`, chatroomID).
			Scan(&qID, &product, &amount, &timeline)
		if err == nil {
			_, err = tx.Exec(ctx, `UPDATE quotations SET status='accepted' WHERE id=$1 AND status='pending'`, qID)
			if err == nil {
				hash := contract.IntegrityHash(brandID, creatorID, product, amount, timeline)
				_, err = tx.Exec(ctx, `INSERT INTO contracts (chatroom_id, brand_id, creator_id, product, rate, timeline, integrity_hash)
                                        VALUES ($1,$2,$3,$4,$5,$6,$7)`,
					chatroomID, brandID, creatorID, product, amount, timeline, hash)
				if err == nil {
					_, _ = tx.Exec(ctx, `INSERT INTO contract_events (contract_id, type, actor_id, payload)
                                          SELECT id, 'CONTRACT_CREATED', $2, '{}'::jsonb FROM contracts WHERE integrity_hash=$1`, hash, actorID)
					_, _ = tx.Exec(ctx, `INSERT INTO outbox (topic, payload)
                                          SELECT 'contract.created', jsonb_build_object('contract_id', id) FROM contracts WHERE integrity_hash=$1`, hash)
					_ = tx.Commit(ctx)
					tx = nil
				} else if !isUniqueViolation(err) && !isTransient(err) {
					_ = tx.Rollback(ctx)
					return fmt.Errorf("accepter contract insert: %w", err)
				}
			}
		} else if !errors.Is(err, pgx.ErrNoRows) && !isTransient(err) {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("accepter lock: %w", err)
		}
		if tx != nil {
			_ = tx.Rollback(ctx)
		}
		time.Sleep(time.Duration(25+rand.Intn(50)) * time.Millisecond)
	}
}

// Signer races to place one party's signature on open contracts using the
// same conditional write the repository issues. A zero-row result means the
// slot was already taken, which is the expected outcome under contention.
func Signer(ctx context.Context, pool *pgxpool.Pool, role contract.Role, actorID string, stop <-chan struct{}) error {
	var sigCol string
	switch role {
	case contract.RoleBrand:
		sigCol = "brand"
	case contract.RoleCreator:
		sigCol = "creator"
	default:
		return fmt.Errorf("signer: unknown role %q", role)
	}

	signSQL := fmt.Sprintf(`UPDATE contracts
        SET %[1]s_signature = $2,
            %[1]s_signed_at = get_tx_timestamp(),
            status = CASE WHEN %[2]s_signature IS NULL THEN 'partially_signed' ELSE 'fully_signed' END::contract_status,
            updated_at = get_tx_timestamp()
        WHERE id = $1 AND %[1]s_signature IS NULL
        RETURNING status`, sigCol, otherParty(sigCol))

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			if isTransient(err) {
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return err
		}
		var contractID string
		err = tx.QueryRow(ctx, fmt.Sprintf(`SELECT id FROM contracts WHERE %s_signature IS NULL ORDER BY created_at LIMIT 1`, sigCol)).Scan(&contractID)
		if err == nil {
			var status string
			err = tx.QueryRow(ctx, signSQL, contractID, fmt.Sprintf("sig-%s-%d-%d", sigCol, rand.Int63(), i)).Scan(&status)
			if err == nil {
				_, _ = tx.Exec(ctx, `INSERT INTO contract_events (contract_id, type, actor_id, payload)
                                      VALUES ($1,'CONTRACT_SIGNED',$2, jsonb_build_object('role',$3))`, contractID, actorID, sigCol)
				if status == "fully_signed" {
					_, _ = tx.Exec(ctx, `INSERT INTO outbox (topic, payload) VALUES ('contract.fully_signed', jsonb_build_object('contract_id',$1))`, contractID)
				}
			}
			// zero rows from the conditional write means another signer won
		}
		_ = tx.Commit(ctx)
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

func otherParty(col string) string {
	if col == "brand" {
		return "creator"
	}
	return "brand"
}

// DuplicateCreator hammers the same terms repeatedly; the integrity hash
// unique index must collapse every retry after the first into a 23505.
func DuplicateCreator(ctx context.Context, pool *pgxpool.Pool, chatroomID, brandID, creatorID string, stop <-chan struct{}) error {
	const (
		product  = "duplicate-terms-stress"
		rate     = 512.0
		timeline = "4 weeks"
	)
	hash := contract.IntegrityHash(brandID, creatorID, product, rate, timeline)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, err := pool.Exec(ctx, `INSERT INTO contracts (chatroom_id, brand_id, creator_id, product, rate, timeline, integrity_hash)
                                   VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			chatroomID, brandID, creatorID, product, rate, timeline, hash)
		if err != nil && !isUniqueViolation(err) && !isTransient(err) {
			return fmt.Errorf("duplicate creator insert: %w", err)
		}
		time.Sleep(time.Duration(30+rand.Intn(50)) * time.Millisecond)
	}
}

// IdempotentCaller races to register idempotency keys against whichever
// contract currently exists; only the first registrant of a key wins and the
// stored binding never changes afterwards.
func IdempotentCaller(ctx context.Context, pool *pgxpool.Pool, key string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, err := pool.Exec(ctx, `INSERT INTO idempotency (key, contract_id, role)
                                   SELECT $1, id, 'brand' FROM contracts ORDER BY created_at LIMIT 1
                                   ON CONFLICT DO NOTHING`, key)
		if err != nil && !isTransient(err) {
			return fmt.Errorf("idempotent caller: %w", err)
		}
		time.Sleep(80 * time.Millisecond)
	}
}

// OutboxWorker consumes pending outbox rows with SKIP LOCKED and marks them
// processed, occasionally simulating a failed attempt.
func OutboxWorker(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			if isTransient(err) {
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return err
		}
		rows, err := tx.Query(ctx, `SELECT id FROM outbox WHERE status='pending' ORDER BY created_at FOR UPDATE SKIP LOCKED LIMIT 10`)
		if err != nil {
			_ = tx.Rollback(ctx)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		ids := make([]string, 0, 10)
		for rows.Next() {
			var id string
			_ = rows.Scan(&id)
			ids = append(ids, id)
		}
		rows.Close()
		for _, id := range ids {
			if rand.Intn(10) == 0 {
				_, _ = tx.Exec(ctx, `UPDATE outbox SET attempts=attempts+1 WHERE id=$1`, id)
				continue
			}
			_, _ = tx.Exec(ctx, `UPDATE outbox SET status='processed' WHERE id=$1`, id)
		}
		_ = tx.Commit(ctx)
		time.Sleep(100 * time.Millisecond)
	}
}
