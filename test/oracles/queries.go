package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the invariant checks. Each query must come back empty; any row
// is a violated invariant.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_status_matches_signatures",
			SQL: `SELECT id, status FROM contracts WHERE NOT (
                      (status = 'pending' AND brand_signature IS NULL AND creator_signature IS NULL)
                      OR (status = 'partially_signed' AND (brand_signature IS NULL) <> (creator_signature IS NULL))
                      OR (status = 'fully_signed' AND brand_signature IS NOT NULL AND creator_signature IS NOT NULL))`,
		},
		{
			Name: "O2_signature_timestamp_pairing",
			SQL: `SELECT id FROM contracts
                  WHERE (brand_signature IS NULL) <> (brand_signed_at IS NULL)
                     OR (creator_signature IS NULL) <> (creator_signed_at IS NULL)`,
		},
		{
			Name: "O3_integrity_hash_unique",
			SQL: `SELECT integrity_hash, COUNT(*) FROM contracts
                  GROUP BY integrity_hash HAVING COUNT(*) > 1`,
		},
		{
			Name: "O4_hash_shape",
			SQL:  `SELECT id, integrity_hash FROM contracts WHERE integrity_hash !~ '^[0-9a-f]{64}$'`,
		},
		{
			Name: "O5_event_seq_monotonic",
			SQL: `WITH seqs AS (
                      SELECT contract_id, seq,
                             LAG(seq) OVER (PARTITION BY contract_id ORDER BY seq) AS prev
                      FROM contract_events)
                  SELECT * FROM seqs WHERE prev IS NOT NULL AND seq <= prev`,
		},
		{
			Name: "O6_at_most_two_sign_events",
			SQL: `SELECT contract_id, COUNT(*) FROM contract_events
                  WHERE type = 'CONTRACT_SIGNED'
                  GROUP BY contract_id HAVING COUNT(*) > 2`,
		},
		{
			Name: "O7_fully_signed_outbox",
			SQL: `SELECT c.id FROM contracts c
                  WHERE c.status = 'fully_signed'
                    AND NOT EXISTS (
                      SELECT 1 FROM outbox o
                      WHERE o.topic = 'contract.fully_signed'
                        AND o.payload->>'contract_id' = c.id::text)`,
		},
		{
			Name: "O8_accepted_quotation_has_contract",
			SQL: `SELECT q.id FROM quotations q
                  WHERE q.status = 'accepted'
                    AND NOT EXISTS (
                      SELECT 1 FROM contracts c
                      WHERE c.chatroom_id = q.chatroom_id AND c.product = q.product)`,
		},
		{
			Name: "O9_outbox_not_stale",
			SQL: `SELECT id, topic FROM outbox
                  WHERE status NOT IN ('processed','dead')
                    AND now() - created_at > interval '5 minutes'`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample
// row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		if rows.Next() {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
