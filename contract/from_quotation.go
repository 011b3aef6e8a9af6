package contract

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// QuotationParams encapsulates the information required to project an
// accepted quotation into the contracts domain within a single transaction.
type QuotationParams struct {
	QuotationID      string
	ChatroomID       string
	BrandID          string
	CreatorID        string
	Product          string
	Rate             float64
	Timeline         string
	AcceptedByUserID string
}

// CreateFromQuotation materialises a contract for an accepted quotation. It
// runs inside the caller's transaction so the quotation row lock taken by the
// acceptance flow also guards this insert. Replays are tolerated: when a
// contract with the same integrity hash already exists it is returned as-is.
func (r *Repository) CreateFromQuotation(ctx context.Context, tx pgx.Tx, params QuotationParams) (Contract, error) {
	if params.QuotationID == "" {
		return Contract{}, fmt.Errorf("contract: quotation acceptance missing quotation id")
	}
	if params.ChatroomID == "" {
		return Contract{}, fmt.Errorf("contract: quotation acceptance missing chatroom id")
	}
	if params.BrandID == "" || params.CreatorID == "" {
		return Contract{}, fmt.Errorf("contract: quotation acceptance missing party ids")
	}
	if params.Product == "" {
		return Contract{}, fmt.Errorf("contract: quotation acceptance missing product")
	}

	hash := IntegrityHash(params.BrandID, params.CreatorID, params.Product, params.Rate, params.Timeline)

	const existingSQL = `SELECT` + contractColumns + ` FROM contracts WHERE integrity_hash = $1`
	switch existing, err := scanContract(tx.QueryRow(ctx, existingSQL, hash)); {
	case err == nil:
		return existing, nil
	case errors.Is(err, pgx.ErrNoRows):
		// continue with insert
	default:
		return Contract{}, fmt.Errorf("contract: check existing by hash: %w", err)
	}

	rec, err := r.Insert(ctx, tx, InsertParams{
		ChatroomID:    params.ChatroomID,
		BrandID:       params.BrandID,
		CreatorID:     params.CreatorID,
		Product:       params.Product,
		Rate:          params.Rate,
		Timeline:      params.Timeline,
		IntegrityHash: hash,
	})
	if err != nil {
		return Contract{}, err
	}

	eventPayload := map[string]any{
		"source":              "quotation_acceptance",
		"quotation_id":        params.QuotationID,
		"accepted_by_user_id": params.AcceptedByUserID,
		"integrity_hash":      rec.IntegrityHash,
	}
	if err := r.AppendEvent(ctx, tx, rec.ID, EventCreated, params.AcceptedByUserID, eventPayload); err != nil {
		return Contract{}, err
	}

	outboxPayload := map[string]any{
		"contract_id":  rec.ID,
		"chatroom_id":  rec.ChatroomID,
		"quotation_id": params.QuotationID,
		"status":       string(rec.Status),
	}
	if err := r.EnqueueOutbox(ctx, tx, OutboxTopicCreated, outboxPayload); err != nil {
		return Contract{}, err
	}

	return rec, nil
}
