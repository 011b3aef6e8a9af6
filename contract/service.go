package contract

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/jackc/pgx/v5"
)

var (
	// ErrInvalidRate signals the rate input did not parse as a finite
	// non-negative number within the storable range.
	ErrInvalidRate = errors.New("contract: rate must be a finite non-negative number below 10^10")
	// ErrMissingSignature signals an empty signature payload.
	ErrMissingSignature = errors.New("contract: signature payload required")
	// ErrMissingField signals a required text field was empty.
	ErrMissingField = errors.New("contract: missing required field")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store defines the data access required by the service.
type Store interface {
	Insert(ctx context.Context, tx pgx.Tx, params InsertParams) (Contract, error)
	ApplySignature(ctx context.Context, tx pgx.Tx, contractID string, role Role, signature string) (Contract, error)
	AppendEvent(ctx context.Context, tx pgx.Tx, contractID, eventType, actorID string, payload map[string]any) error
	EnqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error
	InsertIdempotencyKey(ctx context.Context, tx pgx.Tx, key, contractID string, role Role) error
	LookupIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) (string, Role, error)
	GetByID(ctx context.Context, contractID string) (Contract, error)
	ListByChatroom(ctx context.Context, chatroomID string) ([]Contract, error)
	ListForUser(ctx context.Context, userID string) ([]Contract, error)
}

// Service owns the contract lifecycle: creation with an integrity fingerprint
// and the independent dual-signature flow converging on fully_signed.
type Service struct {
	pool TxBeginner
	repo Store
}

// NewService builds a Service over the given transaction source and store.
func NewService(pool TxBeginner, repo Store) *Service {
	return &Service{
		pool: pool,
		repo: repo,
	}
}

// Create validates the terms, fingerprints them, and inserts a pending
// contract with both signature slots empty.
func (s *Service) Create(ctx context.Context, params CreateParams) (Contract, error) {
	for field, value := range map[string]string{
		"chatroom_id": params.ChatroomID,
		"brand_id":    params.BrandID,
		"creator_id":  params.CreatorID,
		"product":     params.Product,
		"timeline":    params.Timeline,
	} {
		if value == "" {
			return Contract{}, fmt.Errorf("%w: %s", ErrMissingField, field)
		}
	}

	// maxRate matches the NUMERIC(12,2) column: 10 integer digits.
	const maxRate = 1e10

	rate, err := strconv.ParseFloat(params.Rate, 64)
	if err != nil || math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 || rate >= maxRate {
		return Contract{}, fmt.Errorf("%w: %q", ErrInvalidRate, params.Rate)
	}

	hash := IntegrityHash(params.BrandID, params.CreatorID, params.Product, rate, params.Timeline)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Contract{}, fmt.Errorf("contract: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := s.repo.Insert(ctx, tx, InsertParams{
		ChatroomID:    params.ChatroomID,
		BrandID:       params.BrandID,
		CreatorID:     params.CreatorID,
		Product:       params.Product,
		Rate:          rate,
		Timeline:      params.Timeline,
		IntegrityHash: hash,
	})
	if err != nil {
		return Contract{}, err
	}

	eventPayload := map[string]any{
		"product":        rec.Product,
		"rate":           FormatRate(rec.Rate),
		"timeline":       rec.Timeline,
		"integrity_hash": rec.IntegrityHash,
	}
	if err := s.repo.AppendEvent(ctx, tx, rec.ID, EventCreated, params.ActorID, eventPayload); err != nil {
		return Contract{}, err
	}

	outboxPayload := map[string]any{
		"contract_id": rec.ID,
		"chatroom_id": rec.ChatroomID,
		"status":      string(rec.Status),
	}
	if err := s.repo.EnqueueOutbox(ctx, tx, OutboxTopicCreated, outboxPayload); err != nil {
		return Contract{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Contract{}, fmt.Errorf("contract: commit create: %w", err)
	}

	return rec, nil
}

// Sign applies one party's signature exactly once. The written contract with
// its recomputed status is returned; re-signing and signing after
// fully_signed surface ErrAlreadySigned without mutating anything.
func (s *Service) Sign(ctx context.Context, req SignRequest) (Contract, error) {
	if req.ContractID == "" {
		return Contract{}, fmt.Errorf("%w: contract_id", ErrMissingField)
	}
	if !req.Role.Valid() {
		return Contract{}, fmt.Errorf("contract: unknown role %q", req.Role)
	}
	if req.Signature == "" {
		return Contract{}, ErrMissingSignature
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Contract{}, fmt.Errorf("contract: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if req.IdempotencyKey != "" {
		if err := s.repo.InsertIdempotencyKey(ctx, tx, req.IdempotencyKey, req.ContractID, req.Role); err != nil {
			if !errors.Is(err, ErrDuplicateIdempotencyKey) {
				return Contract{}, err
			}
			// A replay only stands in for the signing request the key was
			// reserved for; any other reuse is a conflict.
			boundID, boundRole, err := s.repo.LookupIdempotencyKey(ctx, tx, req.IdempotencyKey)
			if err != nil {
				return Contract{}, err
			}
			if boundID != req.ContractID || boundRole != req.Role {
				return Contract{}, ErrIdempotencyKeyReuse
			}
			return s.repo.GetByID(ctx, req.ContractID)
		}
	}

	rec, err := s.repo.ApplySignature(ctx, tx, req.ContractID, req.Role, req.Signature)
	if err != nil {
		return Contract{}, err
	}

	eventPayload := map[string]any{
		"role":   string(req.Role),
		"status": string(rec.Status),
	}
	if err := s.repo.AppendEvent(ctx, tx, rec.ID, EventSigned, req.ActorID, eventPayload); err != nil {
		return Contract{}, err
	}

	if rec.Status == StatusFullySigned {
		outboxPayload := map[string]any{
			"contract_id": rec.ID,
			"chatroom_id": rec.ChatroomID,
		}
		if err := s.repo.EnqueueOutbox(ctx, tx, OutboxTopicFullySigned, outboxPayload); err != nil {
			return Contract{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Contract{}, fmt.Errorf("contract: commit sign: %w", err)
	}

	return rec, nil
}

// GetByID returns the contract for the given identifier.
func (s *Service) GetByID(ctx context.Context, contractID string) (Contract, error) {
	return s.repo.GetByID(ctx, contractID)
}

// ListByChatroom returns the chatroom's contracts, newest first.
func (s *Service) ListByChatroom(ctx context.Context, chatroomID string) ([]Contract, error) {
	return s.repo.ListByChatroom(ctx, chatroomID)
}

// ListForUser returns every contract the user is a party to.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Contract, error) {
	return s.repo.ListForUser(ctx, userID)
}
