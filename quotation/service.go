package quotation

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"collabflow/contract"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store defines the quotation data access required by the service.
type Store interface {
	Insert(ctx context.Context, params CreateParams) (Record, error)
	GetByID(ctx context.Context, quotationID string) (Record, error)
	ListByChatroom(ctx context.Context, chatroomID string) ([]Record, error)
	LockForDecision(ctx context.Context, tx pgx.Tx, quotationID string) (LockedQuotation, error)
	MarkDecided(ctx context.Context, tx pgx.Tx, quotationID string, status Status) (Record, error)
}

// ContractWriter projects an accepted quotation into the contracts domain
// inside the acceptance transaction.
type ContractWriter interface {
	CreateFromQuotation(ctx context.Context, tx pgx.Tx, params contract.QuotationParams) (contract.Contract, error)
}

// Service exposes business-level quotation operations.
type Service struct {
	pool      TxBeginner
	repo      Store
	contracts ContractWriter
}

// NewService builds a Service over the given transaction source, store, and
// contract writer.
func NewService(pool TxBeginner, repo Store, contracts ContractWriter) *Service {
	return &Service{
		pool:      pool,
		repo:      repo,
		contracts: contracts,
	}
}

// Create records a pending quotation from a room member.
func (s *Service) Create(ctx context.Context, params CreateParams) (Record, error) {
	if params.ChatroomID == "" || params.SenderID == "" {
		return Record{}, fmt.Errorf("quotation: chatroom and sender ids required")
	}
	if params.Product == "" {
		return Record{}, fmt.Errorf("quotation: product required")
	}
	if params.Amount < 0 {
		return Record{}, fmt.Errorf("quotation: amount must be non-negative")
	}
	return s.repo.Insert(ctx, params)
}

// GetByID returns the quotation.
func (s *Service) GetByID(ctx context.Context, quotationID string) (Record, error) {
	return s.repo.GetByID(ctx, quotationID)
}

// ListByChatroom returns the chatroom's quotations.
func (s *Service) ListByChatroom(ctx context.Context, chatroomID string) ([]Record, error) {
	return s.repo.ListByChatroom(ctx, chatroomID)
}

// AcceptResult bundles the decided quotation with the contract it seeded.
type AcceptResult struct {
	Quotation Record
	Contract  contract.Contract
}

// Accept flips a pending quotation to accepted and materialises a pending
// contract for the room's parties in the same transaction. Only the member
// who did not send the quotation may accept it; replays surface ErrBadStatus
// because the row is locked and the status guard no longer matches.
func (s *Service) Accept(ctx context.Context, quotationID, actorID string) (AcceptResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return AcceptResult{}, fmt.Errorf("quotation: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	locked, err := s.repo.LockForDecision(ctx, tx, quotationID)
	if err != nil {
		return AcceptResult{}, err
	}
	if err := checkDecider(locked, actorID); err != nil {
		return AcceptResult{}, err
	}

	rec, err := s.repo.MarkDecided(ctx, tx, quotationID, StatusAccepted)
	if err != nil {
		return AcceptResult{}, err
	}

	created, err := s.contracts.CreateFromQuotation(ctx, tx, contract.QuotationParams{
		QuotationID:      rec.ID,
		ChatroomID:       rec.ChatroomID,
		BrandID:          locked.BrandID,
		CreatorID:        locked.CreatorID,
		Product:          rec.Product,
		Rate:             rec.Amount,
		Timeline:         rec.Timeline,
		AcceptedByUserID: actorID,
	})
	if err != nil {
		return AcceptResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return AcceptResult{}, fmt.Errorf("quotation: commit accept: %w", err)
	}

	return AcceptResult{Quotation: rec, Contract: created}, nil
}

// Decline flips a pending quotation to declined. Only the non-sender member
// may decline.
func (s *Service) Decline(ctx context.Context, quotationID, actorID string) (Record, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("quotation: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	locked, err := s.repo.LockForDecision(ctx, tx, quotationID)
	if err != nil {
		return Record{}, err
	}
	if err := checkDecider(locked, actorID); err != nil {
		return Record{}, err
	}

	rec, err := s.repo.MarkDecided(ctx, tx, quotationID, StatusDeclined)
	if err != nil {
		return Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("quotation: commit decline: %w", err)
	}

	return rec, nil
}

// checkDecider enforces that the acting user is the room member on the
// receiving end of the quotation.
func checkDecider(locked LockedQuotation, actorID string) error {
	if actorID != locked.BrandID && actorID != locked.CreatorID {
		return ErrForbidden
	}
	if actorID == locked.Record.SenderID {
		return ErrForbidden
	}
	return nil
}
