package chatroom

import (
	"context"
	"fmt"
)

// Store abstracts repository operations for the service.
type Store interface {
	Ensure(ctx context.Context, brandID, creatorID string) (Room, error)
	GetByID(ctx context.Context, roomID string) (Room, error)
	ListForUser(ctx context.Context, userID string) ([]Room, error)
	InsertMessage(ctx context.Context, roomID, senderID, body string) (Message, error)
	ListMessages(ctx context.Context, roomID string, limit, offset int) ([]Message, error)
}

// Service exposes business-level chatroom operations.
type Service struct {
	repo Store
}

// NewService builds a Service using the provided repository.
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// Open returns the room pairing the brand and creator, creating it on first
// contact. Either side may open the room.
func (s *Service) Open(ctx context.Context, brandID, creatorID string) (Room, error) {
	if brandID == "" || creatorID == "" {
		return Room{}, fmt.Errorf("chatroom: brand and creator ids required")
	}
	if brandID == creatorID {
		return Room{}, ErrInvalidPair
	}
	return s.repo.Ensure(ctx, brandID, creatorID)
}

// GetForUser returns the room only when the user participates in it.
func (s *Service) GetForUser(ctx context.Context, roomID, userID string) (Room, error) {
	room, err := s.repo.GetByID(ctx, roomID)
	if err != nil {
		return Room{}, err
	}
	if !room.Member(userID) {
		return Room{}, ErrForbidden
	}
	return room, nil
}

// ListForUser returns the user's rooms.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Room, error) {
	return s.repo.ListForUser(ctx, userID)
}

// PostMessage appends a message from a room member.
func (s *Service) PostMessage(ctx context.Context, roomID, senderID, body string) (Message, error) {
	if body == "" {
		return Message{}, fmt.Errorf("chatroom: message body required")
	}
	return s.repo.InsertMessage(ctx, roomID, senderID, body)
}

// ListMessages returns a page of the room's messages for a member.
func (s *Service) ListMessages(ctx context.Context, roomID, userID string, limit, offset int) ([]Message, error) {
	if _, err := s.GetForUser(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, roomID, limit, offset)
}
