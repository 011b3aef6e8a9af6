package chatroom

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestService_Open(t *testing.T) {
	repo := newFakeStore()
	svc := NewService(repo)
	ctx := context.Background()

	room, err := svc.Open(ctx, "brand-1", "creator-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	again, err := svc.Open(ctx, "brand-1", "creator-1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if again.ID != room.ID {
		t.Errorf("reopen returned new room %s, want %s", again.ID, room.ID)
	}

	if _, err := svc.Open(ctx, "", "creator-1"); err == nil {
		t.Error("expected error for empty brand id")
	}
	if _, err := svc.Open(ctx, "user-1", "user-1"); !errors.Is(err, ErrInvalidPair) {
		t.Errorf("self-pair: expected ErrInvalidPair, got %v", err)
	}
}

func TestService_Membership(t *testing.T) {
	repo := newFakeStore()
	svc := NewService(repo)
	ctx := context.Background()

	room, err := svc.Open(ctx, "brand-1", "creator-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := svc.GetForUser(ctx, room.ID, "brand-1"); err != nil {
		t.Errorf("member access failed: %v", err)
	}
	if _, err := svc.GetForUser(ctx, room.ID, "stranger"); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger access: expected ErrForbidden, got %v", err)
	}
	if _, err := svc.GetForUser(ctx, "missing-room", "brand-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing room: expected ErrNotFound, got %v", err)
	}
}

func TestService_Messages(t *testing.T) {
	repo := newFakeStore()
	svc := NewService(repo)
	ctx := context.Background()

	room, err := svc.Open(ctx, "brand-1", "creator-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := svc.PostMessage(ctx, room.ID, "brand-1", ""); err == nil {
		t.Error("expected error for empty body")
	}

	msg, err := svc.PostMessage(ctx, room.ID, "creator-1", "hello")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if msg.SenderID != "creator-1" || msg.Body != "hello" {
		t.Errorf("unexpected message %+v", msg)
	}

	if _, err := svc.PostMessage(ctx, room.ID, "stranger", "hi"); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger post: expected ErrForbidden, got %v", err)
	}

	msgs, err := svc.ListMessages(ctx, room.ID, "brand-1", 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 {
		t.Errorf("len(messages) = %d, want 1", len(msgs))
	}

	if _, err := svc.ListMessages(ctx, room.ID, "stranger", 10, 0); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger list: expected ErrForbidden, got %v", err)
	}
}

type fakeStore struct {
	rooms    map[string]Room
	messages map[string][]Message
	nextID   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:    make(map[string]Room),
		messages: make(map[string][]Message),
		nextID:   1,
	}
}

func (f *fakeStore) Ensure(ctx context.Context, brandID, creatorID string) (Room, error) {
	for _, room := range f.rooms {
		if room.BrandID == brandID && room.CreatorID == creatorID {
			return room, nil
		}
	}
	room := Room{
		ID:        fmt.Sprintf("room-%d", f.nextID),
		BrandID:   brandID,
		CreatorID: creatorID,
		CreatedAt: time.Now().UTC(),
	}
	f.nextID++
	f.rooms[room.ID] = room
	return room, nil
}

func (f *fakeStore) GetByID(ctx context.Context, roomID string) (Room, error) {
	room, ok := f.rooms[roomID]
	if !ok {
		return Room{}, ErrNotFound
	}
	return room, nil
}

func (f *fakeStore) ListForUser(ctx context.Context, userID string) ([]Room, error) {
	out := []Room{}
	for _, room := range f.rooms {
		if room.Member(userID) {
			out = append(out, room)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertMessage(ctx context.Context, roomID, senderID, body string) (Message, error) {
	room, ok := f.rooms[roomID]
	if !ok {
		return Message{}, ErrNotFound
	}
	if !room.Member(senderID) {
		return Message{}, ErrForbidden
	}
	msg := Message{
		ID:         fmt.Sprintf("msg-%d", f.nextID),
		ChatroomID: roomID,
		SenderID:   senderID,
		Body:       body,
		CreatedAt:  time.Now().UTC(),
	}
	f.nextID++
	f.messages[roomID] = append(f.messages[roomID], msg)
	return msg, nil
}

func (f *fakeStore) ListMessages(ctx context.Context, roomID string, limit, offset int) ([]Message, error) {
	return f.messages[roomID], nil
}
