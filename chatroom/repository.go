package chatroom

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the requested room does not exist.
	ErrNotFound = errors.New("chatroom: not found")
	// ErrForbidden signals the caller is not a member of the room.
	ErrForbidden = errors.New("chatroom: forbidden")
	// ErrInvalidPair signals the brand/creator ids do not reference users
	// with those roles.
	ErrInvalidPair = errors.New("chatroom: pair must be one brand and one creator")
)

// Repository provides data access for rooms and their messages.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roomColumns = ` id, brand_id, creator_id, created_at`

// Ensure returns the room for the brand/creator pair, creating it on first
// use. The INSERT..SELECT only matches when both ids carry the right roles,
// so a mismatched pair falls through to ErrInvalidPair.
func (r *Repository) Ensure(ctx context.Context, brandID, creatorID string) (Room, error) {
	const insertSQL = `
INSERT INTO chatrooms (brand_id, creator_id)
SELECT b.id, c.id
FROM users b, users c
WHERE b.id = $1 AND b.role = 'brand'
  AND c.id = $2 AND c.role = 'creator'
ON CONFLICT (brand_id, creator_id) DO NOTHING
RETURNING` + roomColumns

	room, err := scanRoom(r.pool.QueryRow(ctx, insertSQL, brandID, creatorID))
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Room{}, fmt.Errorf("chatroom: ensure: %w", err)
	}

	// Either the room already exists or the pair was invalid.
	const selectSQL = `SELECT` + roomColumns + ` FROM chatrooms WHERE brand_id = $1 AND creator_id = $2`
	room, err = scanRoom(r.pool.QueryRow(ctx, selectSQL, brandID, creatorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Room{}, ErrInvalidPair
		}
		return Room{}, fmt.Errorf("chatroom: ensure fetch: %w", err)
	}
	return room, nil
}

// GetByID fetches a room by its primary key.
func (r *Repository) GetByID(ctx context.Context, roomID string) (Room, error) {
	const selectSQL = `SELECT` + roomColumns + ` FROM chatrooms WHERE id = $1`

	room, err := scanRoom(r.pool.QueryRow(ctx, selectSQL, roomID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Room{}, ErrNotFound
		}
		return Room{}, fmt.Errorf("chatroom: get by id: %w", err)
	}
	return room, nil
}

// ListForUser returns every room the user participates in, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID string) ([]Room, error) {
	const query = `SELECT` + roomColumns + `
FROM chatrooms
WHERE brand_id = $1 OR creator_id = $1
ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("chatroom: list: %w", err)
	}
	defer rows.Close()

	out := []Room{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("chatroom: scan room: %w", err)
		}
		out = append(out, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatroom: iterate rooms: %w", err)
	}
	return out, nil
}

// InsertMessage appends a message. The INSERT..SELECT matches only when the
// sender is a room member; zero rows are disambiguated with a follow-up read.
func (r *Repository) InsertMessage(ctx context.Context, roomID, senderID, body string) (Message, error) {
	const insertSQL = `
INSERT INTO messages (chatroom_id, sender_id, body)
SELECT id, $2, $3
FROM chatrooms
WHERE id = $1 AND (brand_id = $2 OR creator_id = $2)
RETURNING id, chatroom_id, sender_id, body, created_at`

	var msg Message
	err := r.pool.QueryRow(ctx, insertSQL, roomID, senderID, body).
		Scan(&msg.ID, &msg.ChatroomID, &msg.SenderID, &msg.Body, &msg.CreatedAt)
	if err == nil {
		return msg, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Message{}, fmt.Errorf("chatroom: insert message: %w", err)
	}

	if _, err := r.GetByID(ctx, roomID); err != nil {
		return Message{}, err
	}
	return Message{}, ErrForbidden
}

// ListMessages returns a page of the room's messages, newest first.
func (r *Repository) ListMessages(ctx context.Context, roomID string, limit, offset int) ([]Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	const query = `
SELECT id, chatroom_id, sender_id, body, created_at
FROM messages
WHERE chatroom_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, roomID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("chatroom: list messages: %w", err)
	}
	defer rows.Close()

	out := []Message{}
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ChatroomID, &msg.SenderID, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("chatroom: scan message: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatroom: iterate messages: %w", err)
	}
	return out, nil
}

func scanRoom(row pgx.Row) (Room, error) {
	var room Room
	err := row.Scan(&room.ID, &room.BrandID, &room.CreatorID, &room.CreatedAt)
	if err != nil {
		return Room{}, err
	}
	return room, nil
}
