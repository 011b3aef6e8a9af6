package chatroom

import "time"

// Room pairs one brand with one creator. At most one room exists per pair.
type Room struct {
	ID        string
	BrandID   string
	CreatorID string
	CreatedAt time.Time
}

// Member reports whether the user participates in the room.
func (r Room) Member(userID string) bool {
	return r.BrandID == userID || r.CreatorID == userID
}

// Message mirrors the messages table.
type Message struct {
	ID         string
	ChatroomID string
	SenderID   string
	Body       string
	CreatedAt  time.Time
}
