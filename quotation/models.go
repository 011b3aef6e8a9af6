package quotation

import "time"

// Status represents the lifecycle of a quotation.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// Record mirrors the quotations table. A quotation is a full set of proposed
// terms so acceptance can seed a contract without further negotiation input.
type Record struct {
	ID         string
	ChatroomID string
	SenderID   string
	Product    string
	Amount     float64
	Timeline   string
	Note       string
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CreateParams carries caller input for a new quotation.
type CreateParams struct {
	ChatroomID string
	SenderID   string
	Product    string
	Amount     float64
	Timeline   string
	Note       string
}
