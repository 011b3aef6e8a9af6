package handler

import (
	"time"

	"collabflow/auth"
	"collabflow/chatroom"
	"collabflow/contract"
	"collabflow/quotation"
)

// The domain packages keep their structs free of JSON annotations; the
// presentation shapes live here.

type userJSON struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func renderUser(u auth.User) userJSON {
	return userJSON{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      string(u.Role),
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
	}
}

type roomJSON struct {
	ID        string    `json:"id"`
	BrandID   string    `json:"brand_id"`
	CreatorID string    `json:"creator_id"`
	CreatedAt time.Time `json:"created_at"`
}

func renderRoom(r chatroom.Room) roomJSON {
	return roomJSON{
		ID:        r.ID,
		BrandID:   r.BrandID,
		CreatorID: r.CreatorID,
		CreatedAt: r.CreatedAt,
	}
}

type messageJSON struct {
	ID         string    `json:"id"`
	ChatroomID string    `json:"chatroom_id"`
	SenderID   string    `json:"sender_id"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

func renderMessage(m chatroom.Message) messageJSON {
	return messageJSON{
		ID:         m.ID,
		ChatroomID: m.ChatroomID,
		SenderID:   m.SenderID,
		Body:       m.Body,
		CreatedAt:  m.CreatedAt,
	}
}

type quotationJSON struct {
	ID         string    `json:"id"`
	ChatroomID string    `json:"chatroom_id"`
	SenderID   string    `json:"sender_id"`
	Product    string    `json:"product"`
	Amount     string    `json:"amount"`
	Timeline   string    `json:"timeline"`
	Note       string    `json:"note,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func renderQuotation(q quotation.Record) quotationJSON {
	return quotationJSON{
		ID:         q.ID,
		ChatroomID: q.ChatroomID,
		SenderID:   q.SenderID,
		Product:    q.Product,
		Amount:     contract.FormatRate(q.Amount),
		Timeline:   q.Timeline,
		Note:       q.Note,
		Status:     string(q.Status),
		CreatedAt:  q.CreatedAt,
		UpdatedAt:  q.UpdatedAt,
	}
}

type contractJSON struct {
	ID               string     `json:"id"`
	ChatroomID       string     `json:"chatroom_id"`
	BrandID          string     `json:"brand_id"`
	CreatorID        string     `json:"creator_id"`
	Product          string     `json:"product"`
	Rate             string     `json:"rate"`
	Timeline         string     `json:"timeline"`
	Status           string     `json:"status"`
	BrandSignature   *string    `json:"brand_signature"`
	CreatorSignature *string    `json:"creator_signature"`
	BrandSignedAt    *time.Time `json:"brand_signed_at"`
	CreatorSignedAt  *time.Time `json:"creator_signed_at"`
	IntegrityHash    string     `json:"integrity_hash"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func renderContract(rec contract.Contract) contractJSON {
	return contractJSON{
		ID:               rec.ID,
		ChatroomID:       rec.ChatroomID,
		BrandID:          rec.BrandID,
		CreatorID:        rec.CreatorID,
		Product:          rec.Product,
		Rate:             contract.FormatRate(rec.Rate),
		Timeline:         rec.Timeline,
		Status:           string(rec.Status),
		BrandSignature:   rec.BrandSignature,
		CreatorSignature: rec.CreatorSignature,
		BrandSignedAt:    rec.BrandSignedAt,
		CreatorSignedAt:  rec.CreatorSignedAt,
		IntegrityHash:    rec.IntegrityHash,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
}

func renderContracts(recs []contract.Contract) []contractJSON {
	out := make([]contractJSON, 0, len(recs))
	for _, rec := range recs {
		out = append(out, renderContract(rec))
	}
	return out
}
