package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"collabflow/chatroom"
	"collabflow/contract"
	"collabflow/middleware"
)

// ContractService is the slice of contract.Service this handler needs.
type ContractService interface {
	Create(ctx context.Context, params contract.CreateParams) (contract.Contract, error)
	Sign(ctx context.Context, req contract.SignRequest) (contract.Contract, error)
	GetByID(ctx context.Context, contractID string) (contract.Contract, error)
	ListByChatroom(ctx context.Context, chatroomID string) ([]contract.Contract, error)
	ListForUser(ctx context.Context, userID string) ([]contract.Contract, error)
}

// RoomLookup resolves a chatroom the caller belongs to. Contract creation
// takes its parties from the room, never from the request body.
type RoomLookup interface {
	GetForUser(ctx context.Context, roomID, userID string) (chatroom.Room, error)
}

// ContractHandler serves contract lifecycle endpoints.
type ContractHandler struct {
	svc   ContractService
	rooms RoomLookup
}

func NewContractHandler(svc ContractService, rooms RoomLookup) *ContractHandler {
	return &ContractHandler{svc: svc, rooms: rooms}
}

type createContractRequest struct {
	ChatroomID string `json:"chatroom_id" binding:"required"`
	Product    string `json:"product" binding:"required"`
	Rate       string `json:"rate" binding:"required"`
	Timeline   string `json:"timeline" binding:"required"`
}

// Create handles POST /api/contracts. The brand and creator ids come from
// the chatroom; the caller must be one of its members.
func (h *ContractHandler) Create(c *gin.Context) {
	var req createContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	actorID := middleware.GetUserID(c)
	room, err := h.rooms.GetForUser(c.Request.Context(), req.ChatroomID, actorID)
	if err != nil {
		fail(c, err)
		return
	}

	rec, err := h.svc.Create(c.Request.Context(), contract.CreateParams{
		ChatroomID: room.ID,
		BrandID:    room.BrandID,
		CreatorID:  room.CreatorID,
		Product:    req.Product,
		Rate:       req.Rate,
		Timeline:   req.Timeline,
		ActorID:    actorID,
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"contract": renderContract(rec)})
}

type signContractRequest struct {
	Signature string `json:"signature"`
}

// Sign handles POST /api/contracts/:id/sign. The signing role follows from
// the authenticated user's role, and the user must be the contract party
// holding that role.
func (h *ContractHandler) Sign(c *gin.Context) {
	var req signContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	actorID := middleware.GetUserID(c)
	role := contract.Role(middleware.GetUserRole(c))

	rec, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	party := rec.CreatorID
	if role == contract.RoleBrand {
		party = rec.BrandID
	}
	if party != actorID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a party to this contract"})
		return
	}

	signed, err := h.svc.Sign(c.Request.Context(), contract.SignRequest{
		ContractID:     rec.ID,
		Role:           role,
		Signature:      req.Signature,
		ActorID:        actorID,
		IdempotencyKey: c.GetHeader("X-Idempotency-Key"),
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"contract": renderContract(signed)})
}

// Get handles GET /api/contracts/:id. Only the contract's parties may read
// it.
func (h *ContractHandler) Get(c *gin.Context) {
	rec, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	actorID := middleware.GetUserID(c)
	if rec.BrandID != actorID && rec.CreatorID != actorID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a party to this contract"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"contract": renderContract(rec)})
}

// List handles GET /api/contracts for the authenticated user.
func (h *ContractHandler) List(c *gin.Context) {
	recs, err := h.svc.ListForUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"contracts": renderContracts(recs)})
}

// ListByChatroom handles GET /api/chatrooms/:id/contracts.
func (h *ContractHandler) ListByChatroom(c *gin.Context) {
	actorID := middleware.GetUserID(c)
	if _, err := h.rooms.GetForUser(c.Request.Context(), c.Param("id"), actorID); err != nil {
		fail(c, err)
		return
	}

	recs, err := h.svc.ListByChatroom(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"contracts": renderContracts(recs)})
}
