package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"collabflow/middleware"
	"collabflow/quotation"
)

// QuotationService is the slice of quotation.Service this handler needs.
type QuotationService interface {
	Create(ctx context.Context, params quotation.CreateParams) (quotation.Record, error)
	GetByID(ctx context.Context, quotationID string) (quotation.Record, error)
	ListByChatroom(ctx context.Context, chatroomID string) ([]quotation.Record, error)
	Accept(ctx context.Context, quotationID, actorID string) (quotation.AcceptResult, error)
	Decline(ctx context.Context, quotationID, actorID string) (quotation.Record, error)
}

// QuotationHandler serves quotation endpoints. Reads are gated to room
// members the same way contract reads are gated to parties.
type QuotationHandler struct {
	svc   QuotationService
	rooms RoomLookup
}

func NewQuotationHandler(svc QuotationService, rooms RoomLookup) *QuotationHandler {
	return &QuotationHandler{svc: svc, rooms: rooms}
}

type createQuotationRequest struct {
	ChatroomID string  `json:"chatroom_id" binding:"required"`
	Product    string  `json:"product" binding:"required"`
	Amount     float64 `json:"amount" binding:"required"`
	Timeline   string  `json:"timeline" binding:"required"`
	Note       string  `json:"note"`
}

// Create handles POST /api/quotations.
func (h *QuotationHandler) Create(c *gin.Context) {
	var req createQuotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	rec, err := h.svc.Create(c.Request.Context(), quotation.CreateParams{
		ChatroomID: req.ChatroomID,
		SenderID:   middleware.GetUserID(c),
		Product:    req.Product,
		Amount:     req.Amount,
		Timeline:   req.Timeline,
		Note:       req.Note,
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"quotation": renderQuotation(rec)})
}

// Get handles GET /api/quotations/:id. Only members of the quotation's room
// may read it.
func (h *QuotationHandler) Get(c *gin.Context) {
	rec, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	if _, err := h.rooms.GetForUser(c.Request.Context(), rec.ChatroomID, middleware.GetUserID(c)); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"quotation": renderQuotation(rec)})
}

// ListByChatroom handles GET /api/chatrooms/:id/quotations for room members.
func (h *QuotationHandler) ListByChatroom(c *gin.Context) {
	if _, err := h.rooms.GetForUser(c.Request.Context(), c.Param("id"), middleware.GetUserID(c)); err != nil {
		fail(c, err)
		return
	}

	recs, err := h.svc.ListByChatroom(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	out := make([]quotationJSON, 0, len(recs))
	for _, rec := range recs {
		out = append(out, renderQuotation(rec))
	}
	c.JSON(http.StatusOK, gin.H{"quotations": out})
}

// Accept handles POST /api/quotations/:id/accept. Acceptance seeds a pending
// contract in the same transaction; both records come back so the client can
// jump straight to signing.
func (h *QuotationHandler) Accept(c *gin.Context) {
	result, err := h.svc.Accept(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"quotation": renderQuotation(result.Quotation),
		"contract":  renderContract(result.Contract),
	})
}

// Decline handles POST /api/quotations/:id/decline.
func (h *QuotationHandler) Decline(c *gin.Context) {
	rec, err := h.svc.Decline(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"quotation": renderQuotation(rec)})
}
