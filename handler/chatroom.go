package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"collabflow/auth"
	"collabflow/chatroom"
	"collabflow/middleware"
)

// ChatroomService is the slice of chatroom.Service this handler needs.
type ChatroomService interface {
	Open(ctx context.Context, brandID, creatorID string) (chatroom.Room, error)
	GetForUser(ctx context.Context, roomID, userID string) (chatroom.Room, error)
	ListForUser(ctx context.Context, userID string) ([]chatroom.Room, error)
	PostMessage(ctx context.Context, roomID, senderID, body string) (chatroom.Message, error)
	ListMessages(ctx context.Context, roomID, userID string, limit, offset int) ([]chatroom.Message, error)
}

// ChatroomHandler serves chatroom and message endpoints.
type ChatroomHandler struct {
	svc ChatroomService
}

func NewChatroomHandler(svc ChatroomService) *ChatroomHandler {
	return &ChatroomHandler{svc: svc}
}

type openRoomRequest struct {
	PeerID string `json:"peer_id" binding:"required"`
}

// Open handles POST /api/chatrooms. The caller names the opposite party;
// which side is the brand follows from the caller's role.
func (h *ChatroomHandler) Open(c *gin.Context) {
	var req openRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	userID := middleware.GetUserID(c)
	brandID, creatorID := req.PeerID, userID
	if middleware.GetUserRole(c) == auth.RoleBrand {
		brandID, creatorID = userID, req.PeerID
	}

	room, err := h.svc.Open(c.Request.Context(), brandID, creatorID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"chatroom": renderRoom(room)})
}

// Get handles GET /api/chatrooms/:id.
func (h *ChatroomHandler) Get(c *gin.Context) {
	room, err := h.svc.GetForUser(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"chatroom": renderRoom(room)})
}

// List handles GET /api/chatrooms.
func (h *ChatroomHandler) List(c *gin.Context) {
	rooms, err := h.svc.ListForUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, err)
		return
	}

	out := make([]roomJSON, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, renderRoom(room))
	}
	c.JSON(http.StatusOK, gin.H{"chatrooms": out})
}

type postMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// PostMessage handles POST /api/chatrooms/:id/messages.
func (h *ChatroomHandler) PostMessage(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	msg, err := h.svc.PostMessage(c.Request.Context(), c.Param("id"), middleware.GetUserID(c), req.Body)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": renderMessage(msg)})
}

// ListMessages handles GET /api/chatrooms/:id/messages with limit/offset
// pagination.
func (h *ChatroomHandler) ListMessages(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	msgs, err := h.svc.ListMessages(c.Request.Context(), c.Param("id"), middleware.GetUserID(c), limit, offset)
	if err != nil {
		fail(c, err)
		return
	}

	out := make([]messageJSON, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, renderMessage(msg))
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}
