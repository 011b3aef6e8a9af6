package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"collabflow/chatroom"
	"collabflow/contract"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeContractService struct {
	contracts map[string]contract.Contract
	signErr   error
	lastSign  contract.SignRequest
}

func (f *fakeContractService) Create(ctx context.Context, params contract.CreateParams) (contract.Contract, error) {
	rec := contract.Contract{
		ID:         "c-1",
		ChatroomID: params.ChatroomID,
		BrandID:    params.BrandID,
		CreatorID:  params.CreatorID,
		Product:    params.Product,
		Timeline:   params.Timeline,
		Status:     contract.StatusPending,
	}
	f.contracts[rec.ID] = rec
	return rec, nil
}

func (f *fakeContractService) Sign(ctx context.Context, req contract.SignRequest) (contract.Contract, error) {
	f.lastSign = req
	if f.signErr != nil {
		return contract.Contract{}, f.signErr
	}
	rec := f.contracts[req.ContractID]
	sig := req.Signature
	if req.Role == contract.RoleBrand {
		rec.BrandSignature = &sig
	} else {
		rec.CreatorSignature = &sig
	}
	rec.Status = contract.StatusPartiallySigned
	if rec.BrandSignature != nil && rec.CreatorSignature != nil {
		rec.Status = contract.StatusFullySigned
	}
	f.contracts[req.ContractID] = rec
	return rec, nil
}

func (f *fakeContractService) GetByID(ctx context.Context, contractID string) (contract.Contract, error) {
	rec, ok := f.contracts[contractID]
	if !ok {
		return contract.Contract{}, contract.ErrNotFound
	}
	return rec, nil
}

func (f *fakeContractService) ListByChatroom(ctx context.Context, chatroomID string) ([]contract.Contract, error) {
	var out []contract.Contract
	for _, rec := range f.contracts {
		if rec.ChatroomID == chatroomID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeContractService) ListForUser(ctx context.Context, userID string) ([]contract.Contract, error) {
	var out []contract.Contract
	for _, rec := range f.contracts {
		if rec.BrandID == userID || rec.CreatorID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeRoomLookup struct {
	room chatroom.Room
}

func (f *fakeRoomLookup) GetForUser(ctx context.Context, roomID, userID string) (chatroom.Room, error) {
	if roomID != f.room.ID {
		return chatroom.Room{}, chatroom.ErrNotFound
	}
	if !f.room.Member(userID) {
		return chatroom.Room{}, chatroom.ErrForbidden
	}
	return f.room, nil
}

func newContractRouter(svc *fakeContractService, userID, role string) *gin.Engine {
	rooms := &fakeRoomLookup{room: chatroom.Room{ID: "room-1", BrandID: "brand-1", CreatorID: "creator-1"}}
	h := NewContractHandler(svc, rooms)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("user_role", role)
	})
	router.POST("/contracts", h.Create)
	router.POST("/contracts/:id/sign", h.Sign)
	router.GET("/contracts/:id", h.Get)
	return router
}

func seededService() *fakeContractService {
	return &fakeContractService{contracts: map[string]contract.Contract{
		"c-1": {
			ID:         "c-1",
			ChatroomID: "room-1",
			BrandID:    "brand-1",
			CreatorID:  "creator-1",
			Product:    "video campaign",
			Rate:       1500,
			Timeline:   "3 weeks",
			Status:     contract.StatusPending,
		},
	}}
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestContractHandlerCreate(t *testing.T) {
	svc := &fakeContractService{contracts: map[string]contract.Contract{}}
	router := newContractRouter(svc, "brand-1", "brand")

	w := doJSON(t, router, "POST", "/contracts", map[string]string{
		"chatroom_id": "room-1",
		"product":     "video campaign",
		"rate":        "1500.00",
		"timeline":    "3 weeks",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Contract contractJSON `json:"contract"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.Contract.BrandID != "brand-1" || resp.Contract.CreatorID != "creator-1" {
		t.Errorf("parties should come from the chatroom, got brand=%s creator=%s",
			resp.Contract.BrandID, resp.Contract.CreatorID)
	}
	if resp.Contract.Status != "pending" {
		t.Errorf("expected pending status, got %s", resp.Contract.Status)
	}
}

func TestContractHandlerCreateOutsiderForbidden(t *testing.T) {
	svc := &fakeContractService{contracts: map[string]contract.Contract{}}
	router := newContractRouter(svc, "stranger", "brand")

	w := doJSON(t, router, "POST", "/contracts", map[string]string{
		"chatroom_id": "room-1",
		"product":     "video campaign",
		"rate":        "1500.00",
		"timeline":    "3 weeks",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestContractHandlerSign(t *testing.T) {
	svc := seededService()
	router := newContractRouter(svc, "brand-1", "brand")

	w := doJSON(t, router, "POST", "/contracts/c-1/sign", map[string]string{"signature": "sig-blob"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if svc.lastSign.Role != contract.RoleBrand {
		t.Errorf("role should follow the authenticated user, got %s", svc.lastSign.Role)
	}
	if svc.lastSign.ActorID != "brand-1" {
		t.Errorf("actor should be the authenticated user, got %s", svc.lastSign.ActorID)
	}

	var resp struct {
		Contract contractJSON `json:"contract"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.Contract.Status != "partially_signed" {
		t.Errorf("expected partially_signed, got %s", resp.Contract.Status)
	}
}

func TestContractHandlerSignIdempotencyKeyHeader(t *testing.T) {
	svc := seededService()
	router := newContractRouter(svc, "creator-1", "creator")

	body, _ := json.Marshal(map[string]string{"signature": "sig-blob"})
	req := httptest.NewRequest("POST", "/contracts/c-1/sign", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", "key-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if svc.lastSign.IdempotencyKey != "key-123" {
		t.Errorf("idempotency key not forwarded, got %q", svc.lastSign.IdempotencyKey)
	}
}

func TestContractHandlerSignErrors(t *testing.T) {
	tests := []struct {
		name     string
		userID   string
		role     string
		path     string
		body     map[string]string
		signErr  error
		expected int
	}{
		{
			name:     "already signed",
			userID:   "brand-1",
			role:     "brand",
			path:     "/contracts/c-1/sign",
			body:     map[string]string{"signature": "sig"},
			signErr:  contract.ErrAlreadySigned,
			expected: http.StatusConflict,
		},
		{
			name:     "missing signature",
			userID:   "brand-1",
			role:     "brand",
			path:     "/contracts/c-1/sign",
			body:     map[string]string{},
			signErr:  contract.ErrMissingSignature,
			expected: http.StatusBadRequest,
		},
		{
			name:     "unknown contract",
			userID:   "brand-1",
			role:     "brand",
			path:     "/contracts/nope/sign",
			body:     map[string]string{"signature": "sig"},
			expected: http.StatusNotFound,
		},
		{
			name:     "not a party",
			userID:   "other-brand",
			role:     "brand",
			path:     "/contracts/c-1/sign",
			body:     map[string]string{"signature": "sig"},
			expected: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := seededService()
			svc.signErr = tt.signErr
			router := newContractRouter(svc, tt.userID, tt.role)

			w := doJSON(t, router, "POST", tt.path, tt.body)
			if w.Code != tt.expected {
				t.Errorf("expected %d, got %d: %s", tt.expected, w.Code, w.Body.String())
			}
		})
	}
}

func TestContractHandlerGetPartyOnly(t *testing.T) {
	svc := seededService()

	router := newContractRouter(svc, "creator-1", "creator")
	if w := doJSON(t, router, "GET", "/contracts/c-1", nil); w.Code != http.StatusOK {
		t.Errorf("party read: expected 200, got %d", w.Code)
	}

	outsider := newContractRouter(svc, "stranger", "creator")
	if w := doJSON(t, outsider, "GET", "/contracts/c-1", nil); w.Code != http.StatusForbidden {
		t.Errorf("outsider read: expected 403, got %d", w.Code)
	}
}
