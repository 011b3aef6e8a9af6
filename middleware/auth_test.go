package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"collabflow/auth"
)

type fakeVerifier struct {
	userID string
	role   auth.Role
	err    error
}

func (f *fakeVerifier) VerifyToken(tokenString string) (string, auth.Role, error) {
	return f.userID, f.role, f.err
}

func newAuthRouter(v TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth(v))
	router.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": GetUserID(c),
			"role":    string(GetUserRole(c)),
		})
	})
	return router
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		verifier *fakeVerifier
		expected int
	}{
		{
			name:     "valid token",
			header:   "Bearer good-token",
			verifier: &fakeVerifier{userID: "u-1", role: auth.RoleBrand},
			expected: http.StatusOK,
		},
		{
			name:     "missing header",
			header:   "",
			verifier: &fakeVerifier{},
			expected: http.StatusUnauthorized,
		},
		{
			name:     "malformed header",
			header:   "Basic abc",
			verifier: &fakeVerifier{},
			expected: http.StatusUnauthorized,
		},
		{
			name:     "rejected token",
			header:   "Bearer bad-token",
			verifier: &fakeVerifier{err: errors.New("expired")},
			expected: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newAuthRouter(tt.verifier)

			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, w.Code)
			}
		})
	}
}

func TestAuthMiddlewareSetsIdentity(t *testing.T) {
	router := newAuthRouter(&fakeVerifier{userID: "u-42", role: auth.RoleCreator})

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	body := w.Body.String()
	if !strings.Contains(body, `"role":"creator"`) || !strings.Contains(body, `"user_id":"u-42"`) {
		t.Errorf("identity missing from context, body: %s", body)
	}
}
