package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/weiawesome/wes-io-social/pkg/jwt"
)

type stubValidator struct {
	claims *jwt.Claims
	err    error
}

func (s stubValidator) ValidateToken(string) (*jwt.Claims, error) {
	return s.claims, s.err
}

func newRouter(v TokenValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	m := NewAuthMiddleware(v)
	r := gin.New()
	r.GET("/me", m.RequireAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, GetUserID(c))
	})
	r.GET("/admin", m.RequireAuth(), m.RequireRole("internal"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestRequireAuth(t *testing.T) {
	ok := stubValidator{claims: &jwt.Claims{UserID: "u1", Roles: []string{"user"}}}

	tests := []struct {
		name   string
		v      TokenValidator
		header string
		status int
		body   string
	}{
		{"missing header", ok, "", http.StatusUnauthorized, ""},
		{"not bearer", ok, "Basic abc", http.StatusUnauthorized, ""},
		{"empty bearer", ok, "Bearer ", http.StatusUnauthorized, ""},
		{"expired", stubValidator{err: jwt.ErrExpiredToken}, "Bearer t", http.StatusUnauthorized, ""},
		{"invalid", stubValidator{err: errors.New("boom")}, "Bearer t", http.StatusUnauthorized, ""},
		{"valid", ok, "Bearer t", http.StatusOK, "u1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(AuthHeaderKey, tt.header)
			}
			w := httptest.NewRecorder()
			newRouter(tt.v).ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	user := stubValidator{claims: &jwt.Claims{UserID: "u1", Roles: []string{"user"}}}
	internal := stubValidator{claims: &jwt.Claims{UserID: "svc", Roles: []string{"internal"}}}

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(AuthHeaderKey, "Bearer t")
	w := httptest.NewRecorder()
	newRouter(user).ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	newRouter(internal).ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	_, ok = BearerToken("bearer abc")
	assert.False(t, ok)
}
