package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-social/interaction-service/internal/domain"
	"github.com/weiawesome/wes-io-social/pkg/middleware"
	"github.com/weiawesome/wes-io-social/pkg/response"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestRouter(svc *MockInteractionService) *gin.Engine {
	r := gin.New()
	NewHandler(svc, middleware.NewAuthMiddleware(stubValidator{})).RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(middleware.AuthHeaderKey, middleware.BearerPrefix+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestToggle(t *testing.T) {
	svc := new(MockInteractionService)
	out := domain.ToggleOutcome{Success: true, TargetID: "post-1", Kind: domain.KindLike, State: domain.StateOn, Changed: true, Count: 1, Version: 1}
	svc.On("Apply", mock.Anything, "alice", "post-1", domain.KindLike, domain.ActionToggle).Return(out, nil)

	w := do(newTestRouter(svc), http.MethodPost, "/api/v1/interactions/like/post-1/toggle", "alice", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "on", data["state"])
	assert.Equal(t, float64(1), data["count"])
	svc.AssertExpectations(t)
}

func TestToggleRequiresAuth(t *testing.T) {
	svc := new(MockInteractionService)

	w := do(newTestRouter(svc), http.MethodPost, "/api/v1/interactions/like/post-1/toggle", "", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	svc.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestToggleUnknownKind(t *testing.T) {
	svc := new(MockInteractionService)

	w := do(newTestRouter(svc), http.MethodPost, "/api/v1/interactions/share/post-1/toggle", "alice", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeBadRequest, decode(t, w).Error.Code)
}

func TestToggleErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"self follow", domain.ErrSelfInteraction, http.StatusBadRequest, response.CodeBadRequest},
		{"not found", domain.ErrNotFound, http.StatusNotFound, response.CodeNotFound},
		{"conflict", fmt.Errorf("%w after 3 attempts", domain.ErrToggleConflict), http.StatusConflict, response.CodeConflict},
		{"storage", fmt.Errorf("%w: conn refused", domain.ErrStorageUnavailable), http.StatusServiceUnavailable, response.CodeServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, response.CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockInteractionService)
			svc.On("Apply", mock.Anything, "alice", "bob", domain.KindFollow, domain.ActionToggle).
				Return(domain.ToggleOutcome{}, tt.err)

			w := do(newTestRouter(svc), http.MethodPost, "/api/v1/interactions/follow/bob/toggle", "alice", nil)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode(t, w).Error.Code)
		})
	}
}

func TestApplyAction(t *testing.T) {
	svc := new(MockInteractionService)
	svc.On("Apply", mock.Anything, "alice", "post-1", domain.KindCollect, domain.ActionOff).
		Return(domain.ToggleOutcome{Success: true, State: domain.StateOff}, nil)
	r := newTestRouter(svc)

	w := do(r, http.MethodPut, "/api/v1/interactions/collect/post-1", "alice", map[string]string{"action": "off"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPut, "/api/v1/interactions/collect/post-1", "alice", map[string]string{"action": "flip"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, "/api/v1/interactions/collect/post-1", "alice", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.AssertNumberOfCalls(t, "Apply", 1)
}

func TestBatchToggle(t *testing.T) {
	svc := new(MockInteractionService)
	items := []domain.BatchItem{
		{TargetID: "post-1", Kind: domain.KindLike, Action: domain.ActionOn},
		{TargetID: "post-2", Kind: domain.KindLike},
	}
	results := map[string]domain.ToggleOutcome{
		"post-1": {Success: true, TargetID: "post-1", State: domain.StateOn},
		"post-2": {Success: false, TargetID: "post-2", Error: "target not found"},
	}
	svc.On("BatchToggle", mock.Anything, "alice", items).Return(results, nil)

	w := do(newTestRouter(svc), http.MethodPost, "/api/v1/interactions/batch", "alice", map[string]interface{}{"items": items})

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	got := data["results"].(map[string]interface{})
	assert.Len(t, got, 2)
	assert.Equal(t, "target not found", got["post-2"].(map[string]interface{})["error"])
}

func TestBatchToggleTooLarge(t *testing.T) {
	svc := new(MockInteractionService)
	svc.On("BatchToggle", mock.Anything, "alice", mock.Anything).
		Return(nil, fmt.Errorf("%w: 101 items, limit 100", domain.ErrBatchTooLarge))

	w := do(newTestRouter(svc), http.MethodPost, "/api/v1/interactions/batch", "alice",
		map[string]interface{}{"items": []domain.BatchItem{{TargetID: "p", Kind: domain.KindLike}}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetCount(t *testing.T) {
	svc := new(MockInteractionService)
	svc.On("GetCount", mock.Anything, "post-1", domain.KindLike).
		Return(domain.CounterAggregate{TargetID: "post-1", Kind: domain.KindLike, Value: 42, Version: 50}, nil)

	w := do(newTestRouter(svc), http.MethodGet, "/api/v1/interactions/like/post-1/count", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, float64(42), data["count"])
}

func TestBatchStatus(t *testing.T) {
	svc := new(MockInteractionService)
	svc.On("BatchStatus", mock.Anything, "alice", domain.KindFollow, []string{"bob", "carol"}).
		Return(map[string]bool{"bob": true, "carol": false}, nil)

	w := do(newTestRouter(svc), http.MethodPost, "/api/v1/users/alice/interactions/follow/status", "",
		map[string][]string{"target_ids": {"bob", "carol"}})

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"bob": true, "carol": false}, data["results"])
}

func TestRegisterTarget(t *testing.T) {
	svc := new(MockInteractionService)
	target := domain.Target{ID: "post-1", OwnerID: "bob", Type: "post"}
	svc.On("RegisterTarget", mock.Anything, target).Return(&target, nil)

	w := do(newTestRouter(svc), http.MethodPut, "/internal/v1/targets/post-1", "",
		map[string]string{"owner_id": "bob", "type": "post"})

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestHealth(t *testing.T) {
	w := do(newTestRouter(new(MockInteractionService)), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
