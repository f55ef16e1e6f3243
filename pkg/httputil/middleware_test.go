package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medflow/hospital-erp/pkg/auth"
	"github.com/medflow/hospital-erp/pkg/config"
	"github.com/medflow/hospital-erp/pkg/identity"
	"github.com/medflow/hospital-erp/pkg/permissions"
)

const testUserID = "3b2f8f1e-1d3c-4c6a-9a43-5b8f0f6e2a10"

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, identity.FromContext(r.Context()))
	})
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestIdentityMiddleware_Headers(t *testing.T) {
	h := IdentityMiddleware(nil)(echoIdentity())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory/items", nil)
	req.Header.Set(HeaderUserID, testUserID)
	req.Header.Set(HeaderDepartmentID, "cardiology")
	req.Header.Set(HeaderUserRole, permissions.RoleDepartmentStaff)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec).Data.(map[string]interface{})
	assert.Equal(t, testUserID, data["user_id"])
	assert.Equal(t, "cardiology", data["department_id"])
	assert.Equal(t, false, data["is_global_role"])
}

func TestIdentityMiddleware_Rejects(t *testing.T) {
	h := IdentityMiddleware(nil)(echoIdentity())

	tests := []struct {
		name   string
		userID string
	}{
		{"missing user", ""},
		{"malformed user", "not-a-uuid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory/items", nil)
			if tt.userID != "" {
				req.Header.Set(HeaderUserID, tt.userID)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "UNAUTHORIZED", decode(t, rec).Error.Code)
		})
	}
}

func TestIdentityMiddleware_HealthBypass(t *testing.T) {
	h := IdentityMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIdentityMiddleware_BearerToken(t *testing.T) {
	verifier := auth.NewVerifier(&config.JWTConfig{Secret: "s3cret", Issuer: "medflow"})
	token, err := verifier.Sign(&identity.Identity{
		UserID: testUserID, Role: permissions.RoleWarehouseManager, IsGlobalRole: true,
	}, time.Minute)
	require.NoError(t, err)

	h := IdentityMiddleware(verifier)(echoIdentity())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory/items", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec).Data.(map[string]interface{})
	assert.Equal(t, true, data["is_global_role"])

	req = httptest.NewRequest(http.MethodGet, "/api/v1/inventory/items", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_INVALID", decode(t, rec).Error.Code)
}

func TestRequirePermission(t *testing.T) {
	h := RequirePermission(permissions.RequisitionApprove)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	staff := &identity.Identity{UserID: testUserID, Role: permissions.RoleDepartmentStaff}
	manager := &identity.Identity{UserID: testUserID, Role: permissions.RoleWarehouseManager}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	h.ServeHTTP(rec, req.WithContext(identity.WithIdentity(req.Context(), staff)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(identity.WithIdentity(req.Context(), manager)))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPagination(t *testing.T) {
	page, perPage := Pagination(httptest.NewRequest(http.MethodGet, "/?page=0&per_page=500", nil))
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, perPage)

	page, perPage = Pagination(httptest.NewRequest(http.MethodGet, "/?page=3&per_page=50", nil))
	assert.Equal(t, 3, page)
	assert.Equal(t, 50, perPage)

	assert.Equal(t, 3, PageMeta(1, 20, 41).TotalPages)
}
