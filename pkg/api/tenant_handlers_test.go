package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore/pkg/tenancy"
)

func TestGetTenantContext(t *testing.T) {
	t.Run("returns the resolved context", func(t *testing.T) {
		core := newTestCore(&fakeResolver{tc: clinicContext(5, "u1", tenancy.RoleAdmin)}, &fakeEvaluator{allowed: true}, nil)
		handlers := NewTenantHandlers(core)

		rr := serve(handlers, authedRequest("GET", "/tenant", "u1", nil))

		require.Equal(t, http.StatusOK, rr.Code)

		var tc tenancy.TenantContext
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tc))
		assert.Equal(t, tenancy.TenantTypeClinic, tc.Type)
		assert.Equal(t, int64(5), tc.TenantID)
		assert.Equal(t, tenancy.RoleAdmin, tc.Role)
	})

	t.Run("principal with no tenants gets forbidden", func(t *testing.T) {
		core := newTestCore(&fakeResolver{err: tenancy.ErrNoTenantContext}, &fakeEvaluator{allowed: true}, nil)
		handlers := NewTenantHandlers(core)

		rr := serve(handlers, authedRequest("GET", "/tenant", "u1", nil))

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestListCandidates(t *testing.T) {
	t.Run("returns clinics and workspace", func(t *testing.T) {
		workspaceID := int64(2)
		resolver := &fakeResolver{
			candidates: tenancy.Candidates{
				Clinics: []tenancy.ClinicCandidate{
					{ClinicID: 5, Role: tenancy.RoleAdmin},
					{ClinicID: 9, Role: tenancy.RoleMember},
				},
				WorkspaceID: &workspaceID,
			},
		}
		core := newTestCore(resolver, &fakeEvaluator{allowed: true}, nil)
		handlers := NewTenantHandlers(core)

		rr := serve(handlers, authedRequest("GET", "/tenant/candidates", "u1", nil))

		require.Equal(t, http.StatusOK, rr.Code)

		var candidates tenancy.Candidates
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &candidates))
		assert.Len(t, candidates.Clinics, 2)
		require.NotNil(t, candidates.WorkspaceID)
		assert.Equal(t, int64(2), *candidates.WorkspaceID)
	})

	t.Run("requires authentication", func(t *testing.T) {
		core := newTestCore(&fakeResolver{}, &fakeEvaluator{allowed: true}, nil)
		handlers := NewTenantHandlers(core)

		req := httptest.NewRequest("GET", "/tenant/candidates", nil)
		rr := serve(handlers, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
