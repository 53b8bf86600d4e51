package performance

import (
	"testing"

	"github.com/clinicore/clinicore/pkg/rbac"
	"github.com/clinicore/clinicore/pkg/records"
	"github.com/clinicore/clinicore/pkg/scope"
	"github.com/clinicore/clinicore/pkg/tenancy"
)

// BenchmarkDefaultMatrix measures the hot path of permission checks: the
// static role matrix consulted on every clinic request before overrides.
func BenchmarkDefaultMatrix(b *testing.B) {
	actions := []rbac.Action{
		rbac.ActionViewPatients,
		rbac.ActionManagePatients,
		rbac.ActionViewFinance,
		rbac.ActionManageOverrides,
		rbac.ActionDeleteClinic,
	}
	roles := []tenancy.Role{tenancy.RoleMember, tenancy.RoleAdmin, tenancy.RoleOwner}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		role := roles[i%len(roles)]
		action := actions[i%len(actions)]
		rbac.DefaultAllows(role, action)
	}
}

// BenchmarkOverrideDenies measures override lookup on a populated map
func BenchmarkOverrideDenies(b *testing.B) {
	overrides := rbac.Overrides{
		tenancy.RoleMember: {
			rbac.ActionViewFinance:   rbac.EffectDeny,
			rbac.ActionManageForms:   rbac.EffectDeny,
			rbac.ActionViewResources: rbac.EffectDeny,
		},
		tenancy.RoleAdmin: {
			rbac.ActionManageFinance: rbac.EffectDeny,
		},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		overrides.Denies(tenancy.RoleMember, rbac.ActionViewFinance)
	}
}

// BenchmarkRegistryLookup measures collection resolution, which sits in
// front of every governed record operation.
func BenchmarkRegistryLookup(b *testing.B) {
	registry := scope.NewRegistry()
	if err := records.RegisterAll(registry); err != nil {
		b.Fatal(err)
	}

	names := registry.Names()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := registry.Get(names[i%len(names)]); err != nil {
			b.Fatal(err)
		}
	}
}
