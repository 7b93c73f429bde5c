package authz_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ivbsa-designe/biblioteca-ceprereso/authz"
)

func TestRole_Capabilities(t *testing.T) {
	// Admins hold every capability; librarians hold none of the gated ones.
	actions := []authz.Action{
		authz.ActionBookManagement,
		authz.ActionPPLManagement,
		authz.ActionSanctions,
		authz.ActionReportsExport,
	}

	for _, a := range actions {
		assert.True(t, authz.RoleAdmin.HasCapability(a), string(a))
		assert.False(t, authz.RoleLibrarian.HasCapability(a), string(a))
	}
}

func TestRequire_DeniedCarriesAction(t *testing.T) {
	err := authz.Require(authz.RoleLibrarian, authz.ActionSanctions)
	assert.ErrorIs(t, err, authz.ErrPermissionDenied)

	var denied *authz.PermissionDeniedError
	assert.ErrorAs(t, err, &denied)
	assert.Equal(t, authz.ActionSanctions, denied.Action)
}

func TestRequire_NilAuthorizerFailsClosed(t *testing.T) {
	err := authz.Require(nil, authz.ActionBookManagement)
	assert.ErrorIs(t, err, authz.ErrPermissionDenied)
}

func TestParseRole_UnknownRoleHasNoCapabilities(t *testing.T) {
	role := authz.ParseRole("visitor")
	assert.False(t, role.HasCapability(authz.ActionBookManagement))
}

func TestParseRole_KnownRoles(t *testing.T) {
	assert.Equal(t, authz.RoleAdmin, authz.ParseRole("admin"))
	assert.Equal(t, authz.RoleLibrarian, authz.ParseRole("bibliotecario"))
}
