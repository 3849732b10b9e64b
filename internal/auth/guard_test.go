package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	vendor := Identity{UserID: 7, Email: "vendor@example.com", Role: RoleVendor}

	t.Run("no identity is unauthenticated", func(t *testing.T) {
		err := Check(Identity{})
		require.NotNil(t, err)
		assert.True(t, err.Unauthenticated())
	})

	t.Run("identity alone passes with no guards", func(t *testing.T) {
		assert.Nil(t, Check(vendor))
	})

	t.Run("guards evaluate in order", func(t *testing.T) {
		err := Check(vendor, RequireRole(RoleVendor), RequireEmail("other@example.com"))
		require.NotNil(t, err)
		assert.False(t, err.Unauthenticated())
	})
}

func TestRequireRole(t *testing.T) {
	admin := Identity{UserID: 1, Role: RoleAdmin}
	user := Identity{UserID: 2, Role: RoleUser}

	guard := RequireRole(RoleVendor, RoleAdmin)
	assert.Nil(t, guard(admin))

	err := guard(user)
	require.NotNil(t, err)
	assert.False(t, err.Unauthenticated())
}

func TestRequireEmail(t *testing.T) {
	id := Identity{UserID: 3, Email: "buyer@example.com", Role: RoleUser}

	assert.Nil(t, RequireEmail("buyer@example.com")(id))
	assert.NotNil(t, RequireEmail("vendor@example.com")(id))
}
