package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticProvider_ResolveByID(t *testing.T) {
	provider := NewStaticProvider([]User{
		{ID: "user-1", Name: "Dana", Role: "hr_manager"},
	})

	user, err := provider.ResolveApprover(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Dana", user.Name)
}

func TestStaticProvider_ResolveByRole(t *testing.T) {
	provider := NewStaticProvider([]User{
		{ID: "user-1", Name: "Dana", Role: "hr_manager"},
		{ID: "user-2", Name: "Sam", Role: "hr_manager"},
	})

	user, err := provider.ResolveApprover(context.Background(), "hr_manager")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID, "first user registered for a role wins")
}

func TestStaticProvider_NotFound(t *testing.T) {
	provider := NewStaticProvider(nil)

	_, err := provider.ResolveApprover(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrApproverNotFound)
}
