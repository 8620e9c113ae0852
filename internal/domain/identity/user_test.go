package identity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	tenantID := uuid.New()
	u, err := NewUser(tenantID, "John Doe", "  John@Acme.COM ", "s3cret!pw", RoleOwner)
	require.NoError(t, err)

	assert.Equal(t, tenantID, u.TenantID)
	assert.Equal(t, "john@acme.com", u.Email)
	assert.Equal(t, RoleOwner, u.Role)
	assert.True(t, u.IsOwner())
	assert.NotEqual(t, "s3cret!pw", u.PasswordHash)
	assert.True(t, u.VerifyPassword("s3cret!pw"))
	assert.False(t, u.VerifyPassword("wrong"))
}

func TestNewUserDefaultsToMember(t *testing.T) {
	u, err := NewUser(uuid.New(), "Jane", "jane@acme.com", "s3cret!pw", "")
	require.NoError(t, err)
	assert.Equal(t, RoleMember, u.Role)
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "s3cret!pw", false},
		{"too short", "s3c!", true},
		{"no digit", "secret!!pw", true},
		{"no symbol", "s3cretpw9", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewUserRejectsBadEmail(t *testing.T) {
	_, err := NewUser(uuid.New(), "John", "not-an-email", "s3cret!pw", RoleMember)
	assert.Error(t, err)
}
