package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOwner(t *testing.T) {
	tests := []struct {
		name      string
		userID    string
		sessionID string
		want      Owner
		wantErr   error
	}{
		{name: "UserWins", userID: "u1", sessionID: "s1", want: UserOwner("u1")},
		{name: "GuestOnly", sessionID: " s1 ", want: GuestOwner("s1")},
		{name: "Neither", userID: " ", sessionID: "", wantErr: ErrNoOwner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveOwner(tt.userID, tt.sessionID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOwnerKey(t *testing.T) {
	assert.Equal(t, "user:u1", UserOwner("u1").Key())
	assert.Equal(t, "guest:s1", GuestOwner("s1").Key())

	o, err := ParseOwnerKey("guest:abc")
	require.NoError(t, err)
	assert.Equal(t, GuestOwner("abc"), o)

	_, err = ParseOwnerKey("admin:abc")
	assert.ErrorIs(t, err, ErrNoOwner)
	_, err = ParseOwnerKey("nokey")
	assert.ErrorIs(t, err, ErrNoOwner)
}

func TestOwnerString_MasksID(t *testing.T) {
	assert.Equal(t, "user:abcd***7890", UserOwner("abcdef1234567890").String())
	assert.Equal(t, "guest:short", GuestOwner("short").String())
}
