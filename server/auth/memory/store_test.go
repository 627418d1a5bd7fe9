package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/cyp0633/calrest/server/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Authenticate(t *testing.T) {
	s := New()
	require.NoError(t, s.AddUser("admin", "secret", 7))

	p, err := s.Authenticate(context.Background(), auth.Credentials{Username: "admin", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, &auth.Principal{UserID: 7, Username: "admin"}, p)

	tests := []struct {
		name  string
		creds auth.Credentials
	}{
		{"wrong password", auth.Credentials{Username: "admin", Password: "Secret"}},
		{"empty password", auth.Credentials{Username: "admin"}},
		{"unknown user", auth.Credentials{Username: "ghost", Password: "secret"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Authenticate(context.Background(), tt.creds)
			var aerr *auth.Error
			require.True(t, errors.As(err, &aerr))
			assert.Equal(t, auth.ErrInvalidCredentials, aerr.Type)
		})
	}
}

func TestStore_AddUser(t *testing.T) {
	s := New()
	require.NoError(t, s.AddUser("jane", "password", 2))
	assert.Error(t, s.AddUser("jane", "other", 3))
	assert.Error(t, s.AddUser("", "password", 4))

	// the first registration wins
	p, err := s.Authenticate(context.Background(), auth.Credentials{Username: "jane", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.UserID)
}
