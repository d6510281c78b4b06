package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidhaus/bidhaus/internal/memstore"
	"github.com/bidhaus/bidhaus/internal/models"
)

func newTestService() (*Service, *memstore.Store) {
	st := memstore.New()
	return NewService(st, "test-secret"), st
}

func TestService_RegisterValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
		wantErr  bool
	}{
		{name: "Success", username: "alice", password: "secret", wantErr: false},
		{name: "EmptyUsername", username: "", password: "secret", wantErr: true},
		{name: "EmptyPassword", username: "bob", password: "", wantErr: true},
		{name: "UsernameTooLong", username: string(make([]byte, 51)), password: "secret", wantErr: true},
		{name: "PasswordTooLong", username: "carol", password: string(make([]byte, 101)), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Register(ctx, tt.username, tt.password)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.username, user.Username)
			assert.True(t, user.Active)
			assert.NotEqual(t, tt.password, user.PasswordHash, "password must be hashed")
		})
	}
}

func TestService_LoginAndTokenRoundTrip(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "secret")
	require.NoError(t, err)

	token, err := svc.Login(ctx, "alice", "secret")
	require.NoError(t, err)

	id, err := svc.UserFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)
}

func TestService_LoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "secret")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "wrong")
	assert.Error(t, err)

	_, err = svc.Login(ctx, "nobody", "secret")
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestService_LoginRejectsInactiveAccount(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "secret")
	require.NoError(t, err)
	require.NoError(t, st.SetUserActive(ctx, user.ID, false))

	_, err = svc.Login(ctx, "alice", "secret")
	assert.ErrorIs(t, err, models.ErrAccountInactive)
}

func TestService_UserFromTokenRejectsForgery(t *testing.T) {
	svc, _ := newTestService()
	other := NewService(memstore.New(), "other-secret")
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "secret")
	require.NoError(t, err)
	token, err := svc.Login(ctx, "alice", "secret")
	require.NoError(t, err)

	// Signed with a different secret.
	_, err = other.UserFromToken(token)
	assert.Error(t, err)

	_, err = svc.UserFromToken("not-a-token")
	assert.Error(t, err)
}

func TestService_Resolve(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "secret")
	require.NoError(t, err)

	got, err := svc.Resolve(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Resolve(ctx, uuid.New())
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}
