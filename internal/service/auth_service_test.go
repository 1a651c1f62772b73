package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskhub/support-service/internal/config"
	"github.com/deskhub/support-service/internal/domain"
)

func newAuthService(store *fakeStore) *AuthService {
	return NewAuthService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 30,
		BcryptCost:            4, // keep hashing fast in tests
	}, store.Users())
}

func TestRegisterCreatesCustomerSession(t *testing.T) {
	store := newFakeStore()
	svc := newAuthService(store)

	session, err := svc.Register(context.Background(), "jane", "jane@example.com", "pass1234")
	require.NoError(t, err)
	require.NotNil(t, session.User)
	assert.Equal(t, domain.RoleCustomer, session.User.Role)
	assert.NotEmpty(t, session.Token)

	claims, err := svc.TokenManager().ParseToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, claims.UserID)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	store := newFakeStore()
	svc := newAuthService(store)

	_, err := svc.Register(context.Background(), "jane", "jane@example.com", "pass1234")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "jane", "other@example.com", "pass1234")
	require.Error(t, err)
}

func TestLoginChecksPassword(t *testing.T) {
	store := newFakeStore()
	svc := newAuthService(store)

	_, err := svc.Register(context.Background(), "jane", "jane@example.com", "pass1234")
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "jane", "wrong")
	require.Error(t, err)

	session, err := svc.Login(context.Background(), "jane", "pass1234")
	require.NoError(t, err)
	assert.Equal(t, "jane", session.User.Username)
}

func TestLoginUnknownUser(t *testing.T) {
	store := newFakeStore()
	svc := newAuthService(store)

	_, err := svc.Login(context.Background(), "ghost", "pass1234")
	require.Error(t, err)
}

func TestCreateUserProvisionsAgentOffline(t *testing.T) {
	store := newFakeStore()
	svc := newAuthService(store)

	agent, err := svc.CreateUser(context.Background(), "sam", "sam@example.com", "pass1234", domain.RoleAgent)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAgent, agent.Role)
	assert.False(t, agent.IsAvailable, "agents join scheduling by flipping themselves available")
	assert.Equal(t, 5, agent.Capacity)
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	store := newFakeStore()
	svc := newAuthService(store)

	_, err := svc.CreateUser(context.Background(), "sam", "sam@example.com", "pass1234", domain.UserRole("owner"))
	require.Error(t, err)
}
