package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"roomchat/internal/identity"
	"roomchat/internal/models"
)

// IdentityMock stands in for the identity provider's sign-in surface.
type IdentityMock struct {
	mock.Mock
}

func (m *IdentityMock) SignIn(ctx context.Context, email, password string) (identity.Session, error) {
	args := m.Called(ctx, email, password)
	var session identity.Session
	if val := args.Get(0); val != nil {
		session = val.(identity.Session)
	}
	return session, args.Error(1)
}

func (m *IdentityMock) SignInWithFederatedProvider(ctx context.Context, provider, idToken string) (identity.Session, error) {
	args := m.Called(ctx, provider, idToken)
	var session identity.Session
	if val := args.Get(0); val != nil {
		session = val.(identity.Session)
	}
	return session, args.Error(1)
}

func (m *IdentityMock) SignOut(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *IdentityMock) Authenticate(ctx context.Context, token string) (models.Principal, error) {
	args := m.Called(ctx, token)
	var principal models.Principal
	if val := args.Get(0); val != nil {
		principal = val.(models.Principal)
	}
	return principal, args.Error(1)
}
