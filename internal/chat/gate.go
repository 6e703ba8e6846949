package chat

import (
	"context"
	"strings"
	"sync"

	"roomchat/internal/identity"
	"roomchat/internal/models"
)

// IdentityProvider is the part of the identity provider the session gate relies on.
type IdentityProvider interface {
	Authenticate(ctx context.Context, token string) (models.Principal, error)
	OnPrincipalChanged(principalID string, cb func(*models.Principal)) *identity.Subscription
}

// Gate resolves the current principal of a request or view.
type Gate struct {
	provider IdentityProvider
}

func NewGate(provider IdentityProvider) *Gate {
	return &Gate{provider: provider}
}

// Resolve returns the principal for a session token. An empty token is ErrUnauthenticated.
func (g *Gate) Resolve(ctx context.Context, token string) (models.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.Principal{}, ErrUnauthenticated
	}
	return g.provider.Authenticate(ctx, token)
}

// Open resolves the principal and ties a principal-change subscription to the
// returned view session. The caller owns the session and must Close it.
//
// A sign-out of the principal only ends the view when the view's own token stops
// authenticating; views opened with another of the principal's sessions stay open.
func (g *Gate) Open(ctx context.Context, token string) (*ViewSession, error) {
	principal, err := g.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	token = strings.TrimSpace(token)

	vs := &ViewSession{Principal: principal, signedOut: make(chan struct{})}
	vs.sub = g.provider.OnPrincipalChanged(principal.ID, func(p *models.Principal) {
		if p != nil {
			return
		}
		if _, err := g.provider.Authenticate(context.Background(), token); err == nil {
			return
		}
		vs.signOutOnce.Do(func() { close(vs.signedOut) })
	})
	return vs, nil
}

// ViewSession is the principal of one open view plus its standing subscription.
type ViewSession struct {
	Principal models.Principal

	sub         *identity.Subscription
	signedOut   chan struct{}
	signOutOnce sync.Once
}

// SignedOut is closed when the view's session is signed out.
func (vs *ViewSession) SignedOut() <-chan struct{} {
	return vs.signedOut
}

// Close releases the principal-change subscription.
func (vs *ViewSession) Close() {
	vs.sub.Unsubscribe()
}
