// Package identity is the identity provider: it signs principals in with a password or
// a federated ID token, issues session tokens, and notifies subscribers when a
// principal's session state changes.
package identity

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"roomchat/internal/models"
	"roomchat/internal/observability"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTooManyAttempts    = errors.New("too many sign-in attempts")
	ErrUnknownProvider    = errors.New("unknown identity provider")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token has expired")
	ErrTokenRevoked       = errors.New("token has been revoked")
)

// Session is the result of a successful sign-in.
type Session struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Principal models.Principal `json:"principal"`
}

// Subscription is a registered principal-change callback.
type Subscription struct {
	principalID string
	provider    *Provider
	once        sync.Once
}

// Unsubscribe removes the callback. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.provider.unwatch(s)
	})
}

// Provider implements password and federated sign-in over signed session tokens.
type Provider struct {
	accounts  AccountStore
	tokens    *TokenIssuer
	federated map[string][]byte
	throttle  Throttle

	mu       sync.Mutex
	revoked  map[string]time.Time
	watchers map[string]map[*Subscription]func(*models.Principal)
}

// NewProvider wires a provider. federated maps provider names to ID token keys.
func NewProvider(accounts AccountStore, tokens *TokenIssuer, federated map[string]string, throttle Throttle) *Provider {
	keys := make(map[string][]byte, len(federated))
	for name, key := range federated {
		keys[strings.ToLower(name)] = []byte(key)
	}
	if throttle == nil {
		throttle = NoThrottle{}
	}
	return &Provider{
		accounts:  accounts,
		tokens:    tokens,
		federated: keys,
		throttle:  throttle,
		revoked:   make(map[string]time.Time),
		watchers:  make(map[string]map[*Subscription]func(*models.Principal)),
	}
}

// SignIn authenticates a password account.
func (p *Provider) SignIn(ctx context.Context, email, password string) (Session, error) {
	allowed, err := p.throttle.Allow(ctx, normalizeEmail(email))
	if err != nil {
		log.Printf("sign-in throttle unavailable, allowing attempt: %v", err)
	}
	if !allowed {
		observability.IncSignIn("password", "throttled")
		return Session{}, ErrTooManyAttempts
	}

	acc, ok := p.accounts.Lookup(ctx, email)
	if !ok || !verifyPassword(acc.PasswordHash, password) {
		observability.IncSignIn("password", "rejected")
		return Session{}, ErrInvalidCredentials
	}

	observability.IncSignIn("password", "ok")
	return p.startSession(models.Principal{
		ID:          acc.ID,
		DisplayName: acc.DisplayName,
		Email:       acc.Email,
		AvatarURL:   acc.AvatarURL,
	})
}

// SignInWithFederatedProvider authenticates an ID token issued by a configured provider.
func (p *Provider) SignInWithFederatedProvider(ctx context.Context, provider, idToken string) (Session, error) {
	provider = strings.ToLower(provider)
	key, ok := p.federated[provider]
	if !ok {
		observability.IncSignIn("federated", "unknown_provider")
		return Session{}, ErrUnknownProvider
	}

	claims, err := parseHS256(idToken, key, p.tokens.now, jwt.WithExpirationRequired())
	if err != nil {
		observability.IncSignIn("federated", "rejected")
		return Session{}, err
	}

	principal := claims.Principal()
	principal.ID = provider + ":" + claims.Subject
	observability.IncSignIn("federated", "ok")
	return p.startSession(principal)
}

// Authenticate resolves a session token to its principal.
func (p *Provider) Authenticate(_ context.Context, token string) (models.Principal, error) {
	claims, err := p.tokens.Parse(token)
	if err != nil {
		return models.Principal{}, err
	}

	p.mu.Lock()
	_, revoked := p.revoked[claims.ID]
	p.mu.Unlock()
	if revoked {
		return models.Principal{}, ErrTokenRevoked
	}
	return claims.Principal(), nil
}

// SignOut revokes one session token and reports a nil principal to the principal's
// subscribers. Other sessions of the principal stay valid.
func (p *Provider) SignOut(_ context.Context, token string) error {
	claims, err := p.tokens.Parse(token)
	if err != nil {
		return err
	}

	now := p.tokens.now()
	p.mu.Lock()
	for jti, expiry := range p.revoked {
		if now.After(expiry) {
			delete(p.revoked, jti)
		}
	}
	p.revoked[claims.ID] = claims.ExpiresAt.Time
	p.mu.Unlock()

	p.notify(claims.Subject, nil)
	return nil
}

// OnPrincipalChanged registers cb for sign-in and sign-out of the principal. Sign-out
// is reported as a nil principal. Callers must Unsubscribe when done.
func (p *Provider) OnPrincipalChanged(principalID string, cb func(*models.Principal)) *Subscription {
	sub := &Subscription{principalID: principalID, provider: p}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.watchers[principalID]; !ok {
		p.watchers[principalID] = make(map[*Subscription]func(*models.Principal))
	}
	p.watchers[principalID][sub] = cb
	return sub
}

// Watchers reports the registered callbacks for a principal.
func (p *Provider) Watchers(principalID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.watchers[principalID])
}

func (p *Provider) unwatch(sub *Subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if subs, ok := p.watchers[sub.principalID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(p.watchers, sub.principalID)
		}
	}
}

func (p *Provider) startSession(principal models.Principal) (Session, error) {
	token, claims, err := p.tokens.Issue(principal)
	if err != nil {
		return Session{}, err
	}
	p.notify(principal.ID, &principal)
	return Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, Principal: principal}, nil
}

func (p *Provider) notify(principalID string, principal *models.Principal) {
	p.mu.Lock()
	callbacks := make([]func(*models.Principal), 0, len(p.watchers[principalID]))
	for _, cb := range p.watchers[principalID] {
		callbacks = append(callbacks, cb)
	}
	p.mu.Unlock()

	for _, cb := range callbacks {
		cb(principal)
	}
}
