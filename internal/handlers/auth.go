package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"roomchat/internal/identity"
	"roomchat/internal/middleware"
	"roomchat/internal/telemetry"
)

// SignInService is the identity provider surface used by the auth endpoints.
type SignInService interface {
	SignIn(ctx context.Context, email, password string) (identity.Session, error)
	SignInWithFederatedProvider(ctx context.Context, provider, idToken string) (identity.Session, error)
	SignOut(ctx context.Context, token string) error
}

// AuthHandler exposes sign-in and sign-out.
type AuthHandler struct {
	identity SignInService
	audit    *telemetry.AuditEmitter
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(svc SignInService, audit *telemetry.AuditEmitter) *AuthHandler {
	return &AuthHandler{identity: svc, audit: audit}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.identity.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.signInFailed(c, err)
		return
	}

	middleware.SetPrincipal(c, session.Principal)
	emitAudit(c, h.audit, "INFO", telemetry.ActionSignedIn, "", "password sign-in")
	c.JSON(http.StatusOK, session)
}

// FederatedLogin handles POST /auth/federated/:provider.
func (h *AuthHandler) FederatedLogin(c *gin.Context) {
	var req struct {
		IDToken string `json:"id_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	provider := c.Param("provider")
	session, err := h.identity.SignInWithFederatedProvider(c.Request.Context(), provider, req.IDToken)
	if err != nil {
		h.signInFailed(c, err)
		return
	}

	middleware.SetPrincipal(c, session.Principal)
	emitAudit(c, h.audit, "INFO", telemetry.ActionSignedIn, "", provider+" sign-in")
	c.JSON(http.StatusOK, session)
}

// Logout handles POST /auth/logout. Open live views of the principal are closed.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.identity.SignOut(c.Request.Context(), middleware.SessionToken(c)); err != nil {
		log.Printf("sign-out failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not sign out"})
		return
	}

	emitAudit(c, h.audit, "INFO", telemetry.ActionSignedOut, "", "signed out")
	c.Status(http.StatusNoContent)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"principal": principal})
}

func (h *AuthHandler) signInFailed(c *gin.Context, err error) {
	emitAudit(c, h.audit, "ERROR", telemetry.ActionSignInFailed, "", err.Error())

	switch {
	case errors.Is(err, identity.ErrTooManyAttempts):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.Is(err, identity.ErrUnknownProvider):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, identity.ErrInvalidCredentials),
		errors.Is(err, identity.ErrInvalidToken),
		errors.Is(err, identity.ErrExpiredToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		log.Printf("identity provider error: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "identity provider unavailable"})
	}
}
