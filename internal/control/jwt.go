// Package control implements the control surface (C14): the single
// authenticated HTTP/JSON entry point gating every inbound call to the
// unified tool host (C7), the fleet (C6), the orchestrator (C10), and
// session memory's fork tree (C9) before it reaches any of them.
package control

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/haasonsaas/nexus/internal/errs"
	"github.com/haasonsaas/nexus/pkg/models"
)

// Claims carries the role/sessionID/exp payload the control surface's
// bearer scheme expects, distinct from the gateway's user-identity claims.
type Claims struct {
	Role      string `json:"role,omitempty"`
	SessionID string `json:"sessionID,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens and resolves them to a CallerContext.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier builds a Verifier from JWT config. secret must be non-empty;
// Load in runtimeconfig already enforces this before the caller runs.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses and validates a bearer token, returning the caller context
// it authorizes. Expired, malformed, or wrongly-signed tokens fail with
// errs.Unauthorized.
func (v *Verifier) Verify(token string) (models.CallerContext, error) {
	token = strings.TrimPrefix(token, "Bearer ")
	token = strings.TrimPrefix(token, "bearer ")
	token = strings.TrimSpace(token)
	if token == "" {
		return models.CallerContext{}, errs.New(errs.Unauthorized, "missing bearer token")
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return models.CallerContext{}, errs.Wrap(errs.Unauthorized, err, "invalid bearer token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return models.CallerContext{}, errs.New(errs.Unauthorized, "invalid bearer token")
	}
	if v.issuer != "" && claims.Issuer != "" && claims.Issuer != v.issuer {
		return models.CallerContext{}, errs.New(errs.Unauthorized, "unexpected token issuer")
	}

	caller := models.CallerContext{
		Role:      models.Role(claims.Role),
		SessionID: claims.SessionID,
	}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Unix()
		caller.ExpiresAt = &exp
	}
	return caller, nil
}

// Sign issues a token for caller. A zero ttl issues a token with no
// expiry; a negative ttl issues one that is already expired.
func (v *Verifier) Sign(caller models.CallerContext, ttl time.Duration) (string, error) {
	claims := Claims{
		Role:      string(caller.Role),
		SessionID: caller.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if v.issuer != "" {
		claims.Issuer = v.issuer
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
