// Package auth verifies RS256 bearer tokens issued by an external identity
// provider. Claims are only checked, never interpreted.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/nhle/todoplus/internal/apperr"
)

// Verifier checks signature, algorithm, audience and issuer of a token.
type Verifier struct {
	keyfunc jwt.Keyfunc
	parser  *jwt.Parser
}

// NewVerifier builds a Verifier around kf. Empty audience or issuer skips
// that check.
func NewVerifier(kf jwt.Keyfunc, audience, issuer string) *Verifier {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()})}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &Verifier{keyfunc: kf, parser: jwt.NewParser(opts...)}
}

// FromJWKS fetches the key set at url and keeps it refreshed until ctx is
// done.
func FromJWKS(ctx context.Context, url, audience, issuer string) (*Verifier, error) {
	if url == "" {
		return nil, errors.New("jwks url is required when auth is enabled")
	}
	k, err := keyfunc.NewDefaultCtx(ctx, []string{url})
	if err != nil {
		return nil, fmt.Errorf("loading jwks from %s: %w", url, err)
	}
	return NewVerifier(k.Keyfunc, audience, issuer), nil
}

// Verify parses raw and returns its registered claims.
func (v *Verifier) Verify(raw string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := v.parser.ParseWithClaims(raw, claims, v.keyfunc)
	if err != nil {
		return nil, apperr.Unauthorized("invalid token", err)
	}
	if !token.Valid {
		return nil, apperr.Unauthorized("invalid token", nil)
	}
	return claims, nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", apperr.Unauthorized("missing authorization header", nil)
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", apperr.Unauthorized("malformed authorization header", nil)
	}
	return strings.TrimSpace(token), nil
}

type claimsKey struct{}

// NewContext returns ctx carrying claims.
func NewContext(ctx context.Context, claims *jwt.RegisteredClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// FromContext returns the claims stored by NewContext, if any.
func FromContext(ctx context.Context) (*jwt.RegisteredClaims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*jwt.RegisteredClaims)
	return c, ok
}
