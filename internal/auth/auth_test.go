package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/todoplus/internal/apperr"
)

const kid = "test-key"

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func sign(t *testing.T, key *rsa.PrivateKey, method jwt.SigningMethod, claims jwt.RegisteredClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(method, claims)
	tok.Header["kid"] = kid
	var signingKey any = key
	if method == jwt.SigningMethodHS256 {
		signingKey = []byte("shared-secret")
	}
	s, err := tok.SignedString(signingKey)
	require.NoError(t, err)
	return s
}

func staticKey(key *rsa.PrivateKey) jwt.Keyfunc {
	return func(*jwt.Token) (any, error) {
		return &key.PublicKey, nil
	}
}

func validClaims() jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   "auth0|123",
		Audience:  jwt.ClaimStrings{"todoplus-api"},
		Issuer:    "https://issuer.example.com/",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
}

func TestVerify(t *testing.T) {
	key := newKey(t)
	other := newKey(t)
	v := NewVerifier(staticKey(key), "todoplus-api", "https://issuer.example.com/")

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	wrongAud := validClaims()
	wrongAud.Audience = jwt.ClaimStrings{"someone-else"}
	wrongIss := validClaims()
	wrongIss.Issuer = "https://evil.example.com/"

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid", sign(t, key, jwt.SigningMethodRS256, validClaims()), false},
		{"expired", sign(t, key, jwt.SigningMethodRS256, expired), true},
		{"wrong audience", sign(t, key, jwt.SigningMethodRS256, wrongAud), true},
		{"wrong issuer", sign(t, key, jwt.SigningMethodRS256, wrongIss), true},
		{"wrong key", sign(t, other, jwt.SigningMethodRS256, validClaims()), true},
		{"hmac", sign(t, key, jwt.SigningMethodHS256, validClaims()), true},
		{"garbage", "not.a.token", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.Verify(tt.token)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperr.CodeUnauthorized, apperr.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "auth0|123", claims.Subject)
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", false},
		{"bearer  abc", "abc", false},
		{"", "", true},
		{"Basic dXNlcjpwYXNz", "", true},
		{"Bearer", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := BearerToken(r)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromJWKS(t *testing.T) {
	key := newKey(t)
	jwks := map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": kid,
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	v, err := FromJWKS(ctx, srv.URL, "todoplus-api", "")
	require.NoError(t, err)

	claims, err := v.Verify(sign(t, key, jwt.SigningMethodRS256, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "auth0|123", claims.Subject)
}

func TestFromJWKSRequiresURL(t *testing.T) {
	_, err := FromJWKS(context.Background(), "", "", "")
	assert.Error(t, err)
}

func TestClaimsContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := NewContext(context.Background(), &jwt.RegisteredClaims{Subject: "s"})
	c, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "s", c.Subject)
}
