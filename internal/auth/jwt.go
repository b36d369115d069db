// Package auth verifies and mints handshake tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/luciancaetano/sessnet"
)

// ErrInvalidToken wraps every verification failure.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims is the JWT body of a handshake token.
type Claims struct {
	UserID    string `json:"uid"`
	PeerType  string `json:"ptp,omitempty"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
	issuer string
}

// NewJWTVerifier creates a verifier. When issuer is set, tokens must carry it.
func NewJWTVerifier(secret []byte, issuer string) *JWTVerifier {
	return &JWTVerifier{secret: secret, issuer: issuer}
}

// VerifyToken checks the signature, expiry and issuer and returns the identity.
func (v *JWTVerifier) VerifyToken(token string) (*sessnet.VerifiedToken, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	return &sessnet.VerifiedToken{
		Header: parsed.Header,
		Payload: sessnet.TokenPayload{
			UserID:    claims.UserID,
			PeerType:  claims.PeerType,
			SessionID: claims.SessionID,
		},
	}, nil
}

// Mint signs a token for payload. A zero ttl produces a token without expiry.
func (v *JWTVerifier) Mint(payload sessnet.TokenPayload, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    payload.UserID,
		PeerType:  payload.PeerType,
		SessionID: payload.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   v.issuer,
			Subject:  payload.UserID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
