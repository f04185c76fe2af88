// Package auth issues and verifies the HS256 bearer tokens carried by API
// callers.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bazaarhub/bazaar-backend/pkg/config"
	"github.com/bazaarhub/bazaar-backend/pkg/enums"
)

var (
	errMissingUser     = errors.New("token has no user")
	errInvalidRole     = errors.New("token role is not recognised")
	errSellerWithoutID = errors.New("seller token has no seller id")
)

type claims struct {
	UserID   uuid.UUID      `json:"user_id"`
	SellerID *uuid.UUID     `json:"seller_id,omitempty"`
	Role     enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies access tokens for one issuer.
type Tokens struct {
	secret []byte
	issuer string
	ttl    time.Duration
	parser *jwt.Parser
}

// NewTokens checks cfg once so request handling never sees a half-configured
// signer.
func NewTokens(cfg config.JWTConfig) (*Tokens, error) {
	switch {
	case cfg.Secret == "":
		return nil, errors.New("jwt secret is required")
	case cfg.Issuer == "":
		return nil, errors.New("jwt issuer is required")
	case cfg.ExpirationMinutes <= 0:
		return nil, errors.New("jwt expiration must be positive")
	}
	return &Tokens{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    time.Duration(cfg.ExpirationMinutes) * time.Minute,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}, nil
}

// Issue signs a token for user valid from issuedAt for the configured TTL.
func (t *Tokens) Issue(user AuthenticatedUser, issuedAt time.Time) (string, error) {
	if err := user.validate(); err != nil {
		return "", err
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID:   user.UserID,
		SellerID: user.SellerID,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    t.issuer,
			Subject:   user.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(t.ttl)),
		},
	}).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry and returns the caller.
func (t *Tokens) Verify(raw string) (AuthenticatedUser, error) {
	var c claims
	if _, err := t.parser.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}); err != nil {
		return AuthenticatedUser{}, err
	}
	user := AuthenticatedUser{UserID: c.UserID, Role: c.Role, SellerID: c.SellerID}
	if err := user.validate(); err != nil {
		return AuthenticatedUser{}, err
	}
	return user, nil
}
