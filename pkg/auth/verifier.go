// Package auth verifies the access tokens issued by the MedFlow gateway.
// Token issuance lives in the auth service; this package only reads them.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/medflow/hospital-erp/pkg/config"
	"github.com/medflow/hospital-erp/pkg/errors"
	"github.com/medflow/hospital-erp/pkg/identity"
)

// Claims represents the JWT claims
type Claims struct {
	jwt.RegisteredClaims
	UserID       string   `json:"user_id"`
	DepartmentID string   `json:"department_id"`
	Role         string   `json:"role"`
	IsGlobalRole bool     `json:"is_global_role"`
	Permissions  []string `json:"permissions,omitempty"`
}

// Identity converts verified claims to the request identity.
func (c *Claims) Identity() *identity.Identity {
	userID := c.UserID
	if userID == "" {
		userID = c.Subject
	}
	return &identity.Identity{
		UserID:       userID,
		DepartmentID: c.DepartmentID,
		Role:         c.Role,
		IsGlobalRole: c.IsGlobalRole,
		Permissions:  c.Permissions,
	}
}

// Verifier validates HS256 access tokens.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a verifier from the JWT configuration
func NewVerifier(cfg *config.JWTConfig) *Verifier {
	return &Verifier{secret: []byte(cfg.Secret), issuer: cfg.Issuer}
}

// Verify validates an access token and returns the claims
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.TokenExpired()
		}
		return nil, errors.TokenInvalid()
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.TokenInvalid()
	}

	return claims, nil
}

// Sign issues a token for the identity. Used by tooling and tests that need
// a token the verifier accepts.
func (v *Verifier) Sign(id *identity.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   id.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		UserID:       id.UserID,
		DepartmentID: id.DepartmentID,
		Role:         id.Role,
		IsGlobalRole: id.IsGlobalRole,
		Permissions:  id.Permissions,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
