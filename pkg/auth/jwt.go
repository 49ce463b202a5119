package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const Audience = "invites-api"

const RoleOwner = "owner"

type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Caller is the authenticated invitation owner behind a request.
type Caller struct {
	OwnerID uuid.UUID
	Email   string
	Role    string
}

func (c Caller) Owns(ownerID uuid.UUID) bool {
	return c.OwnerID != uuid.Nil && c.OwnerID == ownerID
}

func NewAccessToken(ownerID uuid.UUID, email, role, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Audience:  []string{Audience},
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func Parse(tokenString, secret string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithAudience(Audience))
	if err != nil {
		return nil, err
	}
	if claims, ok := tok.Claims.(*Claims); ok && tok.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// CallerFromToken parses a bearer token into the caller it identifies.
func CallerFromToken(tokenString, secret string) (Caller, error) {
	claims, err := Parse(tokenString, secret)
	if err != nil {
		return Caller{}, err
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Caller{}, errors.New("invalid subject")
	}
	return Caller{OwnerID: id, Email: claims.Email, Role: claims.Role}, nil
}
