package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rentchain/escrow/internal/models"
)

const (
	tokenIssuer     = "rentchain-escrow"
	defaultTokenTTL = 24 * time.Hour
)

var ErrInvalidToken = errors.New("auth: invalid session token")

// Claims identify a wallet session. Subject and Address carry the same
// address; Role is "operator" only for the configured operator wallet.
type Claims struct {
	Address models.Address `json:"address"`
	Role    string         `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// GenerateJWT signs an HS256 session token for addr. A non-positive ttl
// means defaultTokenTTL.
func GenerateJWT(secret string, addr models.Address, role string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	issued := time.Now()
	claims := Claims{
		Address: addr,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   addr.String(),
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func ParseJWT(secret string, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	addr, err := models.ParseAddress(claims.Subject)
	if err != nil || addr != claims.Address {
		return nil, fmt.Errorf("%w: subject does not match address", ErrInvalidToken)
	}
	return claims, nil
}
