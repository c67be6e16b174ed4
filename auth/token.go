package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Sammyalade/Jumia-backend/models"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "jumia-backend"

// Claims is the session token payload. "id" carries the user id.
type Claims struct {
	UserID uint     `json:"id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 session token for a user.
func IssueToken(secret string, userID uint, roles models.Roles, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Roles:  roles.Slice(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken verifies signature, expiry and issuer, and validates the role set.
func ParseToken(secret, tokenString string) (*Claims, models.Roles, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid token signing method")
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, nil, err
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, nil, errors.New("invalid token claims")
	}
	roles, err := models.ParseRoles(claims.Roles)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid token roles: %w", err)
	}
	return claims, roles, nil
}
