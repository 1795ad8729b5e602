// Package auth issues and verifies the HS256 bearer tokens that gate the relay API.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = 30 * 24 * time.Hour

// ErrInvalidToken covers every verification failure; callers should not
// distinguish between expired, malformed and forged tokens.
var ErrInvalidToken = errors.New("invalid token")

// Verifier validates bearer tokens signed with the shared relay secret.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewVerifier builds a verifier for the configured signing secret.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("signing secret must be set")
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
	)
	return &Verifier{secret: []byte(secret), parser: parser}, nil
}

// IssueToken mints a token identifying userID, valid for 30 days.
func (v *Verifier) IssueToken(userID int64) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     jwt.NewNumericDate(time.Now().Add(tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify parses and validates a token, returning the identity it carries.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	token, err := v.parser.Parse(tokenString, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	userID, ok := readUserID(mapClaims["user_id"])
	if !ok {
		return nil, fmt.Errorf("%w: missing user_id claim", ErrInvalidToken)
	}
	return &Claims{UserID: userID}, nil
}

func readUserID(raw any) (int64, bool) {
	switch v := raw.(type) {
	case float64:
		return int64(v), true
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, true
		}
	case int64:
		return v, true
	}
	return 0, false
}
