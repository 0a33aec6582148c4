// Package utils issues and verifies the operator access tokens used on the
// back-office routes.
package utils

import (
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/golang-jwt/jwt/v5"
)

// RoleOperator is the only role accepted on the back-office routes.
const RoleOperator = "OPERATOR"

// AccessToken is a signed operator JWT and its expiry, as printed by the
// token command.
type AccessToken struct {
    Token string    `json:"token"`
    Exp   time.Time `json:"expires_at"`
}

// OperatorClaims is the payload of an operator token.  The operator id is
// the subject.
type OperatorClaims struct {
    Role string `json:"role"`
    jwt.RegisteredClaims
}

// NewOperatorToken signs an HS256 token for operatorID valid for ttlMin
// minutes.
func NewOperatorToken(secret, operatorID string, ttlMin int) (AccessToken, error) {
    if strings.TrimSpace(operatorID) == "" {
        return AccessToken{}, errors.New("operator id is required")
    }
    if ttlMin <= 0 {
        return AccessToken{}, errors.New("token ttl must be positive")
    }
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    claims := OperatorClaims{
        Role: RoleOperator,
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   operatorID,
            IssuedAt:  jwt.NewNumericDate(now),
            ExpiresAt: jwt.NewNumericDate(exp),
        },
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, fmt.Errorf("sign operator token: %w", err)
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseOperatorToken verifies raw with secret.  Only HS256 tokens carrying
// an expiry are accepted; the role is returned as found and checked by the
// caller.
func ParseOperatorToken(secret, raw string) (*OperatorClaims, error) {
    claims := &OperatorClaims{}
    _, err := jwt.ParseWithClaims(raw, claims,
        func(*jwt.Token) (interface{}, error) { return []byte(secret), nil },
        jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
        jwt.WithExpirationRequired(),
    )
    if err != nil {
        return nil, err
    }
    return claims, nil
}
