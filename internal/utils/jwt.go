package utils // package utils provides helpers for operator token creation and checking

import (
    "errors"
    "strings"
    "time"

    "github.com/golang-jwt/jwt/v5" // JWT library for creating and verifying signed tokens
)

// RoleOperator is the only role the API grants.  Operators may trigger
// purchases and delete listings.
const RoleOperator = "OPERATOR"

// Claims is the payload of an operator access token.
type Claims struct {
    Role string `json:"role"`
    jwt.RegisteredClaims
}

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// NewAccessToken signs an HS256 JWT for subject with the given role, valid
// for ttlMin minutes.
func NewAccessToken(secret, subject, role string, ttlMin int) (AccessToken, error) {
    if secret == "" {
        return AccessToken{}, errors.New("jwt secret is empty")
    }
    if strings.TrimSpace(subject) == "" {
        return AccessToken{}, errors.New("token subject is empty")
    }
    if ttlMin <= 0 {
        ttlMin = 60
    }
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    claims := Claims{
        Role: role,
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   subject,
            IssuedAt:  jwt.NewNumericDate(now),
            ExpiresAt: jwt.NewNumericDate(exp),
        },
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies raw against secret and returns its claims.
// Only HS256 tokens with an expiry are accepted.
func ParseAccessToken(secret, raw string) (*Claims, error) {
    var claims Claims
    tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
        return []byte(secret), nil
    }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
    if err != nil {
        return nil, err
    }
    if !tok.Valid {
        return nil, errors.New("invalid token")
    }
    return &claims, nil
}
