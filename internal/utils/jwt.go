package utils // package utils provides helper functions for token creation and hashing

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// Roles carried in the "role" claim.  USER and ADMIN tokens are issued at
// login; OPERATOR tokens are issued out of band to whoever runs the
// service and unlock the cache flush and admin routes.
const (
	RoleUser     = "USER"
	RoleAdmin    = "ADMIN"
	RoleOperator = "OPERATOR"
)

// ErrNotOperator is returned by ParseOperatorToken for a valid token that
// does not carry the OPERATOR role.
var ErrNotOperator = errors.New("token does not carry the operator role")

// AccessToken represents a signed JWT along with its expiry.  The Token
// field contains the JWT string.  Exp stores the expiration timestamp.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for a user.  The subject is
// the decimal user id; role is RoleUser or RoleAdmin.
func NewAccessToken(secret string, userID int64, role string, ttl time.Duration) (AccessToken, error) {
	return sign(secret, strconv.FormatInt(userID, 10), role, ttl)
}

// NewOperatorToken builds an OPERATOR token for the named operator.
func NewOperatorToken(secret, operator string, ttl time.Duration) (AccessToken, error) {
	return sign(secret, operator, RoleOperator, ttl)
}

func sign(secret, subject, role string, ttl time.Duration) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	// Standard claims: subject (sub), expiration (exp) and issued at (iat),
	// plus the application role.
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies an HS256 token signed with secret and returns
// its claims.  Expired tokens and other signing methods are rejected.
func ParseAccessToken(secret, raw string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseOperatorToken verifies raw and returns the operator name.
func ParseOperatorToken(secret, raw string) (string, error) {
	claims, err := ParseAccessToken(secret, raw)
	if err != nil {
		return "", err
	}
	if role, _ := claims["role"].(string); role != RoleOperator {
		return "", ErrNotOperator
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return "", err
	}
	return sub, nil
}

// OperatorGuard authorizes cache flushes with an operator token.
type OperatorGuard struct{ Secret string }

func (g OperatorGuard) AuthorizeFlush(grant string) error {
	_, err := ParseOperatorToken(g.Secret, grant)
	return err
}
