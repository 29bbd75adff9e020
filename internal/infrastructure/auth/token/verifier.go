// Package token issues and verifies the HS256 bearer tokens accepted by the
// HTTP API.
package token

import (
	stderrors "errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

var (
	ErrTokenMalformed        = errors.New(errors.ErrCodeUnauthorized, "token malformed")
	ErrTokenExpired          = errors.New(errors.ErrCodeUnauthorized, "token expired")
	ErrTokenInvalidSignature = errors.New(errors.ErrCodeUnauthorized, "token signature invalid")
	ErrTokenInvalidIssuer    = errors.New(errors.ErrCodeUnauthorized, "token issuer invalid")
	ErrTokenMissingSubject   = errors.New(errors.ErrCodeUnauthorized, "token has no subject")
)

// Claims is what the API needs from a verified token.
type Claims struct {
	UserID    string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type registeredClaims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewVerifier builds a verifier. An empty issuer disables the issuer check.
func NewVerifier(secret, issuer string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New(errors.ErrCodeConfiguration, "jwt secret is required")
	}
	return &Verifier{secret: []byte(secret), issuer: issuer, leeway: 30 * time.Second, now: time.Now}, nil
}

// Verify parses raw and returns its claims. Only HS256 is accepted.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var rc registeredClaims
	parsed, err := jwt.ParseWithClaims(raw, &rc, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case stderrors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case stderrors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenInvalidSignature
		case stderrors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, ErrTokenInvalidIssuer
		case stderrors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		}
		return nil, errors.Wrap(err, errors.ErrCodeUnauthorized, "token verification failed")
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalidSignature
	}
	if rc.Subject == "" {
		return nil, ErrTokenMissingSubject
	}

	c := &Claims{UserID: rc.Subject, Roles: rc.Roles}
	if rc.IssuedAt != nil {
		c.IssuedAt = rc.IssuedAt.Time
	}
	if rc.ExpiresAt != nil {
		c.ExpiresAt = rc.ExpiresAt.Time
	}
	return c, nil
}

// Issue signs a token for userID valid for ttl.
func (v *Verifier) Issue(userID string, roles []string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.InvalidParam("user id is required")
	}
	now := v.now()
	rc := registeredClaims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, rc).SignedString(v.secret)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "sign token")
	}
	return signed, nil
}
