package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"kense.org/internal/obs"
)

const tokenIssuer = "kense"

// DefaultTokenExpirySeconds is the fallback applied when the configured
// expiry string cannot be parsed.
const DefaultTokenExpirySeconds = 3600

// Claims are the signed contents of an access token.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Session is the issued credential handed to the client.
type Session struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// Issuer mints and verifies signed, time-bounded access tokens. Tokens are
// never stored server-side; validity is purely signature plus expiry.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithIssuerClock overrides the time source (useful for tests).
func WithIssuerClock(fn func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if fn != nil {
			i.now = fn
		}
	}
}

// NewIssuer constructs an Issuer. The secret is required; ttl <= 0 falls back
// to one hour.
func NewIssuer(secret string, ttl time.Duration, opts ...IssuerOption) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: token secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenExpirySeconds * time.Second
	}
	iss := &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(iss)
	}
	return iss, nil
}

// Issue signs an access token for a validated user. The payload carries the
// subject id, username and primary role only; permissions are re-resolved on
// every request.
func (i *Issuer) Issue(user *User) (Session, error) {
	if user == nil || user.ID == "" {
		return Session{}, ErrInvalidInput
	}
	now := i.now().UTC()
	claims := Claims{
		Username: user.Username,
		Role:     user.PrimaryRole(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: signed, ExpiresIn: int(i.ttl / time.Second)}, nil
}

// Parse verifies the token signature and required claims. Every failure mode
// collapses to ErrTokenInvalid.
func (i *Issuer) Parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenInvalid
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenInvalid
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Issuer != tokenIssuer || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrTokenInvalid
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// ParseExpiry interprets a duration string whose final character is a unit
// (s, m, h, d) and whose prefix is an integer, returning seconds. Anything
// unparseable degrades to the one-hour default so a misconfigured expiry
// cannot break login; the fallback is logged as a configuration warning.
func ParseExpiry(spec string) int {
	spec = strings.TrimSpace(spec)
	if len(spec) < 2 {
		return warnExpiryFallback(spec)
	}
	value, err := strconv.Atoi(spec[:len(spec)-1])
	if err != nil || value <= 0 {
		return warnExpiryFallback(spec)
	}
	switch spec[len(spec)-1] {
	case 's':
		return value
	case 'm':
		return value * 60
	case 'h':
		return value * 3600
	case 'd':
		return value * 86400
	default:
		return warnExpiryFallback(spec)
	}
}

func warnExpiryFallback(spec string) int {
	obs.LogJSON(map[string]any{
		"level": "warn",
		"msg":   "unparseable token expiry, using default",
		"spec":  spec,
	})
	return DefaultTokenExpirySeconds
}
