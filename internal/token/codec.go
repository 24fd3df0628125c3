// Package token issues and verifies the signed bearer tokens handed to clients.
//
// Verification is purely cryptographic. Whether a token is still active for its
// user is decided by the auth usecase against the credential store.
package token

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMalformed        = errors.New("token is malformed")
	ErrInvalidSignature = errors.New("token signature is invalid")
	ErrExpired          = errors.New("token has expired")
)

// Claims is what a token asserts about its bearer.
type Claims struct {
	ID        string // jti, unique per token
	UserID    string
	Scope     string
	IssuedAt  time.Time
	ExpiresAt time.Time // zero when the token never expires
}

// wire format; "_id" and "access" keep tokens readable by older clients.
type jwtClaims struct {
	UserID string `json:"_id"`
	Scope  string `json:"access"`
	jwt.RegisteredClaims
}

type signingKey struct {
	id     string
	secret []byte
}

type Codec struct {
	current signingKey
	keys    map[string]signingKey
	ttl     time.Duration
	now     func() time.Time
	parser  *jwt.Parser
}

type Option func(*Codec)

// WithClock overrides the time source used for iat/exp stamping and checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec signs with secret and additionally accepts tokens signed by any of
// previous. A ttl of 0 issues tokens without expiry.
func NewCodec(secret string, previous []string, ttl time.Duration, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("token: signing secret is empty")
	}
	if ttl < 0 {
		return nil, fmt.Errorf("token: negative ttl %s", ttl)
	}

	c := &Codec{
		current: newSigningKey(secret),
		keys:    make(map[string]signingKey, len(previous)+1),
		ttl:     ttl,
		now:     time.Now,
	}
	c.keys[c.current.id] = c.current
	for _, s := range previous {
		if s == "" {
			continue
		}
		k := newSigningKey(s)
		c.keys[k.id] = k
	}
	for _, opt := range opts {
		opt(c)
	}

	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	return c, nil
}

func newSigningKey(secret string) signingKey {
	sum := sha256.Sum256([]byte(secret))
	return signingKey{id: hex.EncodeToString(sum[:4]), secret: []byte(secret)}
}

// NewClaims stamps a fresh jti and iat (and exp when a ttl is configured) at
// second precision.
func (c *Codec) NewClaims(userID, scope string) Claims {
	now := c.now().UTC().Truncate(time.Second)
	claims := Claims{ID: uuid.NewString(), UserID: userID, Scope: scope, IssuedAt: now}
	if c.ttl > 0 {
		claims.ExpiresAt = now.Add(c.ttl)
	}
	return claims
}

// Issue signs claims with the current key.
func (c *Codec) Issue(claims Claims) (string, error) {
	if claims.UserID == "" || claims.Scope == "" {
		return "", fmt.Errorf("issue token: %w", ErrMalformed)
	}

	wire := jwtClaims{UserID: claims.UserID, Scope: claims.Scope}
	wire.ID = claims.ID
	if !claims.IssuedAt.IsZero() {
		wire.IssuedAt = jwt.NewNumericDate(claims.IssuedAt)
	}
	if !claims.ExpiresAt.IsZero() {
		wire.ExpiresAt = jwt.NewNumericDate(claims.ExpiresAt)
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, wire)
	t.Header["kid"] = c.current.id
	signed, err := t.SignedString(c.current.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of raw and returns its claims.
func (c *Codec) Verify(raw string) (Claims, error) {
	var wire jwtClaims
	_, err := c.parser.ParseWithClaims(raw, &wire, c.lookupKey)
	if err != nil {
		return Claims{}, classify(err)
	}
	if wire.UserID == "" || wire.Scope == "" {
		return Claims{}, ErrMalformed
	}

	claims := Claims{ID: wire.ID, UserID: wire.UserID, Scope: wire.Scope}
	if wire.IssuedAt != nil {
		claims.IssuedAt = wire.IssuedAt.UTC()
	}
	if wire.ExpiresAt != nil {
		claims.ExpiresAt = wire.ExpiresAt.UTC()
	}
	return claims, nil
}

func (c *Codec) lookupKey(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	k, ok := c.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	return k.secret, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
}
