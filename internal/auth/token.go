package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultTokenTTL = 60 * time.Minute

// Payload is the verified content of an access token.
type Payload struct {
	Subject   int64
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec issues and verifies HS256 access tokens. New tokens are always
// signed with the current secret; previous secrets are accepted for
// verification only so a secret can be rotated without logging everyone out.
type TokenCodec struct {
	secret   []byte
	previous [][]byte
	ttl      time.Duration
	now      func() time.Time
}

type CodecOption func(*TokenCodec)

// WithPreviousSecrets adds secrets that still verify but no longer sign.
func WithPreviousSecrets(secrets ...string) CodecOption {
	return func(c *TokenCodec) {
		for _, s := range secrets {
			if s != "" {
				c.previous = append(c.previous, []byte(s))
			}
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) { c.now = now }
}

func NewTokenCodec(secret string, ttl time.Duration, opts ...CodecOption) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	c := &TokenCodec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *TokenCodec) TTL() time.Duration { return c.ttl }

// Issue signs a token for subject with the configured TTL.
func (c *TokenCodec) Issue(subject int64) (string, error) {
	return c.IssueWithTTL(subject, c.ttl)
}

func (c *TokenCodec) IssueWithTTL(subject int64, ttl time.Duration) (string, error) {
	if subject <= 0 {
		return "", ErrMalformedSubject
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := c.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(subject, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature before trusting any claim, then checks expiry,
// then parses the subject.
func (c *TokenCodec) Decode(token string) (Payload, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, c.keys,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Payload{}, ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return Payload{}, ErrExpired
	default:
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	subject, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || subject <= 0 {
		return Payload{}, ErrMalformedSubject
	}

	p := Payload{Subject: subject, ID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}
	if claims.IssuedAt != nil {
		p.IssuedAt = claims.IssuedAt.Time
	}
	return p, nil
}

func (c *TokenCodec) keys(*jwt.Token) (interface{}, error) {
	keys := make([]jwt.VerificationKey, 0, len(c.previous)+1)
	keys = append(keys, c.secret)
	for _, k := range c.previous {
		keys = append(keys, k)
	}
	return jwt.VerificationKeySet{Keys: keys}, nil
}
