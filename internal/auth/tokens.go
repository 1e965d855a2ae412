package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	audienceSession = "session"
	audienceReset   = "reset_password"
)

// ErrInvalidToken covers bad signatures, wrong algorithms, expiry and malformed claims.
var ErrInvalidToken = errors.New("invalid token")

// ResetClaims binds a password reset to one user for a limited time.
type ResetClaims struct {
	ResetPassword int64 `json:"reset_password"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 session and reset tokens with one secret.
type Tokens struct {
	secret []byte
	now    func() time.Time
}

func NewTokens(secret string) *Tokens {
	return &Tokens{secret: []byte(secret), now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (t *Tokens) WithClock(now func() time.Time) *Tokens {
	return &Tokens{secret: t.secret, now: now}
}

// IssueSession returns a signed session token for userID and its expiry.
func (t *Tokens) IssueSession(userID int64, ttl time.Duration) (string, time.Time, error) {
	now := t.now()
	expires := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		Audience:  jwt.ClaimStrings{audienceSession},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expires, nil
}

// ParseSession verifies a session token and returns the user id it carries.
func (t *Tokens) ParseSession(token string) (int64, error) {
	var claims jwt.RegisteredClaims
	if err := t.parse(token, &claims, audienceSession); err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}

// IssueReset returns a signed reset token for userID valid for ttl.
func (t *Tokens) IssueReset(userID int64, ttl time.Duration) (string, error) {
	now := t.now()
	claims := ResetClaims{
		ResetPassword: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Audience:  jwt.ClaimStrings{audienceReset},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign reset token: %w", err)
	}
	return signed, nil
}

// ParseReset verifies a reset token and returns its claims.
func (t *Tokens) ParseReset(token string) (*ResetClaims, error) {
	var claims ResetClaims
	if err := t.parse(token, &claims, audienceReset); err != nil {
		return nil, err
	}
	if claims.ResetPassword <= 0 || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func (t *Tokens) parse(token string, claims jwt.Claims, audience string) error {
	_, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}
