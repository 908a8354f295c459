// Package token issues and validates the signed access tokens returned by login.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Proton-105/ruz-auth/pkg/config"
)

var (
	ErrTokenNotFound = errors.New("token: not found")
	ErrInvalidToken  = errors.New("token: invalid")
	ErrExpiredToken  = errors.New("token: expired")
)

const defaultAccessTTL = time.Hour

// Access is a signed access token and its expiry.
type Access struct {
	Value     string
	ExpiresAt time.Time
}

// Service signs HS256 tokens whose subject is the user id.
type Service struct {
	secret []byte
	ttl    time.Duration
	issuer string
	parser *jwt.Parser
	now    func() time.Time
}

// NewService creates a Service from cfg. A zero AccessTTL means one hour.
func NewService(cfg config.AuthConfig) *Service {
	ttl := cfg.AccessTTL
	if ttl <= 0 {
		ttl = defaultAccessTTL
	}

	return &Service{
		secret: []byte(cfg.JWTSecret),
		ttl:    ttl,
		issuer: cfg.Issuer,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithIssuer(cfg.Issuer),
		),
		now: time.Now,
	}
}

// Issue signs an access token for userID.
func (s *Service) Issue(userID int64) (Access, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Access{}, fmt.Errorf("sign access token: %w", err)
	}

	return Access{Value: signed, ExpiresAt: expiresAt}, nil
}

// Parse validates raw and returns the user id it was issued for.
func (s *Service) Parse(raw string) (int64, error) {
	if raw == "" {
		return 0, ErrTokenNotFound
	}

	claims := &jwt.RegisteredClaims{}
	tok, err := s.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, fmt.Errorf("%w: %v", ErrExpiredToken, err)
		}
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return 0, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	return userID, nil
}
