// Package hash wraps bcrypt password hashing.
package hash

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var ErrFailedToHashPassword = errors.New("failed to hash password")

type Service struct {
	cost int
}

func NewService() *Service {
	return NewServiceWithCost(bcrypt.DefaultCost)
}

// NewServiceWithCost lets tests use bcrypt.MinCost.
func NewServiceWithCost(cost int) *Service {
	return &Service{
		cost: cost,
	}
}

func (s *Service) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFailedToHashPassword, err)
	}
	return string(hash), nil
}

func (s *Service) Compare(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
