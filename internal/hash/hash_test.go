package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCompare(t *testing.T) {
	s := NewServiceWithCost(bcrypt.MinCost)

	h, err := s.Hash("Str0ng!pass")
	require.NoError(t, err)
	assert.NotEqual(t, "Str0ng!pass", h)
	assert.True(t, s.Compare(h, "Str0ng!pass"))
	assert.False(t, s.Compare(h, "wrong"))
}

func TestHashRejectsOverlongInput(t *testing.T) {
	s := NewServiceWithCost(bcrypt.MinCost)

	_, err := s.Hash(string(make([]byte, 80)))
	assert.ErrorIs(t, err, ErrFailedToHashPassword)
}
