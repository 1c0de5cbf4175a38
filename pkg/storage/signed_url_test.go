package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	s := NewSigner("secret", time.Hour)
	token, exp, err := s.Sign("job-1", "evaluations/cs101.csv")
	require.NoError(t, err)

	grant, err := s.Verify(token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", grant.JobID)
	assert.Equal(t, "evaluations/cs101.csv", grant.Path)
	assert.Equal(t, exp.Unix(), grant.ExpiresAt.Unix())
}

func TestVerifyExpired(t *testing.T) {
	s := NewSigner("secret", time.Minute)
	token, _, err := s.Sign("job-1", "a.csv")
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = s.Verify(token, false)
	assert.ErrorIs(t, err, ErrTokenExpired)

	grant, err := s.Verify(token, true)
	require.NoError(t, err)
	assert.Equal(t, "a.csv", grant.Path)
}

func TestVerifyRejectsTampering(t *testing.T) {
	s := NewSigner("secret", time.Hour)
	token, _, err := s.Sign("job-1", "a.csv")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	parts[0] = "job-2"
	_, err = s.Verify(strings.Join(parts, "."), false)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewSigner("other", time.Hour).Verify(token, false)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.Verify("garbage", false)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignRequiresSecret(t *testing.T) {
	_, _, err := NewSigner("", time.Hour).Sign("job", "a.csv")
	assert.Error(t, err)
}
