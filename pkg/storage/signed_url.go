package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid download token")
	ErrTokenExpired = errors.New("download token expired")
)

// Grant is the content of a verified download token.
type Grant struct {
	JobID     string
	Path      string
	ExpiresAt time.Time
}

// Signer issues HMAC-SHA256 download tokens of the form jobID.exp.path.sig.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign issues a token for the stored file of a report job.
func (s *Signer) Sign(jobID, path string) (string, time.Time, error) {
	if jobID == "" || path == "" {
		return "", time.Time{}, fmt.Errorf("sign: job id and path are required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("sign: secret not configured")
	}
	exp := s.now().Add(s.ttl).Unix()
	ts := strconv.FormatInt(exp, 10)
	enc := base64.RawURLEncoding.EncodeToString([]byte(path))
	token := strings.Join([]string{jobID, ts, enc, s.mac(jobID, ts, enc)}, ".")
	return token, time.Unix(exp, 0), nil
}

// Verify checks the signature and, unless allowExpired is set, the expiry.
func (s *Signer) Verify(token string, allowExpired bool) (Grant, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return Grant{}, ErrInvalidToken
	}
	jobID, ts, enc, sig := parts[0], parts[1], parts[2], parts[3]
	if !hmac.Equal([]byte(s.mac(jobID, ts, enc)), []byte(sig)) {
		return Grant{}, ErrInvalidToken
	}
	exp, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return Grant{}, ErrInvalidToken
	}
	path, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return Grant{}, ErrInvalidToken
	}
	grant := Grant{JobID: jobID, Path: string(path), ExpiresAt: time.Unix(exp, 0)}
	if !allowExpired && s.now().After(grant.ExpiresAt) {
		return grant, ErrTokenExpired
	}
	return grant, nil
}

func (s *Signer) mac(jobID, ts, enc string) string {
	h := hmac.New(sha256.New, s.secret)
	_, _ = h.Write([]byte(jobID + "|" + ts + "|" + enc))
	return hex.EncodeToString(h.Sum(nil))
}
