package shared

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"time"
)

// CSRFHeader is the request header carrying the CSRF token for JSON calls.
const CSRFHeader = "X-CSRF-Token"

// CSRFManager issues and verifies CSRF tokens bound to a session.
type CSRFManager struct {
	secret []byte
}

// NewCSRFManager returns a CSRFManager using the provided secret key.
func NewCSRFManager(secret string) *CSRFManager {
	return &CSRFManager{secret: []byte(secret)}
}

// IssueToken generates a token bound to the session ID.
func (m *CSRFManager) IssueToken(sess *Session) (string, error) {
	if sess == nil {
		return "", errors.New("session missing")
	}
	mac := hmac.New(sha256.New, m.secret)
	_, _ = mac.Write([]byte(sess.ID))
	sum := mac.Sum(nil)
	buf := make([]byte, 8, 8+len(sum))
	binary.BigEndian.PutUint64(buf, uint64(time.Now().Unix()))
	return base64.RawURLEncoding.EncodeToString(append(buf, sum...)), nil
}

// VerifyToken checks that the supplied token was issued for this session.
func (m *CSRFManager) VerifyToken(sess *Session, token string) error {
	if sess == nil || token == "" {
		return ErrCSRFTokenMissing
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) <= 8 {
		return ErrCSRFTokenMismatch
	}
	mac := hmac.New(sha256.New, m.secret)
	_, _ = mac.Write([]byte(sess.ID))
	if !hmac.Equal(raw[8:], mac.Sum(nil)) {
		return ErrCSRFTokenMismatch
	}
	return nil
}
