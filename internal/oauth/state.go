package oauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// stateTTL bounds how long an authorization round trip may take.
const stateTTL = 15 * time.Minute

var (
	// ErrBadState covers tampered, malformed, or mismatched state values.
	ErrBadState = errors.New("invalid oauth state")
	// ErrStateExpired is returned when the round trip took too long.
	ErrStateExpired = errors.New("oauth state expired")
)

type statePayload struct {
	UserID   string `json:"userId"`
	Nonce    string `json:"nonce"`
	IssuedAt int64  `json:"issuedAt"`
}

// StateSigner produces and verifies HMAC-signed OAuth state values that
// bind a callback to the user who started the flow. The callback arrives
// as a bare browser redirect with no bearer token, so the state is the
// only thing tying it back to an authenticated user.
type StateSigner struct {
	secret []byte
}

// NewStateSigner builds a signer over the given secret.
func NewStateSigner(secret string) *StateSigner {
	return &StateSigner{secret: []byte(secret)}
}

// Sign produces a state value for userID: base64url(payload).base64url(sig).
func (s *StateSigner) Sign(userID string) (string, error) {
	payload, err := json.Marshal(statePayload{
		UserID:   userID,
		Nonce:    uuid.NewString(),
		IssuedAt: time.Now().Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("encode state: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + s.sign(encoded), nil
}

// Verify checks the signature and freshness of a state value and returns
// the user id it was issued for.
func (s *StateSigner) Verify(state string) (string, error) {
	encoded, sig, ok := strings.Cut(state, ".")
	if !ok {
		return "", ErrBadState
	}
	if !hmac.Equal([]byte(s.sign(encoded)), []byte(sig)) {
		return "", ErrBadState
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrBadState
	}
	var payload statePayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.UserID == "" {
		return "", ErrBadState
	}
	if time.Since(time.Unix(payload.IssuedAt, 0)) > stateTTL {
		return "", ErrStateExpired
	}
	return payload.UserID, nil
}

func (s *StateSigner) sign(encoded string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
