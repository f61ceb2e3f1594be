package oauth

import (
	"errors"
	"strings"
	"testing"
)

func TestStateSignVerify(t *testing.T) {
	s := NewStateSigner("state-secret")

	state, err := s.Sign("user-123")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	userID, err := s.Verify(state)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if userID != "user-123" {
		t.Fatalf("got user %q, want user-123", userID)
	}
}

func TestStateVerifyRejects(t *testing.T) {
	s := NewStateSigner("state-secret")
	other := NewStateSigner("different-secret")

	good, err := s.Sign("user-123")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	forged, err := other.Sign("user-123")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	parts := strings.SplitN(good, ".", 2)
	tampered := parts[0] + "x." + parts[1]

	tests := []struct {
		name  string
		state string
	}{
		{"empty", ""},
		{"no separator", "abcdef"},
		{"wrong key", forged},
		{"tampered payload", tampered},
		{"garbage", "not.base64!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Verify(tt.state); !errors.Is(err, ErrBadState) {
				t.Fatalf("got %v, want ErrBadState", err)
			}
		})
	}
}

func TestStateUniquePerSign(t *testing.T) {
	s := NewStateSigner("state-secret")
	a, _ := s.Sign("user-123")
	b, _ := s.Sign("user-123")
	if a == b {
		t.Fatal("two states for the same user should differ")
	}
}
