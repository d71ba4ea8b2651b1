package auth

import (
	"errors"
	"strings"
	"testing"
)

// newTestPasswordService uses bcrypt's minimum cost so hashing is fast.
func newTestPasswordService() *PasswordService {
	return NewPasswordServiceWithCost(4)
}

// =========================================================================
// Hash TESTS
// =========================================================================

func TestHash_LooksLikeBcrypt(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("correct-horse")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("Hash() = %q, want a bcrypt hash", hash)
	}
}

func TestHash_SaltsEachCall(t *testing.T) {
	ps := newTestPasswordService()

	a, _ := ps.Hash("same-password")
	b, _ := ps.Hash("same-password")
	if a == b {
		t.Error("Hash() produced identical hashes for the same password")
	}
}

func TestHash_Length(t *testing.T) {
	ps := newTestPasswordService()

	if _, err := ps.Hash(strings.Repeat("a", MaxPasswordBytes)); err != nil {
		t.Errorf("Hash() rejected a %d-byte password: %v", MaxPasswordBytes, err)
	}
	if _, err := ps.Hash(strings.Repeat("a", MaxPasswordBytes+1)); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("Hash() error = %v, want ErrPasswordTooLong", err)
	}
}

// =========================================================================
// Verify TESTS
// =========================================================================

func TestVerify(t *testing.T) {
	ps := newTestPasswordService()
	hash, err := ps.Hash("the-real-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	tests := []struct {
		name      string
		hash      string
		password  string
		wantErr   bool
		mismatch  bool
	}{
		{name: "correct", hash: hash, password: "the-real-password"},
		{name: "wrong", hash: hash, password: "the-wrong-password", wantErr: true, mismatch: true},
		{name: "empty password", hash: hash, password: "", wantErr: true, mismatch: true},
		{name: "account without password", hash: "", password: "anything", wantErr: true, mismatch: true},
		{name: "garbage hash", hash: "not-a-bcrypt-hash", password: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ps.Verify(tt.hash, tt.password)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.mismatch && !errors.Is(err, ErrPasswordMismatch) {
				t.Errorf("Verify() error = %v, want ErrPasswordMismatch", err)
			}
		})
	}
}

func TestHashVerify_RoundTrip(t *testing.T) {
	ps := newTestPasswordService()

	for _, pw := range []string{"hello123", "p@$$w0rd!#%", "пароль-密码", "  padded  "} {
		hash, err := ps.Hash(pw)
		if err != nil {
			t.Fatalf("Hash(%q) error = %v", pw, err)
		}
		if err := ps.Verify(hash, pw); err != nil {
			t.Errorf("Verify() failed for %q: %v", pw, err)
		}
	}
}
