package crypto

import "testing"

func TestArgon2Hasher_RoundTrip(t *testing.T) {
	h := NewArgon2Hasher(DefaultArgon2Params())

	hash, err := h.Hash("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if err := h.Compare(hash, "correct-horse-battery-staple"); err != nil {
		t.Errorf("Compare should succeed for correct password: %v", err)
	}

	if err := h.Compare(hash, "wrong-password"); err == nil {
		t.Error("Compare should fail for incorrect password")
	}
}

func TestArgon2Hasher_AcceptsOlderParameters(t *testing.T) {
	weakParams := Argon2Params{MemoryKB: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32}
	oldHasher := NewArgon2Hasher(weakParams)
	hash, err := oldHasher.Hash("legacy-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	// A hasher configured with today's (stronger) defaults must still verify a
	// hash produced under older, weaker parameters, since those are encoded in it.
	newHasher := NewArgon2Hasher(DefaultArgon2Params())
	if err := newHasher.Compare(hash, "legacy-password"); err != nil {
		t.Errorf("expected verification against legacy parameters to succeed: %v", err)
	}
}
