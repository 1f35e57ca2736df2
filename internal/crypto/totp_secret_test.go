package crypto

import "testing"

func testBox(t *testing.T) *TOTPSecretBox {
	t.Helper()
	box, err := NewTOTPSecretBox(map[int]string{
		1: "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		2: "abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789",
	}, 2)
	if err != nil {
		t.Fatalf("NewTOTPSecretBox: %v", err)
	}
	return box
}

func TestTOTPSecretBox_RoundTrip(t *testing.T) {
	box := testBox(t)
	plaintext := "JBSWY3DPEHPK3PXP"

	sealed, err := box.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if sealed[:2] != "v2" {
		t.Errorf("expected current version prefix v2, got %s", sealed)
	}

	decrypted, err := box.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if decrypted != plaintext {
		t.Errorf("decrypted %q, want %q", decrypted, plaintext)
	}
}

func TestTOTPSecretBox_TamperedData(t *testing.T) {
	box := testBox(t)
	sealed, _ := box.Encrypt("test-secret")
	tampered := sealed[:len(sealed)-4] + "XXXX"

	if _, err := box.Decrypt(tampered); err == nil {
		t.Error("expected error for tampered ciphertext, got nil")
	}
}

func TestTOTPSecretBox_ReencryptOldVersion(t *testing.T) {
	box := testBox(t)
	sealedV1, err := box.encryptWithVersion("old-secret", 1)
	if err != nil {
		t.Fatalf("encryptWithVersion: %v", err)
	}

	if !box.NeedsReencryption(sealedV1) {
		t.Fatal("expected v1-sealed value to need reencryption under current v2 key")
	}

	sealedV2, err := box.Reencrypt(sealedV1)
	if err != nil {
		t.Fatalf("Reencrypt: %v", err)
	}
	if box.NeedsReencryption(sealedV2) {
		t.Error("reencrypted value should no longer need reencryption")
	}

	decrypted, err := box.Decrypt(sealedV2)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if decrypted != "old-secret" {
		t.Errorf("decrypted %q, want %q", decrypted, "old-secret")
	}
}
