package backup

import (
	"bytes"
	"errors"
	"testing"
)

func TestDeriveKeyDeterminism(t *testing.T) {
	salt := []byte("1234567890abcdef")

	key1 := DeriveKey("mypassphrase", salt)
	key2 := DeriveKey("mypassphrase", salt)

	if !bytes.Equal(key1, key2) {
		t.Error("same passphrase+salt should produce same key")
	}
	if len(key1) != keySize {
		t.Errorf("key length = %d, want %d", len(key1), keySize)
	}
	if bytes.Equal(key1, DeriveKey("other", salt)) {
		t.Error("different passphrases should produce different keys")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	original := []byte("SQLite format 3\x00 habit rows")

	sealed, err := Encrypt(original, "passphrase")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(sealed, original) {
		t.Error("ciphertext contains plaintext")
	}
	if len(sealed) <= saltSize+nonceSize+len(original) {
		t.Errorf("sealed length = %d, too short for header and tag", len(sealed))
	}

	got, err := Decrypt(sealed, "passphrase")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Errorf("decrypted = %q, want %q", got, original)
	}
}

func TestEncryptUsesFreshSalt(t *testing.T) {
	a, err := Encrypt([]byte("same"), "passphrase")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	b, err := Encrypt([]byte("same"), "passphrase")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Equal(a[:saltSize], b[:saltSize]) {
		t.Error("two encryptions share a salt")
	}
}

func TestDecryptRejectsBadInput(t *testing.T) {
	sealed, err := Encrypt([]byte("data"), "right")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	tests := []struct {
		name       string
		data       []byte
		passphrase string
	}{
		{"wrong passphrase", sealed, "wrong"},
		{"truncated header", sealed[:10], "right"},
		{"tampered body", append(append([]byte{}, sealed[:len(sealed)-1]...), sealed[len(sealed)-1]^0xff), "right"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decrypt(tt.data, tt.passphrase); !errors.Is(err, ErrCorrupt) {
				t.Errorf("err = %v, want ErrCorrupt", err)
			}
		})
	}
}
