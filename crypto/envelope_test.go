package crypto

import (
	"strings"
	"testing"
)

const testSecret = "Correct-Horse-Battery-Staple-9!Zq"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintexts := []string{
		"SELECT * FROM orders WHERE status = 'pending'",
		"",
		"a single word",
	}

	for _, p := range plaintexts {
		envelope, err := Encrypt(testSecret, p)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", p, err)
		}
		got, err := Decrypt(testSecret, envelope)
		if err != nil {
			t.Fatalf("Decrypt(%q): %v", p, err)
		}
		if got != p {
			t.Fatalf("round trip mismatch: want %q, got %q", p, got)
		}
	}
}

func TestEncryptProducesDistinctEnvelopes(t *testing.T) {
	a, err := Encrypt(testSecret, "SELECT 1")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := Encrypt(testSecret, "SELECT 1")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if a == b {
		t.Fatal("expected two encryptions of the same plaintext to differ")
	}
}

func TestDecryptWrongSecretFailsOpaquely(t *testing.T) {
	envelope, err := Encrypt(testSecret, "SELECT 1")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	_, err = Decrypt("A-Totally-Different-Secret-Value!9", envelope)
	if err != ErrDecryptFailed {
		t.Fatalf("expected ErrDecryptFailed, got %v", err)
	}
}

func TestDecryptMalformedEnvelopeFailsOpaquely(t *testing.T) {
	if _, err := Decrypt(testSecret, "not-valid-base64!!!"); err != ErrDecryptFailed {
		t.Fatalf("expected ErrDecryptFailed for bad base64, got %v", err)
	}
	if _, err := Decrypt(testSecret, "YQ=="); err != ErrDecryptFailed {
		t.Fatalf("expected ErrDecryptFailed for too-short envelope, got %v", err)
	}
}

func TestValidateSecret(t *testing.T) {
	cases := []struct {
		name    string
		secret  string
		wantErr bool
	}{
		{"too short", "Short1!", true},
		{"only lowercase and length", strings.Repeat("a", 40), true},
		{"repeated run", "AAAAbbbbCCCC1111!!!!padpadpadpadpadpad", true},
		{"monotonic ascending", "abcdefghijklmnopqrstuvwxyz0123456789!!", true},
		{"common weak word", "SuperSecretPassword123456789012345!!", true},
		{"strong secret", testSecret, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSecret(tc.secret)
			if tc.wantErr && err == nil {
				t.Fatalf("expected an error for secret %q", tc.secret)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error for secret %q: %v", tc.secret, err)
			}
		})
	}
}
