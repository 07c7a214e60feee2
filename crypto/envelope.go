// Package crypto implements the at-rest query-secret envelope: PBKDF2 key
// derivation, AES-256-CTR encryption, and the SQL sanitizer query-type jobs
// pass their decrypted query text through before it reaches Storage.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/crypto/pbkdf2"
)

const (
	ivLen        = 16
	saltLen      = 32
	keyLen       = 32
	pbkdf2Rounds = 100_000
)

// ErrDecryptFailed is the single opaque error Decrypt returns for an
// envelope it cannot open: one that is not valid base64 or is too short to
// hold the IV and salt.
var ErrDecryptFailed = errors.New("crypto: failed to decrypt")

// Encrypt produces the base64(IV ‖ salt ‖ ciphertext) envelope for
// plaintext under secret. Two calls with the same inputs produce distinct
// output because both the IV and salt are drawn fresh each time.
func Encrypt(secret, plaintext string) (string, error) {
	iv := make([]byte, ivLen)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("crypto: read iv: %w", err)
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("crypto: read salt: %w", err)
	}

	key := deriveKey(secret, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("crypto: new cipher: %w", err)
	}

	ciphertext := make([]byte, len(plaintext))
	cipher.NewCTR(block, iv).XORKeyStream(ciphertext, []byte(plaintext))

	envelope := make([]byte, 0, ivLen+saltLen+len(ciphertext))
	envelope = append(envelope, iv...)
	envelope = append(envelope, salt...)
	envelope = append(envelope, ciphertext...)

	return base64.StdEncoding.EncodeToString(envelope), nil
}

// Decrypt reverses Encrypt. A malformed envelope surfaces as
// ErrDecryptFailed. The envelope carries no authentication tag, so a wrong
// secret or altered ciphertext is not detected: Decrypt then returns
// incorrect plaintext with a nil error.
func Decrypt(secret, envelope string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return "", ErrDecryptFailed
	}
	if len(raw) < ivLen+saltLen {
		return "", ErrDecryptFailed
	}

	iv := raw[:ivLen]
	salt := raw[ivLen : ivLen+saltLen]
	ciphertext := raw[ivLen+saltLen:]

	key := deriveKey(secret, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", ErrDecryptFailed
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCTR(block, iv).XORKeyStream(plaintext, ciphertext)

	return string(plaintext), nil
}

func deriveKey(secret string, salt []byte) []byte {
	return pbkdf2.Key([]byte(secret), salt, pbkdf2Rounds, keyLen, sha256.New)
}

// repeatedRunPattern matches four or more consecutive identical characters.
var repeatedRunPattern = regexp.MustCompile(`(.)\1{3,}`)

var commonWeakWords = []string{"password", "secret", "letmein", "qwerty", "changeme", "admin123"}

// ValidateSecret enforces the query-secret strength rules: length ≥ 32,
// at least three of {lowercase, uppercase, digit, symbol}, and rejection
// of obviously weak patterns.
func ValidateSecret(secret string) error {
	if len(secret) < 32 {
		return errors.New("crypto: secret must be at least 32 characters")
	}

	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range secret {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	classes := 0
	for _, ok := range []bool{hasLower, hasUpper, hasDigit, hasSymbol} {
		if ok {
			classes++
		}
	}
	if classes < 3 {
		return errors.New("crypto: secret must contain at least three of lowercase, uppercase, digit, symbol")
	}

	if repeatedRunPattern.MatchString(secret) {
		return errors.New("crypto: secret contains a repeated-character run")
	}
	if isMonotonicSequence(secret) {
		return errors.New("crypto: secret is a monotonic letter/digit sequence")
	}

	lower := strings.ToLower(secret)
	for _, word := range commonWeakWords {
		if strings.Contains(lower, word) {
			return errors.New("crypto: secret contains a common weak word")
		}
	}

	return nil
}

// isMonotonicSequence reports whether secret contains a run of four or more
// consecutive ascending or descending runes, e.g. "abcd" or "9876".
func isMonotonicSequence(secret string) bool {
	runes := []rune(secret)
	ascRun, descRun := 1, 1
	for i := 1; i < len(runes); i++ {
		switch {
		case runes[i] == runes[i-1]+1:
			ascRun++
			descRun = 1
		case runes[i] == runes[i-1]-1:
			descRun++
			ascRun = 1
		default:
			ascRun, descRun = 1, 1
		}
		if ascRun >= 4 || descRun >= 4 {
			return true
		}
	}
	return false
}
