package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

// Redacted is what one-way encrypted values render as on the wire. They are
// never decrypted, by construction they cannot be.
const Redacted = "********"

const (
	// changing this invalidates all stored one-way hashes
	saltKey = "AGfd%6%3^&"
	// changing this invalidates all stored two-way values
	twoWaySaltKey = "$GDAfdsSF*("
)

const (
	hashCost       = 12
	keyIterations  = 4096
	keyLength      = 32
	cipherSaltSize = 16
)

// saltedDigest mixes the plaintext with the key and the salt constant before
// the adaptive hash, so neither a stored hash nor a rainbow table works
// without both.
func saltedDigest(text, key string) string {
	keySum := md5.Sum([]byte(key))
	hashedKey := hex.EncodeToString(keySum[:])

	sum := md5.Sum([]byte(fmt.Sprintf("%s.%s.%s", hashedKey, saltKey, text)))
	return hex.EncodeToString(sum[:])
}

// HashOneWay irreversibly hashes text under key.
func HashOneWay(text, key string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(saltedDigest(text, key)), hashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash value: %w", err)
	}
	return string(hashed), nil
}

// CheckOneWay reports whether text hashes to storedHash under key. It never
// returns an error: malformed stored hashes simply do not match.
func CheckOneWay(text, key, storedHash string) bool {
	if len(storedHash) < 3 {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(saltedDigest(text, key))) == nil
}

// cipherKey derives the AES key from the caller's secret key, the two-way
// salt constant and a per-value random salt.
func cipherKey(key string, salt []byte) []byte {
	return pbkdf2.Key([]byte(key+twoWaySaltKey), salt, keyIterations, keyLength, sha256.New)
}

// EncryptTwoWay encrypts text under key so DecryptTwoWay can restore it.
// The output is base64 of salt || nonce || ciphertext.
func EncryptTwoWay(text, key string) (string, error) {
	salt := make([]byte, cipherSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	block, err := aes.NewCipher(cipherKey(key, salt))
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(text), nil)

	out := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// DecryptTwoWay reverses EncryptTwoWay. A wrong key or a tampered value
// fails the GCM check and returns an error, never garbage plaintext.
func DecryptTwoWay(encrypted, key string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("value is not base64: %w", err)
	}
	if len(data) < cipherSaltSize {
		return "", errors.New("ciphertext too short")
	}

	salt, rest := data[:cipherSaltSize], data[cipherSaltSize:]

	block, err := aes.NewCipher(cipherKey(key, salt))
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(rest) < gcm.NonceSize() {
		return "", errors.New("ciphertext too short")
	}

	nonce, sealed := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt value: %w", err)
	}
	return string(plain), nil
}
