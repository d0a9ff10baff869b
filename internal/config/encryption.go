package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"repoharness/pkg/models"
)

const (
	encryptedPrefix = "ENC["
	encryptedSuffix = "]"

	pbkdf2Iterations = 100000
	keySize          = 32
)

// Key derivation salt is fixed per install; the secrets protected here are
// research-provider credentials on an operator workstation, not production
// material.
var keySalt = []byte("repoharness-config-v1")

// getEncryptionKey derives an encryption key from environment or machine ID
func getEncryptionKey() []byte {
	if key := os.Getenv("REPOHARNESS_ENCRYPTION_KEY"); key != "" {
		return pbkdf2.Key([]byte(key), keySalt, pbkdf2Iterations, keySize, sha256.New)
	}

	// Fall back to a machine-specific key
	hostname, _ := os.Hostname()
	homeDir, _ := os.UserHomeDir()
	machineID := fmt.Sprintf("%s-%s-repoharness", hostname, homeDir)
	return pbkdf2.Key([]byte(machineID), keySalt, pbkdf2Iterations, keySize, sha256.New)
}

// EncryptSecret encrypts a secret value using AES-256-GCM
func EncryptSecret(secret string) (string, error) {
	if secret == "" {
		return "", nil
	}

	if IsEncrypted(secret) {
		return secret, nil
	}

	key := getEncryptionKey()

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(secret), nil)
	encoded := base64.StdEncoding.EncodeToString(ciphertext)

	return fmt.Sprintf("%s%s%s", encryptedPrefix, encoded, encryptedSuffix), nil
}

// DecryptSecret decrypts a value encrypted with EncryptSecret
func DecryptSecret(encrypted string) (string, error) {
	if encrypted == "" {
		return "", nil
	}

	if !IsEncrypted(encrypted) {
		return encrypted, nil
	}

	encoded := strings.TrimPrefix(encrypted, encryptedPrefix)
	encoded = strings.TrimSuffix(encoded, encryptedSuffix)

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode encrypted secret: %w", err)
	}

	key := getEncryptionKey()

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret: %w", err)
	}

	return string(plaintext), nil
}

// IsEncrypted checks if a string is encrypted
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, encryptedPrefix) && strings.HasSuffix(value, encryptedSuffix)
}

// EncryptConfigSecrets encrypts all secret fields in a config
func EncryptConfigSecrets(cfg *models.Config) error {
	fields := []*string{
		&cfg.Provider.APIKey,
		&cfg.Provider.LangfuseSecret,
		&cfg.Database.Password,
	}
	for _, f := range fields {
		encrypted, err := EncryptSecret(*f)
		if err != nil {
			return fmt.Errorf("failed to encrypt config secret: %w", err)
		}
		*f = encrypted
	}
	return nil
}

// DecryptConfigSecrets decrypts all secret fields in a config
func DecryptConfigSecrets(cfg *models.Config) error {
	fields := []*string{
		&cfg.Provider.APIKey,
		&cfg.Provider.LangfuseSecret,
		&cfg.Database.Password,
	}
	for _, f := range fields {
		decrypted, err := DecryptSecret(*f)
		if err != nil {
			return fmt.Errorf("failed to decrypt config secret: %w", err)
		}
		*f = decrypted
	}
	return nil
}
