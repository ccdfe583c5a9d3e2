package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
)

// ErrInvalidKey is returned when a key is not 32 bytes long.
var ErrInvalidKey = errors.New("encryption key must be 32 bytes (AES-256)")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new entries.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried when decryption with ActiveKey fails,
	// so entries written before a key rotation stay readable until they expire.
	FallbackKeys [][]byte
}

// sealed is the plaintext of an encrypted entry.
type sealed struct {
	Value any    `json:"value,omitempty"`
	Err   string `json:"err,omitempty"`
}

type encryptionMiddleware struct {
	next   ports.RequirementCache
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts cached
// requirement outcomes with AES-GCM. StoredAt and TTL stay in clear so the
// wrapped cache can still expire entries.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, ErrInvalidKey
	}
	for i, k := range config.FallbackKeys {
		if len(k) != 32 {
			return nil, fmt.Errorf("fallback key %d: %w", i, ErrInvalidKey)
		}
	}
	return func(next ports.RequirementCache) ports.RequirementCache {
		return &encryptionMiddleware{next: next, config: config}
	}, nil
}

// DecodeKey parses a base64 encoded 32 byte key.
func DecodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}
	return key, nil
}

func (m *encryptionMiddleware) Set(ctx context.Context, key string, entry domain.CacheEntry) error {
	plainText, err := json.Marshal(sealed{Value: entry.Value, Err: entry.Err})
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt cache entry: %w", err)
	}

	return m.next.Set(ctx, key, domain.CacheEntry{
		Value:    base64.StdEncoding.EncodeToString(ciphertext),
		StoredAt: entry.StoredAt,
		TTL:      entry.TTL,
	})
}

func (m *encryptionMiddleware) Get(ctx context.Context, key string) (domain.CacheEntry, bool, error) {
	envelope, ok, err := m.next.Get(ctx, key)
	if err != nil || !ok {
		return domain.CacheEntry{}, ok, err
	}

	encoded, isString := envelope.Value.(string)
	if !isString {
		// Fail secure: plain entries are never handed out once encryption is on.
		return domain.CacheEntry{}, false, errors.New("cache entry is missing encrypted data envelope")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return domain.CacheEntry{}, false, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return domain.CacheEntry{}, false, fmt.Errorf("failed to decrypt cache entry: %w", err)
	}

	var s sealed
	if err := json.Unmarshal(plainText, &s); err != nil {
		return domain.CacheEntry{}, false, fmt.Errorf("failed to unmarshal decrypted entry: %w", err)
	}
	return domain.CacheEntry{Value: s.Value, Err: s.Err, StoredAt: envelope.StoredAt, TTL: envelope.TTL}, true, nil
}

func (m *encryptionMiddleware) Clear(ctx context.Context) error {
	return m.next.Clear(ctx)
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
