package redis

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"time"
)

// SnapshotStore keeps session snapshots in Redis, encrypted with AES-GCM.
// It satisfies the session store's KV contract.
type SnapshotStore struct {
	encryptionKey []byte
	prefix        string
	ttl           time.Duration
}

var (
	setSnapshotValue = Set
	getSnapshotValue = Get
	delSnapshotValue = Del
)

// NewSnapshotStore creates a store namespaced under prefix. Keys expire
// after ttl; zero keeps them forever.
func NewSnapshotStore(encryptionKeyHex, prefix string, ttl time.Duration) (*SnapshotStore, error) {
	key, err := hex.DecodeString(encryptionKeyHex)
	if err != nil {
		return nil, errors.New("invalid encryption key hex")
	}
	if len(key) != 32 {
		return nil, errors.New("encryption key must be 32 bytes (64 hex chars)")
	}
	return &SnapshotStore{encryptionKey: key, prefix: prefix, ttl: ttl}, nil
}

func (s *SnapshotStore) key(k string) string {
	return s.prefix + k
}

// Get returns the decrypted value and whether the key existed.
func (s *SnapshotStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	encrypted, err := getSnapshotValue(ctx, s.key(key))
	if err != nil {
		if IsNil(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	plain, err := s.decrypt(encrypted)
	if err != nil {
		return nil, false, err
	}
	return plain, true, nil
}

// Set encrypts and stores value.
func (s *SnapshotStore) Set(ctx context.Context, key string, value []byte) error {
	encrypted, err := s.encrypt(value)
	if err != nil {
		return err
	}
	return setSnapshotValue(ctx, s.key(key), encrypted, s.ttl)
}

// Del removes key.
func (s *SnapshotStore) Del(ctx context.Context, key string) error {
	return delSnapshotValue(ctx, s.key(key))
}

func (s *SnapshotStore) encrypt(plaintext []byte) (string, error) {
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	return hex.EncodeToString(gcm.Seal(nonce, nonce, plaintext, nil)), nil
}

func (s *SnapshotStore) decrypt(ciphertextHex string) ([]byte, error) {
	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
