// Package store provides the encrypted local state store for the Koinonia
// desktop agent, backed by BadgerDB.
//
// BadgerDB is an embedded, pure-Go key-value database; its data files live
// under the app's private data directory and are only ever written by this
// process. The store holds small JSON blobs:
//
//	secure:device_token   → encrypted device token record
//	secure:member_info    → encrypted session mirror
//
// Values are encrypted with AES-256-CBC under a key derived deterministically
// (HKDF-SHA256) from the data directory path, app version, and app name. This
// makes the key recoverable without a separate keystore, at the cost of being
// derivable by anything with app and machine access. The threat model is
// casual disk inspection, not a determined local attacker.
//
// Stored values have the shape "iv_hex:ciphertext_hex" with a fresh random IV
// per write. A value without the ':' separator is treated as legacy plaintext
// and returned as-is. Decryption failure degrades to an empty-object result;
// callers must treat a missing or default value as "no prior state", never as
// a fatal error.
package store

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"golang.org/x/crypto/hkdf"

	"github.com/evertran/koinonia-desktop/internal/errors"
	"github.com/evertran/koinonia-desktop/internal/logger"
)

// SecurePrefix namespaces encrypted values in the key space.
const SecurePrefix = "secure:"

// Well-known store keys
const (
	KeyDeviceToken = "device_token"
	KeyMemberInfo  = "member_info"
)

// emptyObject is what Get yields when a value cannot be decrypted.
var emptyObject = []byte("{}")

// KeyMaterial is the per-install input to key derivation. All three fields
// must match the values used at write time or decryption degrades to the
// empty-object result.
type KeyMaterial struct {
	DataDir    string
	AppVersion string
	AppName    string
}

// deriveKey derives the 32-byte AES key from the install identity.
func deriveKey(m KeyMaterial) ([]byte, error) {
	ikm := []byte(m.DataDir + m.AppVersion + m.AppName)
	h := hkdf.New(sha256.New, ikm, nil, []byte("secure-store"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, err
	}
	return key, nil
}

// SecureStore manages encrypted key-value state in BadgerDB
type SecureStore struct {
	db     *badger.DB
	key    []byte
	logger *logger.Logger
}

// Open initializes the secure store at path with a key derived from material
func Open(path string, material KeyMaterial) (*SecureStore, error) {
	log := logger.NewComponentLogger("SecureStore")

	key, err := deriveKey(material)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive store key")
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable BadgerDB's default logger

	log.Info("Opening secure store at %s", path)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open store at %s", path)
	}

	return &SecureStore{
		db:     db,
		key:    key,
		logger: log,
	}, nil
}

// Close gracefully shuts down the store
func (s *SecureStore) Close() error {
	s.logger.Info("Closing secure store...")
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return errors.Wrap(err, "failed to close store")
		}
	}
	return nil
}

// Put encrypts and persists a plaintext JSON blob under key. Returns true on
// success. If encryption itself fails the value is stored as plaintext so the
// feature keeps working at a reduced security level; only a storage failure
// yields false.
func (s *SecureStore) Put(key string, plaintext []byte) bool {
	value, err := s.encrypt(plaintext)
	if err != nil {
		s.logger.Error("Encryption failed for %s, storing plaintext: %v", key, err)
		value = string(plaintext)
	}

	storeKey := []byte(SecurePrefix + key)

	err = errors.RetryWithBackoff("secure store put", errors.DefaultRetryConfig(), func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			return txn.Set(storeKey, []byte(value))
		})
	})
	if err != nil {
		s.logger.Error("Failed to persist %s: %v", key, err)
		return false
	}

	s.logger.Debug("Stored %s (%d bytes)", key, len(plaintext))
	return true
}

// Get retrieves and decrypts the blob stored under key. Returns nil when no
// value exists. Corrupt or undecryptable data yields an empty-object result
// rather than an error: callers treat it as "no prior state".
func (s *SecureStore) Get(key string) []byte {
	storeKey := []byte(SecurePrefix + key)

	var stored []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(storeKey)
		if err != nil {
			return err
		}
		stored, err = item.ValueCopy(nil)
		return err
	})

	if err == badger.ErrKeyNotFound {
		return nil
	}
	if err != nil {
		s.logger.Error("Failed to read %s: %v", key, err)
		return nil
	}

	return s.decrypt(string(stored))
}

// Delete removes the value stored under key
func (s *SecureStore) Delete(key string) error {
	storeKey := []byte(SecurePrefix + key)

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(storeKey)
	})
	if err != nil && err != badger.ErrKeyNotFound {
		return errors.Wrap(err, "failed to delete %s", key)
	}
	return nil
}

// encrypt produces "iv_hex:ciphertext_hex" for a plaintext blob
func (s *SecureStore) encrypt(plaintext []byte) (string, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

// decrypt reverses encrypt. Values without the ':' separator predate
// encryption and are returned unchanged. Any failure yields "{}".
func (s *SecureStore) decrypt(stored string) []byte {
	if !strings.Contains(stored, ":") {
		// Legacy plaintext value
		return []byte(stored)
	}

	parts := strings.SplitN(stored, ":", 2)
	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != aes.BlockSize {
		s.logger.Warn("Stored value has invalid IV, treating as empty")
		return emptyObject
	}

	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		s.logger.Warn("Stored value has invalid ciphertext, treating as empty")
		return emptyObject
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return emptyObject
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		s.logger.Warn("Decryption failed (wrong key or corrupt data), treating as empty")
		return emptyObject
	}

	return unpadded
}

// pkcs7Pad pads data to a multiple of blockSize
func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

// pkcs7Unpad removes and validates PKCS#7 padding
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, fmt.Errorf("invalid padding byte %d", padding)
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-padding], nil
}
