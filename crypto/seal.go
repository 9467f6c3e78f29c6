// Package crypto seals exported session snapshots under a passphrase.
//
// A sealed snapshot is self-contained: the random key-derivation salt and
// the encryption nonce travel in front of the ciphertext, so the
// passphrase alone is enough to open it on another machine. Layout:
//
//	salt (16 bytes) || nonce (24 bytes) || secretbox ciphertext
//
// Sealing uses NaCl secretbox with a key stretched from the passphrase via
// scrypt.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

// Nonce is a 24-byte value used for encryption.
type Nonce [24]byte

// SaltSize is the length of the scrypt salt carried in a sealed snapshot.
const SaltSize = 16

// MaxSnapshotSize bounds the plaintext a seal accepts.
const MaxSnapshotSize = 16 * 1024 * 1024

// scrypt cost parameters.
const (
	scryptN      = 32768
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
)

var (
	// ErrEmptySnapshot is returned when sealing an empty payload.
	ErrEmptySnapshot = errors.New("snapshot is empty")
	// ErrSnapshotTooLarge is returned when the payload exceeds MaxSnapshotSize.
	ErrSnapshotTooLarge = errors.New("snapshot too large")
	// ErrEmptyPassphrase is returned when no passphrase was supplied.
	ErrEmptyPassphrase = errors.New("passphrase is empty")
	// ErrSealedTooShort is returned when a sealed payload cannot even hold
	// its salt and nonce.
	ErrSealedTooShort = errors.New("sealed snapshot too short")
	// ErrWrongPassphrase is returned when authentication fails on open.
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted snapshot")
)

// GenerateNonce creates a cryptographically secure random nonce.
func GenerateNonce() (Nonce, error) {
	var nonce Nonce
	if _, err := rand.Read(nonce[:]); err != nil {
		return Nonce{}, err
	}
	return nonce, nil
}

// DeriveKey stretches a passphrase into a sealing key using scrypt.
func DeriveKey(passphrase string, salt []byte) ([32]byte, error) {
	var key [32]byte
	if passphrase == "" {
		return key, ErrEmptyPassphrase
	}
	raw, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return key, fmt.Errorf("deriving key: %w", err)
	}
	copy(key[:], raw)
	ZeroBytes(raw)
	return key, nil
}

// SealSnapshot encrypts a snapshot payload under a passphrase.
func SealSnapshot(data []byte, passphrase string) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptySnapshot
	}
	if len(data) > MaxSnapshotSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrSnapshotTooLarge, len(data))
	}

	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	nonce, err := GenerateNonce()
	if err != nil {
		return nil, err
	}
	key, err := DeriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}
	defer ZeroBytes(key[:])

	sealed := make([]byte, 0, SaltSize+len(nonce)+len(data)+secretbox.Overhead)
	sealed = append(sealed, salt...)
	sealed = append(sealed, nonce[:]...)
	sealed = secretbox.Seal(sealed, data, (*[24]byte)(&nonce), &key)

	logrus.WithFields(logrus.Fields{
		"function":    "SealSnapshot",
		"plain_size":  len(data),
		"sealed_size": len(sealed),
	}).Debug("Snapshot sealed")
	return sealed, nil
}

// OpenSnapshot decrypts a sealed snapshot with the passphrase it was sealed
// under.
func OpenSnapshot(sealed []byte, passphrase string) ([]byte, error) {
	if len(sealed) < SaltSize+len(Nonce{})+secretbox.Overhead {
		return nil, ErrSealedTooShort
	}

	salt := sealed[:SaltSize]
	var nonce Nonce
	copy(nonce[:], sealed[SaltSize:SaltSize+len(nonce)])

	key, err := DeriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}
	defer ZeroBytes(key[:])

	data, ok := secretbox.Open(nil, sealed[SaltSize+len(nonce):], (*[24]byte)(&nonce), &key)
	if !ok {
		return nil, ErrWrongPassphrase
	}
	return data, nil
}

// SecureWipe overwrites a byte slice holding sensitive material. It returns
// an error if the slice is nil.
func SecureWipe(data []byte) error {
	if data == nil {
		return errors.New("cannot wipe nil data")
	}

	zeros := make([]byte, len(data))
	subtle.ConstantTimeCompare(data, zeros)
	copy(data, zeros)

	runtime.KeepAlive(data)
	runtime.KeepAlive(zeros)
	return nil
}

// ZeroBytes erases the contents of a byte slice containing sensitive data.
// This is a convenience wrapper that ignores the error from SecureWipe.
func ZeroBytes(data []byte) {
	_ = SecureWipe(data)
}
