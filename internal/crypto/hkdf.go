package crypto

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DeriveKey derives a key using HKDF-SHA-512.
func DeriveKey(secret, salt, info []byte, length int) ([]byte, error) {
	if len(salt) == 0 {
		salt = make([]byte, sha512.Size)
	}

	reader := hkdf.New(sha512.New, secret, salt, info)
	key := make([]byte, length)

	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	return key, nil
}

// deriveKEMKey derives the AES key that seals a session key under an ML-KEM
// shared secret.
//
//   - Salt: SHA-256 of the KEM ciphertext
//   - Info: KEMContext || label length (4 bytes BE) || label
func deriveKEMKey(sharedSecret, ctKem, label []byte) ([]byte, error) {
	saltHash := sha256.Sum256(ctKem)

	labelLength := make([]byte, 4)
	binary.BigEndian.PutUint32(labelLength, uint32(len(label)))

	info := make([]byte, 0, len(KEMContext)+4+len(label))
	info = append(info, KEMContext...)
	info = append(info, labelLength...)
	info = append(info, label...)

	return DeriveKey(sharedSecret, saltHash[:], info, SessionKeySize)
}
