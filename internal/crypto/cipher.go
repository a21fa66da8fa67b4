package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
)

// PayloadCipher encrypts a data block under a session key. The IV is derived
// from the same label used to wrap the key, binding both steps to one
// transaction.
type PayloadCipher interface {
	Encrypt(plaintext, key, label []byte) ([]byte, error)
	Decrypt(ciphertext, key, label []byte) ([]byte, error)
}

// CFBCipher is AES-256 in CFB mode. No padding is applied, so ciphertext
// length always equals plaintext length. The IV is the last 16 label bytes.
type CFBCipher struct{}

// Encrypt encrypts plaintext with AES-256-CFB.
func (CFBCipher) Encrypt(plaintext, key, label []byte) ([]byte, error) {
	block, err := newBlock(key, label)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(plaintext))
	cipher.NewCFBEncrypter(block, tail(label, AESBlockSize)).XORKeyStream(out, plaintext)
	return out, nil
}

// Decrypt decrypts AES-256-CFB ciphertext of any length.
func (CFBCipher) Decrypt(ciphertext, key, label []byte) ([]byte, error) {
	block, err := newBlock(key, label)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCFBDecrypter(block, tail(label, AESBlockSize)).XORKeyStream(out, ciphertext)
	return out, nil
}

// GCMCipher is AES-256-GCM. The nonce is the last 12 label bytes and the
// associated data the last 16. Output is ciphertext || tag (16 bytes).
type GCMCipher struct{}

// Encrypt seals plaintext with AES-256-GCM.
func (GCMCipher) Encrypt(plaintext, key, label []byte) ([]byte, error) {
	block, err := newBlock(key, label)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return gcm.Seal(nil, tail(label, GCMNonceSize), plaintext, tail(label, GCMAADSize)), nil
}

// Decrypt opens AES-256-GCM ciphertext. A tag mismatch is reported as an
// integrity failure.
func (GCMCipher) Decrypt(ciphertext, key, label []byte) ([]byte, error) {
	block, err := newBlock(key, label)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < GCMTagSize {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, tail(label, GCMNonceSize), ciphertext, tail(label, GCMAADSize))
	if err != nil {
		return nil, ErrIntegrityCheckFailed
	}
	return plaintext, nil
}

func newBlock(key, label []byte) (cipher.Block, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	if err := checkLabel(label); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return block, nil
}

// TagScope pins what an integrity tag covers for a message kind.
type TagScope int

const (
	// TagPlaintext computes the tag over the canonical plaintext block.
	TagPlaintext TagScope = iota
	// TagCiphertext computes the tag over the ciphertext, so it can be
	// checked before anything is decrypted.
	TagCiphertext
)

func (s TagScope) String() string {
	switch s {
	case TagPlaintext:
		return "plaintext"
	case TagCiphertext:
		return "ciphertext"
	default:
		return fmt.Sprintf("TagScope(%d)", int(s))
	}
}

// ComputeTag returns HMAC-SHA-256 of data keyed by the session key.
func ComputeTag(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// VerifyTag compares tag against HMAC-SHA-256 of data in constant time.
func VerifyTag(key, data, tag []byte) error {
	if !hmac.Equal(ComputeTag(key, data), tag) {
		return ErrIntegrityCheckFailed
	}
	return nil
}

// Seal encrypts plaintext and computes its integrity tag.
func Seal(c PayloadCipher, plaintext, key, label []byte, scope TagScope) (ciphertext, tag []byte, err error) {
	ciphertext, err = c.Encrypt(plaintext, key, label)
	if err != nil {
		return nil, nil, err
	}

	if scope == TagCiphertext {
		return ciphertext, ComputeTag(key, ciphertext), nil
	}
	return ciphertext, ComputeTag(key, plaintext), nil
}

// Open verifies the integrity tag and decrypts. A nil tag skips the keyed-hash
// check. With TagPlaintext the recovered plaintext is zeroed before an
// integrity error is returned, so no unverified plaintext escapes.
func Open(c PayloadCipher, ciphertext, key, label, tag []byte, scope TagScope) ([]byte, error) {
	if tag != nil && scope == TagCiphertext {
		if err := VerifyTag(key, ciphertext, tag); err != nil {
			return nil, err
		}
	}

	plaintext, err := c.Decrypt(ciphertext, key, label)
	if err != nil {
		return nil, err
	}

	if tag != nil && scope == TagPlaintext {
		if err := VerifyTag(key, plaintext, tag); err != nil {
			Zero(plaintext)
			return nil, err
		}
	}
	return plaintext, nil
}
