package crypto

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rsa"
	_ "crypto/sha1" // registers crypto.SHA1 for legacy OAEP registries
	"fmt"
	"io"

	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
)

// KeyWrapper wraps a session key for a recipient and unwraps it with the
// owner's private key. The label must be byte-identical on both sides.
type KeyWrapper interface {
	Wrap(key []byte, recipient crypto.PublicKey, label []byte) ([]byte, error)
	Unwrap(wrapped []byte, owner crypto.PrivateKey, label []byte) ([]byte, error)
}

// OAEPWrapper wraps session keys with RSA-OAEP and an explicit label.
type OAEPWrapper struct {
	// Hash is used for both the OAEP digest and MGF1. Zero means SHA-256.
	Hash crypto.Hash
}

func (w OAEPWrapper) hash() (crypto.Hash, error) {
	h := w.Hash
	if h == 0 {
		h = crypto.SHA256
	}
	if !h.Available() {
		return 0, fmt.Errorf("%w: OAEP hash %v not available", ErrUnsupportedKey, h)
	}
	return h, nil
}

// Wrap encrypts key for an RSA recipient.
func (w OAEPWrapper) Wrap(key []byte, recipient crypto.PublicKey, label []byte) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	pub, ok := recipient.(*rsa.PublicKey)
	if !ok || pub == nil {
		return nil, fmt.Errorf("%w: OAEP recipient is %T", ErrUnsupportedKey, recipient)
	}

	h, err := w.hash()
	if err != nil {
		return nil, err
	}

	wrapped, err := rsa.EncryptOAEP(h.New(), random(), pub, key, label)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrapFailed, err)
	}
	return wrapped, nil
}

// Unwrap recovers a session key. A label mismatch fails like any other
// decryption error.
func (w OAEPWrapper) Unwrap(wrapped []byte, owner crypto.PrivateKey, label []byte) ([]byte, error) {
	if owner == nil {
		return nil, ErrMissingPrivateKey
	}

	priv, ok := owner.(*rsa.PrivateKey)
	if !ok || priv == nil {
		return nil, fmt.Errorf("%w: OAEP owner is %T", ErrUnsupportedKey, owner)
	}

	h, err := w.hash()
	if err != nil {
		return nil, err
	}

	key, err := rsa.DecryptOAEP(h.New(), nil, priv, wrapped, label)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnwrapFailed, err)
	}

	if err := checkKey(key); err != nil {
		Zero(key)
		return nil, fmt.Errorf("%w: %v", ErrUnwrapFailed, err)
	}
	return key, nil
}

// KEMWrapper wraps session keys for ML-KEM-768 recipients.
//
// Wrapped format: KEM ciphertext (1088) || nonce (12) || AES-GCM(key) (48).
// The sealing key is derived from the KEM shared secret with HKDF-SHA-512
// bound to the label, and the label is also the GCM associated data.
type KEMWrapper struct{}

const kemWrappedSize = MLKEMCiphertextSize + GCMNonceSize + SessionKeySize + GCMTagSize

// Wrap encapsulates to the recipient and seals key under the derived key.
func (KEMWrapper) Wrap(key []byte, recipient crypto.PublicKey, label []byte) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	pub, ok := recipient.(*mlkem768.PublicKey)
	if !ok || pub == nil {
		return nil, fmt.Errorf("%w: KEM recipient is %T", ErrUnsupportedKey, recipient)
	}

	seed := make([]byte, mlkem768.EncapsulationSeedSize)
	if _, err := io.ReadFull(random(), seed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrapFailed, err)
	}

	ctKem := make([]byte, MLKEMCiphertextSize)
	sharedSecret := make([]byte, MLKEMSharedKeySize)
	pub.EncapsulateTo(ctKem, sharedSecret, seed)
	defer Zero(sharedSecret)

	sealKey, err := deriveKEMKey(sharedSecret, ctKem, label)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrapFailed, err)
	}
	defer Zero(sealKey)

	nonce := make([]byte, GCMNonceSize)
	if _, err := io.ReadFull(random(), nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrapFailed, err)
	}

	gcm, err := newGCM(sealKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrapFailed, err)
	}

	wrapped := make([]byte, 0, kemWrappedSize)
	wrapped = append(wrapped, ctKem...)
	wrapped = append(wrapped, nonce...)
	return gcm.Seal(wrapped, nonce, key, label), nil
}

// Unwrap decapsulates and opens the sealed key.
func (KEMWrapper) Unwrap(wrapped []byte, owner crypto.PrivateKey, label []byte) ([]byte, error) {
	if owner == nil {
		return nil, ErrMissingPrivateKey
	}

	priv, ok := owner.(*mlkem768.PrivateKey)
	if !ok || priv == nil {
		return nil, fmt.Errorf("%w: KEM owner is %T", ErrUnsupportedKey, owner)
	}

	if len(wrapped) != kemWrappedSize {
		return nil, fmt.Errorf("%w: wrapped key is %d bytes, want %d", ErrUnwrapFailed, len(wrapped), kemWrappedSize)
	}

	ctKem := wrapped[:MLKEMCiphertextSize]
	nonce := wrapped[MLKEMCiphertextSize : MLKEMCiphertextSize+GCMNonceSize]
	sealed := wrapped[MLKEMCiphertextSize+GCMNonceSize:]

	sharedSecret := make([]byte, MLKEMSharedKeySize)
	priv.DecapsulateTo(sharedSecret, ctKem)
	defer Zero(sharedSecret)

	sealKey, err := deriveKEMKey(sharedSecret, ctKem, label)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnwrapFailed, err)
	}
	defer Zero(sealKey)

	gcm, err := newGCM(sealKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnwrapFailed, err)
	}

	key, err := gcm.Open(nil, nonce, sealed, label)
	if err != nil {
		return nil, ErrUnwrapFailed
	}
	return key, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
