package crypto

import "errors"

var (
	// ErrInvalidKeySize is returned when a session key has the wrong size.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidLabel is returned when a label is too short to derive an IV.
	ErrInvalidLabel = errors.New("invalid label")

	// ErrInvalidSecretKeySize is returned when an ML-KEM secret key size is invalid.
	ErrInvalidSecretKeySize = errors.New("invalid secret key size")

	// ErrInvalidPublicKeySize is returned when an ML-KEM public key size is invalid.
	ErrInvalidPublicKeySize = errors.New("invalid public key size")

	// ErrUnsupportedKey is returned when a key wrapper is handed a key type it
	// cannot use.
	ErrUnsupportedKey = errors.New("unsupported key type")

	// ErrMissingPrivateKey is returned when an operation needs a private key
	// and the credentials only carry a certificate.
	ErrMissingPrivateKey = errors.New("private key not available")

	// ErrWrapFailed is returned when a session key cannot be wrapped.
	ErrWrapFailed = errors.New("key wrap failed")

	// ErrUnwrapFailed is returned when a wrapped session key cannot be
	// recovered, including a label mismatch.
	ErrUnwrapFailed = errors.New("key unwrap failed")

	// ErrDecryptionFailed is returned when ciphertext cannot be decrypted.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrIntegrityCheckFailed is returned when an integrity tag does not match.
	// It is distinct from ErrDecryptionFailed so callers can tell tampered
	// data from garbled key material.
	ErrIntegrityCheckFailed = errors.New("integrity check failed")

	// ErrEmptyEnvelope is returned when an envelope or one of its required
	// fields is empty.
	ErrEmptyEnvelope = errors.New("empty envelope")

	// ErrKeyExpired is returned when the recipient key is past its expiry.
	ErrKeyExpired = errors.New("recipient key expired")

	// ErrUnknownBackend is returned for an unrecognised backend name.
	ErrUnknownBackend = errors.New("unknown crypto backend")

	// ErrInvalidCredentials is returned when a key store or certificate
	// cannot be parsed.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
