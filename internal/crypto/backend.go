package crypto

import (
	"crypto"
	"fmt"
	"strings"
)

// Backend names accepted by BackendByName.
const (
	// BackendStandard is RSA-OAEP key wrapping with AES-CFB payloads.
	BackendStandard = "standard"
	// BackendAEAD is RSA-OAEP key wrapping with AES-GCM payloads.
	BackendAEAD = "aead"
	// BackendPostQuantum is ML-KEM-768 key wrapping with AES-GCM payloads.
	BackendPostQuantum = "pq"
)

// Backend pairs a key wrapper with a payload cipher. It is chosen once when
// the client is configured and never switched per call.
type Backend struct {
	Name    string
	Wrapper KeyWrapper
	Cipher  PayloadCipher
}

// BackendByName returns the backend for name. oaepHash only applies to the
// RSA backends; zero selects SHA-256.
func BackendByName(name string, oaepHash crypto.Hash) (Backend, error) {
	switch strings.ToLower(name) {
	case "", BackendStandard:
		return Backend{Name: BackendStandard, Wrapper: OAEPWrapper{Hash: oaepHash}, Cipher: CFBCipher{}}, nil
	case BackendAEAD:
		return Backend{Name: BackendAEAD, Wrapper: OAEPWrapper{Hash: oaepHash}, Cipher: GCMCipher{}}, nil
	case BackendPostQuantum:
		return Backend{Name: BackendPostQuantum, Wrapper: KEMWrapper{}, Cipher: GCMCipher{}}, nil
	default:
		return Backend{}, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}

// ParseHash maps a configuration string to a hash for OAEP.
func ParseHash(name string) (crypto.Hash, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "-", "")) {
	case "", "sha256":
		return crypto.SHA256, nil
	case "sha1":
		return crypto.SHA1, nil
	case "sha512":
		return crypto.SHA512, nil
	default:
		return 0, fmt.Errorf("%w: unsupported OAEP hash %q", ErrUnsupportedKey, name)
	}
}
