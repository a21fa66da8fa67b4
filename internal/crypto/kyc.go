package crypto

import (
	"crypto"
	"fmt"
)

// DecryptKYC recovers the plaintext block of a response envelope.
//
// The decryption process:
//  1. Unwrap the session key with the owner's private key and the label
//     carried in the envelope (never recomputed)
//  2. Verify the integrity tag and decrypt with the same label as IV source
//
// The returned plaintext belongs to the caller; no copy is retained and the
// session key is zeroed before returning.
//
// Security: callers MUST verify the response signature before calling this.
func (b Backend) DecryptKYC(env *Envelope, owner crypto.PrivateKey, scope TagScope) ([]byte, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: envelope is nil", ErrEmptyEnvelope)
	}
	if len(env.CipherData) == 0 {
		return nil, fmt.Errorf("%w: no cipher data", ErrEmptyEnvelope)
	}
	if len(env.WrappedKey) == 0 {
		return nil, fmt.Errorf("%w: no wrapped key", ErrEmptyEnvelope)
	}
	if len(env.Label) == 0 {
		return nil, fmt.Errorf("%w: no label", ErrEmptyEnvelope)
	}
	if owner == nil {
		return nil, ErrMissingPrivateKey
	}

	key, err := b.Wrapper.Unwrap(env.WrappedKey, owner, env.Label)
	if err != nil {
		return nil, err
	}
	defer Zero(key)

	return Open(b.Cipher, env.CipherData, key, env.Label, env.IntegrityTag, scope)
}
