package crypto

import (
	"crypto"
	"crypto/x509"
	"fmt"
	"time"
)

// Envelope is the encrypted form of a personal data block.
type Envelope struct {
	// CipherData is the encrypted block.
	CipherData []byte
	// IntegrityTag is HMAC-SHA-256 keyed by the session key.
	IntegrityTag []byte
	// WrappedKey is the session key wrapped for the recipient.
	WrappedKey []byte
	// Label is the transaction-bound label used for wrapping and as IV source.
	Label []byte
	// KeyIdentifier names the recipient key that wrapped the session key.
	KeyIdentifier string
	// Expiry is when the recipient key stops being valid.
	Expiry time.Time
}

// Recipient is the public key an envelope is sealed for.
type Recipient struct {
	PublicKey     crypto.PublicKey
	KeyIdentifier string
	Expiry        time.Time
}

// RecipientFromCertificate builds a recipient from a registry encryption
// certificate. The key identifier is the certificate expiry date.
func RecipientFromCertificate(cert *x509.Certificate) Recipient {
	return Recipient{
		PublicKey:     cert.PublicKey,
		KeyIdentifier: KeyIdentifierFor(cert.NotAfter),
		Expiry:        cert.NotAfter,
	}
}

// KeyIdentifierFor formats an expiry as a key identifier.
func KeyIdentifierFor(expiry time.Time) string {
	return expiry.UTC().Format(KeyIdentifierLayout)
}

// ExpiryFromKeyIdentifier parses a key identifier back into the end of the
// day it names.
func ExpiryFromKeyIdentifier(id string) (time.Time, error) {
	day, err := time.Parse(KeyIdentifierLayout, id)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse key identifier %q: %w", id, err)
	}
	return day.Add(24*time.Hour - time.Second), nil
}

// SealEnvelope encrypts plaintext for the recipient under a fresh session key
// bound to ts. The session key is destroyed before returning on every path.
func (b Backend) SealEnvelope(plaintext []byte, r Recipient, ts time.Time, scope TagScope) (*Envelope, error) {
	if r.PublicKey == nil {
		return nil, fmt.Errorf("%w: no recipient key", ErrUnsupportedKey)
	}
	if !r.Expiry.IsZero() && ts.After(r.Expiry) {
		return nil, fmt.Errorf("%w: key %s expired at %s", ErrKeyExpired, r.KeyIdentifier, r.Expiry.Format(time.RFC3339))
	}

	session, err := NewSessionKey(ts)
	if err != nil {
		return nil, err
	}
	defer session.Destroy()

	wrapped, err := b.Wrapper.Wrap(session.Key, r.PublicKey, session.Label)
	if err != nil {
		return nil, err
	}

	ciphertext, tag, err := Seal(b.Cipher, plaintext, session.Key, session.Label, scope)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		CipherData:    ciphertext,
		IntegrityTag:  tag,
		WrappedKey:    wrapped,
		Label:         session.Label,
		KeyIdentifier: r.KeyIdentifier,
		Expiry:        r.Expiry,
	}, nil
}
