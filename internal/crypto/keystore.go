package crypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/pkcs12"
)

// Credentials hold a certificate and, for the agency's own identity, the
// matching private key. Registry certificates carry no private key.
type Credentials struct {
	Certificate *x509.Certificate
	PrivateKey  crypto.PrivateKey
}

// HasPrivateKey reports whether the credentials can sign or decrypt.
func (c *Credentials) HasPrivateKey() bool {
	return c != nil && c.PrivateKey != nil
}

// RSAPrivateKey returns the private key as RSA, which XML signing requires.
func (c *Credentials) RSAPrivateKey() (*rsa.PrivateKey, error) {
	if !c.HasPrivateKey() {
		return nil, ErrMissingPrivateKey
	}
	key, ok := c.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: private key is %T, want RSA", ErrUnsupportedKey, c.PrivateKey)
	}
	return key, nil
}

// LoadPKCS12 decodes an agency key store holding one certificate and its key.
func LoadPKCS12(data []byte, password string) (*Credentials, error) {
	key, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, fmt.Errorf("%w: decode PKCS#12: %v", ErrInvalidCredentials, err)
	}
	return &Credentials{Certificate: cert, PrivateKey: key}, nil
}

// LoadCertificate parses a PEM or DER encoded certificate.
func LoadCertificate(data []byte) (*x509.Certificate, error) {
	der := data
	if block, _ := pem.Decode(data); block != nil {
		if block.Type != "CERTIFICATE" {
			return nil, fmt.Errorf("%w: unexpected PEM block %q", ErrInvalidCredentials, block.Type)
		}
		der = block.Bytes
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: parse certificate: %v", ErrInvalidCredentials, err)
	}
	return cert, nil
}

// LoadKeyPair builds credentials from a PEM certificate and a PEM private key
// in PKCS#8 or PKCS#1 form.
func LoadKeyPair(certPEM, keyPEM []byte) (*Credentials, error) {
	cert, err := LoadCertificate(certPEM)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM private key", ErrInvalidCredentials)
	}

	var key crypto.PrivateKey
	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	default:
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parse private key: %v", ErrInvalidCredentials, err)
	}

	if !keyMatchesCertificate(key, cert) {
		return nil, fmt.Errorf("%w: private key does not match certificate", ErrInvalidCredentials)
	}
	return &Credentials{Certificate: cert, PrivateKey: key}, nil
}

func keyMatchesCertificate(key crypto.PrivateKey, cert *x509.Certificate) bool {
	type publicKeyer interface {
		Public() crypto.PublicKey
	}
	type equaler interface {
		Equal(crypto.PublicKey) bool
	}

	switch key.(type) {
	case *rsa.PrivateKey, *ecdsa.PrivateKey, ed25519.PrivateKey:
	default:
		return false
	}

	pub, ok := key.(publicKeyer)
	if !ok {
		return false
	}
	eq, ok := pub.Public().(equaler)
	return ok && eq.Equal(cert.PublicKey)
}
