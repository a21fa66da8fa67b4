package crypto

import (
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
)

// KEMKeypair is an ML-KEM-768 keypair for the post-quantum backend.
type KEMKeypair struct {
	// PublicKey is the raw ML-KEM-768 public key bytes.
	PublicKey []byte
	// SecretKey is the raw ML-KEM-768 secret key bytes.
	SecretKey []byte
}

// GenerateKEMKeypair creates a new ML-KEM-768 keypair.
func GenerateKEMKeypair() (*KEMKeypair, error) {
	pub, priv, err := mlkem768.GenerateKeyPair(random())
	if err != nil {
		return nil, err
	}

	// MarshalBinary never fails for valid keys from GenerateKeyPair
	pubBytes, _ := pub.MarshalBinary()
	privBytes, _ := priv.MarshalBinary()

	return &KEMKeypair{PublicKey: pubBytes, SecretKey: privBytes}, nil
}

// KEMKeypairFromSecretKey recovers the public key embedded in an ML-KEM-768
// secret key, so a key file alone is enough to publish the agency's key.
func KEMKeypairFromSecretKey(secretKey []byte) (*KEMKeypair, error) {
	if len(secretKey) != MLKEMSecretKeySize {
		return nil, ErrInvalidSecretKeySize
	}

	publicKey := make([]byte, MLKEMPublicKeySize)
	copy(publicKey, secretKey[PublicKeyOffset:PublicKeyOffset+MLKEMPublicKeySize])

	return &KEMKeypair{PublicKey: publicKey, SecretKey: secretKey}, nil
}

// ParseKEMPublicKey unpacks a raw ML-KEM-768 public key.
func ParseKEMPublicKey(b []byte) (*mlkem768.PublicKey, error) {
	if len(b) != MLKEMPublicKeySize {
		return nil, ErrInvalidPublicKeySize
	}
	var pk mlkem768.PublicKey
	if err := pk.Unpack(b); err != nil {
		return nil, err
	}
	return &pk, nil
}

// ParseKEMPrivateKey unpacks a raw ML-KEM-768 secret key.
func ParseKEMPrivateKey(b []byte) (*mlkem768.PrivateKey, error) {
	if len(b) != MLKEMSecretKeySize {
		return nil, ErrInvalidSecretKeySize
	}
	var sk mlkem768.PrivateKey
	if err := sk.Unpack(b); err != nil {
		return nil, err
	}
	return &sk, nil
}
