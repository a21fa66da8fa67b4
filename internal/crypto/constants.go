package crypto

const (
	// SessionKeySize is the size of an AES-256 session key in bytes.
	SessionKeySize = 32
	// AESBlockSize is the AES block size in bytes, also the CFB IV size.
	AESBlockSize = 16
	// GCMNonceSize is the size of an AES-GCM nonce in bytes.
	GCMNonceSize = 12
	// GCMTagSize is the size of an AES-GCM authentication tag in bytes.
	GCMTagSize = 16
	// GCMAADSize is the number of trailing label bytes used as AES-GCM
	// additional authenticated data.
	GCMAADSize = 16
	// TagSize is the size of an HMAC-SHA-256 integrity tag in bytes.
	TagSize = 32

	// MinLabelSize is the shortest label accepted. Both the CFB IV and the
	// GCM associated data are taken from the tail of the label.
	MinLabelSize = 16

	// TimestampLayout is the protocol timestamp format. The label bound to a
	// session key is the UTF-8 encoding of the transaction timestamp in this
	// layout.
	TimestampLayout = "2006-01-02T15:04:05"

	// KeyIdentifierLayout formats a recipient certificate expiry into the
	// key identifier carried next to the wrapped session key.
	KeyIdentifierLayout = "20060102"

	// KEMContext is mixed into HKDF when deriving the key-sealing key from an
	// ML-KEM shared secret.
	KEMContext = "authbridge:skey:v1"

	// MLKEMPublicKeySize is the size of an ML-KEM-768 public key in bytes.
	MLKEMPublicKeySize = 1184
	// MLKEMSecretKeySize is the size of an ML-KEM-768 secret key in bytes.
	MLKEMSecretKeySize = 2400
	// MLKEMCiphertextSize is the size of an ML-KEM-768 ciphertext in bytes.
	MLKEMCiphertextSize = 1088
	// MLKEMSharedKeySize is the size of the shared secret from ML-KEM-768 in bytes.
	MLKEMSharedKeySize = 32

	// PublicKeyOffset is the byte offset where the public key is embedded
	// within an ML-KEM-768 secret key.
	PublicKeyOffset = 1152
)
