package authbridge

import (
	"github.com/authbridge/client-go/internal/crypto"
)

// Kind names a request/response pair of the protocol.
type Kind string

// Message kinds.
const (
	KindAuth Kind = "auth"
	KindOTP  Kind = "otp"
	KindKYC  Kind = "kyc"
)

const timestampLayout = crypto.TimestampLayout

// Request is an outgoing protocol message.
type Request interface {
	// Kind selects the endpoint and metrics labels.
	Kind() Kind
	// UID is the resident identifier the request is about.
	UID() string
	// Txn is the caller-chosen transaction id, or empty to have one generated.
	Txn() string
	// BindIdentity injects the agency identity, transaction id and timestamp.
	// It fails with a *ValidationError when the request is incomplete.
	BindIdentity(b Binding) error
	// MarshalMessage serialises the request. The exchange canonicalizes and
	// signs the result.
	MarshalMessage() ([]byte, error)
}

// EncryptedRequest is a request carrying personal data that must be sealed
// for the registry before signing.
type EncryptedRequest interface {
	Request
	// PersonalData returns the serialised plaintext block. The exchange zeroes
	// it once sealed.
	PersonalData() ([]byte, error)
	// SetEncrypted stores the sealed block; nil clears it.
	SetEncrypted(enc *EncBlock)
}

// WrappingRequest embeds another request that is encrypted and signed on
// its own before the outer request is built around it.
type WrappingRequest interface {
	Request
	Inner() Request
	// SetSignedInner stores the signed inner message; nil clears it.
	SetSignedInner(signed []byte)
}

// Response is an incoming protocol message.
type Response interface {
	// UnmarshalMessage populates the response from verified bytes.
	UnmarshalMessage(data []byte) error
	// ErrorCode returns the registry error code, or empty on success.
	ErrorCode() string
}

// EncryptedResponse is a response carrying a block sealed for the agency.
type EncryptedResponse interface {
	Response
	Encrypted() *EncBlock
	// SetPlaintext takes ownership of the decrypted block.
	SetPlaintext(plaintext []byte) error
}

// Discarder is implemented by responses that hold decrypted personal data.
type Discarder interface {
	Discard()
}

// EncBlock is the wire form of an encrypted envelope: the wrapped session
// key, the ciphertext and the integrity tag, base64 encoded.
type EncBlock struct {
	// KeyIdentifier names the recipient key (ci).
	KeyIdentifier string `xml:"ci,attr"`
	// Timestamp is the label the session key is bound to (ts).
	Timestamp  string `xml:"ts,attr"`
	SessionKey string `xml:"Skey"`
	Data       string `xml:"Data"`
	Hmac       string `xml:"Hmac,omitempty"`
}

func newEncBlock(env *crypto.Envelope) *EncBlock {
	return &EncBlock{
		KeyIdentifier: env.KeyIdentifier,
		Timestamp:     string(env.Label),
		SessionKey:    crypto.ToBase64(env.WrappedKey),
		Data:          crypto.ToBase64(env.CipherData),
		Hmac:          crypto.ToBase64(env.IntegrityTag),
	}
}

// envelope decodes the block. A nil block yields a nil envelope, which the
// decryptor rejects as empty.
func (b *EncBlock) envelope() (*crypto.Envelope, error) {
	if b == nil {
		return nil, nil
	}

	wrapped, err := crypto.FromBase64(b.SessionKey)
	if err != nil {
		return nil, err
	}
	data, err := crypto.FromBase64(b.Data)
	if err != nil {
		return nil, err
	}
	tag, err := crypto.FromBase64(b.Hmac)
	if err != nil {
		return nil, err
	}

	env := &crypto.Envelope{
		CipherData:    data,
		IntegrityTag:  tag,
		WrappedKey:    wrapped,
		Label:         []byte(b.Timestamp),
		KeyIdentifier: b.KeyIdentifier,
	}
	if b.KeyIdentifier != "" {
		if expiry, err := crypto.ExpiryFromKeyIdentifier(b.KeyIdentifier); err == nil {
			env.Expiry = expiry
		}
	}
	return env, nil
}
