package xmldsig

import (
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
)

var (
	// ErrNotSupported is returned when signing or verification is attempted
	// without the key material it needs.
	ErrNotSupported = errors.New("xml signature not supported")

	// ErrSignatureMissing is returned when a message that must be signed
	// carries no signature over its root element.
	ErrSignatureMissing = errors.New("signature missing")

	// ErrSignatureInvalid is returned when a signature does not verify
	// against any trusted certificate.
	ErrSignatureInvalid = errors.New("signature invalid")

	// ErrMalformedDocument is returned when a message is not well-formed XML.
	ErrMalformedDocument = errors.New("malformed document")
)

func canonicalizer() dsig.Canonicalizer {
	return dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")
}

func parse(doc []byte) (*etree.Document, error) {
	d := etree.NewDocument()
	if err := d.ReadFromBytes(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if d.Root() == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformedDocument)
	}
	return d, nil
}

// Canonicalize returns the exclusive canonical form of the root element.
func Canonicalize(doc []byte) ([]byte, error) {
	d, err := parse(doc)
	if err != nil {
		return nil, err
	}
	return canonicalizer().Canonicalize(d.Root())
}

type keyStore struct {
	key  *rsa.PrivateKey
	cert []byte
}

func (k keyStore) GetKeyPair() (*rsa.PrivateKey, []byte, error) {
	return k.key, k.cert, nil
}

// Signer appends an enveloped RSA-SHA256 signature carrying the signer
// certificate. It is safe for concurrent use.
type Signer struct {
	key  *rsa.PrivateKey
	cert *x509.Certificate
}

// NewSigner returns a signer for the agency key and certificate.
func NewSigner(key *rsa.PrivateKey, cert *x509.Certificate) (*Signer, error) {
	if key == nil || cert == nil {
		return nil, ErrNotSupported
	}
	return &Signer{key: key, cert: cert}, nil
}

// Sign canonicalizes doc and returns it with an enveloped signature.
func (s *Signer) Sign(doc []byte) ([]byte, error) {
	canonical, err := Canonicalize(doc)
	if err != nil {
		return nil, err
	}

	d, err := parse(canonical)
	if err != nil {
		return nil, err
	}

	// SigningContext is not safe for concurrent use; build one per call.
	ctx := dsig.NewDefaultSigningContext(keyStore{key: s.key, cert: s.cert.Raw})
	ctx.Canonicalizer = canonicalizer()
	if err := ctx.SetSignatureMethod(dsig.RSASHA256SignatureMethod); err != nil {
		return nil, err
	}

	signed, err := ctx.SignEnveloped(d.Root())
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	d.SetRoot(signed)

	return d.WriteToBytes()
}

// Verifier checks enveloped signatures against a fixed set of trusted
// certificates.
type Verifier struct {
	trusted []*x509.Certificate
	now     func() time.Time
}

// NewVerifier returns a verifier trusting exactly the given certificates.
// Certificate validity is checked at now(); a nil now uses time.Now.
func NewVerifier(now func() time.Time, trusted ...*x509.Certificate) (*Verifier, error) {
	if len(trusted) == 0 {
		return nil, ErrNotSupported
	}
	if now == nil {
		now = time.Now
	}
	return &Verifier{trusted: trusted, now: now}, nil
}

// Verify checks that doc carries a valid signature over its root element by
// one of the trusted certificates, and returns the signed element with the
// signature removed. Callers must parse the returned bytes, not doc.
func (v *Verifier) Verify(doc []byte) ([]byte, error) {
	d, err := parse(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	ctx := dsig.NewDefaultValidationContext(&dsig.MemoryX509CertificateStore{Roots: v.trusted})
	ctx.Clock = dsig.NewFakeClockAt(v.now())
	verified, err := ctx.Validate(d.Root())
	if err != nil {
		if errors.Is(err, dsig.ErrMissingSignature) {
			return nil, ErrSignatureMissing
		}
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	out := etree.NewDocument()
	out.SetRoot(verified)
	return out.WriteToBytes()
}

// Unsupported fails every signing and verification attempt.
type Unsupported struct{}

// Sign always returns ErrNotSupported.
func (Unsupported) Sign([]byte) ([]byte, error) {
	return nil, ErrNotSupported
}

// Verify always returns ErrNotSupported.
func (Unsupported) Verify([]byte) ([]byte, error) {
	return nil, ErrNotSupported
}
