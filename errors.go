package authbridge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/authbridge/client-go/internal/crypto"
	"github.com/authbridge/client-go/internal/transport"
	"github.com/authbridge/client-go/internal/xmldsig"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrValidation is returned when an argument or configuration value is
	// missing, empty or out of range. No cryptographic or network work has
	// been done when it is returned.
	ErrValidation = errors.New("validation failed")

	// ErrCrypto is returned when key material is malformed or a session key
	// cannot be wrapped or unwrapped.
	ErrCrypto = errors.New("cryptographic operation failed")

	// ErrIntegrity is returned when an integrity tag does not match the data
	// it protects.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrSignatureInvalid is returned when a signature is missing, forged,
	// expired or made by an untrusted certificate.
	ErrSignatureInvalid = errors.New("signature verification failed")

	// ErrNotSupported is returned when signing or verification is attempted
	// without the key material it needs.
	ErrNotSupported = errors.New("xml signature not supported")

	// ErrRegistry is returned when the registry answers with an error code.
	ErrRegistry = errors.New("registry returned an error")

	// ErrTransport is returned when the request could not be delivered or the
	// response could not be received.
	ErrTransport = errors.New("transport failed")

	// ErrExchangeUsed is returned when Run is called twice on an Exchange
	// without a Reset in between.
	ErrExchangeUsed = errors.New("exchange already used")
)

// AuthBridgeError is implemented by all errors returned from an exchange.
type AuthBridgeError interface {
	error
	AuthBridgeError() // marker method
}

// ValidationError contains one or more validation failures.
type ValidationError struct {
	Errors []string
	// Err is the underlying cause, if any.
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// AuthBridgeError implements the AuthBridgeError interface.
func (e *ValidationError) AuthBridgeError() {}

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Errors: []string{fmt.Sprintf(format, args...)}}
}

// CryptoError reports a failure in key wrapping, encryption or decryption.
type CryptoError struct {
	Stage string // "wrap", "encrypt", "sign", "unwrap", "decrypt", "decode"
	Err   error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("crypto failed at %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *CryptoError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *CryptoError) Is(target error) bool {
	return target == ErrCrypto
}

// AuthBridgeError implements the AuthBridgeError interface.
func (e *CryptoError) AuthBridgeError() {}

// IntegrityError indicates tampered or corrupted data.
type IntegrityError struct {
	Stage string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed at %s", e.Stage)
}

// Is implements errors.Is for sentinel error matching.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

// AuthBridgeError implements the AuthBridgeError interface.
func (e *IntegrityError) AuthBridgeError() {}

// SignatureError indicates a signature that could not be produced or
// verified. An unsupported signer or verifier also matches ErrNotSupported.
type SignatureError struct {
	Message     string
	Err         error
	Unsupported bool
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("signature verification failed: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *SignatureError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *SignatureError) Is(target error) bool {
	return target == ErrSignatureInvalid || (e.Unsupported && target == ErrNotSupported)
}

// AuthBridgeError implements the AuthBridgeError interface.
func (e *SignatureError) AuthBridgeError() {}

// RegistryError carries the error code the registry attached to a signed
// response. Response is fully populated with whatever the registry returned.
type RegistryError struct {
	Code     string
	Txn      string
	Response Response
}

func (e *RegistryError) Error() string {
	if e.Txn != "" {
		return fmt.Sprintf("registry error %s (txn: %s)", e.Code, e.Txn)
	}
	return fmt.Sprintf("registry error %s", e.Code)
}

// Is implements errors.Is for sentinel error matching.
func (e *RegistryError) Is(target error) bool {
	return target == ErrRegistry
}

// AuthBridgeError implements the AuthBridgeError interface.
func (e *RegistryError) AuthBridgeError() {}

// TransportError reports a failure delivering the request or reading the
// response. StatusCode is zero when no HTTP response was received.
type TransportError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error: HTTP %d from %s", e.StatusCode, e.Endpoint)
	}
	return fmt.Sprintf("transport error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// AuthBridgeError implements the AuthBridgeError interface.
func (e *TransportError) AuthBridgeError() {}

// wrapCryptoError converts internal crypto errors to public errors so that
// callers can tell tampering from bad key material from bad arguments.
func wrapCryptoError(stage string, err error) error {
	if err == nil {
		return nil
	}

	var abErr AuthBridgeError
	if errors.As(err, &abErr) {
		return err
	}

	switch {
	case errors.Is(err, crypto.ErrIntegrityCheckFailed):
		return &IntegrityError{Stage: stage}
	case errors.Is(err, crypto.ErrEmptyEnvelope),
		errors.Is(err, crypto.ErrMissingPrivateKey),
		errors.Is(err, crypto.ErrKeyExpired),
		errors.Is(err, crypto.ErrInvalidLabel):
		return &ValidationError{Errors: []string{err.Error()}, Err: err}
	}
	return &CryptoError{Stage: stage, Err: err}
}

// wrapSignatureError converts signature module errors to public errors.
func wrapSignatureError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, xmldsig.ErrNotSupported):
		return &SignatureError{Message: "no signing key or trusted certificate configured", Err: err, Unsupported: true}
	case errors.Is(err, xmldsig.ErrSignatureMissing):
		return &SignatureError{Message: "signature missing", Err: err}
	}
	return &SignatureError{Message: "signature invalid", Err: err}
}

// wrapTransportError converts transport errors to public errors.
func wrapTransportError(endpoint string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, transport.ErrInvalidEndpoint) {
		return &ValidationError{Errors: []string{err.Error()}, Err: err}
	}

	var httpErr *transport.HTTPError
	if errors.As(err, &httpErr) {
		return &TransportError{Endpoint: endpoint, StatusCode: httpErr.StatusCode, Err: err}
	}

	var netErr *transport.NetworkError
	if errors.As(err, &netErr) {
		return &TransportError{Endpoint: endpoint, Err: netErr.Err}
	}

	return &TransportError{Endpoint: endpoint, Err: err}
}
