package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"
)

// randReader is the random source used for session keys and nonces.
// It defaults to nil (which uses crypto/rand) but can be overridden for testing.
var randReader io.Reader

func random() io.Reader {
	if randReader != nil {
		return randReader
	}
	return rand.Reader
}

// SessionKey is the one-time symmetric key material for a single exchange.
// It lives only in memory and must be destroyed once the envelope is built.
type SessionKey struct {
	// Key is the AES-256 session key.
	Key []byte
	// Label binds the key to one transaction. It is the OAEP label (or KEM
	// info) for wrapping and the IV source for the payload cipher.
	Label []byte
}

// NewSessionKey generates a fresh session key bound to the transaction timestamp.
func NewSessionKey(ts time.Time) (*SessionKey, error) {
	key := make([]byte, SessionKeySize)
	if _, err := io.ReadFull(random(), key); err != nil {
		return nil, fmt.Errorf("generate session key: %w", err)
	}
	return &SessionKey{Key: key, Label: LabelFromTimestamp(ts)}, nil
}

// Destroy zeroes the key. It is safe to call more than once and on nil.
func (s *SessionKey) Destroy() {
	if s == nil {
		return
	}
	Zero(s.Key)
	s.Key = nil
}

// LabelFromTimestamp returns the label bytes for a transaction timestamp.
func LabelFromTimestamp(ts time.Time) []byte {
	return []byte(ts.Format(TimestampLayout))
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func checkKey(key []byte) error {
	if len(key) != SessionKeySize {
		return fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), SessionKeySize)
	}
	return nil
}

func checkLabel(label []byte) error {
	if len(label) < MinLabelSize {
		return fmt.Errorf("%w: got %d bytes, want at least %d", ErrInvalidLabel, len(label), MinLabelSize)
	}
	return nil
}

// tail returns the last n bytes of b. Callers check the length first.
func tail(b []byte, n int) []byte {
	return b[len(b)-n:]
}
