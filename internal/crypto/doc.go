// Package crypto implements the secure exchange primitives used between an
// agency and the identity registry.
//
// # Algorithm Suite
//
//   - RSA-OAEP (SHA-256 by default, SHA-1 for legacy registries) with an
//     explicit label: wraps the per-request session key for the recipient.
//
//   - ML-KEM-768 + HKDF-SHA-512 + AES-256-GCM: alternative key wrapping for
//     registries that publish post-quantum keys.
//
//   - AES-256-CFB (no padding) or AES-256-GCM: encrypts the personal data
//     block. The IV is taken from the label.
//
//   - HMAC-SHA-256 keyed by the session key: integrity tag over the
//     plaintext or the ciphertext, pinned per message kind with [TagScope].
//
// # Session Keys and Labels
//
// Every request gets a fresh 32-byte session key from [NewSessionKey]. The
// label is the transaction timestamp in [TimestampLayout]; the counterparty
// needs the wrapped key and the label to recover the key, and a different
// label makes unwrap fail. Keys are zeroed with [Zero] once the envelope is
// built or the response decrypted.
//
// # Backends
//
// A [Backend] pairs a [KeyWrapper] with a [PayloadCipher]. It is picked once
// at configuration time with [BackendByName].
//
// # Critical Security Notes
//
// Response signatures MUST be verified BEFORE [Backend.DecryptKYC] is called.
// An integrity failure ([ErrIntegrityCheckFailed]) means tampered data and is
// reported separately from [ErrDecryptionFailed] and [ErrUnwrapFailed].
package crypto
