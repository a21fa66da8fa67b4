// Package xmldsig signs and verifies protocol messages with enveloped XML
// signatures.
//
// Both sides work over the exclusive XML canonical form of the root element,
// so re-serialisation by a transformation hook or an intermediary cannot
// produce a spurious mismatch. [Canonicalize] is applied to every outgoing
// message before it is signed.
//
// [Unsupported] stands in when no signing key or trusted certificate is
// configured; it fails closed with [ErrNotSupported] instead of skipping the
// step.
package xmldsig
