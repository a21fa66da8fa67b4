// Package authbridge is a client for the secure exchange protocol of a
// national identity registry: biometric, demographic and OTP authentication,
// OTP generation, and e-KYC.
//
// Every exchange runs the same pipeline. Personal data is sealed under a
// one-time session key, the key is wrapped for the registry and bound to the
// transaction timestamp, and the request is signed with the agency key. The
// response signature is verified before the error code is inspected, and an
// e-KYC record is decrypted only after both.
//
// Basic usage:
//
//	cfg, err := authbridge.LoadConfig("authbridge.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client, err := authbridge.New(cfg, authbridge.WithLogger(slog.Default()))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	req := &authbridge.AuthRequest{Resident: uid, Consent: true}
//	req.SetOTP(otp)
//
//	resp, err := client.Authenticate(ctx, req)
//	var regErr *authbridge.RegistryError
//	switch {
//	case errors.As(err, &regErr):
//	    fmt.Println("registry rejected the request:", regErr.Code)
//	case err != nil:
//	    log.Fatal(err)
//	default:
//	    fmt.Println("authenticated:", resp.Authenticated())
//	}
//
// # Cryptographic Backends
//
// The backend is chosen once in Config.Crypto:
//
//   - "standard": RSA-OAEP session key wrapping, AES-256-CFB payloads
//   - "aead": RSA-OAEP session key wrapping, AES-256-GCM payloads
//   - "pq": ML-KEM-768 session key wrapping, AES-256-GCM payloads
//
// Every payload additionally carries an HMAC-SHA-256 integrity tag keyed by
// the session key.
//
// # Errors
//
// Each failed exchange returns exactly one error matching one of
// [ErrValidation], [ErrCrypto], [ErrIntegrity], [ErrSignatureInvalid],
// [ErrRegistry] or [ErrTransport]. Signing or verifying without the
// required key material fails closed and also matches [ErrNotSupported].
package authbridge
