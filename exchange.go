package authbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/authbridge/client-go/internal/crypto"
	"github.com/authbridge/client-go/internal/metrics"
	"github.com/authbridge/client-go/internal/xmldsig"
)

// Stage is a state of an Exchange.
type Stage int

// Exchange stages, in pipeline order. StageFailed is terminal and reachable
// from every other stage.
const (
	StageBuilt Stage = iota
	StageIdentityBound
	StageEncrypted
	StageSigned
	StageSent
	StageReceivedRaw
	StageSignatureVerified
	StageErrorChecked
	StageDecrypted
	StageComplete
	StageFailed
)

var stageNames = [...]string{
	StageBuilt:             "built",
	StageIdentityBound:     "identity_bound",
	StageEncrypted:         "encrypted",
	StageSigned:            "signed",
	StageSent:              "sent",
	StageReceivedRaw:       "received_raw",
	StageSignatureVerified: "signature_verified",
	StageErrorChecked:      "error_checked",
	StageDecrypted:         "decrypted",
	StageComplete:          "complete",
	StageFailed:            "failed",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Exchange is one request/response cycle with the registry. Stages run
// strictly in order: bind, seal, sign, send, verify, check the error code,
// decrypt. An Exchange is not safe for concurrent use and runs once; Reset
// clears it for another request.
type Exchange struct {
	client *Client
	req    Request
	resp   Response

	stage    Stage
	failedAt Stage
	history  []Stage
	err      error
	txn      string
	used     bool

	span trace.Span
}

// NewExchange prepares an exchange for req and resp without running it.
func (c *Client) NewExchange(req Request, resp Response) *Exchange {
	return &Exchange{client: c, req: req, resp: resp}
}

// Stage returns the current stage.
func (e *Exchange) Stage() Stage { return e.stage }

// FailedAt returns the last stage reached before the exchange failed.
func (e *Exchange) FailedAt() Stage { return e.failedAt }

// History returns every stage the exchange passed through.
func (e *Exchange) History() []Stage {
	return append([]Stage(nil), e.history...)
}

// Err returns the error that failed the exchange, if any.
func (e *Exchange) Err() error { return e.err }

// Txn returns the transaction id bound into the request.
func (e *Exchange) Txn() string { return e.txn }

// Reset clears all envelope and key state of the previous run and prepares
// the exchange for req and resp. Decrypted data held by the previous
// response is discarded.
func (e *Exchange) Reset(req Request, resp Response) {
	if d, ok := e.resp.(Discarder); ok {
		d.Discard()
	}
	clearRequest(e.req)

	e.req, e.resp = req, resp
	e.stage, e.failedAt = StageBuilt, StageBuilt
	e.history = nil
	e.err = nil
	e.txn = ""
	e.used = false
	e.span = nil
}

func clearRequest(req Request) {
	if w, ok := req.(WrappingRequest); ok {
		w.SetSignedInner(nil)
		if inner := w.Inner(); inner != nil {
			clearRequest(inner)
		}
	}
	if er, ok := req.(EncryptedRequest); ok {
		er.SetEncrypted(nil)
	}
}

// Run executes the exchange. A registry error is returned as *RegistryError
// after the response has been fully populated. Every other failure returns
// exactly one of the typed errors in this package.
func (e *Exchange) Run(ctx context.Context) error {
	if e.used {
		return &ValidationError{Errors: []string{"exchange already used; call Reset"}, Err: ErrExchangeUsed}
	}
	e.used = true
	e.history = append(e.history[:0], StageBuilt)
	e.span = trace.SpanFromContext(ctx)

	if e.req == nil || e.resp == nil {
		return e.fail(newValidationError("exchange needs a request and a response"))
	}
	if e.client == nil {
		return e.fail(newValidationError("exchange has no client"))
	}

	kind := e.req.Kind()
	start := time.Now()

	ctx, span := e.client.tracer.Start(ctx, "authbridge.exchange",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("authbridge.kind", string(kind))),
	)
	defer span.End()
	e.span = span

	err := e.run(ctx, kind)

	e.client.metrics.ObserveExchange(string(kind), outcome(err), start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return err
}

func (e *Exchange) run(ctx context.Context, kind Kind) error {
	c := e.client

	ts := c.clock()
	e.txn = e.req.Txn()
	if e.txn == "" {
		e.txn = uuid.NewString()
	}
	e.span.SetAttributes(attribute.String("authbridge.txn", e.txn))

	if err := e.req.BindIdentity(Binding{Identity: c.identity, Txn: e.txn, Timestamp: ts}); err != nil {
		return e.fail(asValidation(err))
	}
	endpoint, err := c.resolver.Endpoint(kind, e.req.UID(), c.identity)
	if err != nil {
		return e.fail(asValidation(err))
	}
	e.advance(StageIdentityBound)

	if _, ok := e.resp.(EncryptedResponse); ok {
		if err := c.requireDecryptKey(); err != nil {
			return e.fail(err)
		}
	}

	target := e.req
	wrapping, isWrapping := e.req.(WrappingRequest)
	if isWrapping {
		target = wrapping.Inner()
	}
	if er, ok := target.(EncryptedRequest); ok {
		if err := c.seal(er, ts); err != nil {
			return e.fail(err)
		}
		e.advance(StageEncrypted)
	}

	if isWrapping {
		signedInner, err := c.sign(target)
		if err != nil {
			return e.fail(err)
		}
		wrapping.SetSignedInner(signedInner)
	}
	signed, err := c.sign(e.req)
	if err != nil {
		return e.fail(err)
	}
	e.advance(StageSigned)

	if c.requestHook != nil {
		if signed, err = c.requestHook(signed); err != nil {
			return e.fail(&ValidationError{Errors: []string{"request hook: " + err.Error()}, Err: err})
		}
	}

	raw, err := c.transport.Send(ctx, endpoint, signed)
	if err != nil {
		return e.fail(wrapTransportError(endpoint, err))
	}
	e.advance(StageSent)
	e.advance(StageReceivedRaw)

	if c.responseHook != nil {
		if raw, err = c.responseHook(raw); err != nil {
			return e.fail(&ValidationError{Errors: []string{"response hook: " + err.Error()}, Err: err})
		}
	}

	verified, err := c.verifier.Verify(raw)
	if err != nil {
		return e.fail(wrapSignatureError(err))
	}
	e.advance(StageSignatureVerified)

	if err := e.resp.UnmarshalMessage(verified); err != nil {
		return e.fail(&ValidationError{Errors: []string{"malformed response: " + err.Error()}, Err: err})
	}
	e.advance(StageErrorChecked)
	if code := e.resp.ErrorCode(); code != "" {
		c.metrics.IncrementRegistryError(string(kind), code)
		return e.fail(&RegistryError{Code: code, Txn: e.txn, Response: e.resp})
	}

	if er, ok := e.resp.(EncryptedResponse); ok {
		if err := c.open(er); err != nil {
			return e.fail(err)
		}
		e.advance(StageDecrypted)
	}

	e.advance(StageComplete)
	return nil
}

func (e *Exchange) advance(s Stage) {
	e.stage = s
	e.history = append(e.history, s)
	e.span.AddEvent(s.String())
	e.client.logger.Debug("exchange stage", "txn", e.txn, "stage", s.String())
}

func (e *Exchange) fail(err error) error {
	e.failedAt = e.stage
	e.stage = StageFailed
	e.history = append(e.history, StageFailed)
	e.err = err

	if e.client != nil {
		level := slog.LevelError
		var regErr *RegistryError
		if errors.As(err, &regErr) {
			level = slog.LevelWarn
		}
		e.client.logger.Log(context.Background(), level, "exchange failed",
			"txn", e.txn, "stage", e.failedAt.String(), "error", err)
	}
	return err
}

// seal encrypts the personal data of req for the registry and zeroes the
// plaintext block.
func (c *Client) seal(req EncryptedRequest, ts time.Time) error {
	if c.recipient.PublicKey == nil {
		return &ValidationError{Errors: []string{"no registry encryption key configured"}}
	}

	plaintext, err := req.PersonalData()
	if err != nil {
		return asValidation(err)
	}
	defer crypto.Zero(plaintext)

	env, err := c.backend.SealEnvelope(plaintext, c.recipient, ts, crypto.TagPlaintext)
	if err != nil {
		return wrapCryptoError("encrypt", err)
	}
	req.SetEncrypted(newEncBlock(env))
	return nil
}

// sign serialises req and signs it.
func (c *Client) sign(req Request) ([]byte, error) {
	doc, err := req.MarshalMessage()
	if err != nil {
		return nil, asValidation(err)
	}

	signed, err := c.signer.Sign(doc)
	if err != nil {
		if errors.Is(err, xmldsig.ErrNotSupported) || errors.Is(err, ErrNotSupported) {
			return nil, wrapSignatureError(xmldsig.ErrNotSupported)
		}
		if errors.Is(err, xmldsig.ErrMalformedDocument) {
			return nil, asValidation(err)
		}
		return nil, &CryptoError{Stage: "sign", Err: err}
	}
	return signed, nil
}

// requireDecryptKey fails when encrypted responses cannot be opened. It runs
// before anything is sent so the registry transaction is not spent.
func (c *Client) requireDecryptKey() error {
	if c.decryptKey == nil {
		return &ValidationError{
			Errors: []string{"no agency private key configured to open encrypted responses"},
			Err:    crypto.ErrMissingPrivateKey,
		}
	}
	return nil
}

// open decrypts the sealed block of a verified response. The integrity tag
// is mandatory and covers the ciphertext, so tampering is detected before
// anything is decrypted.
func (c *Client) open(resp EncryptedResponse) error {
	env, err := resp.Encrypted().envelope()
	if err != nil {
		return &CryptoError{Stage: "decode", Err: err}
	}
	if env != nil && len(env.IntegrityTag) == 0 {
		return &IntegrityError{Stage: "decrypt"}
	}

	plaintext, err := c.backend.DecryptKYC(env, c.decryptKey, crypto.TagCiphertext)
	if err != nil {
		return wrapCryptoError("decrypt", err)
	}
	if err := resp.SetPlaintext(plaintext); err != nil {
		return &ValidationError{Errors: []string{err.Error()}, Err: err}
	}
	return nil
}

// asValidation passes typed errors through and wraps anything else as a
// validation failure.
func asValidation(err error) error {
	var abErr AuthBridgeError
	if errors.As(err, &abErr) {
		return err
	}
	return &ValidationError{Errors: []string{err.Error()}, Err: err}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrRegistry):
		return metrics.OutcomeRegistryError
	case errors.Is(err, ErrIntegrity):
		return metrics.OutcomeIntegrity
	case errors.Is(err, ErrSignatureInvalid):
		return metrics.OutcomeSignature
	case errors.Is(err, ErrCrypto):
		return metrics.OutcomeCrypto
	case errors.Is(err, ErrTransport):
		return metrics.OutcomeTransport
	default:
		return metrics.OutcomeValidation
	}
}
