package authbridge

import (
	"bytes"
	"context"
	gocrypto "crypto"
	"crypto/x509"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/authbridge/client-go/internal/crypto"
	"github.com/authbridge/client-go/internal/metrics"
	"github.com/authbridge/client-go/internal/transport"
	"github.com/authbridge/client-go/internal/xmldsig"
)

const tracerName = "github.com/authbridge/client-go"

// Client submits authentication, OTP and e-KYC requests to the registry.
//
// Everything a Client holds is read-only after New, so one Client may run
// any number of exchanges concurrently. Session keys, envelopes and
// decrypted records live only inside the exchange that created them.
type Client struct {
	identity  Identity
	backend   crypto.Backend
	recipient crypto.Recipient
	// decryptKey opens KYC responses: the agency RSA key, or the ML-KEM
	// secret key on the pq backend.
	decryptKey gocrypto.PrivateKey

	signer    Signer
	verifier  Verifier
	transport Transport
	resolver  EndpointResolver

	requestHook  Hook
	responseHook Hook

	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	clock      func() time.Time
	batchLimit int
}

// New creates a client from cfg. Options override the key material and
// collaborators that cfg would otherwise load. Missing signing or
// verification material does not fail New; exchanges that need it fail
// closed with ErrNotSupported.
func New(cfg Config, opts ...Option) (*Client, error) {
	o := &clientConfig{}
	for _, opt := range opts {
		opt(o)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	hash, err := crypto.ParseHash(cfg.Crypto.OAEPHash)
	if err != nil {
		return nil, asValidation(err) //coverage:ignore
	}
	backend, err := crypto.BackendByName(cfg.Crypto.Backend, hash)
	if err != nil {
		return nil, asValidation(err) //coverage:ignore
	}

	c := &Client{
		identity:     cfg.Identity,
		backend:      backend,
		resolver:     o.resolver,
		requestHook:  o.requestHook,
		responseHook: o.responseHook,
		logger:       o.logger,
		clock:        o.clock,
		batchLimit:   cfg.BatchConcurrency,
	}
	if c.resolver == nil {
		c.resolver = cfg.Endpoints
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	if o.registerer != nil {
		c.metrics = metrics.New(o.registerer)
	}

	tp := o.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	c.tracer = tp.Tracer(tracerName)

	if err := c.loadKeys(cfg, o); err != nil {
		return nil, err
	}

	c.transport = o.transport
	if c.transport == nil {
		httpClient := o.httpClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: cfg.Transport.Timeout}
		}
		retry := o.retry
		if retry == nil {
			retry = transport.DefaultRetryConfig()
			retry.MaxRetries = cfg.Transport.MaxRetries
			if cfg.Transport.RetryBaseDelay > 0 {
				retry.BaseDelay = cfg.Transport.RetryBaseDelay
			}
		}
		c.transport, err = transport.NewClient(transport.Config{
			HTTPClient: httpClient,
			Retry:      retry,
			UserAgent:  cfg.Transport.UserAgent,
		})
		if err != nil {
			return nil, err //coverage:ignore
		}
	}

	c.logger.Debug("client ready",
		"backend", backend.Name,
		"signing", !isUnsupported(c.signer),
		"verification", !isUnsupported(c.verifier))
	return c, nil
}

func isUnsupported(v any) bool {
	_, ok := v.(xmldsig.Unsupported)
	return ok
}

// loadKeys resolves agency and registry key material from options first and
// configured files second, and builds the signer and verifier.
func (c *Client) loadKeys(cfg Config, o *clientConfig) error {
	agency := o.agency
	if agency == nil && cfg.Agency.KeyStore != "" {
		data, err := readKeyFile(cfg.Agency.KeyStore)
		if err != nil {
			return err
		}
		if agency, err = crypto.LoadPKCS12(data, cfg.Agency.KeyStorePassword); err != nil {
			return asValidation(err)
		}
	}
	if agency == nil && cfg.Agency.Certificate != "" {
		certPEM, err := readKeyFile(cfg.Agency.Certificate)
		if err != nil {
			return err
		}
		keyPEM, err := readKeyFile(cfg.Agency.PrivateKey)
		if err != nil {
			return err
		}
		defer crypto.Zero(keyPEM)
		if agency, err = crypto.LoadKeyPair(certPEM, keyPEM); err != nil {
			return asValidation(err)
		}
	}

	trusted := o.registryCerts
	if len(trusted) == 0 && cfg.Registry.SigningCertificate != "" {
		cert, err := loadCertificateFile(cfg.Registry.SigningCertificate)
		if err != nil {
			return err
		}
		trusted = []*x509.Certificate{cert}
	}

	switch c.backend.Name {
	case crypto.BackendPostQuantum:
		pub := o.registryKEMKey
		if pub == nil && cfg.Registry.KEMPublicKey != "" {
			var err error
			if pub, err = readKEMKeyFile(cfg.Registry.KEMPublicKey); err != nil {
				return err
			}
		}
		if pub != nil {
			pk, err := crypto.ParseKEMPublicKey(pub)
			if err != nil {
				return asValidation(err)
			}
			c.recipient = crypto.Recipient{PublicKey: pk}
		}

		secret := o.agencyKEMKey
		if secret == nil && cfg.Agency.KEMPrivateKey != "" {
			var err error
			if secret, err = readKEMKeyFile(cfg.Agency.KEMPrivateKey); err != nil {
				return err
			}
		}
		if secret != nil {
			sk, err := crypto.ParseKEMPrivateKey(secret)
			if err != nil {
				return asValidation(err)
			}
			c.decryptKey = sk
		}

	default:
		enc := o.registryEncryption
		if enc == nil && cfg.Registry.EncryptionCertificate != "" {
			var err error
			if enc, err = loadCertificateFile(cfg.Registry.EncryptionCertificate); err != nil {
				return err
			}
		}
		if enc != nil {
			c.recipient = crypto.RecipientFromCertificate(enc)
		}
		if agency.HasPrivateKey() {
			c.decryptKey = agency.PrivateKey
		}
	}

	c.signer = o.signer
	if c.signer == nil {
		c.signer = xmldsig.Unsupported{}
		if agency.HasPrivateKey() && agency.Certificate != nil {
			key, err := agency.RSAPrivateKey()
			if err != nil {
				return asValidation(err)
			}
			signer, err := xmldsig.NewSigner(key, agency.Certificate)
			if err != nil {
				return asValidation(err) //coverage:ignore
			}
			c.signer = signer
		}
	}

	c.verifier = o.verifier
	if c.verifier == nil {
		c.verifier = xmldsig.Unsupported{}
		if len(trusted) > 0 {
			verifier, err := xmldsig.NewVerifier(c.clock, trusted...)
			if err != nil {
				return asValidation(err) //coverage:ignore
			}
			c.verifier = verifier
		}
	}
	return nil
}

func readKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 - path comes from the operator
	if err != nil {
		return nil, &ValidationError{Errors: []string{"read key material: " + err.Error()}, Err: err}
	}
	return data, nil
}

func loadCertificateFile(path string) (*x509.Certificate, error) {
	data, err := readKeyFile(path)
	if err != nil {
		return nil, err
	}
	cert, err := crypto.LoadCertificate(data)
	if err != nil {
		return nil, asValidation(err)
	}
	return cert, nil
}

func readKEMKeyFile(path string) ([]byte, error) {
	data, err := readKeyFile(path)
	if err != nil {
		return nil, err
	}
	key, err := crypto.FromBase64URL(string(bytes.TrimSpace(data)))
	if err != nil {
		return nil, asValidation(err)
	}
	return key, nil
}

// Authenticate runs an authentication exchange. On a registry error the
// populated response is returned together with the *RegistryError.
func (c *Client) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResponse, error) {
	if req == nil {
		return nil, newValidationError("Authenticate: request is nil")
	}
	return runExchange(ctx, c, req, &AuthResponse{})
}

// RequestOTP asks the registry to send a one-time password to the resident.
func (c *Client) RequestOTP(ctx context.Context, req *OTPRequest) (*OTPResponse, error) {
	if req == nil {
		return nil, newValidationError("RequestOTP: request is nil")
	}
	return runExchange(ctx, c, req, &OTPResponse{})
}

// KYC runs an e-KYC exchange and returns the decrypted record. Call
// Discard on the response once the record has been consumed.
func (c *Client) KYC(ctx context.Context, req *KYCRequest) (*KYCResponse, error) {
	if req == nil {
		return nil, newValidationError("KYC: request is nil")
	}
	return runExchange(ctx, c, req, &KYCResponse{})
}

func runExchange[R Response](ctx context.Context, c *Client, req Request, resp R) (R, error) {
	var zero R
	err := c.NewExchange(req, resp).Run(ctx)
	if err == nil {
		return resp, nil
	}
	var regErr *RegistryError
	if errors.As(err, &regErr) {
		return resp, err
	}
	return zero, err
}

// BatchResult is the outcome of one request in AuthenticateBatch.
type BatchResult struct {
	Response *AuthResponse
	Err      error
}

// AuthenticateBatch runs independent authentication exchanges concurrently,
// at most Config.BatchConcurrency at a time. Results are in request order;
// one failure does not stop the others.
func (c *Client) AuthenticateBatch(ctx context.Context, reqs []*AuthRequest) []BatchResult {
	results := make([]BatchResult, len(reqs))

	var g errgroup.Group
	if c.batchLimit > 0 {
		g.SetLimit(c.batchLimit)
	}
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			resp, err := c.Authenticate(ctx, req)
			results[i] = BatchResult{Response: resp, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// DecryptKYCResponse verifies, parses and decrypts a KYC response that was
// received out of band. The same ordering as a live exchange applies:
// signature first, then the error code, then decryption.
func (c *Client) DecryptKYCResponse(raw []byte) (*KYCResponse, error) {
	if len(raw) == 0 {
		return nil, newValidationError("kyc response is empty")
	}
	if err := c.requireDecryptKey(); err != nil {
		return nil, err
	}
	verified, err := c.verifier.Verify(raw)
	if err != nil {
		return nil, wrapSignatureError(err)
	}

	resp := &KYCResponse{}
	if err := resp.UnmarshalMessage(verified); err != nil {
		return nil, &ValidationError{Errors: []string{"malformed response: " + err.Error()}, Err: err}
	}
	if code := resp.ErrorCode(); code != "" {
		return resp, &RegistryError{Code: code, Txn: resp.Txn, Response: resp}
	}
	if err := c.open(resp); err != nil {
		return nil, err
	}
	return resp, nil
}
