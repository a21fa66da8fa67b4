package authbridge

import (
	"context"
	gocrypto "crypto"
	"crypto/x509"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/authbridge/client-go/internal/crypto"
	"github.com/authbridge/client-go/internal/transport"
)

// Signer produces an enveloped signature over a serialised message.
type Signer interface {
	Sign(doc []byte) ([]byte, error)
}

// Verifier checks the signature of a received message and returns the
// signed content. Only the returned bytes are parsed.
type Verifier interface {
	Verify(doc []byte) ([]byte, error)
}

// Transport posts a signed message and returns the raw response.
type Transport interface {
	Send(ctx context.Context, endpoint string, body []byte) ([]byte, error)
}

// Hook rewrites a serialised message between pipeline stages. Request hooks
// run after signing; response hooks run before verification. Both see the
// exact bytes that are signed or verified.
type Hook func(message []byte) ([]byte, error)

// clientConfig holds the option-supplied configuration for the client.
type clientConfig struct {
	httpClient     *http.Client
	logger         *slog.Logger
	registerer     prometheus.Registerer
	tracerProvider trace.TracerProvider
	clock          func() time.Time

	signer    Signer
	verifier  Verifier
	transport Transport
	resolver  EndpointResolver
	retry     *transport.RetryConfig

	requestHook  Hook
	responseHook Hook

	agency             *crypto.Credentials
	registryCerts      []*x509.Certificate
	registryEncryption *x509.Certificate
	registryKEMKey     []byte
	agencyKEMKey       []byte
}

// Option configures the client.
type Option func(*clientConfig)

// WithHTTPClient sets the HTTP client used by the default transport.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithLogger sets the structured logger. Stage transitions are logged at
// debug level; keys, personal data and resident ids are never logged.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithMetrics registers exchange metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *clientConfig) {
		c.registerer = reg
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider.
// Default: the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *clientConfig) {
		c.tracerProvider = tp
	}
}

// WithClock sets the source of transaction timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *clientConfig) {
		c.clock = now
	}
}

// WithSigner replaces the XML signer built from the agency credentials.
func WithSigner(s Signer) Option {
	return func(c *clientConfig) {
		c.signer = s
	}
}

// WithVerifier replaces the XML verifier built from the registry certificates.
func WithVerifier(v Verifier) Option {
	return func(c *clientConfig) {
		c.verifier = v
	}
}

// WithTransport replaces the HTTP transport.
func WithTransport(t Transport) Option {
	return func(c *clientConfig) {
		c.transport = t
	}
}

// WithEndpointResolver replaces the URL routing built from Config.Endpoints.
func WithEndpointResolver(r EndpointResolver) Option {
	return func(c *clientConfig) {
		c.resolver = r
	}
}

// WithRetry enables transport retries. Retries are off by default because a
// signed transaction must not be replayed implicitly.
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(c *clientConfig) {
		r := transport.DefaultRetryConfig()
		r.MaxRetries = maxRetries
		if baseDelay > 0 {
			r.BaseDelay = baseDelay
		}
		c.retry = r
	}
}

// WithRequestHook sets a hook applied to the signed request before sending.
func WithRequestHook(h Hook) Option {
	return func(c *clientConfig) {
		c.requestHook = h
	}
}

// WithResponseHook sets a hook applied to the raw response before
// verification.
func WithResponseHook(h Hook) Option {
	return func(c *clientConfig) {
		c.responseHook = h
	}
}

// WithAgencyCredentials sets the agency certificate and private key used to
// sign requests and, on the RSA backends, to decrypt KYC responses.
func WithAgencyCredentials(cert *x509.Certificate, key gocrypto.PrivateKey) Option {
	return func(c *clientConfig) {
		c.agency = &crypto.Credentials{Certificate: cert, PrivateKey: key}
	}
}

// WithRegistryCertificates sets the certificates trusted to sign responses.
func WithRegistryCertificates(certs ...*x509.Certificate) Option {
	return func(c *clientConfig) {
		c.registryCerts = certs
	}
}

// WithRegistryEncryptionCertificate sets the recipient of sealed personal
// data on the RSA backends.
func WithRegistryEncryptionCertificate(cert *x509.Certificate) Option {
	return func(c *clientConfig) {
		c.registryEncryption = cert
	}
}

// WithRegistryKEMPublicKey sets the raw ML-KEM-768 recipient key for the pq
// backend.
func WithRegistryKEMPublicKey(pub []byte) Option {
	return func(c *clientConfig) {
		c.registryKEMKey = pub
	}
}

// WithAgencyKEMPrivateKey sets the raw ML-KEM-768 secret key that opens KYC
// responses on the pq backend.
func WithAgencyKEMPrivateKey(secret []byte) Option {
	return func(c *clientConfig) {
		c.agencyKEMKey = secret
	}
}
