package authbridge

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/authbridge/client-go/internal/crypto"
)

const (
	defaultTimeout          = 30 * time.Second
	defaultBatchConcurrency = 8
)

// Config is the file-level configuration of a Client. Key material paths are
// resolved by New; options override anything loaded here.
type Config struct {
	Identity  Identity        `yaml:"identity"`
	Endpoints Endpoints       `yaml:"endpoints"`
	Crypto    CryptoConfig    `yaml:"crypto"`
	Agency    AgencyConfig    `yaml:"agency"`
	Registry  RegistryConfig  `yaml:"registry"`
	Transport TransportConfig `yaml:"transport"`
	// BatchConcurrency bounds AuthenticateBatch.
	BatchConcurrency int `yaml:"batch_concurrency"`
}

// CryptoConfig selects the cryptographic backend.
type CryptoConfig struct {
	// Backend is "standard", "aead" or "pq".
	Backend string `yaml:"backend"`
	// OAEPHash is "sha256", "sha1" or "sha512".
	OAEPHash string `yaml:"oaep_hash"`
}

// AgencyConfig locates the agency's own key material.
type AgencyConfig struct {
	// KeyStore is a PKCS#12 file with the signing certificate and key.
	KeyStore         string `yaml:"key_store"`
	KeyStorePassword string `yaml:"key_store_password"`
	// Certificate and PrivateKey are PEM files, an alternative to KeyStore.
	Certificate string `yaml:"certificate"`
	PrivateKey  string `yaml:"private_key"`
	// KEMPrivateKey is a base64url ML-KEM-768 secret key file (pq backend).
	KEMPrivateKey string `yaml:"kem_private_key"`
}

// RegistryConfig locates the registry's public key material.
type RegistryConfig struct {
	// SigningCertificate verifies response signatures.
	SigningCertificate string `yaml:"signing_certificate"`
	// EncryptionCertificate is the recipient of sealed personal data.
	EncryptionCertificate string `yaml:"encryption_certificate"`
	// KEMPublicKey is a base64url ML-KEM-768 public key file (pq backend).
	KEMPublicKey string `yaml:"kem_public_key"`
}

// TransportConfig tunes the default HTTP transport.
type TransportConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	UserAgent      string        `yaml:"user_agent"`
}

// LoadConfig reads a YAML configuration file and applies AUTHBRIDGE_*
// environment overrides. The result is not validated; New does that.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath) // #nosec G304 - path comes from the operator
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables if
// set. Invalid values fail fast.
func applyEnvOverrides(cfg *Config) error {
	strs := []struct {
		env string
		dst *string
	}{
		{"AUTHBRIDGE_AUA", &cfg.Identity.AUA},
		{"AUTHBRIDGE_SUB_AUA", &cfg.Identity.SubAUA},
		{"AUTHBRIDGE_LICENSE_KEY", &cfg.Identity.LicenseKey},
		{"AUTHBRIDGE_ASA_LICENSE_KEY", &cfg.Identity.ASALicenseKey},
		{"AUTHBRIDGE_TERMINAL_ID", &cfg.Identity.TerminalID},
		{"AUTHBRIDGE_VERSION", &cfg.Identity.Version},
		{"AUTHBRIDGE_AUTH_URL", &cfg.Endpoints.Auth},
		{"AUTHBRIDGE_OTP_URL", &cfg.Endpoints.OTP},
		{"AUTHBRIDGE_KYC_URL", &cfg.Endpoints.KYC},
		{"AUTHBRIDGE_BACKEND", &cfg.Crypto.Backend},
		{"AUTHBRIDGE_OAEP_HASH", &cfg.Crypto.OAEPHash},
		{"AUTHBRIDGE_KEY_STORE", &cfg.Agency.KeyStore},
		{"AUTHBRIDGE_KEY_STORE_PASSWORD", &cfg.Agency.KeyStorePassword},
		{"AUTHBRIDGE_CERTIFICATE", &cfg.Agency.Certificate},
		{"AUTHBRIDGE_PRIVATE_KEY", &cfg.Agency.PrivateKey},
		{"AUTHBRIDGE_KEM_PRIVATE_KEY", &cfg.Agency.KEMPrivateKey},
		{"AUTHBRIDGE_SIGNING_CERTIFICATE", &cfg.Registry.SigningCertificate},
		{"AUTHBRIDGE_ENCRYPTION_CERTIFICATE", &cfg.Registry.EncryptionCertificate},
		{"AUTHBRIDGE_KEM_PUBLIC_KEY", &cfg.Registry.KEMPublicKey},
	}
	for _, s := range strs {
		if v := os.Getenv(s.env); v != "" {
			*s.dst = v
		}
	}

	if timeout := os.Getenv("AUTHBRIDGE_TIMEOUT"); timeout != "" {
		t, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid AUTHBRIDGE_TIMEOUT %q: %w", timeout, err)
		}
		cfg.Transport.Timeout = t
	}
	if retries := os.Getenv("AUTHBRIDGE_MAX_RETRIES"); retries != "" {
		n, err := strconv.Atoi(retries)
		if err != nil {
			return fmt.Errorf("invalid AUTHBRIDGE_MAX_RETRIES %q: %w", retries, err)
		}
		cfg.Transport.MaxRetries = n
	}
	if concurrency := os.Getenv("AUTHBRIDGE_BATCH_CONCURRENCY"); concurrency != "" {
		n, err := strconv.Atoi(concurrency)
		if err != nil {
			return fmt.Errorf("invalid AUTHBRIDGE_BATCH_CONCURRENCY %q: %w", concurrency, err)
		}
		cfg.BatchConcurrency = n
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Identity.Version == "" {
		c.Identity.Version = DefaultVersion
	}
	if c.Crypto.Backend == "" {
		c.Crypto.Backend = crypto.BackendStandard
	}
	if c.Transport.Timeout == 0 {
		c.Transport.Timeout = defaultTimeout
	}
	if c.BatchConcurrency == 0 {
		c.BatchConcurrency = defaultBatchConcurrency
	}
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	errs := c.Identity.validate()

	for kind, raw := range map[Kind]string{KindAuth: c.Endpoints.Auth, KindOTP: c.Endpoints.OTP, KindKYC: c.Endpoints.KYC} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("endpoints: %s url %q is not an absolute http(s) url", kind, raw))
		}
	}

	if _, err := crypto.BackendByName(c.Crypto.Backend, 0); err != nil {
		errs = append(errs, "crypto: "+err.Error())
	}
	if _, err := crypto.ParseHash(c.Crypto.OAEPHash); err != nil {
		errs = append(errs, "crypto: "+err.Error())
	}
	if (c.Agency.Certificate == "") != (c.Agency.PrivateKey == "") {
		errs = append(errs, "agency: certificate and private_key must be set together")
	}
	if c.Agency.KeyStore != "" && c.Agency.Certificate != "" {
		errs = append(errs, "agency: key_store and certificate are mutually exclusive")
	}
	if c.Transport.Timeout < 0 {
		errs = append(errs, "transport: timeout must not be negative")
	}
	if c.Transport.MaxRetries < 0 {
		errs = append(errs, "transport: max_retries must not be negative")
	}
	if c.BatchConcurrency < 0 {
		errs = append(errs, "batch_concurrency must not be negative")
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return &ValidationError{Errors: errs}
	}
	return nil
}
