// Command authbridge is a small driver for the registry client: it requests
// one-time passwords, authenticates with them, decrypts saved KYC responses
// and generates ML-KEM keys for the pq backend.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	authbridge "github.com/authbridge/client-go"
	"github.com/authbridge/client-go/internal/crypto"
)

const usage = `usage: authbridge <command> [args]

commands:
  otp <uid> [channel]    request a one-time password (channel 00, 01 or 02)
  auth-otp <uid> <otp>   authenticate a resident with a one-time password
  decrypt-kyc            verify and decrypt a saved KYC response read from stdin
  keygen-kem             generate an ML-KEM-768 keypair, base64url encoded
  kem-public             print the public key of a base64url secret key read from stdin

environment:
  AUTHBRIDGE_CONFIG      configuration file (default authbridge.yaml)
  AUTHBRIDGE_DEBUG       log exchange stages to stderr when set
  AUTHBRIDGE_*           configuration overrides; a .env file is loaded first`

const (
	defaultConfigPath = "authbridge.yaml"
	commandTimeout    = 60 * time.Second
)

// Config holds the streams the commands read from and write to.
type Config struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// DefaultConfig returns a Config wired to the process streams.
func DefaultConfig() *Config {
	return &Config{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// ClientInterface is the part of *authbridge.Client the commands use.
type ClientInterface interface {
	RequestOTP(ctx context.Context, req *authbridge.OTPRequest) (*authbridge.OTPResponse, error)
	Authenticate(ctx context.Context, req *authbridge.AuthRequest) (*authbridge.AuthResponse, error)
	DecryptKYCResponse(raw []byte) (*authbridge.KYCResponse, error)
}

// OTPOutput is printed by the otp command.
type OTPOutput struct {
	Txn   string `json:"txn"`
	Sent  bool   `json:"sent"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// AuthOutput is printed by the auth-otp command.
type AuthOutput struct {
	Txn           string `json:"txn"`
	Authenticated bool   `json:"authenticated"`
	Code          string `json:"code,omitempty"`
	Error         string `json:"error,omitempty"`
	Info          string `json:"info,omitempty"`
}

// KYCOutput is printed by the decrypt-kyc command. The photo is reported by
// size only.
type KYCOutput struct {
	Txn       string            `json:"txn"`
	Name      string            `json:"name"`
	DOB       string            `json:"dob"`
	Gender    string            `json:"gender"`
	Phone     string            `json:"phone,omitempty"`
	Email     string            `json:"email,omitempty"`
	Address   map[string]string `json:"address,omitempty"`
	PhotoSize int               `json:"photoSize"`
}

// KeypairOutput is printed by the keygen-kem command.
type KeypairOutput struct {
	PublicKey string `json:"publicKey"`
	SecretKey string `json:"secretKey,omitempty"`
}

func run(args []string, cfg *Config) error {
	if len(args) < 2 {
		return errors.New(usage)
	}

	switch args[1] {
	case "keygen-kem":
		return runKeygen(cfg)
	case "kem-public":
		return runKEMPublic(cfg)
	case "otp":
		if len(args) < 3 {
			return errors.New("usage: authbridge otp <uid> [channel]")
		}
	case "auth-otp":
		if len(args) < 4 {
			return errors.New("usage: authbridge auth-otp <uid> <otp>")
		}
	case "decrypt-kyc":
	default:
		return fmt.Errorf("unknown command: %s\n\n%s", args[1], usage)
	}

	// A missing .env file is not an error.
	_ = godotenv.Load()

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch args[1] {
	case "otp":
		channel := authbridge.OTPChannelAll
		if len(args) > 3 {
			channel = authbridge.OTPChannel(args[3])
		}
		return runOTP(ctx, client, cfg, args[2], channel)
	case "auth-otp":
		return runAuthOTP(ctx, client, cfg, args[2], args[3])
	default:
		return runDecryptKYC(client, cfg)
	}
}

func newClient(cfg *Config) (*authbridge.Client, error) {
	path := os.Getenv("AUTHBRIDGE_CONFIG")
	if path == "" {
		path = defaultConfigPath
	}
	conf, err := authbridge.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := slog.LevelInfo
	if os.Getenv("AUTHBRIDGE_DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cfg.Stderr, &slog.HandlerOptions{Level: level}))

	client, err := authbridge.New(conf, authbridge.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return client, nil
}

func runOTP(ctx context.Context, client ClientInterface, cfg *Config, uid string, channel authbridge.OTPChannel) error {
	resp, err := client.RequestOTP(ctx, &authbridge.OTPRequest{Resident: uid, Channel: channel})
	var regErr *authbridge.RegistryError
	if err != nil && !errors.As(err, &regErr) {
		return fmt.Errorf("request otp: %w", err)
	}

	out := OTPOutput{Txn: resp.Txn, Sent: resp.Sent(), Code: resp.Code, Error: resp.Err}
	if encErr := json.NewEncoder(cfg.Stdout).Encode(out); encErr != nil {
		return fmt.Errorf("encode output: %w", encErr)
	}
	return err
}

func runAuthOTP(ctx context.Context, client ClientInterface, cfg *Config, uid, otp string) error {
	req := &authbridge.AuthRequest{Resident: uid, Consent: true}
	req.SetOTP(otp)

	resp, err := client.Authenticate(ctx, req)
	var regErr *authbridge.RegistryError
	if err != nil && !errors.As(err, &regErr) {
		return fmt.Errorf("authenticate: %w", err)
	}

	out := AuthOutput{
		Txn:           resp.Txn,
		Authenticated: resp.Authenticated(),
		Code:          resp.Code,
		Error:         resp.Err,
		Info:          resp.Info,
	}
	if encErr := json.NewEncoder(cfg.Stdout).Encode(out); encErr != nil {
		return fmt.Errorf("encode output: %w", encErr)
	}
	return err
}

func runDecryptKYC(client ClientInterface, cfg *Config) error {
	raw, err := io.ReadAll(cfg.Stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	resp, err := client.DecryptKYCResponse(raw)
	if err != nil {
		return fmt.Errorf("decrypt kyc: %w", err)
	}
	defer resp.Discard()

	if err := json.NewEncoder(cfg.Stdout).Encode(convertKYC(resp)); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func convertKYC(resp *authbridge.KYCResponse) KYCOutput {
	out := KYCOutput{Txn: resp.Txn}
	if resp.Data == nil {
		return out
	}

	poi := resp.Data.POI
	out.Name, out.DOB, out.Gender = poi.Name, poi.DOB, poi.Gender
	out.Phone, out.Email = poi.Phone, poi.Email
	out.PhotoSize = len(resp.Data.Photo)

	poa := resp.Data.POA
	fields := map[string]string{
		"careOf":     poa.CareOf,
		"house":      poa.House,
		"street":     poa.Street,
		"landmark":   poa.Landmark,
		"locality":   poa.Locality,
		"vtc":        poa.VTC,
		"district":   poa.District,
		"state":      poa.State,
		"country":    poa.Country,
		"pincode":    poa.Pincode,
		"postOffice": poa.PostOffice,
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if out.Address == nil {
			out.Address = make(map[string]string)
		}
		out.Address[k] = v
	}
	return out
}

func runKeygen(cfg *Config) error {
	kp, err := crypto.GenerateKEMKeypair()
	if err != nil {
		return fmt.Errorf("generate keypair: %w", err)
	}
	defer crypto.Zero(kp.SecretKey)

	out := KeypairOutput{
		PublicKey: crypto.ToBase64URL(kp.PublicKey),
		SecretKey: crypto.ToBase64URL(kp.SecretKey),
	}
	if err := json.NewEncoder(cfg.Stdout).Encode(out); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func runKEMPublic(cfg *Config) error {
	raw, err := io.ReadAll(cfg.Stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	secret, err := crypto.FromBase64URL(strings.TrimSpace(string(raw)))
	crypto.Zero(raw)
	if err != nil {
		return fmt.Errorf("decode secret key: %w", err)
	}
	defer crypto.Zero(secret)

	kp, err := crypto.KEMKeypairFromSecretKey(secret)
	if err != nil {
		return fmt.Errorf("derive public key: %w", err)
	}

	out := KeypairOutput{PublicKey: crypto.ToBase64URL(kp.PublicKey)}
	if err := json.NewEncoder(cfg.Stdout).Encode(out); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// exitFunc is replaced in tests.
var exitFunc = os.Exit

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	exitFunc(1)
}
