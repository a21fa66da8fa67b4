package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	authbridge "github.com/authbridge/client-go"
	"github.com/authbridge/client-go/internal/crypto"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Stdin != os.Stdin {
		t.Error("DefaultConfig().Stdin should be os.Stdin")
	}
	if cfg.Stdout != os.Stdout {
		t.Error("DefaultConfig().Stdout should be os.Stdout")
	}
	if cfg.Stderr != os.Stderr {
		t.Error("DefaultConfig().Stderr should be os.Stderr")
	}
}

// mockClient implements ClientInterface for testing
type mockClient struct {
	requestOTPFn   func(ctx context.Context, req *authbridge.OTPRequest) (*authbridge.OTPResponse, error)
	authenticateFn func(ctx context.Context, req *authbridge.AuthRequest) (*authbridge.AuthResponse, error)
	decryptKYCFn   func(raw []byte) (*authbridge.KYCResponse, error)
}

func (m *mockClient) RequestOTP(ctx context.Context, req *authbridge.OTPRequest) (*authbridge.OTPResponse, error) {
	if m.requestOTPFn != nil {
		return m.requestOTPFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockClient) Authenticate(ctx context.Context, req *authbridge.AuthRequest) (*authbridge.AuthResponse, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockClient) DecryptKYCResponse(raw []byte) (*authbridge.KYCResponse, error) {
	if m.decryptKYCFn != nil {
		return m.decryptKYCFn(raw)
	}
	return nil, errors.New("not implemented")
}

func TestClientInterface_Implemented(t *testing.T) {
	var _ ClientInterface = (*authbridge.Client)(nil)
}

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no command", []string{"authbridge"}, "usage: authbridge <command>"},
		{"unknown command", []string{"authbridge", "frobnicate"}, "unknown command: frobnicate"},
		{"otp without uid", []string{"authbridge", "otp"}, "usage: authbridge otp"},
		{"auth-otp without otp", []string{"authbridge", "auth-otp", "999999990019"}, "usage: authbridge auth-otp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(tt.args, &Config{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("run() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestRun_MissingConfig(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("AUTHBRIDGE_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	err := run([]string{"authbridge", "decrypt-kyc"}, &Config{Stdin: &bytes.Buffer{}, Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}})
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Errorf("run() error = %v, want load config error", err)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	chdir(t, t.TempDir())
	path := filepath.Join(t.TempDir(), "authbridge.yaml")
	if err := os.WriteFile(path, []byte("identity:\n  aua: public\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AUTHBRIDGE_CONFIG", path)

	err := run([]string{"authbridge", "otp", "999999990019"}, &Config{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}})
	if err == nil || !strings.Contains(err.Error(), "create client") {
		t.Errorf("run() error = %v, want create client error", err)
	}
	if !errors.Is(err, authbridge.ErrValidation) {
		t.Errorf("run() error = %v, want ErrValidation", err)
	}
}

func TestRunOTP_Success(t *testing.T) {
	var gotReq *authbridge.OTPRequest
	client := &mockClient{
		requestOTPFn: func(ctx context.Context, req *authbridge.OTPRequest) (*authbridge.OTPResponse, error) {
			gotReq = req
			return &authbridge.OTPResponse{Ret: "y", Code: "c1", Txn: "t1"}, nil
		},
	}
	var stdout bytes.Buffer

	if err := runOTP(context.Background(), client, &Config{Stdout: &stdout}, "999999990019", authbridge.OTPChannelSMS); err != nil {
		t.Fatalf("runOTP() error = %v", err)
	}
	if gotReq.Resident != "999999990019" || gotReq.Channel != authbridge.OTPChannelSMS {
		t.Errorf("request = %+v", gotReq)
	}

	var out OTPOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if out != (OTPOutput{Txn: "t1", Sent: true, Code: "c1"}) {
		t.Errorf("output = %+v", out)
	}
}

func TestRunOTP_RegistryError(t *testing.T) {
	client := &mockClient{
		requestOTPFn: func(ctx context.Context, req *authbridge.OTPRequest) (*authbridge.OTPResponse, error) {
			resp := &authbridge.OTPResponse{Ret: "n", Txn: "t1", Err: "952"}
			return resp, &authbridge.RegistryError{Code: "952", Txn: "t1", Response: resp}
		},
	}
	var stdout bytes.Buffer

	err := runOTP(context.Background(), client, &Config{Stdout: &stdout}, "999999990019", authbridge.OTPChannelAll)
	if !errors.Is(err, authbridge.ErrRegistry) {
		t.Fatalf("runOTP() error = %v, want ErrRegistry", err)
	}
	if !strings.Contains(stdout.String(), `"error":"952"`) {
		t.Errorf("output = %s, want the registry code", stdout.String())
	}
}

func TestRunOTP_Error(t *testing.T) {
	client := &mockClient{
		requestOTPFn: func(ctx context.Context, req *authbridge.OTPRequest) (*authbridge.OTPResponse, error) {
			return nil, &authbridge.TransportError{Err: errors.New("refused")}
		},
	}
	var stdout bytes.Buffer

	err := runOTP(context.Background(), client, &Config{Stdout: &stdout}, "999999990019", authbridge.OTPChannelAll)
	if err == nil || !strings.Contains(err.Error(), "request otp") {
		t.Errorf("runOTP() error = %v, want request otp error", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("output = %s, want none", stdout.String())
	}
}

func TestRunAuthOTP(t *testing.T) {
	var gotReq *authbridge.AuthRequest
	client := &mockClient{
		authenticateFn: func(ctx context.Context, req *authbridge.AuthRequest) (*authbridge.AuthResponse, error) {
			gotReq = req
			return &authbridge.AuthResponse{Ret: "y", Code: "c2", Txn: "t2"}, nil
		},
	}
	var stdout bytes.Buffer

	if err := runAuthOTP(context.Background(), client, &Config{Stdout: &stdout}, "999999990019", "123456"); err != nil {
		t.Fatalf("runAuthOTP() error = %v", err)
	}
	if !gotReq.Consent || gotReq.OTP != "123456" || !gotReq.Uses.Has(authbridge.UseOTP) {
		t.Errorf("request = %+v", gotReq)
	}

	var out AuthOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if !out.Authenticated || out.Txn != "t2" {
		t.Errorf("output = %+v", out)
	}
}

func TestRunAuthOTP_Error(t *testing.T) {
	client := &mockClient{}
	err := runAuthOTP(context.Background(), client, &Config{Stdout: &bytes.Buffer{}}, "999999990019", "123456")
	if err == nil || !strings.Contains(err.Error(), "authenticate") {
		t.Errorf("runAuthOTP() error = %v, want authenticate error", err)
	}
}

type errorReader struct{}

func (e *errorReader) Read(p []byte) (n int, err error) {
	return 0, errors.New("read error")
}

type errorWriter struct{}

func (e *errorWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write error")
}

func TestRunDecryptKYC_ReadError(t *testing.T) {
	err := runDecryptKYC(&mockClient{}, &Config{Stdin: &errorReader{}, Stdout: &bytes.Buffer{}})
	if err == nil || !strings.Contains(err.Error(), "read stdin") {
		t.Errorf("runDecryptKYC() error = %v, want read stdin error", err)
	}
}

func TestRunDecryptKYC_DecryptError(t *testing.T) {
	client := &mockClient{
		decryptKYCFn: func(raw []byte) (*authbridge.KYCResponse, error) {
			return nil, &authbridge.IntegrityError{Stage: "decrypt"}
		},
	}
	err := runDecryptKYC(client, &Config{Stdin: strings.NewReader("<KycRes/>"), Stdout: &bytes.Buffer{}})
	if !errors.Is(err, authbridge.ErrIntegrity) {
		t.Errorf("runDecryptKYC() error = %v, want ErrIntegrity", err)
	}
}

func TestRunDecryptKYC_Success(t *testing.T) {
	photo := []byte{1, 2, 3}
	var gotRaw []byte
	client := &mockClient{
		decryptKYCFn: func(raw []byte) (*authbridge.KYCResponse, error) {
			gotRaw = raw
			return &authbridge.KYCResponse{
				Txn: "UKC:t3",
				Data: &authbridge.KYCData{
					POI:   authbridge.ProofOfIdentity{Name: "Shivshankar Choudhury", DOB: "13-05-1968", Gender: "M"},
					POA:   authbridge.Address{District: "Mumbai", Pincode: "400001"},
					Photo: photo,
				},
			}, nil
		},
	}
	var stdout bytes.Buffer

	if err := runDecryptKYC(client, &Config{Stdin: strings.NewReader("<KycRes/>"), Stdout: &stdout}); err != nil {
		t.Fatalf("runDecryptKYC() error = %v", err)
	}
	if string(gotRaw) != "<KycRes/>" {
		t.Errorf("raw = %q", gotRaw)
	}

	var out KYCOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if out.Name != "Shivshankar Choudhury" || out.PhotoSize != 3 {
		t.Errorf("output = %+v", out)
	}
	if out.Address["district"] != "Mumbai" || out.Address["pincode"] != "400001" || len(out.Address) != 2 {
		t.Errorf("address = %v", out.Address)
	}
	if !bytes.Equal(photo, []byte{0, 0, 0}) {
		t.Error("decrypted photo was not discarded after printing")
	}
}

func TestRunDecryptKYC_EncodeError(t *testing.T) {
	client := &mockClient{
		decryptKYCFn: func(raw []byte) (*authbridge.KYCResponse, error) {
			return &authbridge.KYCResponse{}, nil
		},
	}
	err := runDecryptKYC(client, &Config{Stdin: strings.NewReader("x"), Stdout: &errorWriter{}})
	if err == nil || !strings.Contains(err.Error(), "encode output") {
		t.Errorf("runDecryptKYC() error = %v, want encode output error", err)
	}
}

func TestRunKeygen(t *testing.T) {
	var stdout bytes.Buffer
	if err := run([]string{"authbridge", "keygen-kem"}, &Config{Stdout: &stdout}); err != nil {
		t.Fatalf("run(keygen-kem) error = %v", err)
	}

	var out KeypairOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	pub, err := crypto.FromBase64URL(out.PublicKey)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	secret, err := crypto.FromBase64URL(out.SecretKey)
	if err != nil {
		t.Fatalf("decode secret key: %v", err)
	}
	if _, err := crypto.ParseKEMPublicKey(pub); err != nil {
		t.Errorf("ParseKEMPublicKey() error = %v", err)
	}
	if _, err := crypto.ParseKEMPrivateKey(secret); err != nil {
		t.Errorf("ParseKEMPrivateKey() error = %v", err)
	}
}

func TestRunKeygen_EncodeError(t *testing.T) {
	err := runKeygen(&Config{Stdout: &errorWriter{}})
	if err == nil || !strings.Contains(err.Error(), "encode output") {
		t.Errorf("runKeygen() error = %v, want encode output error", err)
	}
}

func TestRunKEMPublic(t *testing.T) {
	kp, err := crypto.GenerateKEMKeypair()
	if err != nil {
		t.Fatalf("GenerateKEMKeypair() error = %v", err)
	}

	var stdout bytes.Buffer
	stdin := strings.NewReader(crypto.ToBase64URL(kp.SecretKey) + "\n")
	if err := run([]string{"authbridge", "kem-public"}, &Config{Stdin: stdin, Stdout: &stdout}); err != nil {
		t.Fatalf("run(kem-public) error = %v", err)
	}

	var out KeypairOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if out.PublicKey != crypto.ToBase64URL(kp.PublicKey) {
		t.Errorf("PublicKey = %s, want the generated public key", out.PublicKey)
	}
	if out.SecretKey != "" {
		t.Error("kem-public printed the secret key")
	}
}

func TestRunKEMPublic_Errors(t *testing.T) {
	tests := []struct {
		name  string
		stdin io.Reader
		want  string
	}{
		{"read error", &errorReader{}, "read stdin"},
		{"not base64url", strings.NewReader("***"), "decode secret key"},
		{"wrong size", strings.NewReader(crypto.ToBase64URL([]byte("short"))), "derive public key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runKEMPublic(&Config{Stdin: tt.stdin, Stdout: io.Discard})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("runKEMPublic() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestConvertKYC_NoData(t *testing.T) {
	out := convertKYC(&authbridge.KYCResponse{Txn: "t"})
	if out.Txn != "t" || out.Name != "" || out.Address != nil {
		t.Errorf("convertKYC() = %+v", out)
	}
}

func TestFatal(t *testing.T) {
	originalExitFunc := exitFunc
	defer func() { exitFunc = originalExitFunc }()

	var exitCode int
	exitFunc = func(code int) {
		exitCode = code
	}

	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	fatal("test error: %s", "details")

	w.Close()
	os.Stderr = oldStderr
	var buf bytes.Buffer
	buf.ReadFrom(r)
	output := buf.String()

	if exitCode != 1 {
		t.Errorf("exitCode = %d, want 1", exitCode)
	}
	if !strings.Contains(output, "test error: details") {
		t.Errorf("output = %q, should contain 'test error: details'", output)
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
