package authbridge

import (
	"bytes"
	"context"
	gocrypto "crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/xml"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/authbridge/client-go/internal/crypto"
	"github.com/authbridge/client-go/internal/xmldsig"
)

type testPKI struct {
	agencyKey    *rsa.PrivateKey
	agencyCert   *x509.Certificate
	registryKey  *rsa.PrivateKey
	registryCert *x509.Certificate
}

var (
	pkiOnce sync.Once
	pki     testPKI
	pkiErr  error
)

func newTestCertificate(key *rsa.PrivateKey, cn string, notBefore, notAfter time.Time) (*x509.Certificate, error) {
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	return x509.ParseCertificate(der)
}

func testKeys(t *testing.T) *testPKI {
	t.Helper()

	pkiOnce.Do(func() {
		now := time.Now()
		if pki.agencyKey, pkiErr = rsa.GenerateKey(rand.Reader, 2048); pkiErr != nil {
			return
		}
		if pki.registryKey, pkiErr = rsa.GenerateKey(rand.Reader, 2048); pkiErr != nil {
			return
		}
		if pki.agencyCert, pkiErr = newTestCertificate(pki.agencyKey, "agency", now.Add(-time.Hour), now.Add(48*time.Hour)); pkiErr != nil {
			return
		}
		pki.registryCert, pkiErr = newTestCertificate(pki.registryKey, "registry", now.Add(-time.Hour), now.Add(48*time.Hour))
	})
	if pkiErr != nil {
		t.Fatalf("generate test PKI: %v", pkiErr)
	}
	return &pki
}

var testIdentity = Identity{
	AUA:           "public",
	SubAUA:        "public",
	LicenseKey:    "MEaMX8fkRa6PqsqK6wGMrEXcXFl_oXHA-YuknI2uf0gKgZ80HaZgG3A",
	ASALicenseKey: "MH4hSkrev2h_Feu0lBRC8NI-iqzT299_qPSSstOFbNFTwWrie29ThDo",
	TerminalID:    "public",
	Version:       "2.5",
}

const testUID = "999999990019"

func testConfig() Config {
	return Config{
		Identity: testIdentity,
		Endpoints: Endpoints{
			Auth: "https://auth.registry.test",
			OTP:  "https://otp.registry.test",
			KYC:  "https://kyc.registry.test",
		},
	}
}

// testClock pins transaction timestamps inside the validity of the test
// certificates.
func testClock() time.Time {
	return time.Now().Add(-time.Minute).Truncate(time.Second)
}

func newTestClient(t *testing.T, reg *fakeRegistry, opts ...Option) *Client {
	t.Helper()
	k := testKeys(t)

	base := []Option{
		WithAgencyCredentials(k.agencyCert, k.agencyKey),
		WithRegistryCertificates(k.registryCert),
		WithRegistryEncryptionCertificate(k.registryCert),
		WithTransport(reg),
		WithClock(testClock),
	}
	c, err := New(testConfig(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func otpAuthRequest() *AuthRequest {
	req := &AuthRequest{Resident: testUID, Consent: true}
	req.SetOTP("123456")
	return req
}

const testKYCData = `<KycData><Poi name="Shivshankar Choudhury" dob="13-05-1968" gender="M"></Poi><Poa co="S/O Ganesh" dist="Mumbai" state="Maharashtra" pc="400001"></Poa><Pht>AQIDBA==</Pht></KycData>`

// fakeRegistry plays the registry side of the protocol in process. It
// verifies the agency signature, opens the sealed personal data and answers
// with a signed response.
type fakeRegistry struct {
	t *testing.T

	backend         crypto.Backend
	decryptKey      gocrypto.PrivateKey
	agencyRecipient crypto.Recipient
	signer          *xmldsig.Signer
	verifier        *xmldsig.Verifier

	errCode   string
	tamperTag bool

	mu           sync.Mutex
	calls        int
	lastEndpoint string
	lastRequest  []byte
	lastPID      []byte
	lastLabel    string
	lastResponse []byte
}

func newFakeRegistry(t *testing.T) *fakeRegistry {
	t.Helper()
	k := testKeys(t)

	signer, err := xmldsig.NewSigner(k.registryKey, k.registryCert)
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	verifier, err := xmldsig.NewVerifier(nil, k.agencyCert)
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	backend, _ := crypto.BackendByName(crypto.BackendStandard, 0)

	return &fakeRegistry{
		t:               t,
		backend:         backend,
		decryptKey:      k.registryKey,
		agencyRecipient: crypto.RecipientFromCertificate(k.agencyCert),
		signer:          signer,
		verifier:        verifier,
	}
}

func (f *fakeRegistry) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Send implements Transport.
func (f *fakeRegistry) Send(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastEndpoint = endpoint
	f.lastRequest = append([]byte(nil), body...)

	resp := f.handle(body)
	f.lastResponse = resp
	return resp, nil
}

func rootName(t *testing.T, doc []byte) string {
	t.Helper()
	dec := xml.NewDecoder(bytes.NewReader(doc))
	for {
		tok, err := dec.Token()
		if err != nil {
			t.Fatalf("find root element: %v", err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local
		}
	}
}

func (f *fakeRegistry) handle(body []byte) []byte {
	t := f.t
	if _, err := f.verifier.Verify(body); err != nil {
		t.Errorf("registry: agency signature does not verify: %v", err)
	}

	ret := "y"
	if f.errCode != "" {
		ret = "n"
	}

	var res any
	switch rootName(t, body) {
	case "Auth":
		auth := f.openAuth(body)
		res = &AuthResponse{Ret: ret, Code: "c0de", Txn: auth.Txn, Err: f.errCode, Timestamp: auth.Enc.Timestamp}

	case "Otp":
		var otp otpXML
		if err := xml.Unmarshal(body, &otp); err != nil {
			t.Fatalf("registry: parse Otp: %v", err)
		}
		res = &OTPResponse{Ret: ret, Code: "c0de", Txn: otp.Txn, Err: f.errCode, Timestamp: otp.Ts}

	case "Kyc":
		var kyc kycXML
		if err := xml.Unmarshal(body, &kyc); err != nil {
			t.Fatalf("registry: parse Kyc: %v", err)
		}
		inner, err := crypto.FromBase64(kyc.Rad)
		if err != nil {
			t.Fatalf("registry: decode Rad: %v", err)
		}
		if _, err := f.verifier.Verify(inner); err != nil {
			t.Errorf("registry: inner auth signature does not verify: %v", err)
		}
		auth := f.openAuth(inner)

		kycRes := &KYCResponse{Ret: ret, Code: "c0de", Txn: auth.Txn, Err: f.errCode, Timestamp: kyc.Ts}
		if f.errCode == "" {
			ts, err := time.Parse(timestampLayout, kyc.Ts)
			if err != nil {
				t.Fatalf("registry: parse ts: %v", err)
			}
			env, err := f.backend.SealEnvelope([]byte(testKYCData), f.agencyRecipient, ts, crypto.TagCiphertext)
			if err != nil {
				t.Fatalf("registry: seal kyc data: %v", err)
			}
			if f.tamperTag {
				env.IntegrityTag[0] ^= 0xFF
			}
			kycRes.Enc = newEncBlock(env)
		}
		res = kycRes

	default:
		t.Fatalf("registry: unexpected message %s", body)
	}

	doc, err := xml.Marshal(res)
	if err != nil {
		t.Fatalf("registry: marshal response: %v", err)
	}
	signed, err := f.signer.Sign(doc)
	if err != nil {
		t.Fatalf("registry: sign response: %v", err)
	}
	return signed
}

func (f *fakeRegistry) openAuth(doc []byte) authXML {
	t := f.t
	var auth authXML
	if err := xml.Unmarshal(doc, &auth); err != nil {
		t.Fatalf("registry: parse Auth: %v", err)
	}
	env, err := auth.Enc.envelope()
	if err != nil {
		t.Fatalf("registry: decode Enc: %v", err)
	}
	pid, err := f.backend.DecryptKYC(env, f.decryptKey, crypto.TagPlaintext)
	if err != nil {
		t.Errorf("registry: open personal data: %v", err)
	}
	f.lastPID = pid
	f.lastLabel = auth.Enc.Timestamp
	return auth
}

// transportFunc adapts a function to Transport.
type transportFunc func(ctx context.Context, endpoint string, body []byte) ([]byte, error)

func (f transportFunc) Send(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	return f(ctx, endpoint, body)
}
