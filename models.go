package authbridge

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strings"

	"github.com/authbridge/client-go/internal/crypto"
)

const (
	pidVersion   = "2.0"
	kycTxnPrefix = "UKC:"
)

// Demographics are identity attributes matched against the registry.
type Demographics struct {
	Name   string
	Gender string
	DOB    string
	Phone  string
	Email  string
	// Address is matched when non-nil.
	Address *Address
}

// Address is a postal address in the registry's field layout.
type Address struct {
	CareOf     string `xml:"co,attr,omitempty"`
	House      string `xml:"house,attr,omitempty"`
	Street     string `xml:"street,attr,omitempty"`
	Landmark   string `xml:"lm,attr,omitempty"`
	Locality   string `xml:"loc,attr,omitempty"`
	VTC        string `xml:"vtc,attr,omitempty"`
	District   string `xml:"dist,attr,omitempty"`
	State      string `xml:"state,attr,omitempty"`
	Country    string `xml:"country,attr,omitempty"`
	Pincode    string `xml:"pc,attr,omitempty"`
	PostOffice string `xml:"po,attr,omitempty"`
}

// BiometricType is the record format of a biometric capture.
type BiometricType string

// Biometric record formats.
const (
	FingerprintMinutiae BiometricType = "FMR"
	FingerprintImage    BiometricType = "FIR"
	IrisImage           BiometricType = "IIR"
	FaceImage           BiometricType = "FID"
)

// Biometric is one captured record.
type Biometric struct {
	Type     BiometricType
	Position string
	Data     []byte
}

// Device describes the registered capture device.
type Device struct {
	UDC            string `xml:"udc,attr"`
	ProviderID     string `xml:"dpId,attr,omitempty"`
	ServiceID      string `xml:"rdsId,attr,omitempty"`
	ServiceVersion string `xml:"rdsVer,attr,omitempty"`
	Code           string `xml:"dc,attr,omitempty"`
	Model          string `xml:"mi,attr,omitempty"`
	Certificate    string `xml:"mc,attr,omitempty"`
}

// AuthRequest authenticates a resident with demographic, biometric, OTP or
// PIN data. The personal data is sealed for the registry before signing.
type AuthRequest struct {
	Resident string
	// Transaction is optional; one is generated when empty.
	Transaction string
	// Consent records that the resident agreed to the authentication.
	Consent bool
	Uses    Usage

	Demographics *Demographics
	Biometrics   []Biometric
	OTP          string
	PIN          string
	Device       *Device

	binding Binding
	enc     *EncBlock
}

// SetDemographics sets the demographic block and its usage flags.
func (r *AuthRequest) SetDemographics(d *Demographics) {
	r.Demographics = d
	r.Uses |= UsePI
	if d.Address != nil {
		r.Uses |= UsePA
	}
}

// AddBiometric appends a biometric record and marks biometrics as used.
func (r *AuthRequest) AddBiometric(b Biometric) {
	r.Biometrics = append(r.Biometrics, b)
	r.Uses |= UseBio
}

// SetOTP sets the one-time password and marks it as used.
func (r *AuthRequest) SetOTP(otp string) {
	r.OTP = otp
	r.Uses |= UseOTP
}

// ClearBiometrics zeroes and drops every biometric record and removes the
// biometric usage flag. It is a no-op when no biometrics are present.
func (r *AuthRequest) ClearBiometrics() error {
	for i := range r.Biometrics {
		crypto.Zero(r.Biometrics[i].Data)
	}
	r.Biometrics = nil
	if !r.Uses.Has(UseBio) {
		return nil
	}
	return r.Uses.Remove(UseBio)
}

// Kind implements Request.
func (r *AuthRequest) Kind() Kind { return KindAuth }

// UID implements Request.
func (r *AuthRequest) UID() string { return r.Resident }

// Txn implements Request.
func (r *AuthRequest) Txn() string { return r.Transaction }

// BindIdentity implements Request.
func (r *AuthRequest) BindIdentity(b Binding) error {
	var errs []string
	if r.Resident == "" {
		errs = append(errs, "auth: resident uid is required")
	}
	if !r.Consent {
		errs = append(errs, "auth: resident consent is required")
	}
	if r.Uses == 0 {
		errs = append(errs, "auth: no personal data to authenticate with")
	}
	if r.Uses.Has(UseBio) && len(r.Biometrics) == 0 {
		errs = append(errs, "auth: biometric usage set without biometric records")
	}
	if r.Uses.Has(UseOTP) && r.OTP == "" {
		errs = append(errs, "auth: otp usage set without an otp")
	}
	if r.Uses.Has(UsePIN) && r.PIN == "" {
		errs = append(errs, "auth: pin usage set without a pin")
	}
	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	r.binding = b
	return nil
}

type pidXML struct {
	XMLName xml.Name `xml:"Pid"`
	Ts      string   `xml:"ts,attr"`
	Ver     string   `xml:"ver,attr"`
	Demo    *demoXML `xml:"Demo,omitempty"`
	Bios    *biosXML `xml:"Bios,omitempty"`
	Pv      *pvXML   `xml:"Pv,omitempty"`
}

type demoXML struct {
	Pi *piXML   `xml:"Pi,omitempty"`
	Pa *Address `xml:"Pa,omitempty"`
}

type piXML struct {
	Name   string `xml:"name,attr,omitempty"`
	Gender string `xml:"gender,attr,omitempty"`
	DOB    string `xml:"dob,attr,omitempty"`
	Phone  string `xml:"phone,attr,omitempty"`
	Email  string `xml:"email,attr,omitempty"`
}

type biosXML struct {
	Bio []bioXML `xml:"Bio"`
}

type bioXML struct {
	Type string `xml:"type,attr"`
	Posh string `xml:"posh,attr"`
	Data string `xml:",chardata"`
}

type pvXML struct {
	OTP string `xml:"otp,attr,omitempty"`
	PIN string `xml:"pin,attr,omitempty"`
}

// PersonalData implements EncryptedRequest.
func (r *AuthRequest) PersonalData() ([]byte, error) {
	pid := pidXML{Ts: r.binding.ts(), Ver: pidVersion}
	if d := r.Demographics; d != nil && r.Uses&(UsePI|UsePA|UsePFA) != 0 {
		pid.Demo = &demoXML{
			Pi: &piXML{Name: d.Name, Gender: d.Gender, DOB: d.DOB, Phone: d.Phone, Email: d.Email},
			Pa: d.Address,
		}
	}
	if r.Uses.Has(UseBio) {
		pid.Bios = &biosXML{}
		for _, b := range r.Biometrics {
			pid.Bios.Bio = append(pid.Bios.Bio, bioXML{
				Type: string(b.Type),
				Posh: b.Position,
				Data: crypto.ToBase64(b.Data),
			})
		}
	}
	if r.Uses&(UseOTP|UsePIN) != 0 {
		pid.Pv = &pvXML{}
		if r.Uses.Has(UseOTP) {
			pid.Pv.OTP = r.OTP
		}
		if r.Uses.Has(UsePIN) {
			pid.Pv.PIN = r.PIN
		}
	}
	return xml.Marshal(pid)
}

// SetEncrypted implements EncryptedRequest.
func (r *AuthRequest) SetEncrypted(enc *EncBlock) { r.enc = enc }

type authXML struct {
	XMLName xml.Name  `xml:"Auth"`
	UID     string    `xml:"uid,attr"`
	RC      string    `xml:"rc,attr"`
	TID     string    `xml:"tid,attr"`
	AC      string    `xml:"ac,attr"`
	SA      string    `xml:"sa,attr"`
	Ver     string    `xml:"ver,attr"`
	Txn     string    `xml:"txn,attr"`
	LK      string    `xml:"lk,attr"`
	Uses    usesXML   `xml:"Uses"`
	Meta    *Device   `xml:"Meta,omitempty"`
	Enc     *EncBlock `xml:"Enc"`
}

type usesXML struct {
	PI  string `xml:"pi,attr"`
	PA  string `xml:"pa,attr"`
	PFA string `xml:"pfa,attr"`
	Bio string `xml:"bio,attr"`
	BT  string `xml:"bt,attr,omitempty"`
	PIN string `xml:"pin,attr"`
	OTP string `xml:"otp,attr"`
}

func (r *AuthRequest) wireUses() usesXML {
	u := usesXML{
		PI:  yn(r.Uses.Has(UsePI)),
		PA:  yn(r.Uses.Has(UsePA)),
		PFA: yn(r.Uses.Has(UsePFA)),
		Bio: yn(r.Uses.Has(UseBio)),
		PIN: yn(r.Uses.Has(UsePIN)),
		OTP: yn(r.Uses.Has(UseOTP)),
	}
	if r.Uses.Has(UseBio) {
		seen := make(map[string]struct{})
		var types []string
		for _, b := range r.Biometrics {
			if _, ok := seen[string(b.Type)]; !ok {
				seen[string(b.Type)] = struct{}{}
				types = append(types, string(b.Type))
			}
		}
		sort.Strings(types)
		u.BT = strings.Join(types, ",")
	}
	return u
}

// MarshalMessage implements Request.
func (r *AuthRequest) MarshalMessage() ([]byte, error) {
	if r.enc == nil {
		return nil, newValidationError("auth: personal data has not been sealed")
	}
	id := r.binding.Identity
	return xml.Marshal(authXML{
		UID:  r.Resident,
		RC:   "Y",
		TID:  id.TerminalID,
		AC:   id.AUA,
		SA:   id.SubAUA,
		Ver:  id.version(),
		Txn:  r.binding.Txn,
		LK:   id.LicenseKey,
		Uses: r.wireUses(),
		Meta: r.Device,
		Enc:  r.enc,
	})
}

// OTPChannel selects where the registry sends a one-time password.
type OTPChannel string

// OTP delivery channels.
const (
	OTPChannelAll   OTPChannel = "00"
	OTPChannelSMS   OTPChannel = "01"
	OTPChannelEmail OTPChannel = "02"
)

// OTPRequest asks the registry to send a one-time password to the
// resident. It carries no personal data and is signed but not encrypted.
type OTPRequest struct {
	Resident    string
	Transaction string
	Channel     OTPChannel

	binding Binding
}

// Kind implements Request.
func (r *OTPRequest) Kind() Kind { return KindOTP }

// UID implements Request.
func (r *OTPRequest) UID() string { return r.Resident }

// Txn implements Request.
func (r *OTPRequest) Txn() string { return r.Transaction }

// BindIdentity implements Request.
func (r *OTPRequest) BindIdentity(b Binding) error {
	if r.Resident == "" {
		return newValidationError("otp: resident uid is required")
	}
	r.binding = b
	return nil
}

type otpXML struct {
	XMLName xml.Name `xml:"Otp"`
	UID     string   `xml:"uid,attr"`
	TID     string   `xml:"tid,attr"`
	AC      string   `xml:"ac,attr"`
	SA      string   `xml:"sa,attr"`
	Ver     string   `xml:"ver,attr"`
	Txn     string   `xml:"txn,attr"`
	Ts      string   `xml:"ts,attr"`
	LK      string   `xml:"lk,attr"`
	Ch      string   `xml:"ch,attr"`
}

// MarshalMessage implements Request.
func (r *OTPRequest) MarshalMessage() ([]byte, error) {
	ch := r.Channel
	if ch == "" {
		ch = OTPChannelAll
	}
	id := r.binding.Identity
	return xml.Marshal(otpXML{
		UID: r.Resident,
		TID: id.TerminalID,
		AC:  id.AUA,
		SA:  id.SubAUA,
		Ver: id.version(),
		Txn: r.binding.Txn,
		Ts:  r.binding.ts(),
		LK:  id.LicenseKey,
		Ch:  string(ch),
	})
}

// KYCRequest asks for the resident's identity record. It wraps a signed
// authentication request; the record comes back sealed for the agency.
type KYCRequest struct {
	Auth *AuthRequest
	// LocalLanguage asks for the record in the resident's local language too.
	LocalLanguage bool
	// Delegated marks a request made on behalf of another agency.
	Delegated bool

	binding    Binding
	signedAuth []byte
}

// Kind implements Request.
func (r *KYCRequest) Kind() Kind { return KindKYC }

// UID implements Request.
func (r *KYCRequest) UID() string {
	if r.Auth == nil {
		return ""
	}
	return r.Auth.Resident
}

// Txn implements Request. The inner authentication carries the id with a
// KYC prefix.
func (r *KYCRequest) Txn() string {
	if r.Auth == nil {
		return ""
	}
	return strings.TrimPrefix(r.Auth.Transaction, kycTxnPrefix)
}

// BindIdentity implements Request. It binds the inner authentication too.
func (r *KYCRequest) BindIdentity(b Binding) error {
	if r.Auth == nil {
		return newValidationError("kyc: authentication request is required")
	}
	inner := b
	inner.Txn = kycTxnPrefix + strings.TrimPrefix(b.Txn, kycTxnPrefix)
	if err := r.Auth.BindIdentity(inner); err != nil {
		return err
	}
	r.binding = b
	return nil
}

// Inner implements WrappingRequest.
func (r *KYCRequest) Inner() Request { return r.Auth }

// SetSignedInner implements WrappingRequest.
func (r *KYCRequest) SetSignedInner(signed []byte) { r.signedAuth = signed }

func (r *KYCRequest) residentAuthType() string {
	var ra string
	if r.Auth.Uses.Has(UseBio) {
		ra += "F"
	}
	if r.Auth.Uses.Has(UseOTP) {
		ra += "O"
	}
	if ra == "" {
		ra = "P"
	}
	return ra
}

type kycXML struct {
	XMLName xml.Name `xml:"Kyc"`
	Ver     string   `xml:"ver,attr"`
	Ts      string   `xml:"ts,attr"`
	RA      string   `xml:"ra,attr"`
	RC      string   `xml:"rc,attr"`
	LR      string   `xml:"lr,attr"`
	DE      string   `xml:"de,attr"`
	Rad     string   `xml:"Rad"`
}

// MarshalMessage implements Request.
func (r *KYCRequest) MarshalMessage() ([]byte, error) {
	if len(r.signedAuth) == 0 {
		return nil, newValidationError("kyc: authentication request has not been signed")
	}
	return xml.Marshal(kycXML{
		Ver: r.binding.Identity.version(),
		Ts:  r.binding.ts(),
		RA:  r.residentAuthType(),
		RC:  "Y",
		LR:  strings.ToUpper(yn(r.LocalLanguage)),
		DE:  strings.ToUpper(yn(r.Delegated)),
		Rad: crypto.ToBase64(r.signedAuth),
	})
}

// AuthResponse is the registry's answer to an AuthRequest.
type AuthResponse struct {
	XMLName xml.Name `xml:"AuthRes"`
	// Ret is "y" when the resident was authenticated.
	Ret       string `xml:"ret,attr"`
	Code      string `xml:"code,attr"`
	Txn       string `xml:"txn,attr"`
	Err       string `xml:"err,attr,omitempty"`
	Timestamp string `xml:"ts,attr"`
	Info      string `xml:"info,attr,omitempty"`
	Action    string `xml:"actn,attr,omitempty"`
}

// Authenticated reports whether the registry matched the resident.
func (r *AuthResponse) Authenticated() bool { return r.Ret == "y" }

// UnmarshalMessage implements Response.
func (r *AuthResponse) UnmarshalMessage(data []byte) error { return xml.Unmarshal(data, r) }

// ErrorCode implements Response.
func (r *AuthResponse) ErrorCode() string { return r.Err }

// OTPResponse is the registry's answer to an OTPRequest.
type OTPResponse struct {
	XMLName   xml.Name `xml:"OtpRes"`
	Ret       string   `xml:"ret,attr"`
	Code      string   `xml:"code,attr"`
	Txn       string   `xml:"txn,attr"`
	Err       string   `xml:"err,attr,omitempty"`
	Timestamp string   `xml:"ts,attr"`
	Info      string   `xml:"info,attr,omitempty"`
}

// Sent reports whether the registry dispatched the password.
func (r *OTPResponse) Sent() bool { return r.Ret == "y" }

// UnmarshalMessage implements Response.
func (r *OTPResponse) UnmarshalMessage(data []byte) error { return xml.Unmarshal(data, r) }

// ErrorCode implements Response.
func (r *OTPResponse) ErrorCode() string { return r.Err }

// KYCResponse is the registry's answer to a KYCRequest. Data is populated
// once the sealed record has been verified and decrypted.
type KYCResponse struct {
	XMLName   xml.Name  `xml:"KycRes"`
	Ret       string    `xml:"ret,attr"`
	Code      string    `xml:"code,attr"`
	Txn       string    `xml:"txn,attr"`
	Err       string    `xml:"err,attr,omitempty"`
	Timestamp string    `xml:"ts,attr"`
	TTL       string    `xml:"ttl,attr,omitempty"`
	Enc       *EncBlock `xml:"Enc"`

	Data *KYCData `xml:"-"`

	raw []byte
}

// KYCData is the decrypted identity record.
type KYCData struct {
	POI   ProofOfIdentity
	POA   Address
	Photo []byte
}

// ProofOfIdentity holds the resident's identity attributes.
type ProofOfIdentity struct {
	Name   string `xml:"name,attr"`
	DOB    string `xml:"dob,attr"`
	Gender string `xml:"gender,attr"`
	Phone  string `xml:"phone,attr,omitempty"`
	Email  string `xml:"email,attr,omitempty"`
}

type kycDataXML struct {
	XMLName xml.Name        `xml:"KycData"`
	POI     ProofOfIdentity `xml:"Poi"`
	POA     Address         `xml:"Poa"`
	Pht     string          `xml:"Pht"`
}

// UnmarshalMessage implements Response.
func (r *KYCResponse) UnmarshalMessage(data []byte) error { return xml.Unmarshal(data, r) }

// ErrorCode implements Response.
func (r *KYCResponse) ErrorCode() string { return r.Err }

// Encrypted implements EncryptedResponse.
func (r *KYCResponse) Encrypted() *EncBlock { return r.Enc }

// SetPlaintext implements EncryptedResponse. The plaintext is owned by the
// response until Discard.
func (r *KYCResponse) SetPlaintext(plaintext []byte) error {
	var d kycDataXML
	if err := xml.Unmarshal(plaintext, &d); err != nil {
		crypto.Zero(plaintext)
		return fmt.Errorf("parse kyc data: %w", err)
	}
	photo, err := crypto.FromBase64(d.Pht)
	if err != nil {
		crypto.Zero(plaintext)
		return fmt.Errorf("parse kyc photo: %w", err)
	}
	r.raw = plaintext
	r.Data = &KYCData{POI: d.POI, POA: d.POA, Photo: photo}
	return nil
}

// Discard zeroes the decrypted record and drops it. Call it as soon as the
// record has been consumed.
func (r *KYCResponse) Discard() {
	crypto.Zero(r.raw)
	r.raw = nil
	if r.Data != nil {
		crypto.Zero(r.Data.Photo)
		r.Data = nil
	}
}
