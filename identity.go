package authbridge

import "time"

// DefaultVersion is the protocol version sent when none is configured.
const DefaultVersion = "2.5"

// Identity holds the agency identifiers bound into every request. It is
// read-only once the client is built and shared by all exchanges.
type Identity struct {
	// AUA is the authentication user agency code (ac).
	AUA string `yaml:"aua"`
	// SubAUA is the sub-agency code (sa).
	SubAUA string `yaml:"sub_aua"`
	// LicenseKey is the agency license key (lk).
	LicenseKey string `yaml:"license_key"`
	// ASALicenseKey is the service agency license key used in endpoint paths.
	ASALicenseKey string `yaml:"asa_license_key"`
	// TerminalID identifies the capturing terminal (tid). Registered devices
	// send "registered".
	TerminalID string `yaml:"terminal_id"`
	// Version is the protocol version (ver).
	Version string `yaml:"version"`
}

func (i Identity) validate() []string {
	var errs []string
	if i.AUA == "" {
		errs = append(errs, "identity: aua is required")
	}
	if i.SubAUA == "" {
		errs = append(errs, "identity: sub_aua is required")
	}
	if i.LicenseKey == "" {
		errs = append(errs, "identity: license_key is required")
	}
	return errs
}

func (i Identity) version() string {
	if i.Version == "" {
		return DefaultVersion
	}
	return i.Version
}

// Binding is what the exchange injects into a request before it is
// encrypted and signed.
type Binding struct {
	Identity  Identity
	Txn       string
	Timestamp time.Time
}

func (b Binding) ts() string {
	return b.Timestamp.Format(timestampLayout)
}
