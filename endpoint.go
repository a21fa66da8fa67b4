package authbridge

import (
	"net/url"
	"strings"
)

// EndpointResolver maps a message kind and resident to the registry URL the
// message is posted to.
type EndpointResolver interface {
	Endpoint(kind Kind, uid string, id Identity) (string, error)
}

// EndpointResolverFunc adapts a function to EndpointResolver.
type EndpointResolverFunc func(kind Kind, uid string, id Identity) (string, error)

// Endpoint implements EndpointResolver.
func (f EndpointResolverFunc) Endpoint(kind Kind, uid string, id Identity) (string, error) {
	return f(kind, uid, id)
}

// Endpoints holds the base URL of each registry service. Requests are routed
// to base/version/aua/uid[0]/uid[1]/license.
type Endpoints struct {
	Auth string `yaml:"auth"`
	OTP  string `yaml:"otp"`
	KYC  string `yaml:"kyc"`
}

// Endpoint implements EndpointResolver.
func (e Endpoints) Endpoint(kind Kind, uid string, id Identity) (string, error) {
	var base string
	switch kind {
	case KindAuth:
		base = e.Auth
	case KindOTP:
		base = e.OTP
	case KindKYC:
		base = e.KYC
	}
	if base == "" {
		return "", newValidationError("endpoints: no %s url configured", kind)
	}
	if len(uid) < 2 {
		return "", newValidationError("endpoints: resident uid too short to route")
	}

	license := id.ASALicenseKey
	if license == "" {
		license = id.LicenseKey
	}

	return strings.Join([]string{
		strings.TrimRight(base, "/"),
		url.PathEscape(id.version()),
		url.PathEscape(id.AUA),
		url.PathEscape(uid[:1]),
		url.PathEscape(uid[1:2]),
		url.PathEscape(license),
	}, "/"), nil
}
