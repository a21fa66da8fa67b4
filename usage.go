package authbridge

import (
	"math/bits"
	"strings"
)

// Usage records which kinds of personal data an authentication request
// carries. It is serialised as the y/n attributes of the Uses element.
type Usage uint8

const (
	// UsePI marks demographic identity attributes.
	UsePI Usage = 1 << iota
	// UsePA marks address attributes.
	UsePA
	// UsePFA marks full address attributes.
	UsePFA
	// UseBio marks biometric records.
	UseBio
	// UsePIN marks a PIN.
	UsePIN
	// UseOTP marks a one-time password.
	UseOTP
)

// Has reports whether every bit in flag is set.
func (u Usage) Has(flag Usage) bool {
	return flag != 0 && u&flag == flag
}

// Remove clears a single flag that is currently set.
//
// Precondition: flag is exactly one bit and is set in u. A violated
// precondition returns a *ValidationError and leaves u unchanged, so a flag
// can never be toggled back on by removing it twice.
func (u *Usage) Remove(flag Usage) error {
	if bits.OnesCount8(uint8(flag)) != 1 {
		return newValidationError("usage: remove needs a single flag, got %s", flag)
	}
	if !u.Has(flag) {
		return newValidationError("usage: %s is not set", flag)
	}
	*u &^= flag
	return nil
}

var usageNames = []struct {
	flag Usage
	name string
}{
	{UsePI, "pi"},
	{UsePA, "pa"},
	{UsePFA, "pfa"},
	{UseBio, "bio"},
	{UsePIN, "pin"},
	{UseOTP, "otp"},
}

func (u Usage) String() string {
	if u == 0 {
		return "none"
	}
	var parts []string
	for _, n := range usageNames {
		if u&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

func yn(b bool) string {
	if b {
		return "y"
	}
	return "n"
}
