package leads

import (
	"fmt"
	"strings"
)

// PhonePolicy decides what a valid phone number looks like for a deployment.
type PhonePolicy string

const (
	// PhonePolicyColombia accepts exactly 10 national digits, with +57 or a
	// leading 0 stripped. This is the policy the landing page launched with.
	PhonePolicyColombia PhonePolicy = "co10"
	// PhonePolicyInternational accepts 7-15 digits with an optional leading plus.
	PhonePolicyInternational PhonePolicy = "intl"
)

const (
	colombiaCountryCode = "57"
	colombiaDigits      = 10
	intlMinDigits       = 7
	intlMaxDigits       = 15
)

// ParsePhonePolicy maps a config value onto a policy.
func ParsePhonePolicy(raw string) (PhonePolicy, error) {
	switch PhonePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PhonePolicyColombia:
		return PhonePolicyColombia, nil
	case PhonePolicyInternational:
		return PhonePolicyInternational, nil
	default:
		return "", fmt.Errorf("leads: unknown phone policy %q", raw)
	}
}

// Normalize returns the canonical phone for raw. Blank input yields "" and no error.
func (p PhonePolicy) Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	switch p {
	case PhonePolicyInternational:
		return normalizeInternational(raw)
	default:
		return normalizeColombia(raw)
	}
}

func normalizeColombia(raw string) (string, error) {
	d := digitsOnly(raw)
	if d == "" {
		return "", ErrInvalidPhone
	}
	if len(d) == colombiaDigits+2 && strings.HasPrefix(d, colombiaCountryCode) {
		d = d[2:]
	}
	if len(d) == colombiaDigits+1 && strings.HasPrefix(d, "0") {
		d = d[1:]
	}
	if len(d) != colombiaDigits {
		return "", ErrInvalidPhone
	}
	return d, nil
}

func normalizeInternational(raw string) (string, error) {
	plus := false
	switch {
	case strings.HasPrefix(raw, "+"):
		plus = true
		raw = raw[1:]
	case strings.HasPrefix(raw, "00"):
		plus = true
		raw = raw[2:]
	}

	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case isPhoneSeparator(r):
		default:
			return "", ErrInvalidPhone
		}
	}
	d := b.String()
	if !plus && strings.HasPrefix(d, "0") && fitsInternational(len(d)-1) {
		d = d[1:]
	}
	if !fitsInternational(len(d)) {
		return "", ErrInvalidPhone
	}
	if plus {
		return "+" + d, nil
	}
	return d, nil
}

func fitsInternational(n int) bool {
	return n >= intlMinDigits && n <= intlMaxDigits
}

func isPhoneSeparator(r rune) bool {
	switch r {
	case ' ', '-', '.', '(', ')', '/':
		return true
	}
	return false
}

func digitsOnly(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
