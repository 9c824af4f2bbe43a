package leads

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	maxEmailLength  = 254
	maxSourceLength = 512
)

// Validator turns a RawInput into a ContactRecord. It holds no request state and
// is safe for concurrent use.
type Validator struct {
	policy        PhonePolicy
	defaultSource string
	schema        *validator.Validate
}

// NewValidator builds a validator for the given phone policy. defaultSource is
// used when neither the body nor the request headers name a source.
func NewValidator(policy PhonePolicy, defaultSource string) *Validator {
	if policy == "" {
		policy = PhonePolicyColombia
	}
	defaultSource = strings.TrimSpace(defaultSource)
	if defaultSource == "" {
		defaultSource = "landing"
	}
	return &Validator{
		policy:        policy,
		defaultSource: defaultSource,
		schema:        validator.New(),
	}
}

// Policy returns the active phone policy.
func (v *Validator) Policy() PhonePolicy {
	return v.policy
}

// Validate normalizes raw. The email is checked first so a bad email always wins
// over other problems. A filled honeypot yields ErrSuppressed after the other
// checks pass.
func (v *Validator) Validate(raw RawInput) (ContactRecord, error) {
	email := NormalizeEmail(raw.Email)
	if email == "" || len(email) > maxEmailLength || !emailPattern.MatchString(email) {
		return ContactRecord{}, ErrInvalidEmail
	}

	raw = trimFields(raw)
	if err := v.schema.Struct(raw); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return ContactRecord{}, fmt.Errorf("%w: %s", ErrFieldTooLong, strings.ToLower(verrs[0].Field()))
		}
		return ContactRecord{}, fmt.Errorf("leads: schema validation: %w", err)
	}

	phone, err := v.policy.Normalize(firstNonBlank(raw.Phone, raw.WhatsApp, raw.WA))
	if err != nil {
		return ContactRecord{}, err
	}

	rec := ContactRecord{
		Email:   email,
		Name:    raw.Name,
		City:    raw.City,
		Role:    raw.Role,
		Phone:   phone,
		Message: raw.Message,
		Source:  truncateRunes(raw.Source, maxSourceLength),
	}
	if rec.Source == "" {
		rec.Source = v.defaultSource
	}

	if firstNonBlank(raw.Honeypot, raw.Website, raw.HP) != "" {
		return rec, ErrSuppressed
	}
	return rec, nil
}

// trimFields strips surrounding whitespace so length caps apply to the stored value.
func trimFields(raw RawInput) RawInput {
	raw.Name = strings.TrimSpace(raw.Name)
	raw.City = strings.TrimSpace(raw.City)
	raw.Role = strings.TrimSpace(raw.Role)
	raw.Phone = strings.TrimSpace(raw.Phone)
	raw.WhatsApp = strings.TrimSpace(raw.WhatsApp)
	raw.WA = strings.TrimSpace(raw.WA)
	raw.Message = strings.TrimSpace(raw.Message)
	raw.Source = strings.TrimSpace(raw.Source)
	return raw
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ResolveSource picks the submission source: explicit body value, then Referer,
// then Origin. Empty means the validator default applies.
func ResolveSource(body, referer, origin string) string {
	return firstNonBlank(body, referer, origin)
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// truncateRunes caps s at max runes. Sources are never rejected.
func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
