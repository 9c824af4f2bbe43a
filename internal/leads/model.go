package leads

import "time"

// RawInput is the request body accepted by the lead and waitlist endpoints.
// Phone aliases and honeypot aliases are resolved by the Validator.
type RawInput struct {
	Name     string `json:"name" validate:"max=120"`
	Email    string `json:"email"`
	City     string `json:"city" validate:"max=120"`
	Role     string `json:"role" validate:"max=120"`
	Phone    string `json:"phone" validate:"max=32"`
	WhatsApp string `json:"whatsapp" validate:"max=32"`
	WA       string `json:"wa" validate:"max=32"`
	Message  string `json:"message" validate:"max=2000"`
	Source   string `json:"source"`

	// Honeypot fields. Real visitors never see them.
	Honeypot string `json:"honeypot"`
	Website  string `json:"website"`
	HP       string `json:"hp"`
}

// ContactRecord is a validated, normalized submission. Empty strings mean absent.
type ContactRecord struct {
	Email   string
	Name    string
	City    string
	Role    string
	Phone   string
	Message string
	Source  string
}

// StoredLead is the persisted row, unique per lowercased email.
type StoredLead struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	City      string    `json:"city,omitempty"`
	Role      string    `json:"role,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Message   string    `json:"message,omitempty"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Patch holds the fields to overwrite on an existing lead. Nil means untouched.
type Patch struct {
	Name    *string
	City    *string
	Role    *string
	Phone   *string
	Message *string
	Source  *string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.City == nil && p.Role == nil &&
		p.Phone == nil && p.Message == nil && p.Source == nil
}

// Columns returns the patched column names with their new values, in a fixed order.
func (p Patch) Columns() ([]string, []string) {
	var cols, vals []string
	add := func(col string, v *string) {
		if v != nil {
			cols = append(cols, col)
			vals = append(vals, *v)
		}
	}
	add("name", p.Name)
	add("city", p.City)
	add("role", p.Role)
	add("phone", p.Phone)
	add("message", p.Message)
	add("source", p.Source)
	return cols, vals
}

// ApplyTo writes the patched fields onto lead.
func (p Patch) ApplyTo(lead *StoredLead) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&lead.Name, p.Name)
	set(&lead.City, p.City)
	set(&lead.Role, p.Role)
	set(&lead.Phone, p.Phone)
	set(&lead.Message, p.Message)
	set(&lead.Source, p.Source)
}

// Outcome is the reconciliation result for one submission.
type Outcome string

const (
	OutcomeCreated    Outcome = "created"
	OutcomeUpdated    Outcome = "updated"
	OutcomeUnchanged  Outcome = "unchanged"
	OutcomeSuppressed Outcome = "suppressed"
)

// Result pairs the outcome with the lead as it now stands in the store.
type Result struct {
	Outcome Outcome
	Lead    *StoredLead
	Patch   Patch
}

// ListFilter pages through stored leads.
type ListFilter struct {
	Limit  int
	Offset int
}
