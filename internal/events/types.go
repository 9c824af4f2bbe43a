package events

import "time"

const (
	TypeLeadCreated = "lead.created"
	TypeLeadUpdated = "lead.updated"
)

// LeadSnapshot is the lead as stored after the submission.
type LeadSnapshot struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	City    string `json:"city,omitempty"`
	Role    string `json:"role,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Message string `json:"message,omitempty"`
	Source  string `json:"source,omitempty"`
}

type LeadCreatedV1 struct {
	Lead       LeadSnapshot `json:"lead"`
	OccurredAt time.Time    `json:"occurred_at"`
}

func (LeadCreatedV1) EventType() string { return TypeLeadCreated }

// LeadUpdatedV1 lists the columns the submission overwrote.
type LeadUpdatedV1 struct {
	Lead          LeadSnapshot `json:"lead"`
	ChangedFields []string     `json:"changed_fields"`
	OccurredAt    time.Time    `json:"occurred_at"`
}

func (LeadUpdatedV1) EventType() string { return TypeLeadUpdated }
