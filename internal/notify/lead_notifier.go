package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/leadcapture/internal/leads"
	"github.com/wolfman30/leadcapture/pkg/logging"
)

// LeadNotifier emails the operator inbox when a new lead is created. Updates
// and unchanged resubmissions are ignored.
type LeadNotifier struct {
	sender    EmailSender
	recipient string
	logger    *logging.Logger
}

var _ leads.Listener = (*LeadNotifier)(nil)

func NewLeadNotifier(sender EmailSender, recipient string, logger *logging.Logger) *LeadNotifier {
	if sender == nil {
		panic("notify: email sender required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LeadNotifier{sender: sender, recipient: strings.TrimSpace(recipient), logger: logger}
}

func (n *LeadNotifier) Name() string { return "email" }

// LeadCaptured sends the notification for created leads.
func (n *LeadNotifier) LeadCaptured(ctx context.Context, res *leads.Result) error {
	if res == nil || res.Lead == nil || res.Outcome != leads.OutcomeCreated {
		return nil
	}
	if n.recipient == "" {
		n.logger.Debug("notify: no recipient configured, skipping lead email", "id", res.Lead.ID)
		return nil
	}
	msg := EmailMessage{
		To:      n.recipient,
		Subject: leadSubject(res.Lead),
		Body:    leadBody(res.Lead),
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: lead email: %w", err)
	}
	return nil
}

func leadSubject(lead *leads.StoredLead) string {
	if lead.Name != "" {
		return fmt.Sprintf("New lead: %s <%s>", lead.Name, lead.Email)
	}
	return "New lead: " + lead.Email
}

func leadBody(lead *leads.StoredLead) string {
	var b strings.Builder
	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}
	line("Email", lead.Email)
	line("Name", lead.Name)
	line("City", lead.City)
	line("Role", lead.Role)
	line("Phone", lead.Phone)
	line("Message", lead.Message)
	line("Source", lead.Source)
	line("Received", lead.CreatedAt.Format("2006-01-02 15:04 MST"))
	return b.String()
}
