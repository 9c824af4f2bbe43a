package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wolfman30/leadcapture/internal/leads"
)

type captureSender struct {
	sent []EmailMessage
	err  error
}

func (c *captureSender) Send(_ context.Context, msg EmailMessage) error {
	c.sent = append(c.sent, msg)
	return c.err
}

func sampleResult(outcome leads.Outcome) *leads.Result {
	return &leads.Result{
		Outcome: outcome,
		Lead: &leads.StoredLead{
			ID:        "lead-1",
			Email:     "ana@example.com",
			Name:      "Ana",
			City:      "Medellín",
			Phone:     "3001234567",
			Source:    "landing",
			CreatedAt: time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC),
		},
	}
}

func TestLeadNotifier_SendsOnCreated(t *testing.T) {
	sender := &captureSender{}
	n := NewLeadNotifier(sender, " ops@example.com ", nil)

	if err := n.LeadCaptured(context.Background(), sampleResult(leads.OutcomeCreated)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "ops@example.com" {
		t.Errorf("unexpected recipient %q", msg.To)
	}
	if msg.Subject != "New lead: Ana <ana@example.com>" {
		t.Errorf("unexpected subject %q", msg.Subject)
	}
	for _, want := range []string{"City: Medellín", "Phone: 3001234567", "Received: 2026-03-04 15:30 UTC"} {
		if !strings.Contains(msg.Body, want) {
			t.Errorf("expected body to contain %q, got:\n%s", want, msg.Body)
		}
	}
	if strings.Contains(msg.Body, "Role:") {
		t.Errorf("empty fields should be omitted, got:\n%s", msg.Body)
	}
}

func TestLeadNotifier_IgnoresOtherOutcomes(t *testing.T) {
	sender := &captureSender{}
	n := NewLeadNotifier(sender, "ops@example.com", nil)

	for _, o := range []leads.Outcome{leads.OutcomeUpdated, leads.OutcomeUnchanged} {
		if err := n.LeadCaptured(context.Background(), sampleResult(o)); err != nil {
			t.Fatalf("unexpected error for %s: %v", o, err)
		}
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no emails, got %d", len(sender.sent))
	}
}

func TestLeadNotifier_NoRecipient(t *testing.T) {
	sender := &captureSender{}
	n := NewLeadNotifier(sender, "", nil)
	if err := n.LeadCaptured(context.Background(), sampleResult(leads.OutcomeCreated)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatal("expected no email without recipient")
	}
}

func TestLeadNotifier_WrapsSendError(t *testing.T) {
	sendErr := errors.New("smtp down")
	n := NewLeadNotifier(&captureSender{err: sendErr}, "ops@example.com", nil)
	err := n.LeadCaptured(context.Background(), sampleResult(leads.OutcomeCreated))
	if !errors.Is(err, sendErr) {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
	if n.Name() != "email" {
		t.Fatalf("unexpected listener name %q", n.Name())
	}
}
