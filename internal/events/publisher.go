package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/leadcapture/internal/leads"
	"github.com/wolfman30/leadcapture/pkg/logging"
)

type queueClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher emits lead.created and lead.updated envelopes to an SQS queue.
type SQSPublisher struct {
	client   queueClient
	queueURL string
	logger   *logging.Logger
}

var _ leads.Listener = (*SQSPublisher)(nil)

// NewSQSPublisher creates a publisher around the provided SQS client.
func NewSQSPublisher(client queueClient, queueURL string, logger *logging.Logger) *SQSPublisher {
	if client == nil {
		panic("events: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("events: SQS queueURL cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SQSPublisher{client: client, queueURL: queueURL, logger: logger}
}

func (p *SQSPublisher) Name() string { return "sqs" }

// LeadCaptured publishes one event per created or updated lead. The HTTP
// request id, when present, becomes the correlation id.
func (p *SQSPublisher) LeadCaptured(ctx context.Context, res *leads.Result) error {
	evt, occurredAt := eventFor(res)
	if evt == nil {
		return nil
	}
	env, err := NewEnvelope("lead:"+res.Lead.ID, chimw.GetReqID(ctx), evt, WithTimestamp(occurredAt))
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("events: marshal envelope: %w", err)
	}

	out, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(env.EventType)},
		},
	})
	if err != nil {
		return fmt.Errorf("events: failed to send SQS message: %w", err)
	}
	p.logger.Debug("lead event published", "event_type", env.EventType, "event_id", env.EventID, "message_id", aws.ToString(out.MessageId))
	return nil
}

// eventFor maps a result to its event and the time the change was written.
func eventFor(res *leads.Result) (CanonicalEvent, time.Time) {
	if res == nil || res.Lead == nil {
		return nil, time.Time{}
	}
	snap := snapshotOf(res.Lead)
	switch res.Outcome {
	case leads.OutcomeCreated:
		return LeadCreatedV1{Lead: snap, OccurredAt: res.Lead.CreatedAt}, res.Lead.CreatedAt
	case leads.OutcomeUpdated:
		cols, _ := res.Patch.Columns()
		return LeadUpdatedV1{Lead: snap, ChangedFields: cols, OccurredAt: res.Lead.UpdatedAt}, res.Lead.UpdatedAt
	default:
		return nil, time.Time{}
	}
}

func snapshotOf(l *leads.StoredLead) LeadSnapshot {
	return LeadSnapshot{
		ID:      l.ID,
		Email:   l.Email,
		Name:    l.Name,
		City:    l.City,
		Role:    l.Role,
		Phone:   l.Phone,
		Message: l.Message,
		Source:  l.Source,
	}
}
