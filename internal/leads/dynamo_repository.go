package leads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	dynamoLeadPrefix  = "LEAD#"
	dynamoEmailPrefix = "EMAIL#"
)

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	TransactWriteItems(context.Context, *dynamodb.TransactWriteItemsInput, ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// dynamoLead is the lead item. Uniqueness of email is held by a separate marker
// item keyed EMAIL#<email>, written in the same transaction as the lead.
type dynamoLead struct {
	PK        string `dynamodbav:"pk"`
	ID        string `dynamodbav:"id"`
	Email     string `dynamodbav:"email"`
	Name      string `dynamodbav:"name,omitempty"`
	City      string `dynamodbav:"city,omitempty"`
	Role      string `dynamodbav:"role,omitempty"`
	Phone     string `dynamodbav:"phone,omitempty"`
	Message   string `dynamodbav:"message,omitempty"`
	Source    string `dynamodbav:"source,omitempty"`
	CreatedAt string `dynamodbav:"created_at"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

type dynamoEmailMarker struct {
	PK     string `dynamodbav:"pk"`
	LeadID string `dynamodbav:"lead_id"`
}

// DynamoRepository stores leads in a single DynamoDB table keyed by "pk".
type DynamoRepository struct {
	client    dynamoAPI
	tableName string
	now       func() time.Time
	tracer    trace.Tracer
}

var _ Store = (*DynamoRepository)(nil)

// NewDynamoRepository builds a store backed by the provided DynamoDB client.
func NewDynamoRepository(client dynamoAPI, tableName string) *DynamoRepository {
	if client == nil {
		panic("leads: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("leads: table name cannot be empty")
	}
	return &DynamoRepository{
		client:    client,
		tableName: tableName,
		now:       func() time.Time { return time.Now().UTC() },
		tracer:    otel.Tracer("leadcapture.internal.leads.dynamodb"),
	}
}

func (r *DynamoRepository) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return r.tracer.Start(ctx, "leads.dynamodb."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "dynamodb"),
			attribute.String("aws.dynamodb.table", r.tableName),
		),
	)
}

// FindByEmail resolves the email marker, then loads the lead it points at.
func (r *DynamoRepository) FindByEmail(ctx context.Context, email string) (*StoredLead, error) {
	ctx, span := r.startSpan(ctx, "find_by_email")
	defer span.End()

	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            pkKey(dynamoEmailPrefix + NormalizeEmail(email)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("leads: dynamodb get email marker: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrLeadNotFound
	}
	var marker dynamoEmailMarker
	if err := attributevalue.UnmarshalMap(out.Item, &marker); err != nil {
		return nil, fmt.Errorf("leads: dynamodb unmarshal email marker: %w", err)
	}
	return r.GetByID(ctx, marker.LeadID)
}

// GetByID loads one lead item.
func (r *DynamoRepository) GetByID(ctx context.Context, id string) (*StoredLead, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            pkKey(dynamoLeadPrefix + id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("leads: dynamodb get lead: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrLeadNotFound
	}
	var item dynamoLead
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("leads: dynamodb unmarshal lead: %w", err)
	}
	return item.toStored(), nil
}

// Insert writes the lead and its email marker atomically. A conditional failure
// on the marker means the email is taken.
func (r *DynamoRepository) Insert(ctx context.Context, rec ContactRecord) (*StoredLead, error) {
	now := r.now().Format(time.RFC3339Nano)
	id := uuid.NewString()
	item := dynamoLead{
		PK:        dynamoLeadPrefix + id,
		ID:        id,
		Email:     NormalizeEmail(rec.Email),
		Name:      rec.Name,
		City:      rec.City,
		Role:      rec.Role,
		Phone:     rec.Phone,
		Message:   rec.Message,
		Source:    rec.Source,
		CreatedAt: now,
		UpdatedAt: now,
	}
	leadAV, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("leads: dynamodb marshal lead: %w", err)
	}
	markerAV, err := attributevalue.MarshalMap(dynamoEmailMarker{PK: dynamoEmailPrefix + item.Email, LeadID: id})
	if err != nil {
		return nil, fmt.Errorf("leads: dynamodb marshal email marker: %w", err)
	}

	ctx, span := r.startSpan(ctx, "insert")
	defer span.End()

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                markerAV,
				ConditionExpression: aws.String("attribute_not_exists(pk)"),
			}},
			{Put: &types.Put{
				TableName:           aws.String(r.tableName),
				Item:                leadAV,
				ConditionExpression: aws.String("attribute_not_exists(pk)"),
			}},
		},
	})
	if err != nil {
		if markerConflict(err) {
			span.SetAttributes(attribute.Bool("leads.unique_violation", true))
			return nil, ErrUniqueViolation
		}
		span.RecordError(err)
		return nil, fmt.Errorf("leads: dynamodb insert: %w", err)
	}
	return item.toStored(), nil
}

// Update sets only the patched attributes on the lead item and returns the
// updated_at it wrote.
func (r *DynamoRepository) Update(ctx context.Context, id string, patch Patch) (time.Time, error) {
	cols, vals := patch.Columns()
	if len(cols) == 0 {
		return time.Time{}, nil
	}

	ctx, span := r.startSpan(ctx, "update")
	defer span.End()
	span.SetAttributes(attribute.StringSlice("leads.columns", cols))

	stamp := r.now()
	names := map[string]string{"#updated_at": "updated_at"}
	values := map[string]types.AttributeValue{
		":updated_at": &types.AttributeValueMemberS{Value: stamp.Format(time.RFC3339Nano)},
	}
	expr := "SET #updated_at = :updated_at"
	for i, col := range cols {
		names["#"+col] = col
		values[":"+col] = &types.AttributeValueMemberS{Value: vals[i]}
		expr += fmt.Sprintf(", #%s = :%s", col, col)
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       pkKey(dynamoLeadPrefix + id),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(pk)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return time.Time{}, ErrLeadNotFound
		}
		span.RecordError(err)
		return time.Time{}, fmt.Errorf("leads: dynamodb update: %w", err)
	}
	return updatedAtFrom(out, stamp), nil
}

// updatedAtFrom reads updated_at from the returned attributes, falling back to
// the value that was written.
func updatedAtFrom(out *dynamodb.UpdateItemOutput, written time.Time) time.Time {
	if out == nil {
		return written
	}
	v, ok := out.Attributes["updated_at"].(*types.AttributeValueMemberS)
	if !ok {
		return written
	}
	ts, err := time.Parse(time.RFC3339Nano, v.Value)
	if err != nil {
		return written
	}
	return ts
}

func (d dynamoLead) toStored() *StoredLead {
	created, _ := time.Parse(time.RFC3339Nano, d.CreatedAt)
	updated, _ := time.Parse(time.RFC3339Nano, d.UpdatedAt)
	return &StoredLead{
		ID:        d.ID,
		Email:     d.Email,
		Name:      d.Name,
		City:      d.City,
		Role:      d.Role,
		Phone:     d.Phone,
		Message:   d.Message,
		Source:    d.Source,
		CreatedAt: created,
		UpdatedAt: updated,
	}
}

func pkKey(pk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: pk},
	}
}

// markerConflict reports whether a cancelled transaction failed on the email marker,
// which is always the first item.
func markerConflict(err error) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return false
	}
	if len(tce.CancellationReasons) == 0 {
		return false
	}
	return aws.ToString(tce.CancellationReasons[0].Code) == "ConditionalCheckFailed"
}
