package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"policyportal/internal/types"
)

// SQSSender is the SendMessage subset of *sqs.Client.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// QueueMessage is the body published for the portal's in-app notification
// consumer.
type QueueMessage struct {
	MessageID        string                     `json:"message_id"`
	RecipientID      string                     `json:"recipient_id"`
	NotificationType types.NotificationType     `json:"notification_type"`
	Priority         types.Priority             `json:"priority"`
	Category         types.NotificationCategory `json:"category"`
	Subject          string                     `json:"subject"`
	Body             string                     `json:"body"`
	RelatedSubjectID string                     `json:"related_subject_id"`
	SubjectType      types.SubjectType          `json:"subject_type,omitempty"`
	Stage            types.Stage                `json:"stage,omitempty"`
	DueDate          *time.Time                 `json:"due_date,omitempty"`
	URL              string                     `json:"url,omitempty"`
	RunID            string                     `json:"run_id,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
}

// QueueChannel is a primary channel that hands notifications to the portal
// through an SQS queue.
type QueueChannel struct {
	client   SQSSender
	queueURL string
	clock    types.Clock
	logger   types.Logger
}

func NewQueueChannel(client SQSSender, queueURL string, clock types.Clock, logger types.Logger) *QueueChannel {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = types.NewLogger(nil)
	}
	return &QueueChannel{client: client, queueURL: queueURL, clock: clock, logger: logger}
}

func (q *QueueChannel) Type() types.ChannelType { return types.ChannelQueue }

// Deliver publishes one message. The SQS message ID is returned as the
// provider message ID.
func (q *QueueChannel) Deliver(ctx context.Context, intent *types.NotificationIntent) (*types.DeliveryResult, error) {
	msg := QueueMessage{
		MessageID:        uuid.NewString(),
		RecipientID:      intent.RecipientID,
		NotificationType: intent.NotificationType,
		Priority:         PriorityFor(intent.NotificationType, intent.Stage),
		Category:         CategoryFor(intent.NotificationType),
		Subject:          intent.Subject,
		Body:             intent.Body,
		RelatedSubjectID: intent.RelatedSubjectID,
		SubjectType:      intent.SubjectType,
		Stage:            intent.Stage,
		DueDate:          dueDate(intent),
		RunID:            types.GetRunID(ctx),
		CreatedAt:        q.clock.Now().UTC(),
	}
	if intent.Obligation != nil {
		msg.URL = intent.Obligation.URL
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("queue channel: failed to marshal message: %w", err)
	}

	out, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"notification_type": {DataType: aws.String("String"), StringValue: aws.String(string(msg.NotificationType))},
			"priority":          {DataType: aws.String("String"), StringValue: aws.String(string(msg.Priority))},
		},
	})
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamQueue,
			fmt.Sprintf("failed to send notification to %s", q.queueURL), err)
	}

	providerID := msg.MessageID
	if out != nil && out.MessageId != nil {
		providerID = *out.MessageId
	}
	q.logger.Info("notification queued",
		"message_id", providerID,
		"recipient_id", msg.RecipientID,
		"notification_type", string(msg.NotificationType),
	)
	return &types.DeliveryResult{ProviderMessageID: providerID, Status: statusSent}, nil
}

var _ types.NotificationChannel = (*QueueChannel)(nil)
