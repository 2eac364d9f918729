package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/ignite/engagement-tracker/internal/domain"
)

// SQSAPI is the part of the SQS client the publisher uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// webhookMessage is the body delivered to the webhook worker.
type webhookMessage struct {
	JobID      string                   `json:"job_id"`
	WebhookID  string                   `json:"webhook_id"`
	WebhookURL string                   `json:"webhook_url"`
	Event      domain.TrackingEventType `json:"event"`
	EventID    string                   `json:"event_id"`
	Timestamp  time.Time                `json:"timestamp"`
}

// SQSPublisher implements reaction.Queue on an SQS queue.
type SQSPublisher struct {
	client   SQSAPI
	queueURL string
}

func NewSQSPublisher(client SQSAPI, queueURL string) *SQSPublisher {
	return &SQSPublisher{client: client, queueURL: queueURL}
}

func (p *SQSPublisher) Enqueue(ctx context.Context, job domain.WebhookJob) error {
	body, err := json.Marshal(webhookMessage{
		JobID:      job.ID,
		WebhookID:  job.WebhookID,
		WebhookURL: job.WebhookURL,
		Event:      job.Event,
		EventID:    job.EventID,
		Timestamp:  job.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal webhook job: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event": {DataType: aws.String("String"), StringValue: aws.String(string(job.Event))},
		},
	})
	if err != nil {
		return fmt.Errorf("publish webhook job: %w", err)
	}
	return nil
}
