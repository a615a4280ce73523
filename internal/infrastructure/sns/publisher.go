package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// Publisher fans events out to an SNS topic.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

type snsAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type publisher struct {
	client   snsAPI
	topicARN string
}

// NewPublisher builds a topic publisher. It fails when no topic is configured.
func NewPublisher(awsCfg aws.Config, endpoint *string, topicARN string) (Publisher, error) {
	if topicARN == "" {
		return nil, fmt.Errorf("AUDIT_TOPIC_ARN not set")
	}
	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if endpoint != nil {
			o.BaseEndpoint = endpoint
		}
	})
	return newPublisher(client, topicARN), nil
}

func newPublisher(client snsAPI, topicARN string) *publisher {
	return &publisher{client: client, topicARN: topicARN}
}

// Publish sends payload as JSON with the event type as a message attribute so
// subscribers can filter on it.
func (p *publisher) Publish(ctx context.Context, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sns payload: %w", err)
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(eventType)},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
