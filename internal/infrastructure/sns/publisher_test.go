package sns

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSNS struct{ mock.Mock }

func (m *mockSNS) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*sns.PublishOutput)
	return out, args.Error(1)
}

func TestPublish_SetsTopicAndAttribute(t *testing.T) {
	client := &mockSNS{}
	client.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		return *in.TopicArn == "arn:topic" &&
			*in.Message == `{"action":"LOGIN_SUCCESS"}` &&
			*in.MessageAttributes["event_type"].StringValue == "LOGIN_SUCCESS"
	})).Return(&sns.PublishOutput{}, nil)

	p := newPublisher(client, "arn:topic")
	err := p.Publish(context.Background(), "LOGIN_SUCCESS", map[string]string{"action": "LOGIN_SUCCESS"})
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestPublish_Error(t *testing.T) {
	client := &mockSNS{}
	client.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	err := newPublisher(client, "arn:topic").Publish(context.Background(), "X", struct{}{})
	assert.ErrorContains(t, err, "sns publish")
}

func TestNewPublisher_RequiresTopic(t *testing.T) {
	_, err := NewPublisher(aws.Config{Region: "us-east-1"}, nil, "")
	assert.Error(t, err)

	p, err := NewPublisher(aws.Config{Region: "us-east-1"}, aws.String("http://localhost:4566"), "arn:topic")
	require.NoError(t, err)
	assert.NotNil(t, p)
}
