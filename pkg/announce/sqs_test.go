package announce

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSQSClient struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQSClient) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-123")}, nil
}

func TestSQSAnnouncerSuccess(t *testing.T) {
	client := &fakeSQSClient{}
	a := &sqsAnnouncer{
		id:       "queue-1",
		typ:      TypeSQS,
		queueURL: "https://example.com/queue",
		client:   client,
		log:      noopLogger{},
	}

	err := a.Announce(context.Background(), DealPosted{
		DealID: 42,
		Title:  "Echo Dot",
	})
	if err != nil {
		t.Fatalf("Announce returned error: %v", err)
	}
	if client.input == nil {
		t.Fatalf("client was not called")
	}
	if got := aws.ToString(client.input.QueueUrl); got != "https://example.com/queue" {
		t.Fatalf("QueueUrl = %s", got)
	}
	attr, ok := client.input.MessageAttributes["deal_id"]
	if !ok || attr.StringValue == nil || aws.ToString(attr.StringValue) != "42" {
		t.Fatalf("deal_id attribute missing or wrong: %#v", attr)
	}
	if attr.DataType == nil || aws.ToString(attr.DataType) != "String" {
		t.Fatalf("DataType should be String, got %#v", attr.DataType)
	}
	if client.input.MessageBody == nil || !strings.Contains(aws.ToString(client.input.MessageBody), `"deal_id":42`) {
		t.Fatalf("MessageBody missing deal_id: %s", aws.ToString(client.input.MessageBody))
	}
}

func TestSQSAnnouncerError(t *testing.T) {
	client := &fakeSQSClient{err: errors.New("boom")}
	a := &sqsAnnouncer{
		id:       "queue-1",
		typ:      TypeSQS,
		queueURL: "https://example.com/queue",
		client:   client,
		log:      noopLogger{},
	}

	if err := a.Announce(context.Background(), DealPosted{DealID: 1}); err == nil {
		t.Fatalf("expected error from Announce")
	}
}
