package announce

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type fakeSNSClient struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNSClient) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-123")}, nil
}

func TestSNSAnnouncerSuccess(t *testing.T) {
	client := &fakeSNSClient{}
	a := &snsAnnouncer{
		id:       "topic-1",
		typ:      TypeSNS,
		topicARN: "arn:aws:sns:::deals",
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
	if got := aws.ToString(client.input.TopicArn); got != "arn:aws:sns:::deals" {
		t.Fatalf("TopicArn = %s", got)
	}
	attr, ok := client.input.MessageAttributes["deal_id"]
	if !ok || attr.StringValue == nil || aws.ToString(attr.StringValue) != "42" {
		t.Fatalf("deal_id attribute missing or wrong: %#v", attr)
	}
	if client.input.Message == nil || !strings.Contains(aws.ToString(client.input.Message), `"title":"Echo Dot"`) {
		t.Fatalf("Message missing title: %s", aws.ToString(client.input.Message))
	}
}

func TestSNSAnnouncerError(t *testing.T) {
	client := &fakeSNSClient{err: errors.New("boom")}
	a := &snsAnnouncer{
		id:       "topic-1",
		typ:      TypeSNS,
		topicARN: "arn:aws:sns:::deals",
		client:   client,
		log:      noopLogger{},
	}

	if err := a.Announce(context.Background(), DealPosted{DealID: 1}); err == nil {
		t.Fatalf("expected error from Announce")
	}
}
