package announce

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// snsClient defines the minimal subset of the SNS client used by snsAnnouncer.
type snsClient interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// snsAnnouncer implements the Announcer interface for AWS SNS topics.
type snsAnnouncer struct {
	id       string
	typ      string
	topicARN string
	client   snsClient
	log      Logger
}

// newSNSAnnouncer creates a new SNS announcer with the given configuration.
func newSNSAnnouncer(ctx context.Context, cfg AnnouncerConfig, log Logger) (Announcer, error) {
	if cfg.SNS == nil {
		return nil, fmt.Errorf("announcer %q missing sns configuration", cfg.ID)
	}

	if ctx == nil {
		ctx = context.Background()
	}

	awsCfg, err := loadAWSConfig(ctx, cfg.SNS.Region, cfg.SNS.AccessKeyID, cfg.SNS.SecretAccessKey)
	if err != nil {
		return nil, err
	}

	return &snsAnnouncer{
		id:       cfg.ID,
		typ:      TypeSNS,
		topicARN: cfg.SNS.TopicARN,
		client:   sns.NewFromConfig(awsCfg),
		log:      ensureLogger(log),
	}, nil
}

func (s *snsAnnouncer) ID() string   { return s.id }
func (s *snsAnnouncer) Type() string { return s.typ }

// Announce publishes the event to the configured SNS topic.
func (s *snsAnnouncer) Announce(ctx context.Context, evt DealPosted) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	input := &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"deal_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(strconv.FormatInt(evt.DealID, 10)),
			},
		},
	}

	if _, err := s.client.Publish(ctx, input); err != nil {
		s.log.ErrorObj("sns announcer publish failed", "announcer_sns_error", map[string]any{
			"announcer_id": s.id,
			"error":        err.Error(),
		})
		return fmt.Errorf("publish to sns: %w", err)
	}
	s.log.DebugObj("sns announcer delivered event", "announcer_sns_delivery", map[string]any{
		"announcer_id": s.id,
	})
	return nil
}
