package announce

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// pubsubAnnouncer implements the Announcer interface for GCP Pub/Sub.
type pubsubAnnouncer struct {
	id     string
	typ    string
	client *pubsub.Client
	topic  *pubsub.Topic
	log    Logger
}

// newPubSubAnnouncer creates a new Pub/Sub announcer with the given
// configuration.
func newPubSubAnnouncer(ctx context.Context, cfg AnnouncerConfig, log Logger) (Announcer, error) {
	if cfg.PubSub == nil {
		return nil, fmt.Errorf("announcer %q missing pubsub configuration", cfg.ID)
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var opts []option.ClientOption
	if cfg.PubSub.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.PubSub.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	return &pubsubAnnouncer{
		id:     cfg.ID,
		typ:    TypePubSub,
		client: client,
		topic:  client.Topic(cfg.PubSub.Topic),
		log:    ensureLogger(log),
	}, nil
}

func (p *pubsubAnnouncer) ID() string   { return p.id }
func (p *pubsubAnnouncer) Type() string { return p.typ }

// Announce publishes the event to the configured topic and waits for the
// server acknowledgment.
func (p *pubsubAnnouncer) Announce(ctx context.Context, evt DealPosted) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"deal_id": strconv.FormatInt(evt.DealID, 10),
		},
	})
	if _, err := result.Get(ctx); err != nil {
		p.log.ErrorObj("pubsub announcer publish failed", "announcer_pubsub_error", map[string]any{
			"announcer_id": p.id,
			"error":        err.Error(),
		})
		return fmt.Errorf("publish to pubsub: %w", err)
	}
	p.log.DebugObj("pubsub announcer delivered event", "announcer_pubsub_delivery", map[string]any{
		"announcer_id": p.id,
	})
	return nil
}

// Close releases the underlying client. The fanout does not own announcer
// lifecycles, so the caller that built the announcers closes them.
func (p *pubsubAnnouncer) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
