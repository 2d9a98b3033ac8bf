package announce

import (
	"context"
	"os"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
)

func TestPubSubAnnouncerPublishes(t *testing.T) {
	// Use the in-memory Pub/Sub emulator.
	server := pstest.NewServer()
	defer server.Close()
	defer os.Unsetenv("PUBSUB_EMULATOR_HOST")
	os.Setenv("PUBSUB_EMULATOR_HOST", server.Addr)

	ctx := context.Background()
	client, err := pubsub.NewClient(ctx, "test-project")
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	if _, err := client.CreateTopic(ctx, "deals-posted"); err != nil {
		t.Fatalf("create topic: %v", err)
	}

	a, err := newPubSubAnnouncer(ctx, AnnouncerConfig{
		ID:   "gcp",
		Type: TypePubSub,
		PubSub: &PubSubAnnouncerConfig{
			ProjectID: "test-project",
			Topic:     "deals-posted",
		},
	}, nil)
	if err != nil {
		t.Fatalf("newPubSubAnnouncer: %v", err)
	}

	err = a.Announce(ctx, DealPosted{
		DealID: 42,
		Title:  "Echo Dot",
	})
	if err != nil {
		t.Fatalf("Announce: %v", err)
	}
}
