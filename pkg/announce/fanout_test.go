package announce

import (
	"context"
	"errors"
	"testing"
)

type stubAnnouncer struct {
	id    string
	typ   string
	err   error
	calls int
}

func (s *stubAnnouncer) ID() string   { return s.id }
func (s *stubAnnouncer) Type() string { return s.typ }
func (s *stubAnnouncer) Announce(context.Context, DealPosted) error {
	s.calls++
	return s.err
}

func TestFanoutAnnounceAggregatesErrors(t *testing.T) {
	fanout := NewFanout([]Announcer{
		&stubAnnouncer{id: "ok", typ: "http"},
		&stubAnnouncer{id: "bad", typ: "http", err: errors.New("failed")},
	})

	count, err := fanout.Announce(context.Background(), DealPosted{})
	if count != 1 {
		t.Fatalf("expected 1 success, got %d", count)
	}
	if err == nil {
		t.Fatalf("expected aggregated error")
	}
}

func TestFanoutSkipsNilAnnouncers(t *testing.T) {
	fanout := NewFanout([]Announcer{nil, &stubAnnouncer{id: "a", typ: "http"}})
	if fanout.Size() != 1 {
		t.Fatalf("Size = %d, want 1", fanout.Size())
	}
}

func TestEmptyFanoutIsNoop(t *testing.T) {
	var fanout *Fanout
	count, err := fanout.Announce(context.Background(), DealPosted{})
	if count != 0 || err != nil {
		t.Fatalf("nil fanout: count=%d err=%v", count, err)
	}
}

func TestBuildAllWithDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	sinks, err := BuildAll(context.Background(), reg, []AnnouncerConfig{
		{ID: "hook", Type: TypeHTTP, HTTP: &HTTPAnnouncerConfig{URL: "https://example.com"}},
	}, nil)
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	if len(sinks) != 1 {
		t.Fatalf("expected 1 announcer, got %d", len(sinks))
	}
}

func TestBuildAllRejectsUnknownType(t *testing.T) {
	reg := DefaultRegistry()
	if _, err := BuildAll(context.Background(), reg, []AnnouncerConfig{
		{ID: "x", Type: "carrier-pigeon"},
	}, nil); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}
