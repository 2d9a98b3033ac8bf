package announce

import (
	"context"
	"errors"
	"fmt"
)

// Announcer delivers events to one downstream sink (HTTP hook, queue, topic).
type Announcer interface {
	ID() string
	Type() string
	Announce(ctx context.Context, evt DealPosted) error
}

// Fanout dispatches events to all configured announcers.
type Fanout struct {
	announcers []Announcer
}

// NewFanout builds a dispatcher that fans out events across announcers.
func NewFanout(sinks []Announcer) *Fanout {
	cp := make([]Announcer, 0, len(sinks))
	for _, a := range sinks {
		if a == nil {
			continue
		}
		cp = append(cp, a)
	}
	return &Fanout{announcers: cp}
}

// Announce forwards the event to every registered announcer. It returns the
// number of announcers that handled the event and the joined failures.
func (f *Fanout) Announce(ctx context.Context, evt DealPosted) (int, error) {
	if f == nil || len(f.announcers) == 0 {
		return 0, nil
	}

	var errs []error
	successful := 0
	for _, a := range f.announcers {
		if err := a.Announce(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("%s announcer[%s]: %w", a.Type(), a.ID(), err))
		} else {
			successful++
		}
	}
	return successful, errors.Join(errs...)
}

// Size returns the number of active announcers.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.announcers)
}
