package announce

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Builder creates an Announcer from a config entry.
type Builder func(ctx context.Context, cfg AnnouncerConfig, log Logger) (Announcer, error)

// Registry maps announcer types to builders.
type Registry interface {
	Register(typ string, builder Builder)
	AnnouncerFor(ctx context.Context, cfg AnnouncerConfig, log Logger) (Announcer, error)
}

type registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry returns a registry with optional pre-registered builders.
func NewRegistry(builders map[string]Builder) Registry {
	r := &registry{
		builders: make(map[string]Builder),
	}
	for typ, b := range builders {
		r.Register(typ, b)
	}
	return r
}

// Register associates a builder with an announcer type.
func (r *registry) Register(typ string, builder Builder) {
	if typ = strings.TrimSpace(strings.ToLower(typ)); typ == "" || builder == nil {
		return
	}

	r.mu.Lock()
	r.builders[typ] = builder
	r.mu.Unlock()
}

// AnnouncerFor returns the announcer built for the provided config.
func (r *registry) AnnouncerFor(ctx context.Context, cfg AnnouncerConfig, log Logger) (Announcer, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("announcer %q has no type configured", cfg.ID)
	}

	r.mu.RLock()
	builder := r.builders[strings.ToLower(cfg.Type)]
	r.mu.RUnlock()

	if builder == nil {
		return nil, fmt.Errorf("no announcer registered for type %q", cfg.Type)
	}
	return builder(ctx, cfg, log)
}

// DefaultRegistry wires up known announcers.
func DefaultRegistry() Registry {
	builders := map[string]Builder{
		TypeHTTP:   newHTTPAnnouncer,
		TypeSQS:    newSQSAnnouncer,
		TypeSNS:    newSNSAnnouncer,
		TypePubSub: newPubSubAnnouncer,
	}
	return NewRegistry(builders)
}

// BuildAll instantiates announcers for configs using the registry.
func BuildAll(ctx context.Context, reg Registry, cfgs []AnnouncerConfig, log Logger) ([]Announcer, error) {
	if reg == nil || len(cfgs) == 0 {
		return nil, nil
	}

	var sinks []Announcer
	for _, cfg := range cfgs {
		a, err := reg.AnnouncerFor(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, a)
	}
	return sinks, nil
}
