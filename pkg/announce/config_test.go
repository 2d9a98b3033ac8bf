package announce

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRegistryEnabledFilter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "announcers.yaml")
	raw := `
announcers:
  - id: hook1
    type: http
    enabled: false
    http:
      url: https://example.com
  - id: hook2
    type: http
    enabled: true
    http:
      url: https://example.com/2
  - id: queue1
    type: sqs
    sqs:
      uri: https://sqs.us-east-1.amazonaws.com/123/deals
      region: us-east-1
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	enabled := reg.Enabled()
	if len(enabled) != 2 {
		t.Fatalf("expected 2 enabled announcers, got %#v", enabled)
	}
	if enabled[0].ID != "hook2" || enabled[1].ID != "queue1" {
		t.Fatalf("wrong enabled set: %#v", enabled)
	}

	if _, ok := reg.ByID("hook1"); !ok {
		t.Fatalf("ByID(hook1) not found")
	}
	if _, ok := reg.ByID("missing"); ok {
		t.Fatalf("ByID(missing) unexpectedly found")
	}
}

func TestLoadRegistryDefaultsHTTPFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "announcers.yaml")
	raw := `
announcers:
  - id: hook
    type: http
    http:
      url: https://example.com
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	cfg, ok := reg.ByID("hook")
	if !ok {
		t.Fatalf("hook not found")
	}
	if cfg.HTTP.Method != "POST" {
		t.Fatalf("default method = %q", cfg.HTTP.Method)
	}
	if cfg.HTTP.TimeoutSeconds != httpDefaultTimeoutSeconds {
		t.Fatalf("default timeout = %d", cfg.HTTP.TimeoutSeconds)
	}
}

func TestLoadRegistryRejectsDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "announcers.yaml")
	raw := `
announcers:
  - id: hook
    type: http
    http:
      url: https://example.com
  - id: hook
    type: http
    http:
      url: https://example.com/2
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if _, err := LoadRegistry(path); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestValidateConfigRejectsIncompleteEntries(t *testing.T) {
	cases := []struct {
		name string
		cfg  AnnouncerConfig
	}{
		{"missing id", AnnouncerConfig{Type: TypeHTTP}},
		{"missing type", AnnouncerConfig{ID: "a"}},
		{"http without block", AnnouncerConfig{ID: "a", Type: TypeHTTP}},
		{"sqs without region", AnnouncerConfig{ID: "a", Type: TypeSQS, SQS: &SQSAnnouncerConfig{QueueURL: "u"}}},
		{"sns without topic", AnnouncerConfig{ID: "a", Type: TypeSNS, SNS: &SNSAnnouncerConfig{Region: "us-east-1"}}},
		{"pubsub without project", AnnouncerConfig{ID: "a", Type: TypePubSub, PubSub: &PubSubAnnouncerConfig{Topic: "t"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateConfig(tc.cfg); err == nil {
				t.Fatalf("expected validation error for %#v", tc.cfg)
			}
		})
	}
}
