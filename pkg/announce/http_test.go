package announce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPAnnouncerSuccess(t *testing.T) {
	var received DealPosted
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("X-Test"); got != "1" {
			t.Errorf("missing header, got %s", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a, err := newHTTPAnnouncer(context.Background(), AnnouncerConfig{
		ID:   "hook",
		Type: TypeHTTP,
		HTTP: &HTTPAnnouncerConfig{
			URL:            srv.URL,
			Method:         http.MethodPost,
			Headers:        map[string]string{"X-Test": "1"},
			TimeoutSeconds: 2,
		},
	}, nil)
	if err != nil {
		t.Fatalf("newHTTPAnnouncer: %v", err)
	}

	evt := DealPosted{DealID: 7, Title: "Echo Dot", AffiliateURL: "https://link"}
	if err := a.Announce(context.Background(), evt); err != nil {
		t.Fatalf("Announce: %v", err)
	}
	if received.DealID != 7 || received.Title != "Echo Dot" {
		t.Fatalf("server received %+v", received)
	}
}

func TestHTTPAnnouncerErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	a, err := newHTTPAnnouncer(context.Background(), AnnouncerConfig{
		ID:   "hook",
		Type: TypeHTTP,
		HTTP: &HTTPAnnouncerConfig{
			URL:            srv.URL,
			Method:         http.MethodPost,
			TimeoutSeconds: 1,
		},
	}, nil)
	if err != nil {
		t.Fatalf("newHTTPAnnouncer: %v", err)
	}

	if err := a.Announce(context.Background(), DealPosted{}); err == nil {
		t.Fatalf("expected error on non-2xx response")
	}
}
