package content

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dealwire-hq/dealwire/internal/domain"
)

type stubBackend struct {
	text  string
	err   error
	calls int
}

func (s *stubBackend) Complete(_ context.Context, _, _ string, _ int) (string, error) {
	s.calls++
	return s.text, s.err
}

func testDeal() domain.Candidate {
	return domain.Candidate{
		Title:    "Echo Dot (5th Gen)",
		Price:    "$29.99",
		Discount: "40% off",
		Category: "electronics",
	}
}

func TestGenerateUsesBackendWhenLive(t *testing.T) {
	backend := &stubBackend{text: "Great smart speaker at a rare price."}
	g := New(backend, nil)

	got := g.Generate(context.Background(), testDeal(), "https://www.amazon.com/dp/B08N5WRWNW?tag=t-20", "enthusiastic")
	if !strings.Contains(got, "Great smart speaker") {
		t.Fatalf("backend text missing from %q", got)
	}
	if !strings.Contains(got, "[Get This Deal](https://www.amazon.com/dp/B08N5WRWNW?tag=t-20)") {
		t.Fatalf("call to action missing from %q", got)
	}
	if g.State() != StateLive {
		t.Fatalf("state = %v after success", g.State())
	}
}

func TestNilBackendStartsDegraded(t *testing.T) {
	g := New(nil, nil)
	if g.State() != StateDegraded {
		t.Fatalf("state = %v, want degraded", g.State())
	}

	got := g.Generate(context.Background(), testDeal(), "https://link", "simple")
	if !strings.Contains(got, "Echo Dot (5th Gen)") || !strings.Contains(got, "$29.99") {
		t.Fatalf("template output incomplete: %q", got)
	}
	if g.Recheck(context.Background()) {
		t.Fatal("Recheck without a backend should stay degraded")
	}
}

func TestAuthErrorDegradesForRemainderOfRun(t *testing.T) {
	backend := &stubBackend{err: ErrAuth}
	g := New(backend, nil)

	got := g.Generate(context.Background(), testDeal(), "https://link", "enthusiastic")
	if got == "" {
		t.Fatal("degraded generation returned empty text")
	}
	if g.State() != StateDegraded {
		t.Fatalf("state = %v after auth failure", g.State())
	}

	calls := backend.calls
	g.Generate(context.Background(), testDeal(), "https://link", "enthusiastic")
	if backend.calls != calls {
		t.Fatal("backend called again while degraded")
	}
}

func TestQuotaErrorDegrades(t *testing.T) {
	g := New(&stubBackend{err: ErrQuota}, nil)
	g.Generate(context.Background(), testDeal(), "https://link", "enthusiastic")
	if g.State() != StateDegraded {
		t.Fatalf("state = %v after quota failure", g.State())
	}
}

func TestTransientErrorDoesNotDegrade(t *testing.T) {
	backend := &stubBackend{err: errors.New("upstream timeout")}
	g := New(backend, nil)

	got := g.Generate(context.Background(), testDeal(), "https://link", "enthusiastic")
	if !strings.Contains(got, "Echo Dot (5th Gen)") {
		t.Fatalf("fallback text incomplete: %q", got)
	}
	if g.State() != StateLive {
		t.Fatalf("state = %v after transient failure, want live", g.State())
	}

	calls := backend.calls
	g.Generate(context.Background(), testDeal(), "https://link", "enthusiastic")
	if backend.calls != calls+1 {
		t.Fatal("backend not retried on the next item")
	}
}

func TestRecheckRestoresLive(t *testing.T) {
	backend := &stubBackend{err: ErrQuota}
	g := New(backend, nil)
	g.Generate(context.Background(), testDeal(), "https://link", "enthusiastic")
	if g.State() != StateDegraded {
		t.Fatalf("state = %v, want degraded", g.State())
	}

	backend.err = nil
	backend.text = "ok"
	if !g.Recheck(context.Background()) {
		t.Fatal("Recheck should succeed once the backend recovers")
	}
	if g.State() != StateLive {
		t.Fatalf("state = %v after recheck, want live", g.State())
	}
}

func TestRenderTemplateDeterministic(t *testing.T) {
	c := testDeal()
	first := renderTemplate(c, "enthusiastic")
	for i := 0; i < 5; i++ {
		if got := renderTemplate(c, "enthusiastic"); got != first {
			t.Fatalf("template varies across runs: %q vs %q", got, first)
		}
	}

	styles := []string{"enthusiastic", "professional", "simple", "unknown"}
	for _, style := range styles {
		got := renderTemplate(c, style)
		if !strings.Contains(got, c.Title) || !strings.Contains(got, c.Price) {
			t.Fatalf("style %q dropped fields: %q", style, got)
		}
		if !strings.Contains(got, "40% off") {
			t.Fatalf("style %q dropped discount: %q", style, got)
		}
	}
}

func TestWithCallToActionOmitsEmptyLink(t *testing.T) {
	if got := withCallToAction("text", ""); got != "text" {
		t.Fatalf("empty link altered text: %q", got)
	}
}
