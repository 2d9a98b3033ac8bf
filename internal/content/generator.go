// Package content produces the channel post text for a deal, either from a
// language-model backend or from built-in templates.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/dealwire-hq/dealwire/internal/domain"
	"github.com/dealwire-hq/dealwire/internal/logger"
)

// State is the generator's operating mode.
type State int32

const (
	// StateLive calls the backend for every post.
	StateLive State = iota
	// StateDegraded renders templates only. The generator moves here when
	// the backend signals an auth or quota failure and stays until an
	// explicit Recheck succeeds.
	StateDegraded
)

func (s State) String() string {
	if s == StateLive {
		return "live"
	}
	return "degraded"
}

// Sentinel failures a Backend reports to trigger degradation. Any other
// backend error is a per-item failure and does not change state.
var (
	ErrAuth  = errors.New("content backend rejected credentials")
	ErrQuota = errors.New("content backend quota exhausted")
)

// Backend is one round trip to a text-generation model.
type Backend interface {
	Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error)
}

const completionMaxTokens = 400

// Generator turns validated candidates into post text. It never returns an
// error: when generation fails, the deal still goes out with template text.
type Generator struct {
	backend Backend
	state   atomic.Int32
	log     logger.Logger
}

// New creates a Generator. A nil backend starts degraded and stays there.
func New(backend Backend, log logger.Logger) *Generator {
	g := &Generator{backend: backend, log: logger.Ensure(log)}
	if backend == nil {
		g.state.Store(int32(StateDegraded))
	}
	return g
}

// State returns the current operating mode.
func (g *Generator) State() State {
	return State(g.state.Load())
}

// Recheck probes the backend with a minimal request and restores live mode
// on success. It reports whether the generator is live afterwards.
func (g *Generator) Recheck(ctx context.Context) bool {
	if g.backend == nil {
		return false
	}
	if g.State() == StateLive {
		return true
	}

	if _, err := g.backend.Complete(ctx, "", "Reply with the single word: ok", 8); err != nil {
		g.log.DebugObj("backend recheck failed", "content", map[string]interface{}{"error": err.Error()})
		return false
	}

	g.state.Store(int32(StateLive))
	g.log.InfoObj("content generation restored", "content", map[string]interface{}{"state": StateLive.String()})
	return true
}

// Generate returns the post text for a candidate. Backend failures fall
// back to template text so a cycle is never blocked on the model.
func (g *Generator) Generate(ctx context.Context, c domain.Candidate, affiliateURL, style string) string {
	if g.State() == StateLive {
		text, err := g.backend.Complete(ctx, systemPrompt(style), dealPrompt(c), completionMaxTokens)
		if err == nil && strings.TrimSpace(text) != "" {
			return withCallToAction(strings.TrimSpace(text), affiliateURL)
		}
		g.handleBackendError(err)
	}
	return withCallToAction(renderTemplate(c, style), affiliateURL)
}

func (g *Generator) handleBackendError(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, ErrAuth) || errors.Is(err, ErrQuota) {
		if g.state.CompareAndSwap(int32(StateLive), int32(StateDegraded)) {
			g.log.WarnObj("content backend unavailable, switching to templates", "content", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return
	}
	g.log.WarnObj("content generation failed for item, using template", "content", map[string]interface{}{
		"error": err.Error(),
	})
}

func systemPrompt(style string) string {
	base := "You write short product deal posts for a Telegram channel. " +
		"Keep it under 80 words, use Markdown, lead with the product and the saving, " +
		"and do not invent facts that are not in the input."
	switch style {
	case "professional":
		return base + " Tone: factual and measured, no emoji."
	case "simple":
		return base + " Tone: plain and minimal, one or two sentences."
	default:
		return base + " Tone: upbeat, a couple of fitting emoji are fine."
	}
}

func dealPrompt(c domain.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Product: %s\nPrice: %s\n", c.Title, c.Price)
	if c.Discount != "" {
		fmt.Fprintf(&b, "Discount: %s\n", c.Discount)
	}
	if c.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", c.Category)
	}
	if c.Rating > 0 {
		fmt.Fprintf(&b, "Rating: %.1f out of 5 (%d reviews)\n", c.Rating, c.ReviewCount)
	}
	if c.Description != "" {
		fmt.Fprintf(&b, "Details: %s\n", c.Description)
	}
	b.WriteString("Write the post. Do not include any link, it is appended separately.")
	return b.String()
}

var fallbackTemplates = map[string][]string{
	"enthusiastic": {
		"🔥 *%s*\n\n💰 Now %s%s\n\nGrab it before the price goes back up!",
		"⚡ Deal alert: *%s*\n\n💰 %s%s\n\nStock moves fast on these.",
		"🎯 *%s*\n\n💰 Yours for %s%s\n\nOne of today's best finds.",
	},
	"professional": {
		"*%s*\n\nCurrent price: %s%s",
		"*%s*\n\nNow available at %s%s",
	},
	"simple": {
		"%s\n\n%s%s",
	},
}

// renderTemplate picks a deterministic variant so repeated runs over the
// same candidate produce the same text.
func renderTemplate(c domain.Candidate, style string) string {
	variants, ok := fallbackTemplates[style]
	if !ok {
		variants = fallbackTemplates["enthusiastic"]
	}
	tmpl := variants[len(c.Title)%len(variants)]

	discount := ""
	if c.Discount != "" {
		discount = fmt.Sprintf(" (%s)", c.Discount)
	}
	return fmt.Sprintf(tmpl, c.Title, c.Price, discount)
}

func withCallToAction(text, affiliateURL string) string {
	if affiliateURL == "" {
		return text
	}
	return fmt.Sprintf("%s\n\n🛒 [Get This Deal](%s)", text, affiliateURL)
}
