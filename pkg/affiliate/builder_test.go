package affiliate

import (
	"strings"
	"testing"
)

func TestBuildCanonicalizesDPLinks(t *testing.T) {
	b := NewBuilder("dealwire-21", "US", nil)

	got := b.Build("https://www.amazon.com/Some-Product-Name/dp/B08N5WRWNW/ref=sr_1_3?keywords=x", "US")
	want := "https://amazon.com/dp/B08N5WRWNW?tag=dealwire-21&linkCode=as2&camp=1789&creative=9325"
	if got != want {
		t.Fatalf("Build = %q, want %q", got, want)
	}
}

func TestBuildPreservesMarketplaceDomain(t *testing.T) {
	b := NewBuilder("dealwire-21", "US", nil)

	cases := map[string]string{
		"https://www.amazon.co.uk/dp/B000000001":     "amazon.co.uk",
		"https://www.amazon.com.au/dp/B000000001":    "amazon.com.au",
		"https://amazon.de/gp/product/B000000001":    "amazon.de",
		"https://example.net/dp/B000000001/whatever": "www.amazon.com",
	}
	for rawURL, domain := range cases {
		got := b.Build(rawURL, "")
		if !strings.HasPrefix(got, "https://"+domain+"/dp/B000000001?") {
			t.Fatalf("Build(%q) = %q, want domain %q", rawURL, got, domain)
		}
	}
}

func TestBuildFallsBackToTagAppend(t *testing.T) {
	b := NewBuilder("dealwire-21", "US", nil)

	got := b.Build("https://amazon.com/deals", "US")
	if !strings.HasPrefix(got, "https://amazon.com/deals?tag=dealwire-21") {
		t.Fatalf("Build = %q, want tag appended with ?", got)
	}

	got = b.Build("https://amazon.com/deals?page=2", "US")
	if !strings.HasPrefix(got, "https://amazon.com/deals?page=2&tag=dealwire-21") {
		t.Fatalf("Build = %q, want tag appended with &", got)
	}
}

func TestBuildEmptyURL(t *testing.T) {
	b := NewBuilder("dealwire-21", "US", nil)
	if got := b.Build("", "US"); got != "" {
		t.Fatalf("Build(\"\") = %q, want empty", got)
	}
}

func TestTagForRegionalOverrides(t *testing.T) {
	b := NewBuilder("dealwire-21", "US", map[string]string{
		"UK": "dealwire-gb-21",
		"IN": "dealwire-in-21",
	})

	if got := b.TagFor("uk"); got != "dealwire-gb-21" {
		t.Fatalf("TagFor(uk) = %q", got)
	}
	if got := b.TagFor("DE"); got != "dealwire-21" {
		t.Fatalf("TagFor(DE) = %q, want default tag", got)
	}
	if got := b.TagFor(""); got != "dealwire-21" {
		t.Fatalf("TagFor(\"\") = %q, want default region tag", got)
	}
}

func TestExtractASIN(t *testing.T) {
	cases := map[string]string{
		"https://amazon.com/dp/B08N5WRWNW":            "B08N5WRWNW",
		"https://amazon.com/gp/product/B07XJ8C8F5":    "B07XJ8C8F5",
		"https://amazon.com/dp/short":                 "",
		"https://amazon.com/deals":                    "",
		"https://amazon.in/Thing/dp/B000000001?ref=x": "B000000001",
	}
	for rawURL, want := range cases {
		if got := ExtractASIN(rawURL); got != want {
			t.Fatalf("ExtractASIN(%q) = %q, want %q", rawURL, got, want)
		}
	}
}
