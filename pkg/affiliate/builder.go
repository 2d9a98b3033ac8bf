package affiliate

import (
	"fmt"
	"regexp"
	"strings"
)

// Package affiliate turns raw marketplace product URLs into tagged
// affiliate links. Building is a pure transform and never fails: the
// worst case appends the tag to the original URL unchanged.

var (
	dpPattern        = regexp.MustCompile(`/dp/([A-Z0-9]{10})`)
	gpProductPattern = regexp.MustCompile(`/gp/product/([A-Z0-9]{10})`)
)

// knownDomains is checked in order so that longer variants (amazon.com.au)
// win over their prefixes (amazon.com).
var knownDomains = []string{
	"amazon.co.uk", "amazon.com.au", "amazon.com.br", "amazon.com.mx",
	"amazon.co.jp", "amazon.de", "amazon.fr", "amazon.it", "amazon.es",
	"amazon.ca", "amazon.in", "amazon.com",
}

// Builder produces affiliate links with per-region associate tags.
type Builder struct {
	tags          map[string]string
	defaultTag    string
	defaultRegion string
}

// NewBuilder creates a Builder. regionTags may override the default tag
// for specific regions; missing regions fall back to defaultTag.
func NewBuilder(defaultTag, defaultRegion string, regionTags map[string]string) *Builder {
	tags := make(map[string]string, len(regionTags))
	for region, tag := range regionTags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags[strings.ToUpper(strings.TrimSpace(region))] = tag
		}
	}
	if defaultRegion = strings.ToUpper(strings.TrimSpace(defaultRegion)); defaultRegion == "" {
		defaultRegion = "US"
	}
	return &Builder{
		tags:          tags,
		defaultTag:    strings.TrimSpace(defaultTag),
		defaultRegion: defaultRegion,
	}
}

// Build returns the affiliate link for a raw product URL. When an ASIN can
// be extracted the link is rebuilt in canonical /dp/ form on the original
// marketplace domain; otherwise the tag is appended to the URL as-is.
func (b *Builder) Build(rawURL, region string) string {
	if rawURL == "" {
		return ""
	}
	tag := b.TagFor(region)

	if asin := ExtractASIN(rawURL); asin != "" {
		domain := marketplaceDomain(rawURL)
		return fmt.Sprintf("https://%s/dp/%s?tag=%s&linkCode=as2&camp=1789&creative=9325", domain, asin, tag)
	}

	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%stag=%s&linkCode=as2&camp=1789&creative=9325", rawURL, sep, tag)
}

// TagFor returns the associate tag for a region, falling back to the
// builder's default tag.
func (b *Builder) TagFor(region string) string {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = b.defaultRegion
	}
	if tag, ok := b.tags[region]; ok {
		return tag
	}
	return b.defaultTag
}

// ExtractASIN pulls the 10-character product code out of /dp/ or
// /gp/product/ style URLs. Returns "" when none is present.
func ExtractASIN(rawURL string) string {
	if m := dpPattern.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	if m := gpProductPattern.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

// marketplaceDomain preserves the marketplace the raw URL pointed at.
func marketplaceDomain(rawURL string) string {
	for _, d := range knownDomains {
		if strings.Contains(rawURL, d) {
			return d
		}
	}
	return "www.amazon.com"
}
