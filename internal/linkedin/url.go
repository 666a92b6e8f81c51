// Package linkedin holds LinkedIn identity handling and the single extraction
// gate that turns raw scrape payloads into typed fields.
package linkedin

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// urnIDPrefix marks provider-issued permanent profile IDs. URN-style IDs are
// case-sensitive and never change; human-readable handles can.
const urnIDPrefix = "ACoAAA"

var (
	hostRe   = regexp.MustCompile(`(?i)^https?://([a-z0-9-]+\.)?linkedin\.com`)
	handleRe = regexp.MustCompile(`/in/([^/?]+)`)
)

// NormalizeURL canonicalizes a LinkedIn profile URL. Case of the path is
// preserved because URN-style identifiers embedded in exported URLs are
// case-sensitive, and query parameters (e.g. miniProfileUrn) are kept since
// the scraping provider needs them.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return u
	}
	if !strings.Contains(strings.ToLower(u), "linkedin.com/in/") {
		return u
	}
	if !strings.HasPrefix(u, "http") {
		u = "https://" + u
	}
	u = hostRe.ReplaceAllString(u, "https://www.linkedin.com")
	if !strings.Contains(u, "?") {
		u = strings.TrimSuffix(u, "/")
	}
	return u
}

// HandleFromURL extracts the profile handle (or embedded URN) from a profile
// URL, preserving case.
func HandleFromURL(u string) string {
	m := handleRe.FindStringSubmatch(u)
	if m == nil {
		return ""
	}
	return m[1]
}

// IsURNStyleID reports whether id is a permanent URN-style identifier rather
// than a mutable handle.
func IsURNStyleID(id string) bool {
	return strings.HasPrefix(id, urnIDPrefix) && len(id) > 30
}

// CanonicalHandle normalizes a handle for reconciliation lookups. The
// provider occasionally returns handles with altered Unicode composition, so
// both sides of a match go through NFC first. URN-style IDs are matched
// exactly (they are case-sensitive by contract).
func CanonicalHandle(id string) string {
	id = norm.NFC.String(id)
	if IsURNStyleID(id) {
		return id
	}
	return strings.ToLower(id)
}

// ProfileIDFrom extracts the canonical profile ID from a raw profile record.
// Preference order: the URN-style profileId field, an id field that carries a
// URN, then the mutable publicIdentifier as a last resort.
func ProfileIDFrom(profile map[string]any) string {
	if id, ok := profile["profileId"].(string); ok && id != "" {
		return id
	}
	if id, ok := profile["id"].(string); ok && IsURNStyleID(id) {
		return id
	}
	if id, ok := profile["publicIdentifier"].(string); ok && id != "" {
		return id
	}
	return ""
}
