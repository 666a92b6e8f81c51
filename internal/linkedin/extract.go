package linkedin

import (
	"regexp"
	"strings"

	"github.com/sells-group/icp-cli/internal/model"
)

// The scraping provider sometimes swaps the title and company fields on a
// position, leaving a duration string ("8 yrs 1 mo") or an employment type
// ("Full-time") where the company name belongs. Extraction detects and
// corrects that before anything downstream sees the fields.

var durationRe = regexp.MustCompile(`(?i)\b\d*\s*(yrs?|mos?|years?|months?)\b`)

var employmentTypes = []string{
	"full-time",
	"part-time",
	"contract",
	"self-employed",
	"freelance",
}

var orgTokens = []string{
	"university",
	"inc",
	"llc",
	"corp",
	"solutions",
	"technologies",
	"consulting",
}

// position is the typed view of one raw positions[] element.
type position struct {
	Title       string
	Company     string
	Description string
	Current     bool // end date absent means the position is held today
}

// ExtractFields is the only reader of raw profile payloads. Everything
// downstream (embedding text, classification context, persisted lead fields)
// consumes its output.
func ExtractFields(profile map[string]any) model.ExtractedFields {
	if len(profile) == 0 {
		return model.ExtractedFields{}
	}

	positions := parsePositions(profile["positions"])

	var fields model.ExtractedFields
	fields.Name = buildName(profile)
	fields.Headline = stringField(profile, "headline")
	fields.Location = firstStringField(profile, "geoLocationName", "locationName")
	if n, ok := profile["followerCount"].(float64); ok {
		fields.FollowerCount = int(n)
	}

	fields.CurrentJobTitles = currentTitles(positions)
	fields.Company = primaryCompany(positions, stringField(profile, "companyName"))

	// Swap correction: a junk company slot paired with an org-looking title
	// means the provider crossed the fields. Promote the title to company and
	// drop it from the title list.
	for _, pos := range positions {
		if !pos.Current || pos.Title == "" {
			continue
		}
		if isJunkCompany(pos.Company) && looksLikeOrgName(pos.Title) {
			fields.Company = pos.Title
			fields.CurrentJobTitles = removeTitle(fields.CurrentJobTitles, pos.Title)
			break
		}
	}
	if isJunkCompany(fields.Company) {
		fields.Company = ""
	}

	return fields
}

// currentTitles collects titles of all current positions in order, falling
// back to the first listed position's title when none are current.
func currentTitles(positions []position) []string {
	var titles []string
	for _, pos := range positions {
		if pos.Current && pos.Title != "" && !isJunkTitle(pos.Title) {
			titles = append(titles, pos.Title)
		}
	}
	if len(titles) == 0 && len(positions) > 0 && positions[0].Title != "" && !isJunkTitle(positions[0].Title) {
		titles = []string{positions[0].Title}
	}
	return titles
}

// primaryCompany resolves the company via the first current position, then
// the top-level companyName field, then the first listed position.
func primaryCompany(positions []position, topLevel string) string {
	for _, pos := range positions {
		if pos.Current && pos.Company != "" && !isJunkCompany(pos.Company) {
			return pos.Company
		}
	}
	if topLevel != "" {
		return topLevel
	}
	if len(positions) > 0 {
		return positions[0].Company
	}
	return ""
}

// isJunkCompany reports whether a candidate company string is actually a
// duration or employment-type value that leaked into the company slot.
func isJunkCompany(s string) bool {
	if s == "" {
		return false
	}
	if durationRe.MatchString(s) {
		return true
	}
	lower := strings.ToLower(strings.TrimSpace(s))
	for _, et := range employmentTypes {
		if lower == et {
			return true
		}
	}
	return false
}

// isJunkTitle mirrors isJunkCompany for the title slot. A duration or
// employment type is never a real job title.
func isJunkTitle(s string) bool {
	return isJunkCompany(s)
}

// looksLikeOrgName reports whether a title-slot string reads like an
// organization rather than a job title.
func looksLikeOrgName(s string) bool {
	lower := strings.ToLower(s)
	for _, tok := range orgTokens {
		for _, word := range strings.FieldsFunc(lower, func(r rune) bool {
			return r == ' ' || r == ',' || r == '.' || r == '(' || r == ')'
		}) {
			if word == tok {
				return true
			}
		}
	}
	return false
}

func removeTitle(titles []string, title string) []string {
	out := titles[:0]
	for _, t := range titles {
		if t != title {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func buildName(profile map[string]any) string {
	first := strings.TrimSpace(stringField(profile, "firstName"))
	last := strings.TrimSpace(stringField(profile, "lastName"))
	return strings.TrimSpace(first + " " + last)
}

// parsePositions converts the raw positions array into typed positions.
// Company may arrive as a nested object or a bare string; a position is
// current iff its time period has no end date.
func parsePositions(raw any) []position {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}

	var positions []position
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		pos := position{
			Title:       stringField(m, "title"),
			Description: stringField(m, "description"),
			Company:     companyNameOf(m["company"]),
			Current:     isCurrent(m["timePeriod"]),
		}
		positions = append(positions, pos)
	}
	return positions
}

func companyNameOf(raw any) string {
	switch v := raw.(type) {
	case map[string]any:
		return stringField(v, "name")
	case string:
		return v
	}
	return ""
}

func isCurrent(raw any) bool {
	tp, ok := raw.(map[string]any)
	if !ok {
		// No time period at all: treat as current rather than dropping it.
		return true
	}
	end, exists := tp["endDate"]
	return !exists || end == nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func firstStringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := stringField(m, k); s != "" {
			return s
		}
	}
	return ""
}
