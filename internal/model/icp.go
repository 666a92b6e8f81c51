package model

import (
	"encoding/json"
	"time"
)

// ClientICP is a client's Ideal Customer Profile criteria. One row per client.
type ClientICP struct {
	ClientID         string    `json:"client_id"`
	TargetTitles     []string  `json:"target_titles,omitempty"`
	TargetIndustries []string  `json:"target_industries,omitempty"`
	CompanySizes     []string  `json:"company_sizes,omitempty"`
	TargetKeywords   []string  `json:"target_keywords,omitempty"`
	ExcludeTitles    []string  `json:"exclude_titles,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HasCriteria reports whether any qualifying criteria are set. Qualification
// refuses to run against an empty ICP rather than treating it as a wildcard.
func (icp ClientICP) HasCriteria() bool {
	return len(icp.TargetTitles) > 0 ||
		len(icp.TargetIndustries) > 0 ||
		len(icp.CompanySizes) > 0 ||
		len(icp.TargetKeywords) > 0
}

// ProfileCacheEntry is one row of the globally shared profile cache, keyed by
// normalized LinkedIn URL. Entries are replaced wholesale on upsert and expire
// logically at read time once older than the freshness TTL.
type ProfileCacheEntry struct {
	LinkedInURL string          `json:"linkedin_url"`
	ProfileID   string          `json:"profile_id,omitempty"`
	ProfileData json.RawMessage `json:"profile_data"`
	ScrapedAt   time.Time       `json:"scraped_at"`
}
