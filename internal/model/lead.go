package model

import (
	"encoding/json"
	"time"
)

// LeadStatus represents where a lead sits in the discovery -> export pipeline.
type LeadStatus string

const (
	LeadStatusDiscovered LeadStatus = "discovered"
	LeadStatusEnriched   LeadStatus = "enriched"
	LeadStatusQualified  LeadStatus = "qualified"
	LeadStatusExported   LeadStatus = "exported"
	LeadStatusFailed     LeadStatus = "failed"
)

// Lead is one candidate profile moving through the pipeline. A lead belongs
// to exactly one batch and one client; its normalized LinkedIn URL is unique
// within that client.
type Lead struct {
	ID        string     `json:"id"`
	ClientID  string     `json:"client_id"`
	BatchID   string     `json:"batch_id"`
	Status    LeadStatus `json:"status"`

	// LinkedInURL is the normalized canonical profile URL.
	LinkedInURL string `json:"linkedin_url"`
	// ProfileID is the provider-issued stable identifier (URN-style,
	// case-sensitive). Distinct from the human-readable handle, which can
	// change at any time.
	ProfileID string `json:"profile_id,omitempty"`

	// Enrichment payload.
	ProfileData      json.RawMessage `json:"profile_data,omitempty"`
	Name             string          `json:"name,omitempty"`
	Headline         string          `json:"headline,omitempty"`
	Company          string          `json:"company,omitempty"`
	Location         string          `json:"location,omitempty"`
	FollowerCount    int             `json:"follower_count,omitempty"`
	CurrentJobTitles []string        `json:"current_job_titles,omitempty"`
	Embedding        []float32       `json:"embedding,omitempty"`

	// Classification (LLM oracle output, constrained enumerations).
	Industry          string `json:"industry,omitempty"`
	IndustryReasoning string `json:"industry_reasoning,omitempty"`
	CompanyType       string `json:"company_type,omitempty"`
	CompanyReasoning  string `json:"company_reasoning,omitempty"`

	// Qualification payload.
	ICPScore       *int       `json:"icp_score,omitempty"`
	MatchReasoning string     `json:"match_reasoning,omitempty"`
	QualifiedAt    *time.Time `json:"qualified_at,omitempty"`

	// Failure metadata.
	ErrorMessage string `json:"error_message,omitempty"`
	RetryCount   int    `json:"retry_count"`

	ScrapedAt *time.Time `json:"scraped_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ExtractedFields holds the structured view of a raw profile payload. This is
// the only shape downstream components read; the raw payload is opaque past
// the extraction gate.
type ExtractedFields struct {
	Name             string   `json:"name,omitempty"`
	Headline         string   `json:"headline,omitempty"`
	Company          string   `json:"company,omitempty"`
	Location         string   `json:"location,omitempty"`
	FollowerCount    int      `json:"follower_count,omitempty"`
	CurrentJobTitles []string `json:"current_job_titles,omitempty"`
}

// EnrichedUpdate carries everything persisted when a lead transitions to
// enriched. Nil Embedding and empty Classification are valid: embedding and
// classification failures are non-fatal and simply leave those fields unset.
type EnrichedUpdate struct {
	ProfileData    json.RawMessage
	ProfileID      string
	Fields         ExtractedFields
	Embedding      []float32
	Classification *Classification
	ScrapedAt      time.Time
}

// Classification is the oracle's output, constrained to the fixed
// enumerations in the classify package.
type Classification struct {
	Industry          string `json:"industry"`
	IndustryReasoning string `json:"industry_reasoning"`
	CompanyType       string `json:"company_type"`
	CompanyReasoning  string `json:"company_reasoning"`
}
