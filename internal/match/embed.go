// Package match scores enriched leads against client ICP criteria: embedding
// text construction, vector ranking, reranking, and score normalization.
package match

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/rotisserie/eris"

	"github.com/sells-group/icp-cli/internal/model"
)

// DefaultEmbeddingModel pairs with 1536-dim collections.
const (
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultEmbeddingDims  = 1536
)

// textDelimiter joins embedding text parts. Part order is a deliberate
// ranking signal: earlier content dominates nearest-neighbor behavior for
// longer inputs, so the strongest matching signals go first.
const textDelimiter = " | "

// Sentinels keep embedding input non-empty when a profile or ICP carries no
// usable text at all.
const (
	emptyProfileSentinel = "no information available"
	emptyICPSentinel     = "general profile"
)

// Embedder converts text into a fixed-length vector. A nil vector with a nil
// error means the input was empty.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAIEmbedder implements Embedder against the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dims   int
}

// NewOpenAIEmbedder creates an embedder. Zero model/dims use the defaults.
func NewOpenAIEmbedder(client *openai.Client, embeddingModel string, dims int) *OpenAIEmbedder {
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	if dims <= 0 {
		dims = DefaultEmbeddingDims
	}
	return &OpenAIEmbedder{client: client, model: embeddingModel, dims: dims}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: openai.Int(int64(e.dims)),
	})
	if err != nil {
		return nil, eris.Wrap(err, "embed: create embedding")
	}
	if len(resp.Data) == 0 {
		return nil, eris.New("embed: empty embedding response")
	}

	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// ProfileText builds the embedding text for a lead. Sections are ordered
// titles, identity, company context, positions, summary, skills; absent
// sections are skipped with no placeholder.
func ProfileText(lead model.Lead) string {
	var parts []string

	if len(lead.CurrentJobTitles) > 0 {
		parts = append(parts, strings.Join(lead.CurrentJobTitles, ", "))
	}
	if lead.Name != "" {
		parts = append(parts, lead.Name)
	}
	if lead.Headline != "" {
		parts = append(parts, lead.Headline)
	}
	if lead.Company != "" {
		parts = append(parts, "Works at "+lead.Company)
	}
	if lead.Industry != "" {
		parts = append(parts, lead.Industry)
	}
	if lead.Location != "" {
		parts = append(parts, "Located in "+lead.Location)
	}

	var profile map[string]any
	if len(lead.ProfileData) > 0 {
		_ = json.Unmarshal(lead.ProfileData, &profile)
	}
	parts = append(parts, positionParts(profile)...)

	if summary, _ := profile["summary"].(string); summary != "" {
		// Truncate by rune so a multi-byte character is never split.
		if r := []rune(summary); len(r) > 500 {
			summary = string(r[:500])
		}
		parts = append(parts, "About: "+summary)
	}
	if skills := skillNames(profile, 10); len(skills) > 0 {
		parts = append(parts, "Skills: "+strings.Join(skills, ", "))
	}

	if len(parts) == 0 {
		return emptyProfileSentinel
	}
	return strings.Join(parts, textDelimiter)
}

// ICPText builds the embedding/query text for ICP criteria. No synonym
// expansion: embeddings resolve lexical variants natively, and expansion
// risks injecting criteria the client never specified.
func ICPText(icp model.ClientICP) string {
	var parts []string

	if len(icp.TargetTitles) > 0 {
		parts = append(parts, "Looking for: "+strings.Join(icp.TargetTitles, ", "))
	}
	if len(icp.TargetIndustries) > 0 {
		parts = append(parts, "Industries: "+strings.Join(icp.TargetIndustries, ", "))
	}
	if len(icp.CompanySizes) > 0 {
		parts = append(parts, "Company sizes: "+strings.Join(icp.CompanySizes, ", "))
	}
	if len(icp.TargetKeywords) > 0 {
		parts = append(parts, "Keywords: "+strings.Join(icp.TargetKeywords, ", "))
	}
	if icp.Notes != "" {
		parts = append(parts, icp.Notes)
	}

	if len(parts) == 0 {
		return emptyICPSentinel
	}
	return strings.Join(parts, textDelimiter)
}

// positionParts renders current positions with their descriptions and up to
// two prior positions for context.
func positionParts(profile map[string]any) []string {
	positions, _ := profile["positions"].([]any)
	var current, prior []string

	for _, raw := range positions {
		pos, _ := raw.(map[string]any)
		if pos == nil {
			continue
		}
		title, _ := pos["title"].(string)
		company := companyNameIn(pos)
		if title == "" || company == "" {
			continue
		}

		entry := fmt.Sprintf("%s at %s", title, company)
		if isCurrentPosition(pos) {
			if desc, _ := pos["description"].(string); desc != "" {
				entry += ": " + desc
			}
			current = append(current, entry)
		} else if len(prior) < 2 {
			prior = append(prior, entry)
		}
	}
	return append(current, prior...)
}

func isCurrentPosition(pos map[string]any) bool {
	tp, ok := pos["timePeriod"].(map[string]any)
	if !ok {
		return true
	}
	end, present := tp["endDate"]
	return !present || end == nil
}

func companyNameIn(pos map[string]any) string {
	switch c := pos["company"].(type) {
	case map[string]any:
		name, _ := c["name"].(string)
		return name
	case string:
		return c
	}
	return ""
}

func skillNames(profile map[string]any, limit int) []string {
	skills, _ := profile["skills"].([]any)
	var names []string
	for _, raw := range skills {
		if len(names) >= limit {
			break
		}
		switch s := raw.(type) {
		case map[string]any:
			if name, _ := s["name"].(string); name != "" {
				names = append(names, name)
			}
		case string:
			if s != "" {
				names = append(names, s)
			}
		}
	}
	return names
}
