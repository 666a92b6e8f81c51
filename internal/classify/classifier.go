// Package classify labels enriched profiles with an industry and a company
// type using an LLM, constrained to fixed enumerations so the results can be
// filtered on before vector search.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/rotisserie/eris"

	"github.com/sells-group/icp-cli/internal/model"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-4o-mini"

// Industries a profile's company can be labeled with. "Other" is the
// catch-all and must stay last.
var Industries = []string{
	"SaaS",
	"Fintech",
	"Healthcare",
	"E-commerce",
	"AI/ML",
	"Cybersecurity",
	"EdTech",
	"MarTech",
	"HRTech",
	"PropTech",
	"CleanTech",
	"Consulting",
	"Financial Services",
	"Manufacturing",
	"Retail",
	"Media/Entertainment",
	"Telecommunications",
	"Government/Public Sector",
	"Non-profit",
	"Other",
}

// CompanyTypes a profile's company can be labeled with. "unknown" is the
// catch-all.
var CompanyTypes = []string{
	"startup",
	"scaleup",
	"mid-market",
	"enterprise",
	"agency",
	"freelance",
	"unknown",
}

// Classifier asks the model to label one profile.
type Classifier struct {
	client *openai.Client
	model  string
}

// New creates a Classifier using the given OpenAI client.
func New(client *openai.Client, chatModel string) *Classifier {
	if chatModel == "" {
		chatModel = DefaultModel
	}
	return &Classifier{client: client, model: chatModel}
}

// Classify labels a profile. The raw profile supplies summary and position
// detail the extracted fields do not carry.
func (c *Classifier) Classify(ctx context.Context, fields model.ExtractedFields, profile map[string]any) (*model.Classification, error) {
	prompt := buildPrompt(fields, profile)

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(c.model),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
		Temperature: openai.Float(0.1),
	})
	if err != nil {
		return nil, eris.Wrap(err, "classify: chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("classify: no response choices")
	}

	return parseClassification([]byte(resp.Choices[0].Message.Content))
}

// parseClassification decodes the model's JSON and clamps out-of-enum values
// to the catch-all labels.
func parseClassification(raw []byte) (*model.Classification, error) {
	var cls model.Classification
	if err := json.Unmarshal(raw, &cls); err != nil {
		return nil, eris.Wrap(err, "classify: decode response")
	}

	if !contains(Industries, cls.Industry) {
		cls.Industry = "Other"
	}
	if !contains(CompanyTypes, cls.CompanyType) {
		cls.CompanyType = "unknown"
	}
	return &cls, nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func buildPrompt(fields model.ExtractedFields, profile map[string]any) string {
	var b strings.Builder
	b.WriteString("Analyze this LinkedIn profile and classify the person's company.\n\n")
	b.WriteString("## PROFILE\n\n")
	fmt.Fprintf(&b, "Name: %s\n", orNA(fields.Name))
	fmt.Fprintf(&b, "Headline: %s\n", orNA(fields.Headline))
	fmt.Fprintf(&b, "Company: %s\n", orNA(fields.Company))
	fmt.Fprintf(&b, "Location: %s\n\n", orNA(fields.Location))
	fmt.Fprintf(&b, "About/Summary:\n%s\n\n", orNA(summaryOf(profile)))
	fmt.Fprintf(&b, "Current Position:\n%s\n\n", orNA(positionDetails(profile)))

	b.WriteString("## TASK\n\n")
	b.WriteString("1. Determine the PRIMARY INDUSTRY of their current company\n")
	b.WriteString("2. Determine the COMPANY TYPE/SIZE\n\n")
	fmt.Fprintf(&b, "## INDUSTRY OPTIONS\n%s\n\n", strings.Join(Industries, ", "))
	fmt.Fprintf(&b, "## COMPANY TYPE OPTIONS\n%s\n\n", strings.Join(CompanyTypes, ", "))

	b.WriteString("## RESPONSE FORMAT\n\n")
	b.WriteString("Respond with JSON only:\n")
	b.WriteString(`{
  "industry": "<one of the industry options>",
  "industry_reasoning": "<1-2 sentences explaining why this industry>",
  "company_type": "<one of the company type options>",
  "company_reasoning": "<1-2 sentences explaining the company size/type>"
}` + "\n\n")
	b.WriteString("Use \"Other\" for industry if none fit well.\n")
	b.WriteString("Use \"unknown\" for company_type if you can't determine it.")
	return b.String()
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not available"
	}
	return s
}

func summaryOf(profile map[string]any) string {
	s, _ := profile["summary"].(string)
	return s
}

// positionDetails renders the first listed position with its description.
func positionDetails(profile map[string]any) string {
	positions, _ := profile["positions"].([]any)
	if len(positions) == 0 {
		return ""
	}
	pos, _ := positions[0].(map[string]any)
	if pos == nil {
		return ""
	}

	title, _ := pos["title"].(string)
	if title == "" {
		title = "Unknown"
	}

	var company string
	switch c := pos["company"].(type) {
	case map[string]any:
		company, _ = c["name"].(string)
	case string:
		company = c
	}

	detail := fmt.Sprintf("%s at %s", title, company)
	if desc, _ := pos["description"].(string); desc != "" {
		detail += "\n" + desc
	}
	return detail
}
