package linkedin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func profileFixture() map[string]any {
	return map[string]any{
		"firstName":      "Jane",
		"lastName":       "Doe",
		"headline":       "VP Engineering at Acme",
		"locationName":   "Denver, Colorado",
		"followerCount":  float64(1234),
		"publicIdentifier": "jane-doe",
		"positions": []any{
			map[string]any{
				"title":      "VP Engineering",
				"company":    map[string]any{"name": "Acme"},
				"timePeriod": map[string]any{"startDate": map[string]any{"year": float64(2021)}},
			},
			map[string]any{
				"title":   "Director of Engineering",
				"company": map[string]any{"name": "Initech"},
				"timePeriod": map[string]any{
					"startDate": map[string]any{"year": float64(2017)},
					"endDate":   map[string]any{"year": float64(2021)},
				},
			},
		},
	}
}

func TestExtractFields(t *testing.T) {
	fields := ExtractFields(profileFixture())

	assert.Equal(t, "Jane Doe", fields.Name)
	assert.Equal(t, "VP Engineering at Acme", fields.Headline)
	assert.Equal(t, "Acme", fields.Company)
	assert.Equal(t, "Denver, Colorado", fields.Location)
	assert.Equal(t, 1234, fields.FollowerCount)
	assert.Equal(t, []string{"VP Engineering"}, fields.CurrentJobTitles)
}

func TestExtractFieldsGeoLocationPreferred(t *testing.T) {
	p := profileFixture()
	p["geoLocationName"] = "Denver, Colorado, United States"

	fields := ExtractFields(p)
	assert.Equal(t, "Denver, Colorado, United States", fields.Location)
}

func TestExtractFieldsMultipleCurrentTitles(t *testing.T) {
	p := profileFixture()
	p["positions"] = []any{
		map[string]any{
			"title":      "CTO",
			"company":    map[string]any{"name": "Acme"},
			"timePeriod": map[string]any{"startDate": map[string]any{"year": float64(2022)}},
		},
		map[string]any{
			"title":      "Advisor",
			"company":    map[string]any{"name": "Initech"},
			"timePeriod": map[string]any{"startDate": map[string]any{"year": float64(2023)}},
		},
	}

	fields := ExtractFields(p)
	assert.Equal(t, []string{"CTO", "Advisor"}, fields.CurrentJobTitles)
	assert.Equal(t, "Acme", fields.Company)
}

func TestExtractFieldsNoCurrentPositionFallsBack(t *testing.T) {
	p := map[string]any{
		"firstName": "Jane",
		"lastName":  "Doe",
		"positions": []any{
			map[string]any{
				"title":   "Consultant",
				"company": map[string]any{"name": "Initech"},
				"timePeriod": map[string]any{
					"startDate": map[string]any{"year": float64(2015)},
					"endDate":   map[string]any{"year": float64(2019)},
				},
			},
		},
	}

	fields := ExtractFields(p)
	assert.Equal(t, []string{"Consultant"}, fields.CurrentJobTitles)
	assert.Equal(t, "Initech", fields.Company)
}

func TestExtractFieldsCompanyNameFallback(t *testing.T) {
	p := map[string]any{
		"firstName":   "Jane",
		"lastName":    "Doe",
		"companyName": "Globex",
	}

	fields := ExtractFields(p)
	assert.Equal(t, "Globex", fields.Company)
	assert.Empty(t, fields.CurrentJobTitles)
}

func TestExtractFieldsDurationNeverBecomesCompany(t *testing.T) {
	p := map[string]any{
		"firstName": "Jane",
		"lastName":  "Doe",
		"positions": []any{
			map[string]any{
				"title":      "8 yrs 1 mo",
				"company":    map[string]any{"name": "Acme University"},
				"timePeriod": map[string]any{"startDate": map[string]any{"year": float64(2016)}},
			},
		},
	}

	fields := ExtractFields(p)
	assert.Equal(t, "Acme University", fields.Company)
	assert.NotContains(t, fields.CurrentJobTitles, "8 yrs 1 mo")
	assert.NotEqual(t, "8 yrs 1 mo", fields.Company)
}

func TestExtractFieldsSwappedTitleAndCompany(t *testing.T) {
	p := map[string]any{
		"firstName": "Jane",
		"lastName":  "Doe",
		"positions": []any{
			map[string]any{
				"title":      "Stanford University",
				"company":    map[string]any{"name": "Full-time"},
				"timePeriod": map[string]any{"startDate": map[string]any{"year": float64(2020)}},
			},
		},
	}

	fields := ExtractFields(p)
	assert.Equal(t, "Stanford University", fields.Company)
	assert.NotContains(t, fields.CurrentJobTitles, "Stanford University")
	assert.NotEqual(t, "Full-time", fields.Company)
}

func TestExtractFieldsEmploymentTypeCompanyDropped(t *testing.T) {
	p := map[string]any{
		"firstName": "Jane",
		"lastName":  "Doe",
		"positions": []any{
			map[string]any{
				"title":      "Principal Engineer",
				"company":    map[string]any{"name": "Contract"},
				"timePeriod": map[string]any{"startDate": map[string]any{"year": float64(2022)}},
			},
		},
	}

	fields := ExtractFields(p)
	assert.Equal(t, []string{"Principal Engineer"}, fields.CurrentJobTitles)
	assert.Empty(t, fields.Company)
}

func TestExtractFieldsBareCompanyString(t *testing.T) {
	p := map[string]any{
		"firstName": "Jane",
		"lastName":  "Doe",
		"positions": []any{
			map[string]any{
				"title":      "CFO",
				"company":    "Hooli",
				"timePeriod": map[string]any{"startDate": map[string]any{"year": float64(2021)}},
			},
		},
	}

	fields := ExtractFields(p)
	assert.Equal(t, "Hooli", fields.Company)
}

func TestExtractFieldsEmptyProfile(t *testing.T) {
	fields := ExtractFields(nil)
	assert.Empty(t, fields.Name)
	assert.Empty(t, fields.CurrentJobTitles)
	assert.Empty(t, fields.Company)
}

func TestExtractFieldsRealCompanyWithDuration(t *testing.T) {
	// A legitimate org name containing a duration-like substring must not be
	// treated as junk. "Monsanto" contains "mo" only as a prefix, not a token.
	p := map[string]any{
		"firstName": "Jane",
		"lastName":  "Doe",
		"positions": []any{
			map[string]any{
				"title":      "Agronomist",
				"company":    map[string]any{"name": "Monsanto"},
				"timePeriod": map[string]any{"startDate": map[string]any{"year": float64(2019)}},
			},
		},
	}

	fields := ExtractFields(p)
	assert.Equal(t, "Monsanto", fields.Company)
}
