package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Listing is one job opening in the curated feed.
type Listing struct {
	Title    string   `json:"title"`
	Company  string   `json:"company"`
	Location string   `json:"location"`
	Remote   bool     `json:"remote"`
	Tags     []string `json:"tags"`
	Salary   string   `json:"salary,omitempty"`
}

// jobsTool filters a seeded listing feed by keyword. A live job-board API
// would slot in behind the same tool contract.
type jobsTool struct {
	listings []Listing
}

const maxResults = 5

func seedListings() []Listing {
	return []Listing{
		{Title: "Backend Engineer", Company: "Fernwood Labs", Location: "Berlin", Remote: true, Tags: []string{"go", "postgres", "kubernetes"}, Salary: "€75k-€95k"},
		{Title: "Senior Frontend Engineer", Company: "Lumen Works", Location: "Amsterdam", Remote: true, Tags: []string{"react", "typescript"}, Salary: "€80k-€100k"},
		{Title: "Product Manager, Growth", Company: "Driftline", Location: "London", Remote: false, Tags: []string{"product", "growth", "b2b"}},
		{Title: "Data Analyst", Company: "Northbeam Health", Location: "Remote (EU)", Remote: true, Tags: []string{"sql", "python", "analytics"}},
		{Title: "UX Designer", Company: "Cobalt Studio", Location: "Copenhagen", Remote: false, Tags: []string{"design", "figma", "research"}},
		{Title: "Platform Engineer", Company: "Harbor Systems", Location: "Remote (US)", Remote: true, Tags: []string{"go", "aws", "terraform"}, Salary: "$140k-$175k"},
		{Title: "Engineering Manager", Company: "Fernwood Labs", Location: "Berlin", Remote: false, Tags: []string{"management", "go"}},
		{Title: "Machine Learning Engineer", Company: "Veldt AI", Location: "Zurich", Remote: true, Tags: []string{"python", "ml", "llm"}},
	}
}

func (t *jobsTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "search_jobs",
		Desc: "Search current job openings by keyword and optionally location. Returns up to five matches.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "Keywords describing the role, e.g. 'go backend'.",
				Required: true,
			},
			"location": {
				Type: schema.String,
				Desc: "Preferred location, or 'remote'.",
			},
		}),
	}, nil
}

func (t *jobsTool) InvokableRun(_ context.Context, argsJSON string, _ ...tool.Option) (string, error) {
	var args struct {
		Query    string `json:"query"`
		Location string `json:"location"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("decode arguments: %w", err)
	}

	terms := strings.Fields(strings.ToLower(args.Query))
	location := strings.ToLower(args.Location)

	var matches []Listing
	for _, listing := range t.listings {
		if location != "" && !matchesLocation(listing, location) {
			continue
		}
		if len(terms) == 0 || matchesTerms(listing, terms) {
			matches = append(matches, listing)
		}
		if len(matches) == maxResults {
			break
		}
	}

	out, err := json.Marshal(struct {
		Success  bool      `json:"success"`
		Count    int       `json:"count"`
		Listings []Listing `json:"listings"`
	}{Success: true, Count: len(matches), Listings: matches})
	if err != nil {
		return "", fmt.Errorf("encode listings: %w", err)
	}
	return string(out), nil
}

func matchesLocation(l Listing, location string) bool {
	if location == "remote" {
		return l.Remote
	}
	return strings.Contains(strings.ToLower(l.Location), location)
}

func matchesTerms(l Listing, terms []string) bool {
	haystack := strings.ToLower(l.Title + " " + l.Company + " " + strings.Join(l.Tags, " "))
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			return true
		}
	}
	return false
}
