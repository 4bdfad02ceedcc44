package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/jordanmt/career-compass/backend/internal/analysis/resume"
)

// resumeTool runs the deterministic resume analyzer over pasted text.
type resumeTool struct{}

func (t *resumeTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "analyze_resume",
		Desc: "Analyze resume text: section coverage, action verbs, quantified impact, and a 0-100 score with suggestions.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"text": {
				Type:     schema.String,
				Desc:     "The full plain text of the resume to analyze.",
				Required: true,
			},
		}),
	}, nil
}

func (t *resumeTool) InvokableRun(_ context.Context, argsJSON string, _ ...tool.Option) (string, error) {
	var args struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("decode arguments: %w", err)
	}
	if args.Text == "" {
		return "", fmt.Errorf("text argument is empty")
	}

	report := resume.Analyze(args.Text)
	out, err := json.Marshal(struct {
		Success bool          `json:"success"`
		Report  resume.Report `json:"report"`
	}{Success: true, Report: report})
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	return string(out), nil
}
