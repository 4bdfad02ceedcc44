package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// interviewTool serves questions from a static bank keyed by role family.
type interviewTool struct{}

var questionBank = map[string][]string{
	"engineering": {
		"Walk me through a system you designed end to end. What would you change today?",
		"Tell me about the hardest bug you ever tracked down.",
		"How do you decide between shipping now and paying down technical debt?",
		"Describe a time you disagreed with a teammate about an architecture choice.",
		"How do you approach code review on a change you don't fully understand?",
	},
	"product": {
		"How do you decide what not to build?",
		"Tell me about a launch that missed. What did you learn?",
		"How do you balance qualitative feedback against metrics?",
		"Walk me through prioritizing a quarter with three stakeholders pulling different ways.",
	},
	"design": {
		"Walk me through a recent project in your portfolio. What constraints shaped it?",
		"Tell me about a time research contradicted your design instinct.",
		"How do you handle a stakeholder who wants to skip user testing?",
	},
	"data": {
		"Describe an analysis that changed a decision. How did you communicate it?",
		"How do you validate a model before anyone acts on it?",
		"Tell me about a time your data quality was worse than expected.",
	},
	"general": {
		"Tell me about yourself.",
		"Why are you interested in this role?",
		"Tell me about a time you failed and what you did next.",
		"Describe a conflict with a coworker and how you resolved it.",
		"Where do you see yourself in three years?",
	},
}

func (t *interviewTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "interview_questions",
		Desc: "Fetch interview questions for a target role. Role families: engineering, product, design, data, general.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"role": {
				Type:     schema.String,
				Desc:     "The role the user is interviewing for, e.g. 'backend engineer'.",
				Required: true,
			},
			"count": {
				Type: schema.Integer,
				Desc: "How many questions to return (default 3).",
			},
		}),
	}, nil
}

func (t *interviewTool) InvokableRun(_ context.Context, argsJSON string, _ ...tool.Option) (string, error) {
	var args struct {
		Role  string `json:"role"`
		Count int    `json:"count"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("decode arguments: %w", err)
	}
	if args.Count <= 0 {
		args.Count = 3
	}

	family := roleFamily(args.Role)
	questions := questionBank[family]
	if args.Count < len(questions) {
		questions = questions[:args.Count]
	}

	out, err := json.Marshal(struct {
		Success   bool     `json:"success"`
		Family    string   `json:"family"`
		Questions []string `json:"questions"`
	}{Success: true, Family: family, Questions: questions})
	if err != nil {
		return "", fmt.Errorf("encode questions: %w", err)
	}
	return string(out), nil
}

func roleFamily(role string) string {
	normalized := strings.ToLower(role)
	switch {
	case strings.Contains(normalized, "engineer"), strings.Contains(normalized, "developer"),
		strings.Contains(normalized, "sre"), strings.Contains(normalized, "devops"):
		return "engineering"
	case strings.Contains(normalized, "product"):
		return "product"
	case strings.Contains(normalized, "design"), strings.Contains(normalized, "ux"):
		return "design"
	case strings.Contains(normalized, "data"), strings.Contains(normalized, "analyst"),
		strings.Contains(normalized, "scientist"):
		return "data"
	default:
		return "general"
	}
}
