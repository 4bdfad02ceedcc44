package persona

import (
	"fmt"
	"strings"
)

// EntryID is the persona a fresh chat starts on.
const EntryID = "triage"

// InstructionContext carries the per-run information an instruction
// template may use. Templates are pure functions of this value and keep no
// state between runs.
type InstructionContext struct {
	UserName      string
	RecentContext string   // joined recent conversation window
	TopicsSeen    []string // topics extracted from memory metadata
}

// Persona captures one conversational specialist: the model it runs on, the
// instructions it is given, the tools it may call and the personas it may
// hand the conversation to.
type Persona struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Model       string   `json:"model"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Tools       []string `json:"tools,omitempty"`
	Handoffs    []string `json:"handoffs,omitempty"`

	// Instructions builds the system prompt for one run. Never nil for
	// seeded personas.
	Instructions func(InstructionContext) string `json:"-"`
}

func contextPreamble(ctx InstructionContext) string {
	var b strings.Builder
	if ctx.UserName != "" {
		b.WriteString(fmt.Sprintf("\n\nYou are speaking with %s.", ctx.UserName))
	}
	if ctx.RecentContext != "" {
		b.WriteString("\n\nRecent conversation context:\n")
		b.WriteString(ctx.RecentContext)
	}
	if len(ctx.TopicsSeen) > 0 {
		b.WriteString("\n\nTopics discussed so far: ")
		b.WriteString(strings.Join(ctx.TopicsSeen, ", "))
	}
	return b.String()
}

// Seed provides the built-in counselor personas. Triage is the entry node;
// the hand-off edges below form the persona graph validated by NewRegistry.
func Seed() []Persona {
	return []Persona{
		{
			ID:          EntryID,
			Name:        "Career Counselor",
			Model:       "doubao-pro-32k",
			Description: "General intake counselor. Understands the user's situation and connects them with the right specialist.",
			Keywords:    []string{"help", "advice", "career", "guidance", "start"},
			Handoffs:    []string{"resume", "interview", "planner", "jobsearch"},
			Instructions: func(ctx InstructionContext) string {
				return "You are a warm, attentive career counselor doing intake for a counseling service. " +
					"Understand what the user needs, answer general questions yourself, and transfer the " +
					"conversation to a specialist (resume, interview, planner, jobsearch) when their need is " +
					"specific. Prefer transferring over improvising specialist advice." + contextPreamble(ctx)
			},
		},
		{
			ID:          "resume",
			Name:        "Resume Specialist",
			Model:       "doubao-pro-32k",
			Description: "Reviews resumes and cover letters, rewrites bullet points, runs structured resume analysis.",
			Keywords:    []string{"resume", "cv", "cover letter", "bullet point", "work experience"},
			Tools:       []string{"analyze_resume", "create_document"},
			Handoffs:    []string{"interview", "jobsearch"},
			Instructions: func(ctx InstructionContext) string {
				return "You are a resume specialist. Give concrete, line-level feedback on resumes and cover " +
					"letters. Use the analyze_resume tool when the user shares resume text, and offer to produce " +
					"a revised document with create_document. Quantify impact wherever possible." + contextPreamble(ctx)
			},
		},
		{
			ID:          "interview",
			Name:        "Interview Coach",
			Model:       "doubao-pro-32k",
			Description: "Runs mock interviews, drills behavioral and technical questions, critiques answers.",
			Keywords:    []string{"interview", "mock", "behavioral", "offer negotiation"},
			Tools:       []string{"interview_questions"},
			Handoffs:    []string{"resume", "planner"},
			Instructions: func(ctx InstructionContext) string {
				return "You are an interview coach. Run realistic mock interviews, one question at a time, and " +
					"critique answers using the STAR framing. Use the interview_questions tool to pull questions " +
					"for the user's target role." + contextPreamble(ctx)
			},
		},
		{
			ID:          "planner",
			Name:        "Career Planner",
			Model:       "doubao-pro-32k",
			Description: "Builds medium-term career plans: skill gaps, learning paths, transition timelines.",
			Keywords:    []string{"plan", "path", "transition", "switch career", "skill", "goal", "long term"},
			Tools:       []string{"create_document"},
			Handoffs:    []string{"resume", "interview", "jobsearch"},
			Instructions: func(ctx InstructionContext) string {
				return "You are a career planner. Turn vague ambitions into staged plans with milestones, skill " +
					"gaps and timelines. Ask for current role, target role and constraints before planning. Offer " +
					"to export the plan with create_document." + contextPreamble(ctx)
			},
		},
		{
			ID:          "jobsearch",
			Name:        "Job Search Assistant",
			Model:       "doubao-pro-32k",
			Description: "Finds matching openings, tracks applications, advises on outreach.",
			Keywords:    []string{"job", "opening", "vacancy", "apply", "application", "hiring", "salary"},
			Tools:       []string{"search_jobs"},
			Handoffs:    []string{"resume", "interview"},
			Instructions: func(ctx InstructionContext) string {
				return "You are a job search assistant. Use the search_jobs tool to find openings matching the " +
					"user's profile, and advise on application strategy and outreach messages. Be candid about " +
					"fit." + contextPreamble(ctx)
			},
		},
	}
}
