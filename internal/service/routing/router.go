// Package routing decides which persona handles a message and proposes
// advisory hand-offs after a response. Routing is deterministic keyword
// matching; no model call is involved.
package routing

import (
	"strings"

	"github.com/jordanmt/career-compass/backend/internal/model/persona"
)

// switchPhrases force an explicit persona change regardless of the current
// persona.
var switchPhrases = []string{
	"switch to",
	"connect me to",
	"talk to",
	"transfer me",
}

// Suggestion is an advisory hand-off surfaced to the client after a
// response. It never forces a transfer.
type Suggestion struct {
	PersonaID string `json:"personaId"`
	Rationale string `json:"rationale"`
}

type suggestionRule struct {
	triggers  []string
	target    string
	rationale string
}

// Router resolves routing decisions against a fixed persona registry.
type Router struct {
	registry persona.Registry
	// fallback is returned when no keywords match and no persona is
	// active. The planner is the generalist, so unmatched first messages
	// land there rather than on triage.
	fallback string
	rules    map[string][]suggestionRule
}

// New builds a router over the registry with the default suggestion table.
func New(registry persona.Registry) *Router {
	return &Router{
		registry: registry,
		fallback: "planner",
		rules:    defaultSuggestionRules(),
	}
}

// Route picks the persona that should process a message. currentID may be
// empty or unknown; the result is always a valid persona id.
func (r *Router) Route(message, currentID string) string {
	normalized := strings.ToLower(message)

	if _, ok := r.registry.FindByID(currentID); !ok {
		currentID = ""
	}

	if containsAny(normalized, switchPhrases) {
		if id, ok := r.matchKeywords(normalized, ""); ok {
			return id
		}
		// Explicit switch with no recognizable target: stay put or enter.
		if currentID != "" {
			return currentID
		}
		return r.fallback
	}

	if currentID == "" {
		if id, ok := r.matchKeywords(normalized, ""); ok {
			return id
		}
		return r.fallback
	}

	if id, ok := r.matchKeywords(normalized, currentID); ok {
		return id
	}
	return currentID
}

// Suggest consults the static hand-off table for the current persona. The
// first rule (table order) whose trigger appears in the response text or the
// original user message wins. Nil when nothing matches.
func (r *Router) Suggest(currentID, userMessage, responseText string) *Suggestion {
	rules, ok := r.rules[currentID]
	if !ok {
		return nil
	}
	response := strings.ToLower(responseText)
	message := strings.ToLower(userMessage)
	for _, rule := range rules {
		if containsAny(response, rule.triggers) || containsAny(message, rule.triggers) {
			return &Suggestion{PersonaID: rule.target, Rationale: rule.rationale}
		}
	}
	return nil
}

// matchKeywords scans persona keyword sets in registry declaration order,
// skipping excludeID. Declaration order breaks ties.
func (r *Router) matchKeywords(normalized, excludeID string) (string, bool) {
	for _, p := range r.registry.List() {
		if p.ID == excludeID {
			continue
		}
		for _, kw := range p.Keywords {
			if strings.Contains(normalized, strings.ToLower(kw)) {
				return p.ID, true
			}
		}
	}
	return "", false
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

// defaultSuggestionRules maps the active persona to ordered hand-off
// suggestions. Triggers match against the generated response and the user
// message.
func defaultSuggestionRules() map[string][]suggestionRule {
	return map[string][]suggestionRule{
		persona.EntryID: {
			{
				triggers:  []string{"resume", "cv"},
				target:    "resume",
				rationale: "The resume specialist can review your resume line by line.",
			},
			{
				triggers:  []string{"interview"},
				target:    "interview",
				rationale: "The interview coach can run a mock interview with you.",
			},
			{
				triggers:  []string{"job", "opening", "apply"},
				target:    "jobsearch",
				rationale: "The job search assistant can find openings matching your profile.",
			},
		},
		"resume": {
			{
				triggers:  []string{"interview"},
				target:    "interview",
				rationale: "With your resume polished, the interview coach can help you prepare to talk about it.",
			},
			{
				triggers:  []string{"job", "apply", "opening"},
				target:    "jobsearch",
				rationale: "The job search assistant can match your updated resume to open roles.",
			},
		},
		"interview": {
			{
				triggers:  []string{"resume", "cv"},
				target:    "resume",
				rationale: "The resume specialist can align your resume with the stories you practiced.",
			},
			{
				triggers:  []string{"plan", "transition", "path"},
				target:    "planner",
				rationale: "The career planner can map the longer-term path behind these interviews.",
			},
		},
		"planner": {
			{
				triggers:  []string{"resume", "cv"},
				target:    "resume",
				rationale: "The resume specialist can rework your resume around the plan.",
			},
			{
				triggers:  []string{"job", "opening", "apply"},
				target:    "jobsearch",
				rationale: "The job search assistant can surface openings on your planned path.",
			},
		},
		"jobsearch": {
			{
				triggers:  []string{"resume", "cv", "tailor"},
				target:    "resume",
				rationale: "The resume specialist can tailor your resume to these openings.",
			},
			{
				triggers:  []string{"interview"},
				target:    "interview",
				rationale: "The interview coach can prepare you for interviews at these companies.",
			},
		},
	}
}
