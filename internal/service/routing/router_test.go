package routing_test

import (
	"testing"

	"github.com/jordanmt/career-compass/backend/internal/model/persona"
	"github.com/jordanmt/career-compass/backend/internal/service/routing"
)

func newRouter(t *testing.T) *routing.Router {
	t.Helper()
	registry, err := persona.NewRegistry(persona.Seed())
	if err != nil {
		t.Fatalf("NewRegistry err: %v", err)
	}
	return routing.New(registry)
}

func TestRouteFirstMessageByKeyword(t *testing.T) {
	r := newRouter(t)

	got := r.Route("Can you review my resume before I apply?", "")
	if got != "resume" {
		t.Fatalf("unexpected route: got %s want resume", got)
	}
}

func TestRouteFirstMessageFallsBackToPlanner(t *testing.T) {
	r := newRouter(t)

	got := r.Route("Hmm, not sure where to begin honestly", "")
	if got != "planner" {
		t.Fatalf("unexpected fallback: got %s want planner", got)
	}
}

func TestRouteStaysOnCurrentWithoutMatch(t *testing.T) {
	r := newRouter(t)

	got := r.Route("Could you expand on that last point?", "interview")
	if got != "interview" {
		t.Fatalf("expected to stay on interview, got %s", got)
	}
}

func TestRouteSwitchPhraseOverridesCurrent(t *testing.T) {
	r := newRouter(t)

	got := r.Route("Please switch to the interview coach now", "resume")
	if got != "interview" {
		t.Fatalf("unexpected route: got %s want interview", got)
	}
}

func TestRouteSwitchPhraseWithoutTargetStaysPut(t *testing.T) {
	r := newRouter(t)

	got := r.Route("switch to someone else", "resume")
	if got != "resume" {
		t.Fatalf("expected to stay on resume, got %s", got)
	}
}

func TestRouteUnknownCurrentTreatedAsFresh(t *testing.T) {
	r := newRouter(t)

	got := r.Route("I want interview practice", "deleted-persona")
	if got != "interview" {
		t.Fatalf("unexpected route: got %s want interview", got)
	}
}

func TestRouteKeywordAwayFromCurrent(t *testing.T) {
	r := newRouter(t)

	// "resume" no longer matches because the current persona is excluded,
	// but "interview" still pulls the conversation away.
	got := r.Route("Now I need interview prep for this role", "resume")
	if got != "interview" {
		t.Fatalf("unexpected route: got %s want interview", got)
	}
}

func TestRouteDeterministic(t *testing.T) {
	r := newRouter(t)

	first := r.Route("help me plan my job search", "")
	for i := 0; i < 20; i++ {
		if got := r.Route("help me plan my job search", ""); got != first {
			t.Fatalf("routing not deterministic: got %s then %s", first, got)
		}
	}
}

func TestSuggestMatchesResponseText(t *testing.T) {
	r := newRouter(t)

	s := r.Suggest("resume", "thanks", "Your resume looks strong; next you should practice interview answers.")
	if s == nil {
		t.Fatal("expected a suggestion")
	}
	if s.PersonaID != "interview" {
		t.Fatalf("unexpected target: got %s want interview", s.PersonaID)
	}
	if s.Rationale == "" {
		t.Fatal("expected a non-empty rationale")
	}
}

func TestSuggestFirstRuleWins(t *testing.T) {
	r := newRouter(t)

	// Both the interview and jobsearch rules trigger; table order picks
	// interview for the resume persona.
	s := r.Suggest("resume", "should I apply now or do interview prep first?", "")
	if s == nil {
		t.Fatal("expected a suggestion")
	}
	if s.PersonaID != "interview" {
		t.Fatalf("unexpected target: got %s want interview", s.PersonaID)
	}
}

func TestSuggestNoMatch(t *testing.T) {
	r := newRouter(t)

	if s := r.Suggest("resume", "thanks!", "You are welcome."); s != nil {
		t.Fatalf("expected no suggestion, got %+v", s)
	}
}

func TestSuggestUnknownPersona(t *testing.T) {
	r := newRouter(t)

	if s := r.Suggest("ghost", "resume", "resume"); s != nil {
		t.Fatalf("expected no suggestion for unknown persona, got %+v", s)
	}
}
