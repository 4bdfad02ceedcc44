package resume

import (
	"strings"
	"testing"
)

const sampleResume = `
Jane Doe
jane@example.com | linkedin.com/in/janedoe

Summary
Backend engineer with six years building payment systems.

Experience
Acme Corp, Senior Engineer
- Led migration to event-driven architecture, reduced p99 latency by 40%
- Built a billing pipeline processing 2M users
- Improved deploy frequency 3x

Education
B.S. Computer Science, State University

Skills
Go, PostgreSQL, Kafka, Kubernetes
`

func TestAnalyzeWellFormedResume(t *testing.T) {
	report := Analyze(sampleResume)

	if report.Score < 50 {
		t.Fatalf("expected solid score for a complete resume, got %d", report.Score)
	}
	if report.ActionVerbCount < 3 {
		t.Fatalf("expected action verbs detected, got %d", report.ActionVerbCount)
	}
	if report.QuantifiedBullets < 2 {
		t.Fatalf("expected quantified bullets detected, got %d", report.QuantifiedBullets)
	}

	found := map[Section]bool{}
	for _, check := range report.Sections {
		found[check.Section] = check.Found
	}
	for _, section := range []Section{Contact, Summary, Experience, Education, Skills} {
		if !found[section] {
			t.Fatalf("section %s not detected", section)
		}
	}
}

func TestAnalyzeThinResumeGetsSuggestions(t *testing.T) {
	report := Analyze("I worked at a company doing stuff.")

	if report.Score > 40 {
		t.Fatalf("expected low score, got %d", report.Score)
	}
	if len(report.Suggestions) == 0 {
		t.Fatal("expected suggestions for a thin resume")
	}

	joined := strings.Join(report.Suggestions, " ")
	if !strings.Contains(joined, "action verbs") {
		t.Fatal("expected an action verb suggestion")
	}
	if !strings.Contains(joined, "Quantify") {
		t.Fatal("expected a quantification suggestion")
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	first := Analyze(sampleResume)
	for i := 0; i < 5; i++ {
		again := Analyze(sampleResume)
		if again.Score != first.Score ||
			again.ActionVerbCount != first.ActionVerbCount ||
			again.QuantifiedBullets != first.QuantifiedBullets {
			t.Fatalf("analysis not deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestScoreStaysInRange(t *testing.T) {
	for _, text := range []string{"", "short", sampleResume, strings.Repeat(sampleResume, 20)} {
		report := Analyze(text)
		if report.Score < 0 || report.Score > 100 {
			t.Fatalf("score out of range: %d", report.Score)
		}
	}
}
