// Package resume scores resume text deterministically. No model call; the
// same input always produces the same report.
package resume

import (
	"regexp"
	"strings"
)

// Section labels recognized in resume text.
type Section string

const (
	Contact    Section = "contact"
	Summary    Section = "summary"
	Experience Section = "experience"
	Education  Section = "education"
	Skills     Section = "skills"
	Projects   Section = "projects"
)

// SectionCheck reports whether one expected section was found.
type SectionCheck struct {
	Section Section `json:"section"`
	Found   bool    `json:"found"`
}

// Report is the structured result of one analysis pass.
type Report struct {
	Score             int            `json:"score"` // 0-100
	WordCount         int            `json:"wordCount"`
	Sections          []SectionCheck `json:"sections"`
	ActionVerbCount   int            `json:"actionVerbCount"`
	QuantifiedBullets int            `json:"quantifiedBullets"`
	Suggestions       []string       `json:"suggestions"`
}

var sectionMarkers = map[Section][]string{
	Contact:    {"@", "phone", "linkedin", "github"},
	Summary:    {"summary", "objective", "profile", "about me"},
	Experience: {"experience", "employment", "work history", "professional background"},
	Education:  {"education", "degree", "university", "bachelor", "master", "b.s.", "m.s."},
	Skills:     {"skills", "technologies", "proficiencies", "tools"},
	Projects:   {"projects", "portfolio", "open source"},
}

// sectionOrder keeps report output stable across runs.
var sectionOrder = []Section{Contact, Summary, Experience, Education, Skills, Projects}

var actionVerbs = []string{
	"achieved", "built", "created", "delivered", "designed", "developed",
	"drove", "improved", "increased", "launched", "led", "managed",
	"optimized", "owned", "reduced", "shipped", "scaled", "streamlined",
}

var quantifiedPattern = regexp.MustCompile(`\d+(\.\d+)?\s*(%|percent|x\b|k\b|users|customers|ms\b|req)`)

// Analyze produces a report for one resume's plain text.
func Analyze(text string) Report {
	normalized := strings.ToLower(text)
	words := strings.Fields(text)

	report := Report{WordCount: len(words)}

	found := 0
	for _, section := range sectionOrder {
		hit := containsAny(normalized, sectionMarkers[section])
		if hit {
			found++
		}
		report.Sections = append(report.Sections, SectionCheck{Section: section, Found: hit})
	}

	for _, verb := range actionVerbs {
		report.ActionVerbCount += strings.Count(normalized, verb)
	}
	report.QuantifiedBullets = len(quantifiedPattern.FindAllString(normalized, -1))

	report.Score = score(report, found)
	report.Suggestions = suggestions(report)
	return report
}

func score(r Report, sectionsFound int) int {
	s := sectionsFound * 10 // up to 60
	if r.ActionVerbCount > 0 {
		s += min(r.ActionVerbCount*3, 20)
	}
	if r.QuantifiedBullets > 0 {
		s += min(r.QuantifiedBullets*4, 20)
	}
	if r.WordCount < 120 || r.WordCount > 1200 {
		s -= 10
	}
	if s < 0 {
		s = 0
	}
	if s > 100 {
		s = 100
	}
	return s
}

func suggestions(r Report) []string {
	var out []string
	for _, check := range r.Sections {
		if check.Found {
			continue
		}
		switch check.Section {
		case Contact:
			out = append(out, "Add contact details: an email address and a LinkedIn or GitHub link.")
		case Summary:
			out = append(out, "Open with a two-line summary targeting the role you want.")
		case Experience:
			out = append(out, "Add a work experience section with dated roles.")
		case Education:
			out = append(out, "List your education or relevant certifications.")
		case Skills:
			out = append(out, "Add a skills section naming concrete tools and technologies.")
		case Projects:
			out = append(out, "Consider a projects section to show work outside of employment.")
		}
	}
	if r.ActionVerbCount < 3 {
		out = append(out, "Start bullet points with strong action verbs (led, built, reduced).")
	}
	if r.QuantifiedBullets < 2 {
		out = append(out, "Quantify impact: numbers, percentages, and scale make bullets credible.")
	}
	if r.WordCount < 120 {
		out = append(out, "The resume reads thin; expand your most recent role with outcomes.")
	}
	if r.WordCount > 1200 {
		out = append(out, "Trim to the strongest material; aim for one to two pages.")
	}
	return out
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
