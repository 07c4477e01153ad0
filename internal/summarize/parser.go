package summarize

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kt34/ai-notes/internal/logging"
)

var bulletPrefix = regexp.MustCompile(`^[-*\x{2022}]\s*`)

// ParseStructured extracts the named sections of a summary document into a
// StructuredSummary. Missing markers and "None"/"Not available" sentinels
// default the affected field only; malformed embedded JSON defaults to an
// empty list. Parsing never fails and is idempotent.
func ParseStructured(doc string) StructuredSummary {
	parsed := StructuredSummary{
		KeyConcepts:       []string{},
		MainPointsCovered: []string{},
		StudyQuestions:    []string{},
		References:        []Reference{},
		SectionSummaries:  []SectionSummary{},
		Flashcards:        []Flashcard{},
	}

	parsed.LectureTitle = parseScalar(doc, "LECTURE_TITLE")
	parsed.TopicSummarySentence = parseScalar(doc, "TOPIC_SUMMARY")
	parsed.ConclusionTakeaways = parseScalar(doc, "CONCLUSION_TAKEAWAYS")

	parsed.KeyConcepts = parseList(doc, "KEY_CONCEPTS")
	parsed.MainPointsCovered = parseList(doc, "MAIN_POINTS")
	parsed.StudyQuestions = parseList(doc, "STUDY_QUESTIONS")

	parseJSONSection(doc, "OPTIONAL_REFERENCES", &parsed.References)
	parseJSONSection(doc, "SECTION_SUMMARIES", &parsed.SectionSummaries)
	parseJSONSection(doc, "FLASHCARDS", &parsed.Flashcards)

	return parsed
}

// extractSpan returns the trimmed content between the first
// @@<name>_START@@ / @@<name>_END@@ pair, or false if either marker is
// missing.
func extractSpan(doc, name string) (string, bool) {
	startMarker := "@@" + name + "_START@@"
	endMarker := "@@" + name + "_END@@"

	start := strings.Index(doc, startMarker)
	if start < 0 {
		return "", false
	}
	rest := doc[start+len(startMarker):]
	end := strings.Index(rest, endMarker)
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

func isAbsent(content string) bool {
	switch strings.ToLower(content) {
	case "", "none", "not available":
		return true
	}
	return false
}

func warnMissingSection(name string) {
	log := logging.WithComponent("summarize")
	log.Warn().Str("section", name).Msg("summary section markers missing")
}

func parseScalar(doc, name string) string {
	content, ok := extractSpan(doc, name)
	if !ok {
		warnMissingSection(name)
		return ""
	}
	if isAbsent(content) {
		return ""
	}
	return content
}

func parseList(doc, name string) []string {
	content, ok := extractSpan(doc, name)
	if !ok {
		warnMissingSection(name)
		return []string{}
	}
	if isAbsent(content) {
		return []string{}
	}

	lines := []string{}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, bulletPrefix.ReplaceAllString(line, ""))
	}
	if len(lines) == 1 && isAbsent(lines[0]) {
		return []string{}
	}
	return lines
}

func parseJSONSection[T any](doc, name string, out *[]T) {
	content, ok := extractSpan(doc, name)
	if !ok {
		warnMissingSection(name)
		return
	}
	if isAbsent(content) || content == "[]" {
		return
	}

	var items []T
	if err := json.Unmarshal([]byte(content), &items); err != nil {
		log := logging.WithComponent("summarize")
		log.Warn().
			Err(err).
			Str("section", name).
			Str("content", content).
			Msg("invalid JSON in summary section")
		return
	}
	if items != nil {
		*out = items
	}
}
