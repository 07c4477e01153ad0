package summarize

import "strings"

// DefaultSectionWords is the section size used when no override is configured.
const DefaultSectionWords = 500

// SplitSections splits a transcript into chunks of at most maxWords words,
// preserving word order with no overlap. The last chunk may be shorter. An
// empty or whitespace-only transcript yields zero sections.
func SplitSections(transcript string, maxWords int) []string {
	if maxWords <= 0 {
		maxWords = DefaultSectionWords
	}

	words := strings.Fields(transcript)
	if len(words) == 0 {
		return nil
	}

	sections := make([]string, 0, (len(words)+maxWords-1)/maxWords)
	for start := 0; start < len(words); start += maxWords {
		end := start + maxWords
		if end > len(words) {
			end = len(words)
		}
		sections = append(sections, strings.Join(words[start:end], " "))
	}
	return sections
}
