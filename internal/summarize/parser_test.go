package summarize

import (
	"reflect"
	"testing"
)

const fullDoc = `@@LECTURE_TITLE_START@@
Introduction to Photosynthesis
@@LECTURE_TITLE_END@@

@@TOPIC_SUMMARY_START@@
Plants convert light into chemical energy through photosynthesis.
@@TOPIC_SUMMARY_END@@

@@KEY_CONCEPTS_START@@
- Chlorophyll
* Light reactions
• Calvin cycle
@@KEY_CONCEPTS_END@@

@@MAIN_POINTS_START@@
- Photosynthesis occurs in chloroplasts and converts carbon dioxide and water into glucose.
- The light-dependent reactions capture energy while the Calvin cycle fixes carbon.
@@MAIN_POINTS_END@@

@@CONCLUSION_TAKEAWAYS_START@@
Photosynthesis is the foundation of nearly all food chains on Earth.
@@CONCLUSION_TAKEAWAYS_END@@

@@STUDY_QUESTIONS_START@@
Where does photosynthesis take place?
What do the light-dependent reactions produce?
@@STUDY_QUESTIONS_END@@

@@OPTIONAL_REFERENCES_START@@
[{"title": "Photosynthesis", "url": "https://www.khanacademy.org/science/biology/photosynthesis-in-plants"}]
@@OPTIONAL_REFERENCES_END@@

@@SECTION_SUMMARIES_START@@
[{"section_title": "Overview", "key_takeaways": ["Plants make their own food."], "new_vocabulary": ["Chloroplast"], "study_questions": [], "examples": [], "useful_references": []}]
@@SECTION_SUMMARIES_END@@

@@FLASHCARDS_START@@
[{"question": "What pigment absorbs light?", "answer": "Chlorophyll."}]
@@FLASHCARDS_END@@`

func TestParseStructuredFullDocument(t *testing.T) {
	parsed := ParseStructured(fullDoc)

	if parsed.LectureTitle != "Introduction to Photosynthesis" {
		t.Errorf("LectureTitle = %q", parsed.LectureTitle)
	}
	if parsed.TopicSummarySentence != "Plants convert light into chemical energy through photosynthesis." {
		t.Errorf("TopicSummarySentence = %q", parsed.TopicSummarySentence)
	}

	wantConcepts := []string{"Chlorophyll", "Light reactions", "Calvin cycle"}
	if !reflect.DeepEqual(parsed.KeyConcepts, wantConcepts) {
		t.Errorf("KeyConcepts = %#v, want %#v", parsed.KeyConcepts, wantConcepts)
	}
	if len(parsed.MainPointsCovered) != 2 {
		t.Errorf("MainPointsCovered = %#v", parsed.MainPointsCovered)
	}
	if parsed.ConclusionTakeaways == "" {
		t.Error("ConclusionTakeaways is empty")
	}
	if len(parsed.StudyQuestions) != 2 {
		t.Errorf("StudyQuestions = %#v", parsed.StudyQuestions)
	}
	if len(parsed.References) != 1 || parsed.References[0].Title != "Photosynthesis" {
		t.Errorf("References = %#v", parsed.References)
	}
	if len(parsed.SectionSummaries) != 1 || parsed.SectionSummaries[0].SectionTitle != "Overview" {
		t.Errorf("SectionSummaries = %#v", parsed.SectionSummaries)
	}
	if len(parsed.Flashcards) != 1 || parsed.Flashcards[0].Answer != "Chlorophyll." {
		t.Errorf("Flashcards = %#v", parsed.Flashcards)
	}
}

func TestParseStructuredIdempotent(t *testing.T) {
	first := ParseStructured(fullDoc)
	second := ParseStructured(fullDoc)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("repeated parses of the same document differ")
	}
}

func TestParseStructuredMissingMarker(t *testing.T) {
	doc := `@@LECTURE_TITLE_START@@
Orphaned Title
@@LECTURE_TITLE_END@@`

	parsed := ParseStructured(doc)
	if parsed.LectureTitle != "Orphaned Title" {
		t.Errorf("LectureTitle = %q", parsed.LectureTitle)
	}
	if parsed.TopicSummarySentence != "" {
		t.Errorf("TopicSummarySentence = %q, want empty", parsed.TopicSummarySentence)
	}
	if len(parsed.KeyConcepts) != 0 || len(parsed.Flashcards) != 0 {
		t.Error("missing sections must default, not corrupt other fields")
	}
}

func TestParseStructuredNoneSentinels(t *testing.T) {
	doc := `@@LECTURE_TITLE_START@@
None
@@LECTURE_TITLE_END@@
@@KEY_CONCEPTS_START@@
- None
@@KEY_CONCEPTS_END@@
@@STUDY_QUESTIONS_START@@
Not Available
@@STUDY_QUESTIONS_END@@
@@OPTIONAL_REFERENCES_START@@
[]
@@OPTIONAL_REFERENCES_END@@`

	parsed := ParseStructured(doc)
	if parsed.LectureTitle != "" {
		t.Errorf("LectureTitle = %q, want empty", parsed.LectureTitle)
	}
	if len(parsed.KeyConcepts) != 0 {
		t.Errorf("KeyConcepts = %#v, want empty", parsed.KeyConcepts)
	}
	if len(parsed.StudyQuestions) != 0 {
		t.Errorf("StudyQuestions = %#v, want empty", parsed.StudyQuestions)
	}
	if len(parsed.References) != 0 {
		t.Errorf("References = %#v, want empty", parsed.References)
	}
}

func TestParseStructuredInvalidJSON(t *testing.T) {
	doc := `@@FLASHCARDS_START@@
this is not json
@@FLASHCARDS_END@@
@@LECTURE_TITLE_START@@
Still Parses
@@LECTURE_TITLE_END@@`

	parsed := ParseStructured(doc)
	if len(parsed.Flashcards) != 0 {
		t.Errorf("Flashcards = %#v, want empty", parsed.Flashcards)
	}
	if parsed.LectureTitle != "Still Parses" {
		t.Errorf("LectureTitle = %q", parsed.LectureTitle)
	}
}

func TestParseStructuredFirstSpanWins(t *testing.T) {
	doc := `@@LECTURE_TITLE_START@@
First Title
@@LECTURE_TITLE_END@@
@@LECTURE_TITLE_START@@
Second Title
@@LECTURE_TITLE_END@@`

	parsed := ParseStructured(doc)
	if parsed.LectureTitle != "First Title" {
		t.Errorf("LectureTitle = %q, want %q", parsed.LectureTitle, "First Title")
	}
}
