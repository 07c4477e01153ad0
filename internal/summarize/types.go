// Package summarize turns a completed lecture transcript into a
// marker-delimited study-notes document and parses that document into a
// structured record.
package summarize

// Reference is a single external resource suggested by the model.
type Reference struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// SectionSummary is the structured summary of one transcript section.
type SectionSummary struct {
	SectionTitle     string      `json:"section_title"`
	KeyTakeaways     []string    `json:"key_takeaways"`
	NewVocabulary    []string    `json:"new_vocabulary"`
	StudyQuestions   []string    `json:"study_questions"`
	Examples         []string    `json:"examples"`
	UsefulReferences []Reference `json:"useful_references"`
}

// Flashcard is one question/answer pair generated from the full transcript.
type Flashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// StructuredSummary is the canonical parsed form of a summary document.
// It is the field set persisted with each lecture.
type StructuredSummary struct {
	LectureTitle         string           `json:"lecture_title"`
	TopicSummarySentence string           `json:"topic_summary_sentence"`
	KeyConcepts          []string         `json:"key_concepts"`
	MainPointsCovered    []string         `json:"main_points_covered"`
	ConclusionTakeaways  string           `json:"conclusion_takeaways"`
	StudyQuestions       []string         `json:"study_questions"`
	References           []Reference      `json:"references"`
	SectionSummaries     []SectionSummary `json:"section_summaries"`
	Flashcards           []Flashcard      `json:"flashcards"`
}
