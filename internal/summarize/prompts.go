package summarize

import "fmt"

func sectionPrompt(section string, number, total int) string {
	return fmt.Sprintf(`You are a student-focused assistant analyzing section %d of %d of a lecture transcript. Create a concise, structured summary that helps a student digest this part of the lecture.

Respond with a JSON object containing exactly these fields:
- "section_title": a very short, descriptive title for this section (string).
- "key_takeaways": 2-3 of the most critical concepts or conclusions, each a complete sentence (array of strings). Empty array if none.
- "new_vocabulary": 1-4 important keywords or technical terms, capitalized (array of strings). Empty array if none.
- "study_questions": 1-2 pointed questions a student should be able to answer after this section (array of strings).
- "examples": 1-2 specific examples, analogies, or illustrative scenarios mentioned in this section (array of strings). Empty array if none.
- "useful_references": up to 2 real, working URLs relevant to the content, as an array of objects with "title" and "url" fields. Prefer academic or educational sources. Empty array if none.

Respond ONLY with the JSON object. Do not include any other text or formatting.

Here is the section text:

%s`, number, total, section)
}

func flashcardPrompt(transcript string) string {
	return fmt.Sprintf(`Generate between 10 and 20 flashcards from the lecture transcript below.

Respond with a JSON array of objects, each with a "question" and an "answer" field, for example:
[{"question": "Q1", "answer": "A1"}, {"question": "Q2", "answer": "A2"}]

If no relevant flashcards can be generated, return an empty array [].
Respond ONLY with the JSON. Do not include any other text.

Here is the lecture transcript:

%s`, transcript)
}

func overallPrompt(transcript string) string {
	return fmt.Sprintf(`You are an expert academic note-taker creating comprehensive study notes from a lecture transcript. Capture the depth and nuance of the lecture for thorough understanding and exam preparation.

Organize the notes using the following EXACT section markers and instructions:

@@LECTURE_TITLE_START@@
[Infer a clear, concise title that captures the main theme of the entire lecture.]
@@LECTURE_TITLE_END@@

@@TOPIC_SUMMARY_START@@
[A single sentence summarizing the main theme of the lecture.]
@@TOPIC_SUMMARY_END@@

@@KEY_CONCEPTS_START@@
[Up to four key concepts as markdown bullets using '-'. Each concept is at most three words. If none are distinct, state 'None'.]
@@KEY_CONCEPTS_END@@

@@MAIN_POINTS_START@@
[Summarize the main ideas in the order they appear. Each bullet using '-' must be detailed and comprehensive, spanning multiple sentences where needed to fully explain the idea and its context. Do not write short, vague phrases. If no main points are discernible, state 'None'.]
@@MAIN_POINTS_END@@

@@CONCLUSION_TAKEAWAYS_START@@
[A short but comprehensive paragraph synthesizing the main conclusions of the lecture. A paragraph, not bullets.]
@@CONCLUSION_TAKEAWAYS_END@@

@@STUDY_QUESTIONS_START@@
[5-10 high-level study questions covering the main topics of the lecture, one per line. If none, state 'None'.]
@@STUDY_QUESTIONS_END@@

@@OPTIONAL_REFERENCES_START@@
[Up to 10 real, working reference URLs relevant to the lecture, as a JSON array of objects with "title" and "url" fields. Prefer academic or educational sources. Do not use markdown link syntax or add commentary outside the JSON array. If no references are found, return an empty array: [].]
@@OPTIONAL_REFERENCES_END@@

Here is the lecture transcript:

%s`, transcript)
}
