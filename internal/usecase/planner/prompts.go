package planner

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/lessontutor/internal/domain"
)

// maxPromptContext caps the excerpt embedded in each planning prompt.
const maxPromptContext = 8000

const topicsSystemPrompt = `You are an expert curriculum designer.

Task:
- Read the provided document excerpt.
- Identify 3 to 7 high-level topics that would make sense to teach
  as separate parts of a lesson.

Rules:
- Return ONLY a JSON array of strings.
- Each string is a short topic title (max 8 words).
- The topics must be clearly grounded in the document content.
- Do NOT invent unrelated topics.
- If you are unsure, still produce 3 to 5 reasonable, generic topics.`

const subtopicsSystemPrompt = `You are an expert teacher creating a structured lesson.

Task:
- Given a TOPIC and a DOCUMENT EXCERPT, break the topic into 2 to 5 subtopics.

Rules:
- Return ONLY a JSON array of strings.
- Each subtopic title should be short (max 10 words).
- Subtopics must clearly belong under the given topic.
- Use ONLY information that is clearly supported by the document excerpt.
- You may summarize and group ideas, but do NOT introduce unrelated concepts.`

const microSystemPrompt = `You are an AI tutor speaking to a student.

Task:
- For the given TOPIC and SUBTOPIC, generate a sequence of micro-lessons.
- Each micro-lesson is 2-3 SHORT sentences.
- Speak in a friendly, conversational tone (like a real tutor).
- Progress from basic idea to slightly deeper understanding.

Rules:
- Return ONLY a JSON array of strings.
- Each string is ONE micro-lesson.
- Use ONLY information from the provided document excerpt.
- You may rephrase and simplify, but do NOT add external facts.
- Aim for 3 to 7 micro-lessons.`

func topicsPrompt(text string) []domain.Message {
	var b strings.Builder
	b.WriteString("Document excerpt:\n")
	b.WriteString(truncate(text, maxPromptContext))
	b.WriteString("\n\nNow return ONLY the JSON array of topic titles.")
	return []domain.Message{domain.SystemMessage(topicsSystemPrompt), domain.UserMessage(b.String())}
}

func subtopicsPrompt(topic, excerpt string) []domain.Message {
	user := fmt.Sprintf("TOPIC: %s\n\nRelevant document excerpt:\n%s\n\nNow return ONLY the JSON array of subtopic titles.",
		topic, truncate(excerpt, maxPromptContext))
	return []domain.Message{domain.SystemMessage(subtopicsSystemPrompt), domain.UserMessage(user)}
}

func microPrompt(topic, subtopic, excerpt string) []domain.Message {
	user := fmt.Sprintf("TOPIC: %s\nSUBTOPIC: %s\n\nRelevant document excerpt:\n%s\n\nNow return ONLY the JSON array of micro-lessons.",
		topic, subtopic, truncate(excerpt, maxPromptContext))
	return []domain.Message{domain.SystemMessage(microSystemPrompt), domain.UserMessage(user)}
}

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
