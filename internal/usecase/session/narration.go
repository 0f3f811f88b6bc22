package session

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/lessontutor/internal/domain"
)

// CompletionMessage is returned once the learner has walked past the last micro-section.
const CompletionMessage = "You've completed the entire lesson. Great work."

const tutorSystemPrompt = "You are an AI tutor helping a student understand lesson content. " +
	"Keep responses simple, direct, and focused on the lesson context."

func opening(lessonTitle, topic, subtopic, micro string) string {
	return fmt.Sprintf("Let's begin the lesson titled: %s.\nOur first topic is: %s.\nWe'll start with the subtopic: %s.\n\n%s",
		lessonTitle, topic, subtopic, micro)
}

func continuing(content string) string {
	return "Continuing...\n" + content
}

func newSubtopic(title, content string) string {
	return fmt.Sprintf("Moving on to a new subtopic: %s.\n\n%s", title, content)
}

func newTopic(title, content string) string {
	return fmt.Sprintf("Great progress so far.\nNow we will move into the next major topic: %s.\n\n%s", title, content)
}

func questionPrompt(question, topic, subtopic string, micro []string, context string) []domain.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Student Question: %s\n\n", question)
	fmt.Fprintf(&b, "Current Topic: %s\nSubtopic: %s\n\n", topic, subtopic)
	b.WriteString("Relevant Micro-Sections:\n")
	for _, m := range micro {
		fmt.Fprintf(&b, "- %s\n", m)
	}
	fmt.Fprintf(&b, "\nRetrieved Context:\n%s\n\n", context)
	b.WriteString("Respond in a clear and helpful way, as a tutor.")

	return []domain.Message{domain.SystemMessage(tutorSystemPrompt), domain.UserMessage(b.String())}
}
