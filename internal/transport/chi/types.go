package chi

import (
	"time"

	"github.com/kailas-cloud/lessontutor/internal/domain/plan"
)

// ErrorResponseCode is the machine-readable error code in ErrorResponse.
type ErrorResponseCode string

// Error codes returned by the API.
const (
	ErrorResponseCodeBadRequest         ErrorResponseCode = "bad_request"
	ErrorResponseCodeUnauthorized       ErrorResponseCode = "unauthorized"
	ErrorResponseCodeLessonNotFound     ErrorResponseCode = "lesson_not_found"
	ErrorResponseCodeSessionNotFound    ErrorResponseCode = "session_not_found"
	ErrorResponseCodeNotFound           ErrorResponseCode = "not_found"
	ErrorResponseCodeInvalidDocument    ErrorResponseCode = "invalid_document"
	ErrorResponseCodeUnsupportedFormat  ErrorResponseCode = "unsupported_format"
	ErrorResponseCodePayloadTooLarge    ErrorResponseCode = "payload_too_large"
	ErrorResponseCodeLLMUnavailable     ErrorResponseCode = "llm_unavailable"
	ErrorResponseCodeEmbeddingProvider  ErrorResponseCode = "embedding_provider_error"
	ErrorResponseCodeInternalError      ErrorResponseCode = "internal_error"
	ErrorResponseCodeServiceUnavailable ErrorResponseCode = "service_unavailable"
	ErrorResponseCodeRequestCanceled    ErrorResponseCode = "request_canceled"
	ErrorResponseCodeValidationFailed   ErrorResponseCode = "validation_failed"
	ErrorResponseCodeMethodNotAllowed   ErrorResponseCode = "method_not_allowed"
	ErrorResponseCodeRouteNotFound      ErrorResponseCode = "route_not_found"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// LessonCreatedResponse is the body of POST /lessons.
type LessonCreatedResponse struct {
	Status        string    `json:"status"`
	LessonID      string    `json:"lesson_id"`
	Title         string    `json:"title"`
	CreatedAt     time.Time `json:"created_at"`
	Topics        int       `json:"topics"`
	Subtopics     int       `json:"subtopics"`
	MicroSections int       `json:"micro_sections"`
	Chunks        int       `json:"chunks"`
}

// LessonSummary is one entry of GET /lessons.
type LessonSummary struct {
	LessonID      string    `json:"lesson_id"`
	Title         string    `json:"title"`
	CreatedAt     time.Time `json:"created_at"`
	Topics        int       `json:"topics"`
	Subtopics     int       `json:"subtopics"`
	MicroSections int       `json:"micro_sections"`
}

// LessonListResponse is the body of GET /lessons.
type LessonListResponse struct {
	Lessons []LessonSummary `json:"lessons"`
}

// LessonPlanResponse is the body of GET /lessons/{lessonID}.
type LessonPlanResponse struct {
	LessonID string       `json:"lesson_id"`
	Title    string       `json:"title"`
	Topics   []plan.Topic `json:"topics"`
}

// StartSessionRequest is the body of POST /sessions.
type StartSessionRequest struct {
	UserID   string `json:"user_id"`
	LessonID string `json:"lesson_id"`
}

// AskRequest is the body of POST /sessions/{sessionID}/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// SessionStepResponse carries tutor narration for one step.
type SessionStepResponse struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
	Completed bool   `json:"completed"`
}

// AnswerResponse is the body of POST /sessions/{sessionID}/ask.
type AnswerResponse struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
}
