package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lessontutor/internal/domain"
	domlesson "github.com/kailas-cloud/lessontutor/internal/domain/lesson"
	healthuc "github.com/kailas-cloud/lessontutor/internal/usecase/health"
	sessionuc "github.com/kailas-cloud/lessontutor/internal/usecase/session"
)

// DefaultMaxUploadBytes bounds a lesson upload when no limit is configured.
const DefaultMaxUploadBytes int64 = 20 << 20

// multipartMemory is the part of an upload kept in memory; the rest spills to disk.
const multipartMemory = 8 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server implements ServerInterface on top of the lesson and session services.
type Server struct {
	lessons        LessonService
	sessions       SessionService
	health         HealthService
	extractor      Extractor
	maxUploadBytes int64
	logger         *zap.Logger
	errorHandlers  []errorHandler
}

var _ ServerInterface = (*Server)(nil)

// Option configures a Server.
type Option func(*Server)

// WithMaxUploadBytes caps the size of POST /lessons bodies.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// NewServer creates an HTTP API server.
func NewServer(
	lessons LessonService,
	sessions SessionService,
	health HealthService,
	extractor Extractor,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		lessons:        lessons,
		sessions:       sessions,
		health:         health,
		extractor:      extractor,
		maxUploadBytes: DefaultMaxUploadBytes,
		logger:         logger,
	}
	for _, o := range opts {
		o(s)
	}
	// Order matters: the specific not-found sentinels wrap ErrNotFound.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrLessonNotFound, http.StatusNotFound, ErrorResponseCodeLessonNotFound),
		sentinelHandler(domain.ErrSessionNotFound, http.StatusNotFound, ErrorResponseCodeSessionNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorResponseCodeNotFound),
		sentinelHandler(domain.ErrInvalidDocument, http.StatusBadRequest, ErrorResponseCodeInvalidDocument),
		sentinelHandler(domain.ErrUnsupportedFormat,
			http.StatusUnsupportedMediaType, ErrorResponseCodeUnsupportedFormat),
		sentinelHandler(domain.ErrUpstream, http.StatusBadGateway, ErrorResponseCodeLLMUnavailable),
		sentinelHandler(domain.ErrEmbeddingProviderError,
			http.StatusBadGateway, ErrorResponseCodeEmbeddingProvider),
		canceledHandler,
	}
	return s
}

// CreateLesson handles POST /lessons.
func (s *Server) CreateLesson(w http.ResponseWriter, r *http.Request, params CreateLessonParams) {
	if r.ContentLength > s.maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, ErrorResponseCodePayloadTooLarge, s.tooLargeMessage())
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorResponseCodePayloadTooLarge, s.tooLargeMessage())
			return
		}
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid multipart body: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, "Form field \"file\" is required")
		return
	}
	defer func() { _ = file.Close() }()

	if !s.extractor.Supported(header.Filename) {
		writeError(w, http.StatusUnsupportedMediaType, ErrorResponseCodeUnsupportedFormat,
			"Supported formats: .pdf, .txt, .md")
		return
	}

	text, err := s.extractor.Extract(header.Filename, file, header.Size)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	title := ""
	if params.Title != nil {
		title = strings.TrimSpace(*params.Title)
	}
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	summary, err := s.lessons.Create(ctx, title, text)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, LessonCreatedResponse{
		Status:        "lesson_created",
		LessonID:      summary.ID,
		Title:         summary.Title,
		CreatedAt:     summary.CreatedAt,
		Topics:        summary.Topics,
		Subtopics:     summary.Subtopics,
		MicroSections: summary.MicroSections,
		Chunks:        summary.Chunks,
	})
}

// ListLessons handles GET /lessons.
func (s *Server) ListLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := s.lessons.List(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]LessonSummary, len(lessons))
	for i, l := range lessons {
		items[i] = lessonToResponse(l)
	}
	writeJSON(w, http.StatusOK, LessonListResponse{Lessons: items})
}

// GetLesson handles GET /lessons/{lessonID}.
func (s *Server) GetLesson(w http.ResponseWriter, r *http.Request, lessonID string) {
	p, err := s.lessons.Get(r.Context(), lessonID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LessonPlanResponse{LessonID: lessonID, Title: p.Title, Topics: p.Topics})
}

// DeleteLesson handles DELETE /lessons/{lessonID}.
func (s *Server) DeleteLesson(w http.ResponseWriter, r *http.Request, lessonID string) {
	if err := s.lessons.Delete(r.Context(), lessonID); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartSession handles POST /sessions.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.LessonID) == "" {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, "lesson_id is required")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	started, err := s.sessions.Start(ctx, req.UserID, req.LessonID)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, SessionStepResponse{
		SessionID: started.SessionID,
		Content:   started.Content,
		Completed: started.Content == sessionuc.CompletionMessage,
	})
}

// GetSession handles GET /sessions/{sessionID}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	content, err := s.sessions.Current(r.Context(), sessionID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stepResponse(sessionID, content))
}

// NextStep handles POST /sessions/{sessionID}/next.
func (s *Server) NextStep(w http.ResponseWriter, r *http.Request, sessionID string) {
	content, err := s.sessions.Next(r.Context(), sessionID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stepResponse(sessionID, content))
}

// AskQuestion handles POST /sessions/{sessionID}/ask.
func (s *Server) AskQuestion(w http.ResponseWriter, r *http.Request, sessionID string) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, "question is required")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	answer, err := s.sessions.Ask(ctx, sessionID, question)
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AnswerResponse{SessionID: sessionID, Question: question, Answer: answer})
}

// EndSession handles DELETE /sessions/{sessionID}.
func (s *Server) EndSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := s.sessions.End(r.Context(), sessionID); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for name, res := range report.Checks {
		checks[name] = string(res)
	}

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) tooLargeMessage() string {
	return fmt.Sprintf("Upload exceeds %d MB", s.maxUploadBytes>>20)
}

func stepResponse(sessionID, content string) SessionStepResponse {
	return SessionStepResponse{
		SessionID: sessionID,
		Content:   content,
		Completed: content == sessionuc.CompletionMessage,
	}
}

func lessonToResponse(l domlesson.Summary) LessonSummary {
	return LessonSummary{
		LessonID:      l.ID,
		Title:         l.Title,
		CreatedAt:     l.CreatedAt,
		Topics:        l.Topics,
		Subtopics:     l.Subtopics,
		MicroSections: l.MicroSections,
	}
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if tokens, used := usage.Snapshot(); used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(tokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrLessonNotFound,
		domain.ErrSessionNotFound,
		domain.ErrNotFound,
		domain.ErrInvalidDocument,
		domain.ErrUnsupportedFormat,
		domain.ErrUpstream,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// canceledHandler answers requests abandoned by the client or cut by a deadline.
func canceledHandler(w http.ResponseWriter, err error, _ string) bool {
	switch {
	case errors.Is(err, context.Canceled):
		writeError(w, 499, ErrorResponseCodeRequestCanceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, ErrorResponseCodeServiceUnavailable, "request timed out")
	default:
		return false
	}
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorResponseCodeInternalError, "internal error")
}
