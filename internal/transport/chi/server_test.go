package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lessontutor/internal/domain"
	domlesson "github.com/kailas-cloud/lessontutor/internal/domain/lesson"
	"github.com/kailas-cloud/lessontutor/internal/domain/plan"
	healthuc "github.com/kailas-cloud/lessontutor/internal/usecase/health"
	sessionuc "github.com/kailas-cloud/lessontutor/internal/usecase/session"
)

// --- Mocks ---

type mockLessons struct {
	createFn  func(ctx context.Context, title, text string) (domlesson.Summary, error)
	lessons   []domlesson.Summary
	plans     map[string]plan.Plan
	deleteErr error
	title     string
	text      string
}

func (m *mockLessons) Create(ctx context.Context, title, text string) (domlesson.Summary, error) {
	m.title, m.text = title, text
	return m.createFn(ctx, title, text)
}

func (m *mockLessons) List(context.Context) ([]domlesson.Summary, error) { return m.lessons, nil }

func (m *mockLessons) Get(_ context.Context, id string) (plan.Plan, error) {
	p, ok := m.plans[id]
	if !ok {
		return plan.Plan{}, fmt.Errorf("get %s: %w", id, domain.ErrLessonNotFound)
	}
	return p, nil
}

func (m *mockLessons) Delete(context.Context, string) error { return m.deleteErr }

type mockSessions struct {
	startFn func(userID, lessonID string) (sessionuc.Started, error)
	steps   map[string]string
	askFn   func(sessionID, question string) (string, error)
	ended   []string
}

func (m *mockSessions) Start(_ context.Context, userID, lessonID string) (sessionuc.Started, error) {
	return m.startFn(userID, lessonID)
}

func (m *mockSessions) Current(_ context.Context, id string) (string, error) { return m.step(id) }

func (m *mockSessions) Next(_ context.Context, id string) (string, error) { return m.step(id) }

func (m *mockSessions) step(id string) (string, error) {
	s, ok := m.steps[id]
	if !ok {
		return "", domain.ErrSessionNotFound
	}
	return s, nil
}

func (m *mockSessions) Ask(_ context.Context, id, question string) (string, error) {
	return m.askFn(id, question)
}

func (m *mockSessions) End(_ context.Context, id string) error {
	if _, ok := m.steps[id]; !ok {
		return domain.ErrSessionNotFound
	}
	m.ended = append(m.ended, id)
	return nil
}

type mockHealth struct{ report healthuc.Report }

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

type mockExtractor struct {
	text string
	err  error
	name string
}

func (m *mockExtractor) Supported(name string) bool {
	return strings.HasSuffix(name, ".pdf") || strings.HasSuffix(name, ".txt")
}

func (m *mockExtractor) Extract(name string, r io.ReaderAt, size int64) (string, error) {
	m.name = name
	if m.err != nil {
		return "", m.err
	}
	if m.text != "" {
		return m.text, nil
	}
	buf := make([]byte, size)
	n, err := r.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return string(buf[:n]), nil
}

type fixture struct {
	lessons   *mockLessons
	sessions  *mockSessions
	health    *mockHealth
	extractor *mockExtractor
	handler   http.Handler
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		lessons: &mockLessons{
			createFn: func(ctx context.Context, title, _ string) (domlesson.Summary, error) {
				domain.UsageFromContext(ctx).AddTokens(42)
				return domlesson.Summary{ID: domlesson.Slug(title), Title: title, Topics: 2, Chunks: 3}, nil
			},
			plans: map[string]plan.Plan{"bio": {Title: "Bio", Topics: []plan.Topic{{ID: 1, Title: "Cells"}}}},
		},
		sessions: &mockSessions{
			startFn: func(userID, _ string) (sessionuc.Started, error) {
				return sessionuc.Started{SessionID: userID, Content: "opening"}, nil
			},
			steps: map[string]string{"u1": "m2", "done": sessionuc.CompletionMessage},
			askFn: func(_, _ string) (string, error) { return "Because.", nil },
		},
		health:    &mockHealth{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{}}},
		extractor: &mockExtractor{},
	}
	s := NewServer(f.lessons, f.sessions, f.health, f.extractor, nil, opts...)
	f.handler = NewRouter(s, nil, nil)
	return f
}

func (f *fixture) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

// --- Lessons ---

func TestCreateLesson(t *testing.T) {
	f := newFixture(t)
	body, ct := multipartBody(t, "file", "notes.txt", "Cells are small.")

	rr := f.do(t, http.MethodPost, "/lessons?title=Cell%20Biology", body, ct)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}

	var resp LessonCreatedResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "lesson_created" || resp.LessonID != "cell_biology" || resp.Title != "Cell Biology" {
		t.Errorf("unexpected response %+v", resp)
	}
	if f.lessons.text != "Cells are small." {
		t.Errorf("service received %q", f.lessons.text)
	}
	if got := rr.Header().Get("X-Embedding-Tokens"); got != "42" {
		t.Errorf("X-Embedding-Tokens = %q, want 42", got)
	}
}

func TestCreateLesson_TitleFromFilename(t *testing.T) {
	f := newFixture(t)
	body, ct := multipartBody(t, "file", "Photosynthesis.pdf", "light")

	rr := f.do(t, http.MethodPost, "/lessons", body, ct)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	if f.lessons.title != "Photosynthesis" {
		t.Errorf("title = %q", f.lessons.title)
	}
}

func TestCreateLesson_Errors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *fixture)
		field    string
		filename string
		wantCode int
		wantErr  ErrorResponseCode
	}{
		{"missing file field", nil, "upload", "a.txt", http.StatusBadRequest, ErrorResponseCodeValidationFailed},
		{"unsupported extension", nil, "file", "a.docx", http.StatusUnsupportedMediaType, ErrorResponseCodeUnsupportedFormat},
		{"unreadable pdf", func(f *fixture) {
			f.extractor.err = fmt.Errorf("extract a.pdf: %w", domain.ErrInvalidDocument)
		}, "file", "a.pdf", http.StatusBadRequest, ErrorResponseCodeInvalidDocument},
		{"empty document", func(f *fixture) {
			f.lessons.createFn = func(context.Context, string, string) (domlesson.Summary, error) {
				return domlesson.Summary{}, fmt.Errorf("%w: no text", domain.ErrInvalidDocument)
			}
		}, "file", "a.txt", http.StatusBadRequest, ErrorResponseCodeInvalidDocument},
		{"embedding provider down", func(f *fixture) {
			f.lessons.createFn = func(context.Context, string, string) (domlesson.Summary, error) {
				return domlesson.Summary{}, fmt.Errorf("build: %w", domain.ErrEmbeddingProviderError)
			}
		}, "file", "a.txt", http.StatusBadGateway, ErrorResponseCodeEmbeddingProvider},
		{"storage failure", func(f *fixture) {
			f.lessons.createFn = func(context.Context, string, string) (domlesson.Summary, error) {
				return domlesson.Summary{}, errors.New("disk full")
			}
		}, "file", "a.txt", http.StatusInternalServerError, ErrorResponseCodeInternalError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			if tc.setup != nil {
				tc.setup(f)
			}
			body, ct := multipartBody(t, tc.field, tc.filename, "text")

			rr := f.do(t, http.MethodPost, "/lessons?title=T", body, ct)
			if rr.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tc.wantCode, rr.Body)
			}
			resp := decodeError(t, rr)
			if resp.Code != tc.wantErr {
				t.Errorf("code = %s, want %s", resp.Code, tc.wantErr)
			}
			if tc.wantCode == http.StatusInternalServerError && resp.Message != "internal error" {
				t.Errorf("internal details leaked: %q", resp.Message)
			}
		})
	}
}

func TestCreateLesson_NotMultipart(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodPost, "/lessons", strings.NewReader(`{"a":1}`), "application/json")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestCreateLesson_TooLarge(t *testing.T) {
	f := newFixture(t, WithMaxUploadBytes(1<<20))
	body, ct := multipartBody(t, "file", "big.txt", strings.Repeat("x", 2<<20))

	rr := f.do(t, http.MethodPost, "/lessons", body, ct)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != ErrorResponseCodePayloadTooLarge {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestCreateLesson_TooLargeWithoutContentLength(t *testing.T) {
	f := newFixture(t, WithMaxUploadBytes(1<<20))
	body, ct := multipartBody(t, "file", "big.txt", strings.Repeat("x", 2<<20))

	req := httptest.NewRequest(http.MethodPost, "/lessons", io.NopCloser(body))
	req.ContentLength = -1
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rr.Code)
	}
}

func TestListLessons(t *testing.T) {
	f := newFixture(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	f.lessons.lessons = []domlesson.Summary{{ID: "bio", Title: "Bio", CreatedAt: created, Topics: 3}}

	rr := f.do(t, http.MethodGet, "/lessons", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp LessonListResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Lessons) != 1 || resp.Lessons[0].LessonID != "bio" || !resp.Lessons[0].CreatedAt.Equal(created) {
		t.Errorf("unexpected lessons %+v", resp.Lessons)
	}
}

func TestListLessons_EmptyIsArray(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/lessons", nil, "")
	if !strings.Contains(rr.Body.String(), `"lessons":[]`) {
		t.Errorf("expected empty array, got %s", rr.Body)
	}
}

func TestGetLesson(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/lessons/bio", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp LessonPlanResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.LessonID != "bio" || resp.Title != "Bio" || resp.Topics[0].Title != "Cells" {
		t.Errorf("unexpected plan %+v", resp)
	}

	rr = f.do(t, http.MethodGet, "/lessons/missing", nil, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing lesson status = %d", rr.Code)
	}
	resp404 := decodeError(t, rr)
	if resp404.Code != ErrorResponseCodeLessonNotFound || resp404.Message != domain.ErrLessonNotFound.Error() {
		t.Errorf("unexpected error %+v", resp404)
	}
}

func TestDeleteLesson(t *testing.T) {
	f := newFixture(t)
	if rr := f.do(t, http.MethodDelete, "/lessons/bio", nil, ""); rr.Code != http.StatusNoContent {
		t.Errorf("status = %d", rr.Code)
	}

	f.lessons.deleteErr = domain.ErrLessonNotFound
	if rr := f.do(t, http.MethodDelete, "/lessons/bio", nil, ""); rr.Code != http.StatusNotFound {
		t.Errorf("missing lesson status = %d", rr.Code)
	}
}

// --- Sessions ---

func TestStartSession(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/sessions", strings.NewReader(`{"user_id":"u1","lesson_id":"bio"}`), "application/json")
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	var resp SessionStepResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.SessionID != "u1" || resp.Content != "opening" || resp.Completed {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestStartSession_Validation(t *testing.T) {
	f := newFixture(t)

	if rr := f.do(t, http.MethodPost, "/sessions", strings.NewReader(`{`), "application/json"); rr.Code != http.StatusBadRequest {
		t.Errorf("bad json status = %d", rr.Code)
	}
	rr := f.do(t, http.MethodPost, "/sessions", strings.NewReader(`{"user_id":"u1"}`), "application/json")
	if rr.Code != http.StatusBadRequest || decodeError(t, rr).Code != ErrorResponseCodeValidationFailed {
		t.Errorf("missing lesson_id status = %d", rr.Code)
	}

	f.sessions.startFn = func(string, string) (sessionuc.Started, error) {
		return sessionuc.Started{}, fmt.Errorf("load lesson: %w", domain.ErrLessonNotFound)
	}
	rr = f.do(t, http.MethodPost, "/sessions", strings.NewReader(`{"lesson_id":"nope"}`), "application/json")
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown lesson status = %d", rr.Code)
	}
}

func TestSessionSteps(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct {
		method, path string
		wantStatus   int
		wantDone     bool
	}{
		{http.MethodGet, "/sessions/u1", http.StatusOK, false},
		{http.MethodPost, "/sessions/u1/next", http.StatusOK, false},
		{http.MethodPost, "/sessions/done/next", http.StatusOK, true},
		{http.MethodGet, "/sessions/ghost", http.StatusNotFound, false},
		{http.MethodPost, "/sessions/ghost/next", http.StatusNotFound, false},
	} {
		rr := f.do(t, tc.method, tc.path, nil, "")
		if rr.Code != tc.wantStatus {
			t.Errorf("%s %s: status = %d, want %d", tc.method, tc.path, rr.Code, tc.wantStatus)
			continue
		}
		if rr.Code != http.StatusOK {
			if code := decodeError(t, rr).Code; code != ErrorResponseCodeSessionNotFound {
				t.Errorf("%s %s: code = %s", tc.method, tc.path, code)
			}
			continue
		}
		var resp SessionStepResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Completed != tc.wantDone {
			t.Errorf("%s %s: completed = %v", tc.method, tc.path, resp.Completed)
		}
	}
}

func TestAskQuestion(t *testing.T) {
	f := newFixture(t)
	var gotQuestion string
	f.sessions.askFn = func(_, q string) (string, error) {
		gotQuestion = q
		return "Because of sunlight.", nil
	}

	rr := f.do(t, http.MethodPost, "/sessions/u1/ask", strings.NewReader(`{"question":"  why?  "}`), "application/json")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	var resp AnswerResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "Because of sunlight." || gotQuestion != "why?" {
		t.Errorf("unexpected answer %+v (question %q)", resp, gotQuestion)
	}
}

func TestAskQuestion_Errors(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/sessions/u1/ask", strings.NewReader(`{"question":" "}`), "application/json")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("blank question status = %d", rr.Code)
	}

	f.sessions.askFn = func(string, string) (string, error) {
		return "", fmt.Errorf("answer question: %w", domain.NewUpstreamError(2, errors.New("connection refused")))
	}
	rr = f.do(t, http.MethodPost, "/sessions/u1/ask", strings.NewReader(`{"question":"why?"}`), "application/json")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("upstream status = %d", rr.Code)
	}
	resp := decodeError(t, rr)
	if resp.Code != ErrorResponseCodeLLMUnavailable || strings.Contains(resp.Message, "refused") {
		t.Errorf("unexpected error body %+v", resp)
	}
}

func TestAskQuestion_AbandonedRequest(t *testing.T) {
	f := newFixture(t)
	f.sessions.askFn = func(string, string) (string, error) {
		return "", fmt.Errorf("answer question: %w", fmt.Errorf("llm call: %w", context.Canceled))
	}

	rr := f.do(t, http.MethodPost, "/sessions/u1/ask", strings.NewReader(`{"question":"why?"}`), "application/json")
	if rr.Code != 499 {
		t.Fatalf("status = %d, want 499", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != ErrorResponseCodeRequestCanceled {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestEndSession(t *testing.T) {
	f := newFixture(t)
	if rr := f.do(t, http.MethodDelete, "/sessions/u1", nil, ""); rr.Code != http.StatusNoContent {
		t.Errorf("status = %d", rr.Code)
	}
	if len(f.sessions.ended) != 1 || f.sessions.ended[0] != "u1" {
		t.Errorf("ended = %v", f.sessions.ended)
	}
	if rr := f.do(t, http.MethodDelete, "/sessions/ghost", nil, ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown session status = %d", rr.Code)
	}
}

// --- Health, routing, middleware ---

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status healthuc.Status
		want   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusServiceUnavailable},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		f := newFixture(t)
		f.health.report = healthuc.Report{
			Status: tc.status,
			Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK, "llm": healthuc.CheckError},
		}

		rr := f.do(t, http.MethodGet, "/health", nil, "")
		if rr.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.status, rr.Code, tc.want)
		}
		var resp HealthResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Status != string(tc.status) || resp.Checks["llm"] != "error" {
			t.Errorf("unexpected body %+v", resp)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/lessons", nil, "")

	rr := f.do(t, http.MethodGet, "/metrics", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "lessontutor_http_requests_total") {
		t.Error("expected http metrics in exposition")
	}
}

func TestRouting_UnknownRouteAndMethod(t *testing.T) {
	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/nope", nil, "")
	if rr.Code != http.StatusNotFound || decodeError(t, rr).Code != ErrorResponseCodeRouteNotFound {
		t.Errorf("unknown route: %d", rr.Code)
	}
	rr = f.do(t, http.MethodPut, "/sessions/u1", nil, "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method: %d", rr.Code)
	}
}

func TestRouter_SetsRequestID(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/health", nil, "")
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestRouter_AuthEnforced(t *testing.T) {
	f := newFixture(t)
	s := NewServer(f.lessons, f.sessions, f.health, f.extractor, nil)
	h := NewRouter(s, []string{"secret"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/lessons", http.NoBody)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/lessons", http.NoBody)
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("authenticated status = %d", rr.Code)
	}
}

func TestJSONRecoverer(t *testing.T) {
	h := JSONRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != ErrorResponseCodeInternalError {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestHandleDomainError_Canceled(t *testing.T) {
	s := NewServer(nil, nil, nil, nil, nil)

	rr := httptest.NewRecorder()
	s.handleDomainError(rr, fmt.Errorf("plan: %w", context.DeadlineExceeded))
	if rr.Code != http.StatusGatewayTimeout {
		t.Errorf("deadline status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	s.handleDomainError(rr, context.Canceled)
	if rr.Code != 499 {
		t.Errorf("canceled status = %d", rr.Code)
	}
}
