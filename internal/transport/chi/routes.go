package chi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface lists every API operation.
type ServerInterface interface {
	// (POST /lessons)
	CreateLesson(w http.ResponseWriter, r *http.Request, params CreateLessonParams)
	// (GET /lessons)
	ListLessons(w http.ResponseWriter, r *http.Request)
	// (GET /lessons/{lessonID})
	GetLesson(w http.ResponseWriter, r *http.Request, lessonID string)
	// (DELETE /lessons/{lessonID})
	DeleteLesson(w http.ResponseWriter, r *http.Request, lessonID string)
	// (POST /sessions)
	StartSession(w http.ResponseWriter, r *http.Request)
	// (GET /sessions/{sessionID})
	GetSession(w http.ResponseWriter, r *http.Request, sessionID string)
	// (POST /sessions/{sessionID}/next)
	NextStep(w http.ResponseWriter, r *http.Request, sessionID string)
	// (POST /sessions/{sessionID}/ask)
	AskQuestion(w http.ResponseWriter, r *http.Request, sessionID string)
	// (DELETE /sessions/{sessionID})
	EndSession(w http.ResponseWriter, r *http.Request, sessionID string)
	// (GET /health)
	HealthCheck(w http.ResponseWriter, r *http.Request)
	// (GET /metrics)
	Metrics(w http.ResponseWriter, r *http.Request)
}

// CreateLessonParams are the query parameters of POST /lessons.
type CreateLessonParams struct {
	Title *string `form:"title,omitempty" json:"title,omitempty"`
}

// RouterOptions configures Handler.
type RouterOptions struct {
	BaseRouter       chi.Router
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// InvalidParamFormatError reports a parameter that could not be bound.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

// wrapper binds path and query parameters before calling the handler.
type wrapper struct {
	handler      ServerInterface
	errorHandler func(w http.ResponseWriter, r *http.Request, err error)
}

// Handler mounts every route of si on the base router.
func Handler(si ServerInterface, opts RouterOptions) http.Handler {
	r := opts.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	errorHandler := opts.ErrorHandlerFunc
	if errorHandler == nil {
		errorHandler = func(w http.ResponseWriter, _ *http.Request, err error) {
			writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, err.Error())
		}
	}
	wr := &wrapper{handler: si, errorHandler: errorHandler}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorResponseCodeRouteNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorResponseCodeMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", si.HealthCheck)
	r.Get("/metrics", si.Metrics)

	r.Route("/lessons", func(r chi.Router) {
		r.Post("/", wr.createLesson)
		r.Get("/", si.ListLessons)
		r.Get("/{lessonID}", wr.withPathParam("lessonID", si.GetLesson))
		r.Delete("/{lessonID}", wr.withPathParam("lessonID", si.DeleteLesson))
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", si.StartSession)
		r.Get("/{sessionID}", wr.withPathParam("sessionID", si.GetSession))
		r.Delete("/{sessionID}", wr.withPathParam("sessionID", si.EndSession))
		r.Post("/{sessionID}/next", wr.withPathParam("sessionID", si.NextStep))
		r.Post("/{sessionID}/ask", wr.withPathParam("sessionID", si.AskQuestion))
	})

	return r
}

func (wr *wrapper) createLesson(w http.ResponseWriter, r *http.Request) {
	var params CreateLessonParams
	err := runtime.BindQueryParameter("form", true, false, "title", r.URL.Query(), &params.Title)
	if err != nil {
		wr.errorHandler(w, r, &InvalidParamFormatError{ParamName: "title", Err: err})
		return
	}
	wr.handler.CreateLesson(w, r, params)
}

func (wr *wrapper) withPathParam(
	name string, next func(w http.ResponseWriter, r *http.Request, value string),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var value string
		err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &value,
			runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
		if err != nil {
			wr.errorHandler(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
			return
		}
		next(w, r, value)
	}
}
