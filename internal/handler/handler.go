// Package handler exposes the JSON API. Reads come from the catalog cache;
// writes go to the store, whose change notifications refresh the cache.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shabonaa/exambuilder/internal/attempt"
	"github.com/shabonaa/exambuilder/internal/auth"
	"github.com/shabonaa/exambuilder/internal/catalog"
	appI18n "github.com/shabonaa/exambuilder/internal/i18n"
	"github.com/shabonaa/exambuilder/internal/llm"
	"github.com/shabonaa/exambuilder/internal/model"
	"github.com/shabonaa/exambuilder/internal/store"
)

// Config holds handler-level settings.
type Config struct {
	// SecureCookies marks the session cookie Secure; keep it off for plain
	// HTTP during development.
	SecureCookies bool
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	catalog  *catalog.Cache
	auth     *auth.Service
	attempts *attempt.Manager
	llm      *llm.Client // nil when drafting is not configured
	config   Config
}

// New creates a new Handler.
func New(s *store.Store, c *catalog.Cache, a *auth.Service, m *attempt.Manager, l *llm.Client, cfg Config) *Handler {
	return &Handler{store: s, catalog: c, auth: a, attempts: m, llm: l, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/students/register", h.handleRegisterStudent)
		r.Post("/auth/students/login", h.handleLoginStudent)
		r.Post("/auth/teachers/register", h.handleRegisterTeacher)
		r.Post("/auth/teachers/login", h.handleLoginTeacher)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/auth/logout", h.handleLogout)
			r.Get("/auth/me", h.handleMe)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth, requireRole(model.RoleStudent))
			r.Get("/exams", h.handleListActiveExams)
			r.Get("/exams/{examID}/intro", h.handleExamIntro)
			r.Get("/results", h.handleMyResults)

			r.Post("/attempts", h.handleStartAttempt)
			r.Route("/attempts/{attemptID}", func(r chi.Router) {
				r.Get("/", h.handleGetAttempt)
				r.Post("/begin", h.attemptAction(func(e *attempt.Engine, _ *http.Request) error { return e.Begin() }))
				r.Post("/answer", h.handleAnswer)
				r.Post("/next", h.attemptAction(func(e *attempt.Engine, _ *http.Request) error { e.Next(); return nil }))
				r.Post("/prev", h.attemptAction(func(e *attempt.Engine, _ *http.Request) error { e.Prev(); return nil }))
				r.Post("/goto", h.handleJumpTo)
				r.Post("/finish", h.attemptAction(func(e *attempt.Engine, _ *http.Request) error { return e.Finish() }))
				r.Post("/confirm", h.attemptAction(func(e *attempt.Engine, _ *http.Request) error { return e.ConfirmFinish() }))
				r.Post("/return", h.attemptAction(func(e *attempt.Engine, _ *http.Request) error { return e.ReturnToExam() }))
				r.Get("/review", h.handleAttemptReview)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAuth, requireRole(model.RoleTeacher))
			r.Get("/exams", h.handleAdminListExams)
			r.Post("/exams", h.handleCreateExam)
			r.Put("/exams/{examID}", h.handleUpdateExam)
			r.Delete("/exams/{examID}", h.handleDeleteExam)

			r.Get("/exams/{examID}/questions", h.handleListQuestions)
			r.Post("/exams/{examID}/questions", h.handleCreateQuestion)
			r.Put("/questions/{questionID}", h.handleUpdateQuestion)
			r.Delete("/questions/{questionID}", h.handleDeleteQuestion)

			r.Post("/exams/{examID}/draft", h.handleDraftQuestion)
			r.Get("/exams/{examID}/analytics", h.handleExamAnalytics)
			r.Get("/results", h.handleAllResults)
			r.Get("/results/{resultID}/review", h.handleResultReview)
			r.Post("/seed", h.handleSeedDemo)
			r.Get("/export", h.handleExport)
		})
	})
}

// respondJSON writes v with the given status. Encoding failures go to the
// log; the status line is already on the wire by then.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// respondError writes a localized error envelope.
func respondError(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	respondJSON(w, status, errorResponse{Error: appI18n.T(r.Context(), msgID)})
}

// respondDBError maps a storage failure to the generic database-error
// message, mirroring the raw error text for the client banner.
func respondDBError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("storage error", "error", err)
	msg := appI18n.Td(r.Context(), "DatabaseError", map[string]any{"Message": err.Error()})
	respondJSON(w, http.StatusInternalServerError, errorResponse{Error: msg})
}

// decodeBody decodes a JSON request body into v, rejecting unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
