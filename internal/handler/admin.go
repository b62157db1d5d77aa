package handler

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shabonaa/exambuilder/internal/analytics"
	"github.com/shabonaa/exambuilder/internal/model"
	"github.com/shabonaa/exambuilder/internal/store"
)

type adminExamListing struct {
	model.Exam
	QuestionCount int `json:"questionCount"`
}

func (h *Handler) handleAdminListExams(w http.ResponseWriter, r *http.Request) {
	exams := h.catalog.Exams()
	out := make([]adminExamListing, 0, len(exams))
	for _, e := range exams {
		out = append(out, adminExamListing{Exam: e, QuestionCount: h.catalog.QuestionCountForExam(e.ID)})
	}
	respondJSON(w, http.StatusOK, out)
}

type examRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	TimeLimit   int    `json:"timeLimit"`
	Active      bool   `json:"isActive"`
}

func (req examRequest) valid() bool {
	return strings.TrimSpace(req.Title) != "" && req.TimeLimit > 0
}

func (h *Handler) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	var req examRequest
	if err := decodeBody(r, &req); err != nil || !req.valid() {
		respondError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	exam, err := h.store.CreateExam(model.Exam{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		TimeLimit:   req.TimeLimit,
		Active:      req.Active,
	})
	if err != nil {
		respondDBError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, exam)
}

func (h *Handler) handleUpdateExam(w http.ResponseWriter, r *http.Request) {
	exam, err := h.store.GetExam(chi.URLParam(r, "examID"))
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, r, http.StatusNotFound, "NotFound")
		return
	}
	if err != nil {
		respondDBError(w, r, err)
		return
	}

	var req examRequest
	if err := decodeBody(r, &req); err != nil || !req.valid() {
		respondError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	exam.Title = strings.TrimSpace(req.Title)
	exam.Description = req.Description
	exam.TimeLimit = req.TimeLimit
	exam.Active = req.Active
	if err := h.store.UpdateExam(exam); err != nil {
		respondDBError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, exam)
}

// handleDeleteExam removes an exam and all of its questions. The cascade is
// best effort per question: a failed question delete is logged and skipped
// so one bad row cannot wedge the whole exam.
func (h *Handler) handleDeleteExam(w http.ResponseWriter, r *http.Request) {
	examID := chi.URLParam(r, "examID")
	if _, err := h.store.GetExam(examID); errors.Is(err, sql.ErrNoRows) {
		respondError(w, r, http.StatusNotFound, "NotFound")
		return
	} else if err != nil {
		respondDBError(w, r, err)
		return
	}

	questions, err := h.store.ListQuestionsForExam(examID)
	if err != nil {
		respondDBError(w, r, err)
		return
	}
	for _, q := range questions {
		if err := h.store.DeleteQuestion(q.ID); err != nil {
			slog.Error("cascade delete question", "question", q.ID, "exam", examID, "error", err)
		}
	}
	if err := h.store.DeleteExam(examID); err != nil {
		respondDBError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	examID := chi.URLParam(r, "examID")
	if _, ok := h.catalog.Exam(examID); !ok {
		respondError(w, r, http.StatusNotFound, "NotFound")
		return
	}
	respondJSON(w, http.StatusOK, h.catalog.QuestionsForExam(examID))
}

type questionRequest struct {
	Topic       string         `json:"topic"`
	Text        string         `json:"text"`
	Options     []model.Option `json:"options"`
	CorrectID   string         `json:"correctId"`
	Explanation string         `json:"explanation"`
}

func (req questionRequest) valid() bool {
	if strings.TrimSpace(req.Text) == "" {
		return false
	}
	if len(req.Options) != len(model.OptionIDs) {
		return false
	}
	for i, o := range req.Options {
		if o.ID != model.OptionIDs[i] || strings.TrimSpace(o.Text) == "" {
			return false
		}
	}
	return model.ValidOptionID(req.CorrectID)
}

func (h *Handler) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	examID := chi.URLParam(r, "examID")
	if _, err := h.store.GetExam(examID); errors.Is(err, sql.ErrNoRows) {
		respondError(w, r, http.StatusNotFound, "NotFound")
		return
	} else if err != nil {
		respondDBError(w, r, err)
		return
	}

	var req questionRequest
	if err := decodeBody(r, &req); err != nil || !req.valid() {
		respondError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	q, err := h.store.CreateQuestion(model.Question{
		ExamID:      examID,
		Topic:       req.Topic,
		Text:        strings.TrimSpace(req.Text),
		Options:     req.Options,
		CorrectID:   req.CorrectID,
		Explanation: req.Explanation,
	})
	if err != nil {
		respondDBError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, q)
}

func (h *Handler) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := h.store.GetQuestion(chi.URLParam(r, "questionID"))
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, r, http.StatusNotFound, "NotFound")
		return
	}
	if err != nil {
		respondDBError(w, r, err)
		return
	}

	var req questionRequest
	if err := decodeBody(r, &req); err != nil || !req.valid() {
		respondError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	q.Topic = req.Topic
	q.Text = strings.TrimSpace(req.Text)
	q.Options = req.Options
	q.CorrectID = req.CorrectID
	q.Explanation = req.Explanation
	if err := h.store.UpdateQuestion(q); err != nil {
		respondDBError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, q)
}

func (h *Handler) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "questionID")
	if _, err := h.store.GetQuestion(id); errors.Is(err, sql.ErrNoRows) {
		respondError(w, r, http.StatusNotFound, "NotFound")
		return
	} else if err != nil {
		respondDBError(w, r, err)
		return
	}
	if err := h.store.DeleteQuestion(id); err != nil {
		respondDBError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type draftRequest struct {
	Topic string `json:"topic"`
}

// handleDraftQuestion asks the LLM for a question proposal. Nothing is
// persisted; the teacher edits and saves the draft through the normal
// question-create endpoint.
func (h *Handler) handleDraftQuestion(w http.ResponseWriter, r *http.Request) {
	if h.llm == nil {
		respondError(w, r, http.StatusServiceUnavailable, "DraftUnavailable")
		return
	}
	exam, ok := h.catalog.Exam(chi.URLParam(r, "examID"))
	if !ok {
		respondError(w, r, http.StatusNotFound, "NotFound")
		return
	}
	var req draftRequest
	if err := decodeBody(r, &req); err != nil || strings.TrimSpace(req.Topic) == "" {
		respondError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}

	draft, err := h.llm.DraftQuestion(r.Context(), exam.Title, req.Topic)
	if err != nil {
		slog.Error("draft question", "exam", exam.ID, "error", err)
		respondError(w, r, http.StatusBadGateway, "DraftUnavailable")
		return
	}
	respondJSON(w, http.StatusOK, draft.Question(exam.ID))
}

type examAnalytics struct {
	Exam    model.Exam        `json:"exam"`
	Summary analytics.Summary `json:"summary"`
	Results []model.Result    `json:"results"`
}

// handleExamAnalytics serves the per-exam dashboard from the shared results
// mirror: average percentage, submission count, and the submissions
// themselves, newest first.
func (h *Handler) handleExamAnalytics(w http.ResponseWriter, r *http.Request) {
	exam, ok := h.catalog.Exam(chi.URLParam(r, "examID"))
	if !ok {
		respondError(w, r, http.StatusNotFound, "NotFound")
		return
	}
	results := h.catalog.ResultsForExam(exam.ID)
	respondJSON(w, http.StatusOK, examAnalytics{
		Exam:    exam,
		Summary: analytics.Summarize(results),
		Results: results,
	})
}

func (h *Handler) handleAllResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.store.ListAllResults()
	if err != nil {
		respondDBError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

// handleResultReview rebuilds one submission's per-question breakdown from
// its stored answers. Results saved without answers come back with
// hasAnswers=false and no breakdown.
func (h *Handler) handleResultReview(w http.ResponseWriter, r *http.Request) {
	result, err := h.store.GetSharedResult(chi.URLParam(r, "resultID"))
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, r, http.StatusNotFound, "NotFound")
		return
	}
	if err != nil {
		respondDBError(w, r, err)
		return
	}

	questions, err := h.store.ListQuestionsForExam(result.ExamID)
	if err != nil {
		respondDBError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, analytics.ReviewFromResult(questions, result))
}

func (h *Handler) handleSeedDemo(w http.ResponseWriter, r *http.Request) {
	err := h.store.SeedDemo()
	if errors.Is(err, store.ErrNotEmpty) {
		respondError(w, r, http.StatusConflict, "SeedNotEmpty")
		return
	}
	if err != nil {
		respondDBError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.catalog.Exams())
}

// handleExport streams the shared results as a JSON dataset, optionally
// filtered to one exam, tagged with the deployment's app id.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	export, err := h.store.ExportResults(r.URL.Query().Get("examId"))
	if err != nil {
		respondDBError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, export)
}
