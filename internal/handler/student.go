package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shabonaa/exambuilder/internal/analytics"
	"github.com/shabonaa/exambuilder/internal/attempt"
	appI18n "github.com/shabonaa/exambuilder/internal/i18n"
	"github.com/shabonaa/exambuilder/internal/model"
)

type examListing struct {
	model.Exam
	QuestionCount int    `json:"questionCount"`
	Availability  string `json:"availability"`
	TimeLimitText string `json:"timeLimitText"`
}

func (h *Handler) examListing(r *http.Request, e model.Exam) examListing {
	count := h.catalog.QuestionCountForExam(e.ID)
	return examListing{
		Exam:          e,
		QuestionCount: count,
		Availability:  appI18n.Tp(r.Context(), "QuestionsAvailable", count),
		TimeLimitText: appI18n.Tp(r.Context(), "MinutesLimit", e.TimeLimit),
	}
}

func (h *Handler) handleListActiveExams(w http.ResponseWriter, r *http.Request) {
	exams := h.catalog.ActiveExams()
	out := make([]examListing, 0, len(exams))
	for _, e := range exams {
		out = append(out, h.examListing(r, e))
	}
	respondJSON(w, http.StatusOK, out)
}

// handleExamIntro serves the pre-attempt screen: title, description, time
// limit, and how many questions the student is about to face.
func (h *Handler) handleExamIntro(w http.ResponseWriter, r *http.Request) {
	exam, ok := h.catalog.Exam(chi.URLParam(r, "examID"))
	if !ok || !exam.Active {
		respondError(w, r, http.StatusNotFound, "NotFound")
		return
	}
	respondJSON(w, http.StatusOK, h.examListing(r, exam))
}

type startAttemptRequest struct {
	ExamID string       `json:"examId"`
	Mode   attempt.Mode `json:"mode"`
}

func (h *Handler) handleStartAttempt(w http.ResponseWriter, r *http.Request) {
	var req startAttemptRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	if req.Mode != attempt.ModeTimed && req.Mode != attempt.ModeStudy {
		respondError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}

	exam, ok := h.catalog.Exam(req.ExamID)
	if !ok || !exam.Active {
		respondError(w, r, http.StatusNotFound, "NotFound")
		return
	}

	sess := model.SessionFromContext(r.Context())
	questions := h.catalog.QuestionsForExam(exam.ID)
	e, err := h.attempts.Start(exam, questions, req.Mode, *sess, h.store)
	if errors.Is(err, attempt.ErrNoQuestions) {
		respondError(w, r, http.StatusBadRequest, "NoQuestions")
		return
	}
	if err != nil {
		respondDBError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, e.Snapshot())
}

// engineFor resolves the attempt id and checks the caller owns it. Someone
// else's attempt id looks exactly like a missing one.
func (h *Handler) engineFor(w http.ResponseWriter, r *http.Request) (*attempt.Engine, bool) {
	e, ok := h.attempts.Get(chi.URLParam(r, "attemptID"))
	if !ok || e.SubjectID() != model.SessionFromContext(r.Context()).SubjectID {
		respondError(w, r, http.StatusNotFound, "AttemptNotFound")
		return nil, false
	}
	return e, true
}

// attemptAction wraps the small state-machine operations that share a shape:
// resolve the engine, apply, respond with the fresh snapshot.
func (h *Handler) attemptAction(fn func(e *attempt.Engine, r *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, ok := h.engineFor(w, r)
		if !ok {
			return
		}
		if err := fn(e, r); err != nil {
			respondAttemptError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, e.Snapshot())
	}
}

func respondAttemptError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, attempt.ErrWrongState):
		respondError(w, r, http.StatusConflict, "InvalidRequest")
	case errors.Is(err, attempt.ErrLocked),
		errors.Is(err, attempt.ErrUnknownQuestion),
		errors.Is(err, attempt.ErrUnknownOption):
		respondError(w, r, http.StatusBadRequest, "InvalidRequest")
	default:
		respondDBError(w, r, err)
	}
}

func (h *Handler) handleGetAttempt(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engineFor(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, e.Snapshot())
}

type answerRequest struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engineFor(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	if err := e.SelectOption(req.QuestionID, req.OptionID); err != nil {
		respondAttemptError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, e.Snapshot())
}

type jumpRequest struct {
	Index int `json:"index"`
}

func (h *Handler) handleJumpTo(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engineFor(w, r)
	if !ok {
		return
	}
	var req jumpRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	e.JumpTo(req.Index)
	respondJSON(w, http.StatusOK, e.Snapshot())
}

type attemptReviewResponse struct {
	Result    *model.Result              `json:"result"`
	Questions []analytics.QuestionReview `json:"questions"`
	Topics    []analytics.TopicStat      `json:"topics"`
}

func (h *Handler) handleAttemptReview(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engineFor(w, r)
	if !ok {
		return
	}
	reviews, topics, err := e.Review()
	if err != nil {
		respondAttemptError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, attemptReviewResponse{
		Result:    e.Snapshot().Result,
		Questions: reviews,
		Topics:    topics,
	})
}

// handleMyResults serves the student's private history, newest first. The
// cache mirror covers the most recently watched student; anyone else reads
// through to the store.
func (h *Handler) handleMyResults(w http.ResponseWriter, r *http.Request) {
	sess := model.SessionFromContext(r.Context())
	results, ok := h.catalog.StudentResults(sess.SubjectID)
	if !ok {
		h.catalog.WatchStudent(sess.SubjectID)
		var err error
		results, err = h.store.ListResultsForStudent(sess.SubjectID)
		if err != nil {
			respondDBError(w, r, err)
			return
		}
	}
	if results == nil {
		results = []model.Result{}
	}
	respondJSON(w, http.StatusOK, results)
}
