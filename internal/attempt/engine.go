// Package attempt implements the exam-taking state machine. One Engine holds
// one student's live attempt; the Manager owns the set of live engines and
// drives timed ones at one tick per second.
package attempt

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shabonaa/exambuilder/internal/analytics"
	"github.com/shabonaa/exambuilder/internal/model"
)

// Mode selects timed-exam or study semantics for an attempt.
type Mode string

const (
	// ModeTimed counts down the exam's time limit and persists the result.
	ModeTimed Mode = "timed"
	// ModeStudy has no timer, locks each answer on first selection so the
	// explanation can be shown, and never persists a result.
	ModeStudy Mode = "study"
)

// State is the attempt lifecycle. Transitions only move forward except for
// the submit-confirmation detour, which can return to in_progress.
type State string

const (
	StateIntro              State = "intro"
	StateInProgress         State = "in_progress"
	StateSubmitConfirmation State = "submit_confirmation"
	StateScored             State = "scored"
)

var (
	// ErrNoQuestions is returned when an attempt is requested for an exam
	// with no questions.
	ErrNoQuestions = errors.New("exam has no questions")
	// ErrWrongState is returned for an operation the current state does not
	// permit.
	ErrWrongState = errors.New("operation not valid in current state")
	// ErrLocked is returned in study mode when re-answering a question whose
	// explanation has already been revealed.
	ErrLocked = errors.New("answer already locked")
	// ErrUnknownOption is returned when the chosen option does not belong to
	// the question.
	ErrUnknownOption = errors.New("unknown option")
	// ErrUnknownQuestion is returned when the question does not belong to
	// the attempt.
	ErrUnknownQuestion = errors.New("unknown question")
)

// ResultWriter persists a finished attempt's result. The store satisfies it.
type ResultWriter interface {
	SaveResult(r model.Result) error
}

// Engine is one live attempt. All methods are safe for concurrent use; the
// ticker goroutine and HTTP handlers share an engine.
type Engine struct {
	mu sync.Mutex

	id      string
	mode    Mode
	exam    model.Exam
	session model.Session

	questions []model.Question
	answers   map[string]string
	current   int
	remaining int // seconds; meaningful only in timed mode
	state     State
	result    *model.Result

	writer ResultWriter
	logger *slog.Logger
}

// New builds an attempt in the intro state. In timed mode the question order
// and each question's option order are shuffled independently; study mode
// keeps the authored order. Exams without questions are rejected before any
// state is created.
func New(exam model.Exam, questions []model.Question, mode Mode, sess model.Session, writer ResultWriter, logger *slog.Logger) (*Engine, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	if logger == nil {
		logger = slog.Default()
	}

	qs := make([]model.Question, len(questions))
	copy(qs, questions)
	if mode == ModeTimed {
		qs = Shuffled(qs)
		for i := range qs {
			qs[i].Options = Shuffled(qs[i].Options)
		}
	}

	e := &Engine{
		id:        newAttemptID(),
		mode:      mode,
		exam:      exam,
		session:   sess,
		questions: qs,
		answers:   make(map[string]string),
		state:     StateIntro,
		writer:    writer,
		logger:    logger,
	}
	if mode == ModeTimed {
		e.remaining = exam.TimeLimit * 60
	}
	return e, nil
}

// ID is the attempt's handle, stable for its lifetime.
func (e *Engine) ID() string { return e.id }

// SubjectID is the owning student's subject id.
func (e *Engine) SubjectID() string { return e.session.SubjectID }

// Begin moves the attempt from the intro screen into the question view. The
// countdown only starts running once an attempt has begun.
func (e *Engine) Begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateIntro {
		return ErrWrongState
	}
	e.state = StateInProgress
	return nil
}

// SelectOption records optionID as the answer to questionID. Re-selection
// overwrites freely in timed mode; in study mode the first selection locks.
func (e *Engine) SelectOption(questionID, optionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateInProgress {
		return ErrWrongState
	}
	q, ok := e.question(questionID)
	if !ok {
		return ErrUnknownQuestion
	}
	if !q.HasOption(optionID) {
		return ErrUnknownOption
	}
	if e.mode == ModeStudy {
		if _, answered := e.answers[questionID]; answered {
			return ErrLocked
		}
	}
	e.answers[questionID] = optionID
	return nil
}

// Next advances the current-question pointer, clamped at the last question.
func (e *Engine) Next() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current < len(e.questions)-1 {
		e.current++
	}
}

// Prev moves the current-question pointer back, clamped at the first question.
func (e *Engine) Prev() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current > 0 {
		e.current--
	}
}

// JumpTo sets the current-question pointer, clamped into range.
func (e *Engine) JumpTo(i int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 {
		i = 0
	}
	if i > len(e.questions)-1 {
		i = len(e.questions) - 1
	}
	e.current = i
}

// Finish submits the attempt. A timed attempt with unanswered questions is
// parked on the confirmation screen first, countdown still running; a fully
// answered or study-mode attempt scores directly.
func (e *Engine) Finish() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateInProgress {
		return ErrWrongState
	}
	if e.mode == ModeTimed && len(e.answers) < len(e.questions) {
		e.state = StateSubmitConfirmation
		return nil
	}
	e.finalize()
	return nil
}

// ReturnToExam backs out of the confirmation screen.
func (e *Engine) ReturnToExam() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateSubmitConfirmation {
		return ErrWrongState
	}
	e.state = StateInProgress
	return nil
}

// ConfirmFinish scores the attempt and, in timed mode, persists the result.
func (e *Engine) ConfirmFinish() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateSubmitConfirmation {
		return ErrWrongState
	}
	e.finalize()
	return nil
}

// Tick advances the timed countdown by one second. It decrements while the
// attempt is in progress or on the confirmation screen, and when the clock
// reaches zero it scores the attempt exactly once. Ticks after scoring are
// no-ops. Study-mode attempts ignore ticks entirely.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode != ModeTimed {
		return
	}
	if e.state != StateInProgress && e.state != StateSubmitConfirmation {
		return
	}
	e.remaining--
	if e.remaining <= 0 {
		e.remaining = 0
		e.logger.Info("attempt timed out", "attempt", e.id, "exam", e.exam.ID)
		e.finalize()
	}
}

// finalize scores and, for timed attempts, persists. Callers hold e.mu.
func (e *Engine) finalize() {
	score := analytics.Score(e.questions, e.answers)
	total := len(e.questions)

	r := model.Result{
		ExamID:     e.exam.ID,
		ExamTitle:  e.exam.Title,
		Score:      score,
		Total:      total,
		Percentage: analytics.Percentage(score, total),
		Timestamp:  time.Now().UnixMilli(),
		Answers:    e.answersCopy(),

		StudentName: e.session.Name,
		SubjectID:   e.session.SubjectID,
	}
	e.result = &r
	e.state = StateScored

	if e.mode != ModeTimed || e.writer == nil {
		return
	}
	// Persistence failure must not take down the score screen; the student
	// keeps the in-memory result and the failure goes to the log.
	if err := e.writer.SaveResult(r); err != nil {
		e.logger.Error("failed to save result", "attempt", e.id, "exam", e.exam.ID, "error", err)
	}
}

func (e *Engine) question(id string) (model.Question, bool) {
	for _, q := range e.questions {
		if q.ID == id {
			return q, true
		}
	}
	return model.Question{}, false
}

func (e *Engine) answersCopy() map[string]string {
	out := make(map[string]string, len(e.answers))
	for k, v := range e.answers {
		out[k] = v
	}
	return out
}

// Snapshot is the client-facing view of an attempt. Correct answers and
// explanations are redacted while a question is still answerable.
type Snapshot struct {
	ID        string            `json:"id"`
	Mode      Mode              `json:"mode"`
	State     State             `json:"state"`
	Exam      model.Exam        `json:"exam"`
	Questions []model.Question  `json:"questions"`
	Answers   map[string]string `json:"answers"`
	Current   int               `json:"current"`
	Remaining int               `json:"remaining"`
	Answered  int               `json:"answered"`
	Result    *model.Result     `json:"result,omitempty"`
}

// Snapshot returns a consistent copy of the attempt for rendering. In a live
// timed attempt every question's answer key is stripped; in study mode the
// key is revealed per question once the answer is locked; a scored attempt
// is returned in full.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	qs := make([]model.Question, len(e.questions))
	copy(qs, e.questions)
	if e.state != StateScored {
		for i := range qs {
			_, answered := e.answers[qs[i].ID]
			if e.mode == ModeStudy && answered {
				continue
			}
			qs[i].CorrectID = ""
			qs[i].Explanation = ""
		}
	}

	return Snapshot{
		ID:        e.id,
		Mode:      e.mode,
		State:     e.state,
		Exam:      e.exam,
		Questions: qs,
		Answers:   e.answersCopy(),
		Current:   e.current,
		Remaining: e.remaining,
		Answered:  len(e.answers),
		Result:    e.result,
	}
}

// Review rebuilds the per-question and per-topic breakdown for a scored
// attempt. It returns ErrWrongState before scoring.
func (e *Engine) Review() ([]analytics.QuestionReview, []analytics.TopicStat, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateScored {
		return nil, nil, ErrWrongState
	}
	return analytics.Review(e.questions, e.answers), analytics.TopicBreakdown(e.questions, e.answers), nil
}
