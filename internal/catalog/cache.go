// Package catalog maintains in-memory mirrors of the backend collections,
// kept current via the store's change subscriptions. Every notification
// replaces the affected mirror wholesale with a fresh snapshot; a failed
// refresh logs and leaves the prior mirror in place, so stale or empty data
// is the degraded mode rather than an error surfaced mid-session.
package catalog

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/shabonaa/exambuilder/internal/model"
	"github.com/shabonaa/exambuilder/internal/store"
)

type Cache struct {
	store *store.Store

	mu         sync.RWMutex
	teachers   []model.Teacher
	students   []model.Student
	exams      []model.Exam
	questions  []model.Question
	allResults []model.Result

	// Private results mirror for the currently watched student.
	watchSID  string
	myResults []model.Result
	unwatchFn func()
	unsubs    []func()
}

// New builds a cache, subscribes to the five public change topics, and primes
// each mirror. Subscribing first closes the window where a concurrent write
// lands between the initial snapshot and the subscription and goes unseen
// until the next write to the same collection.
func New(s *store.Store) *Cache {
	c := &Cache{store: s}

	for topic, refresh := range map[string]func(){
		store.TopicTeachers:   c.refreshTeachers,
		store.TopicStudents:   c.refreshStudents,
		store.TopicExams:      c.refreshExams,
		store.TopicQuestions:  c.refreshQuestions,
		store.TopicAllResults: c.refreshAllResults,
	} {
		c.unsubs = append(c.unsubs, s.Subscribe(topic, refresh))
		refresh()
	}
	return c
}

// Close tears down every subscription, including the per-student watch.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.unwatchFn != nil {
		c.unwatchFn()
		c.unwatchFn = nil
		c.watchSID = ""
	}
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

func (c *Cache) refreshTeachers() {
	teachers, err := c.store.ListTeachers()
	if err != nil {
		slog.Error("refresh teachers mirror", "error", err)
		return
	}
	c.mu.Lock()
	c.teachers = teachers
	c.mu.Unlock()
}

func (c *Cache) refreshStudents() {
	students, err := c.store.ListStudents()
	if err != nil {
		slog.Error("refresh students mirror", "error", err)
		return
	}
	c.mu.Lock()
	c.students = students
	c.mu.Unlock()
}

func (c *Cache) refreshExams() {
	// Store returns exams newest-first already; keep the ordering contract
	// local in case a future store stops sorting.
	exams, err := c.store.ListExams()
	if err != nil {
		slog.Error("refresh exams mirror", "error", err)
		return
	}
	sort.SliceStable(exams, func(i, j int) bool { return exams[i].CreatedAt > exams[j].CreatedAt })
	c.mu.Lock()
	c.exams = exams
	c.mu.Unlock()
}

func (c *Cache) refreshQuestions() {
	questions, err := c.store.ListQuestions()
	if err != nil {
		slog.Error("refresh questions mirror", "error", err)
		return
	}
	c.mu.Lock()
	c.questions = questions
	c.mu.Unlock()
}

func (c *Cache) refreshAllResults() {
	results, err := c.store.ListAllResults()
	if err != nil {
		slog.Error("refresh shared results mirror", "error", err)
		return
	}
	c.mu.Lock()
	c.allResults = results
	c.mu.Unlock()
}

// WatchStudent points the private-results mirror at one student's namespace.
// Watching a different student tears down the previous subscription first;
// watching the same student is a no-op.
func (c *Cache) WatchStudent(subjectID string) {
	c.mu.Lock()
	if c.watchSID == subjectID {
		c.mu.Unlock()
		return
	}
	if c.unwatchFn != nil {
		c.unwatchFn()
		c.unwatchFn = nil
	}
	c.watchSID = subjectID
	c.myResults = nil
	c.mu.Unlock()

	if subjectID == "" {
		return
	}
	// Subscribe before priming so a result saved mid-prime still refreshes.
	refresh := func() { c.refreshStudentResults(subjectID) }
	unsub := c.store.Subscribe(store.StudentResultsTopic(subjectID), refresh)
	refresh()
	c.mu.Lock()
	if c.watchSID == subjectID {
		c.unwatchFn = unsub
		c.mu.Unlock()
	} else {
		// Watch target changed while subscribing.
		c.mu.Unlock()
		unsub()
	}
}

// Unwatch tears down the private-results subscription.
func (c *Cache) Unwatch() {
	c.WatchStudent("")
}

func (c *Cache) refreshStudentResults(subjectID string) {
	results, err := c.store.ListResultsForStudent(subjectID)
	if err != nil {
		slog.Error("refresh student results mirror", "subject_id", subjectID, "error", err)
		return
	}
	c.mu.Lock()
	if c.watchSID == subjectID {
		c.myResults = results
	}
	c.mu.Unlock()
}

// Teachers returns the teacher roster mirror.
func (c *Cache) Teachers() []model.Teacher {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Teacher(nil), c.teachers...)
}

// Students returns the student roster mirror.
func (c *Cache) Students() []model.Student {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Student(nil), c.students...)
}

// Exams returns all exams, newest first.
func (c *Cache) Exams() []model.Exam {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Exam(nil), c.exams...)
}

// ActiveExams returns the exams students may see and take.
func (c *Cache) ActiveExams() []model.Exam {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var active []model.Exam
	for _, e := range c.exams {
		if e.Active {
			active = append(active, e)
		}
	}
	return active
}

// Exam looks an exam up in the mirror by id.
func (c *Cache) Exam(id string) (model.Exam, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.exams {
		if e.ID == id {
			return e, true
		}
	}
	return model.Exam{}, false
}

// QuestionsForExam returns an exam's questions sorted by their ordering key.
func (c *Cache) QuestionsForExam(examID string) []model.Question {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var qs []model.Question
	for _, q := range c.questions {
		if q.ExamID == examID {
			qs = append(qs, q)
		}
	}
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].OrderKey < qs[j].OrderKey })
	return qs
}

// QuestionCountForExam counts an exam's questions without copying them.
func (c *Cache) QuestionCountForExam(examID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, q := range c.questions {
		if q.ExamID == examID {
			n++
		}
	}
	return n
}

// ResultsForExam filters the shared results mirror by exam id.
func (c *Cache) ResultsForExam(examID string) []model.Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var rs []model.Result
	for _, r := range c.allResults {
		if r.ExamID == examID {
			rs = append(rs, r)
		}
	}
	return rs
}

// StudentResults returns the private mirror for the watched student. When
// the asked-for student is not the watched one the mirror cannot answer, and
// the caller falls back to a direct read.
func (c *Cache) StudentResults(subjectID string) ([]model.Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.watchSID != subjectID {
		return nil, false
	}
	return append([]model.Result(nil), c.myResults...), true
}

// TeacherByEmail finds a roster teacher by case-insensitive email.
func (c *Cache) TeacherByEmail(email string) (model.Teacher, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.teachers {
		if strings.ToLower(t.Email) == email {
			return t, true
		}
	}
	return model.Teacher{}, false
}

// StudentByEmail finds a roster student by case-insensitive email.
func (c *Cache) StudentByEmail(email string) (model.Student, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, st := range c.students {
		if strings.ToLower(st.Email) == email {
			return st, true
		}
	}
	return model.Student{}, false
}
