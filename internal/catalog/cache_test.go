package catalog

import (
	"testing"

	"github.com/shabonaa/exambuilder/internal/model"
	"github.com/shabonaa/exambuilder/internal/store"
)

func newTestCache(t *testing.T) (*Cache, *store.Store) {
	t.Helper()
	s, err := store.New(store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	c := New(s)
	t.Cleanup(c.Close)
	return c, s
}

func createExam(t *testing.T, s *store.Store, title string, active bool) model.Exam {
	t.Helper()
	exam, err := s.CreateExam(model.Exam{Title: title, TimeLimit: 30, Active: active})
	if err != nil {
		t.Fatalf("CreateExam: %v", err)
	}
	return exam
}

func createQuestion(t *testing.T, s *store.Store, examID string, orderKey int64) model.Question {
	t.Helper()
	q, err := s.CreateQuestion(model.Question{
		ExamID:    examID,
		Topic:     "topic",
		Text:      "question",
		Options:   []model.Option{{ID: "A", Text: "a"}, {ID: "B", Text: "b"}, {ID: "C", Text: "c"}, {ID: "D", Text: "d"}},
		CorrectID: "A",
		OrderKey:  orderKey,
	})
	if err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}
	return q
}

func TestNewSeesWritesDuringPriming(t *testing.T) {
	// Shared-cache DSN so the writer goroutine and the priming reads observe
	// one database across pool connections.
	s, err := store.New(store.DriverSQLite, "file:primewindow?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer s.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			if _, err := s.CreateExam(model.Exam{Title: "Exam", TimeLimit: 30, Active: true}); err != nil {
				t.Errorf("CreateExam: %v", err)
				return
			}
		}
	}()

	// Subscriptions are registered before each mirror is primed, so every
	// write either lands in the initial snapshot or triggers a refresh.
	c := New(s)
	defer c.Close()
	<-done

	if got := len(c.Exams()); got != 20 {
		t.Fatalf("expected 20 mirrored exams, got %d", got)
	}
}

func TestCacheMirrorsWrites(t *testing.T) {
	c, s := newTestCache(t)

	if len(c.Exams()) != 0 {
		t.Fatal("expected empty exam mirror")
	}

	exam := createExam(t, s, "Midterm", true)
	exams := c.Exams()
	if len(exams) != 1 || exams[0].ID != exam.ID {
		t.Fatalf("exam mirror not refreshed: %+v", exams)
	}

	exam.Title = "Final"
	if err := s.UpdateExam(exam); err != nil {
		t.Fatalf("UpdateExam: %v", err)
	}
	if got, _ := c.Exam(exam.ID); got.Title != "Final" {
		t.Errorf("mirror missed the update: %+v", got)
	}

	if err := s.DeleteExam(exam.ID); err != nil {
		t.Fatalf("DeleteExam: %v", err)
	}
	if _, ok := c.Exam(exam.ID); ok {
		t.Error("mirror missed the delete")
	}
}

func TestActiveExams(t *testing.T) {
	c, s := newTestCache(t)
	createExam(t, s, "Visible", true)
	createExam(t, s, "Hidden", false)

	active := c.ActiveExams()
	if len(active) != 1 || active[0].Title != "Visible" {
		t.Fatalf("expected only the active exam, got %+v", active)
	}
	if len(c.Exams()) != 2 {
		t.Errorf("teacher view should include inactive exams")
	}
}

func TestQuestionsForExam(t *testing.T) {
	c, s := newTestCache(t)
	exam := createExam(t, s, "Midterm", true)
	other := createExam(t, s, "Final", true)

	createQuestion(t, s, exam.ID, 30)
	createQuestion(t, s, exam.ID, 10)
	createQuestion(t, s, exam.ID, 20)
	createQuestion(t, s, other.ID, 5)

	qs := c.QuestionsForExam(exam.ID)
	if len(qs) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(qs))
	}
	if qs[0].OrderKey != 10 || qs[1].OrderKey != 20 || qs[2].OrderKey != 30 {
		t.Errorf("questions not in order: %d %d %d", qs[0].OrderKey, qs[1].OrderKey, qs[2].OrderKey)
	}
	if c.QuestionCountForExam(exam.ID) != 3 || c.QuestionCountForExam(other.ID) != 1 {
		t.Error("question counts wrong")
	}
}

func TestResultsForExam(t *testing.T) {
	c, s := newTestCache(t)

	for _, r := range []model.Result{
		{ExamID: "exam-1", SubjectID: "stu_1", StudentName: "Sam", Percentage: 50},
		{ExamID: "exam-2", SubjectID: "stu_1", StudentName: "Sam", Percentage: 100},
		{ExamID: "exam-1", SubjectID: "stu_2", StudentName: "Pat", Percentage: 75},
	} {
		if err := s.SaveResult(r); err != nil {
			t.Fatalf("SaveResult: %v", err)
		}
	}

	rs := c.ResultsForExam("exam-1")
	if len(rs) != 2 {
		t.Fatalf("expected 2 results for exam-1, got %d", len(rs))
	}
	for _, r := range rs {
		if r.StudentName == "" {
			t.Error("shared mirror should carry student names")
		}
	}
}

func TestWatchStudent(t *testing.T) {
	c, s := newTestCache(t)

	// Nobody watched yet: the mirror cannot answer.
	if _, ok := c.StudentResults("stu_1"); ok {
		t.Fatal("expected miss before watching")
	}

	c.WatchStudent("stu_1")
	results, ok := c.StudentResults("stu_1")
	if !ok || len(results) != 0 {
		t.Fatalf("expected empty watched mirror, got %v, %v", results, ok)
	}

	if err := s.SaveResult(model.Result{ExamID: "e", SubjectID: "stu_1", Percentage: 67}); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	results, ok = c.StudentResults("stu_1")
	if !ok || len(results) != 1 {
		t.Fatalf("watched mirror not refreshed: %v, %v", results, ok)
	}
	if results[0].StudentName != "" {
		t.Error("private mirror must not carry the student name")
	}

	// Re-watching the same student keeps the mirror.
	c.WatchStudent("stu_1")
	if results, ok = c.StudentResults("stu_1"); !ok || len(results) != 1 {
		t.Fatal("re-watch dropped the mirror")
	}

	// Switching students retargets the mirror.
	c.WatchStudent("stu_2")
	if _, ok = c.StudentResults("stu_1"); ok {
		t.Error("old student should no longer be answerable")
	}
	if err := s.SaveResult(model.Result{ExamID: "e", SubjectID: "stu_1", Percentage: 10}); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	if results, ok = c.StudentResults("stu_2"); !ok || len(results) != 0 {
		t.Errorf("stu_2 mirror polluted by stu_1 write: %v", results)
	}

	c.Unwatch()
	if _, ok = c.StudentResults("stu_2"); ok {
		t.Error("expected miss after unwatch")
	}
}

func TestLookupByEmail(t *testing.T) {
	c, s := newTestCache(t)

	if _, err := s.CreateTeacher(model.Teacher{Email: "Teach@Example.com", Name: "Tina", PasswordHash: "h"}); err != nil {
		t.Fatalf("CreateTeacher: %v", err)
	}
	if _, err := s.CreateStudent(model.Student{Email: "sam@example.com", Name: "Sam", SubjectID: "stu_1", PasswordHash: "h"}); err != nil {
		t.Fatalf("CreateStudent: %v", err)
	}

	if teacher, ok := c.TeacherByEmail("  teach@example.COM "); !ok || teacher.Name != "Tina" {
		t.Errorf("teacher lookup should be case-insensitive: %v, %v", teacher, ok)
	}
	if _, ok := c.StudentByEmail("teach@example.com"); ok {
		t.Error("rosters must not cross")
	}
	if student, ok := c.StudentByEmail("SAM@example.com"); !ok || student.SubjectID != "stu_1" {
		t.Errorf("student lookup failed: %v, %v", student, ok)
	}
}
