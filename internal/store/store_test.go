package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shabonaa/exambuilder/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteDSNWithQueryParams(t *testing.T) {
	// A caller-supplied DSN may already carry parameters; the pragma suffix
	// must join with & instead of a second ?.
	s, err := New(DriverSQLite, "file:dsnparams?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("New with parameterized DSN: %v", err)
	}
	defer s.Close()
	insertTestExam(t, s, "Midterm")
}

func insertTestExam(t *testing.T, s *Store, title string) model.Exam {
	t.Helper()
	exam, err := s.CreateExam(model.Exam{
		Title:       title,
		Description: "description for " + title,
		TimeLimit:   30,
		Active:      true,
	})
	if err != nil {
		t.Fatalf("insertTestExam: %v", err)
	}
	return exam
}

func insertTestQuestion(t *testing.T, s *Store, examID, text, topic string) model.Question {
	t.Helper()
	q, err := s.CreateQuestion(model.Question{
		ExamID: examID,
		Topic:  topic,
		Text:   text,
		Options: []model.Option{
			{ID: "A", Text: "first"},
			{ID: "B", Text: "second"},
			{ID: "C", Text: "third"},
			{ID: "D", Text: "fourth"},
		},
		CorrectID:   "A",
		Explanation: "explanation for " + text,
	})
	if err != nil {
		t.Fatalf("insertTestQuestion: %v", err)
	}
	return q
}

func TestExamCRUD(t *testing.T) {
	s := newTestStore(t)

	count, err := s.ExamCount()
	if err != nil {
		t.Fatalf("ExamCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 exams, got %d", count)
	}

	exam := insertTestExam(t, s, "Midterm")
	if exam.ID == "" {
		t.Fatal("expected generated exam id")
	}
	if exam.CreatedAt == 0 || exam.UpdatedAt != exam.CreatedAt {
		t.Errorf("expected create to stamp both timestamps: %+v", exam)
	}

	got, err := s.GetExam(exam.ID)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if got.Title != "Midterm" || !got.Active || got.TimeLimit != 30 {
		t.Errorf("unexpected exam: %+v", got)
	}

	// Not found.
	if _, err := s.GetExam("missing"); err != sql.ErrNoRows {
		t.Errorf("expected ErrNoRows, got %v", err)
	}

	got.Title = "Final"
	got.Active = false
	if err := s.UpdateExam(got); err != nil {
		t.Fatalf("UpdateExam: %v", err)
	}
	updated, err := s.GetExam(exam.ID)
	if err != nil {
		t.Fatalf("GetExam after update: %v", err)
	}
	if updated.Title != "Final" || updated.Active {
		t.Errorf("update not applied: %+v", updated)
	}
	if updated.UpdatedAt < updated.CreatedAt {
		t.Errorf("expected UpdatedAt to move forward: %+v", updated)
	}

	if err := s.DeleteExam(exam.ID); err != nil {
		t.Fatalf("DeleteExam: %v", err)
	}
	if _, err := s.GetExam(exam.ID); err != sql.ErrNoRows {
		t.Errorf("expected ErrNoRows after delete, got %v", err)
	}
}

func TestQuestionCRUD(t *testing.T) {
	s := newTestStore(t)
	exam := insertTestExam(t, s, "Midterm")

	q := insertTestQuestion(t, s, exam.ID, "What is 2+2?", "arithmetic")
	if q.ID == "" || q.OrderKey == 0 {
		t.Fatalf("expected generated id and order key: %+v", q)
	}

	got, err := s.GetQuestion(q.ID)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	if got.Text != "What is 2+2?" || got.CorrectID != "A" || len(got.Options) != 4 {
		t.Errorf("unexpected question: %+v", got)
	}

	got.Text = "What is 3+3?"
	got.CorrectID = "B"
	if err := s.UpdateQuestion(got); err != nil {
		t.Fatalf("UpdateQuestion: %v", err)
	}
	updated, err := s.GetQuestion(q.ID)
	if err != nil {
		t.Fatalf("GetQuestion after update: %v", err)
	}
	if updated.Text != "What is 3+3?" || updated.CorrectID != "B" {
		t.Errorf("update not applied: %+v", updated)
	}

	if err := s.DeleteQuestion(q.ID); err != nil {
		t.Fatalf("DeleteQuestion: %v", err)
	}
	if _, err := s.GetQuestion(q.ID); err != sql.ErrNoRows {
		t.Errorf("expected ErrNoRows after delete, got %v", err)
	}
}

func TestListQuestionsForExamOrder(t *testing.T) {
	s := newTestStore(t)
	exam := insertTestExam(t, s, "Midterm")
	other := insertTestExam(t, s, "Final")

	// Explicit order keys out of insertion order.
	for i, key := range []int64{30, 10, 20} {
		_, err := s.CreateQuestion(model.Question{
			ExamID:    exam.ID,
			Text:      "Q",
			Options:   []model.Option{{ID: "A", Text: "a"}},
			CorrectID: "A",
			OrderKey:  key,
			Topic:     "t",
		})
		if err != nil {
			t.Fatalf("CreateQuestion %d: %v", i, err)
		}
	}
	insertTestQuestion(t, s, other.ID, "unrelated", "t")

	qs, err := s.ListQuestionsForExam(exam.ID)
	if err != nil {
		t.Fatalf("ListQuestionsForExam: %v", err)
	}
	if len(qs) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(qs))
	}
	if qs[0].OrderKey != 10 || qs[1].OrderKey != 20 || qs[2].OrderKey != 30 {
		t.Errorf("questions not sorted by order key: %d %d %d", qs[0].OrderKey, qs[1].OrderKey, qs[2].OrderKey)
	}
}

func TestRoster(t *testing.T) {
	s := newTestStore(t)

	teacher, err := s.CreateTeacher(model.Teacher{Email: "t@example.com", PasswordHash: "hash", Name: "Tina"})
	if err != nil {
		t.Fatalf("CreateTeacher: %v", err)
	}
	if teacher.ID == "" || teacher.CreatedAt == 0 {
		t.Errorf("expected generated id and timestamp: %+v", teacher)
	}

	student, err := s.CreateStudent(model.Student{Email: "s@example.com", PasswordHash: "hash", Name: "Sam", SubjectID: "stu_1"})
	if err != nil {
		t.Fatalf("CreateStudent: %v", err)
	}
	if student.SubjectID != "stu_1" {
		t.Errorf("subject id not persisted: %+v", student)
	}

	teachers, err := s.ListTeachers()
	if err != nil {
		t.Fatalf("ListTeachers: %v", err)
	}
	students, err := s.ListStudents()
	if err != nil {
		t.Fatalf("ListStudents: %v", err)
	}
	if len(teachers) != 1 || len(students) != 1 {
		t.Fatalf("expected 1 teacher and 1 student, got %d/%d", len(teachers), len(students))
	}
	if teachers[0].PasswordHash != "hash" {
		t.Error("password hash should round-trip for credential checks")
	}
}

func TestSaveResultWritesBothCopies(t *testing.T) {
	s := newTestStore(t)

	r := model.Result{
		ExamID:      "exam-1",
		ExamTitle:   "Midterm",
		Score:       2,
		Total:       3,
		Percentage:  67,
		Answers:     map[string]string{"q1": "A", "q2": "B"},
		StudentName: "Sam",
		SubjectID:   "stu_1",
	}
	if err := s.SaveResult(r); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	private, err := s.ListResultsForStudent("stu_1")
	if err != nil {
		t.Fatalf("ListResultsForStudent: %v", err)
	}
	if len(private) != 1 {
		t.Fatalf("expected 1 private result, got %d", len(private))
	}
	if private[0].StudentName != "" {
		t.Error("private copy must not carry the student name")
	}

	shared, err := s.ListAllResults()
	if err != nil {
		t.Fatalf("ListAllResults: %v", err)
	}
	if len(shared) != 1 {
		t.Fatalf("expected 1 shared result, got %d", len(shared))
	}
	if shared[0].StudentName != "Sam" || shared[0].SubjectID != "stu_1" {
		t.Errorf("shared copy missing student identity: %+v", shared[0])
	}

	// The two copies mirror the same outcome.
	if private[0].Score != shared[0].Score ||
		private[0].Percentage != shared[0].Percentage ||
		private[0].Timestamp != shared[0].Timestamp {
		t.Errorf("copies diverge: %+v vs %+v", private[0], shared[0])
	}
	if private[0].Answers["q1"] != "A" || shared[0].Answers["q2"] != "B" {
		t.Error("answers did not round-trip")
	}

	if err := s.SaveResult(model.Result{ExamID: "exam-1"}); err == nil {
		t.Error("expected error for result without subject id")
	}
}

func TestResultWithoutAnswers(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveResult(model.Result{ExamID: "e", SubjectID: "stu_1", Answers: nil}); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	results, err := s.ListResultsForStudent("stu_1")
	if err != nil {
		t.Fatalf("ListResultsForStudent: %v", err)
	}
	if results[0].Answers != nil {
		t.Errorf("expected nil answers, got %v", results[0].Answers)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)

	sess := model.Session{Role: model.RoleStudent, Name: "Sam", Email: "s@example.com", SubjectID: "stu_1"}
	token, err := s.SaveSession(sess)
	if err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}

	got, err := s.LoadSession(token)
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if got == nil {
		t.Fatal("expected a session")
	}
	if got.Role != model.RoleStudent || got.Email != "s@example.com" || got.Token != token {
		t.Errorf("unexpected session: %+v", got)
	}

	// Unknown token is absent, not an error.
	if got, err := s.LoadSession("nope"); err != nil || got != nil {
		t.Fatalf("unknown token: got %v, %v", got, err)
	}

	if err := s.ClearSession(token); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	if got, _ := s.LoadSession(token); got != nil {
		t.Fatal("expected session gone after clear")
	}
}

func TestLoadSessionClearsCorruptAndExpired(t *testing.T) {
	s := newTestStore(t)

	future := time.Now().Add(time.Hour).UnixMilli()
	past := time.Now().Add(-time.Hour).UnixMilli()

	// A document that does not parse as a valid session is treated as absent.
	for _, tt := range []struct {
		name, token, doc string
		expiresAt        int64
	}{
		{"not json", "tok-garbage", "{not json", future},
		{"wrong shape", "tok-shape", `{"role":"wizard"}`, future},
		{"expired", "tok-expired", `{"role":"student","name":"S","email":"s@example.com","subjectId":"stu_1"}`, past},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.db.Exec(
				`INSERT INTO sessions (token, doc, expires_at) VALUES ($1, $2, $3)`,
				tt.token, tt.doc, tt.expiresAt,
			)
			if err != nil {
				t.Fatalf("insert: %v", err)
			}

			got, err := s.LoadSession(tt.token)
			if err != nil {
				t.Fatalf("LoadSession: %v", err)
			}
			if got != nil {
				t.Fatalf("expected absent session, got %+v", got)
			}
			// The bad row is gone.
			var n int
			if err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE token = $1`, tt.token).Scan(&n); err != nil {
				t.Fatalf("count: %v", err)
			}
			if n != 0 {
				t.Error("expected bad session row to be cleared")
			}
		})
	}
}

func TestCleanupExpiredSessions(t *testing.T) {
	s := newTestStore(t)

	token, err := s.SaveSession(model.Session{Role: model.RoleTeacher, Name: "T", Email: "t@example.com", SubjectID: "teacher"})
	if err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO sessions (token, doc, expires_at) VALUES ($1, $2, $3)`,
		"tok-old", "{}", time.Now().Add(-time.Hour).UnixMilli(),
	)
	if err != nil {
		t.Fatalf("insert stale: %v", err)
	}

	if err := s.CleanupExpiredSessions(); err != nil {
		t.Fatalf("CleanupExpiredSessions: %v", err)
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected only the live session to survive, got %d rows", n)
	}
	if got, _ := s.LoadSession(token); got == nil {
		t.Error("live session should survive cleanup")
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)

	if got, err := s.GetMetadata("missing"); err != nil || got != "" {
		t.Fatalf("missing key: got %q, %v", got, err)
	}

	if err := s.SetAppID("app-1"); err != nil {
		t.Fatalf("SetAppID: %v", err)
	}
	if err := s.SetAppID("app-2"); err != nil {
		t.Fatalf("SetAppID upsert: %v", err)
	}
	got, err := s.AppID()
	if err != nil {
		t.Fatalf("AppID: %v", err)
	}
	if got != "app-2" {
		t.Errorf("expected app-2, got %q", got)
	}
}

func TestSeedDemoIsOneShot(t *testing.T) {
	s := newTestStore(t)

	if err := s.SeedDemo(); err != nil {
		t.Fatalf("SeedDemo: %v", err)
	}
	exams, err := s.ListExams()
	if err != nil {
		t.Fatalf("ListExams: %v", err)
	}
	if len(exams) != 1 {
		t.Fatalf("expected 1 seeded exam, got %d", len(exams))
	}
	qs, err := s.ListQuestionsForExam(exams[0].ID)
	if err != nil {
		t.Fatalf("ListQuestionsForExam: %v", err)
	}
	if len(qs) != 3 {
		t.Fatalf("expected 3 seeded questions, got %d", len(qs))
	}
	for _, q := range qs {
		if len(q.Options) != 4 || !q.HasOption(q.CorrectID) {
			t.Errorf("malformed seeded question: %+v", q)
		}
	}

	if err := s.SeedDemo(); err != ErrNotEmpty {
		t.Fatalf("second seed: expected ErrNotEmpty, got %v", err)
	}
}

func TestSubscribeNotify(t *testing.T) {
	s := newTestStore(t)

	examEvents := 0
	unsub := s.Subscribe(TopicExams, func() { examEvents++ })
	studentEvents := 0
	s.Subscribe(StudentResultsTopic("stu_1"), func() { studentEvents++ })

	exam := insertTestExam(t, s, "Midterm")
	if examEvents != 1 {
		t.Fatalf("expected 1 exam event after create, got %d", examEvents)
	}
	if err := s.UpdateExam(exam); err != nil {
		t.Fatalf("UpdateExam: %v", err)
	}
	if err := s.DeleteExam(exam.ID); err != nil {
		t.Fatalf("DeleteExam: %v", err)
	}
	if examEvents != 3 {
		t.Fatalf("expected 3 exam events, got %d", examEvents)
	}

	if err := s.SaveResult(model.Result{ExamID: "e", SubjectID: "stu_1"}); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	if err := s.SaveResult(model.Result{ExamID: "e", SubjectID: "stu_2"}); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	if studentEvents != 1 {
		t.Fatalf("expected 1 event for stu_1's namespace, got %d", studentEvents)
	}

	unsub()
	insertTestExam(t, s, "Final")
	if examEvents != 3 {
		t.Fatalf("expected no events after unsubscribe, got %d", examEvents)
	}
}

func TestExportResults(t *testing.T) {
	s := newTestStore(t)

	for _, r := range []model.Result{
		{ExamID: "exam-1", ExamTitle: "Midterm", Score: 1, Total: 3, Percentage: 33, SubjectID: "stu_1", StudentName: "Sam"},
		{ExamID: "exam-2", ExamTitle: "Final", Score: 3, Total: 3, Percentage: 100, SubjectID: "stu_1", StudentName: "Sam"},
	} {
		if err := s.SaveResult(r); err != nil {
			t.Fatalf("SaveResult: %v", err)
		}
	}

	all, err := s.ExportResults("")
	if err != nil {
		t.Fatalf("ExportResults: %v", err)
	}
	if all.Count != 2 || len(all.Results) != 2 {
		t.Fatalf("expected 2 exported results, got %+v", all)
	}
	if all.ExportedAt == 0 {
		t.Error("expected export timestamp")
	}

	one, err := s.ExportResults("exam-1")
	if err != nil {
		t.Fatalf("ExportResults filtered: %v", err)
	}
	if one.Count != 1 || one.Results[0].ExamID != "exam-1" {
		t.Fatalf("filter not applied: %+v", one)
	}
}
