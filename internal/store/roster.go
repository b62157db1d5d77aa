package store

import (
	"log/slog"

	"github.com/shabonaa/exambuilder/internal/model"
)

// CreateTeacher inserts a teacher roster record and returns it with the
// backend-assigned id filled in.
func (s *Store) CreateTeacher(t model.Teacher) (model.Teacher, error) {
	t.ID = newID()
	t.CreatedAt = nowMillis()
	_, err := s.db.Exec(
		`INSERT INTO teachers (id, email, password_hash, name, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.Email, t.PasswordHash, t.Name, t.CreatedAt,
	)
	if err != nil {
		slog.Error("failed to create teacher", "email", t.Email, "error", err)
		return model.Teacher{}, err
	}
	slog.Info("created teacher", "id", t.ID, "email", t.Email)
	s.notify(TopicTeachers)
	return t, nil
}

// ListTeachers returns the full teacher roster.
func (s *Store) ListTeachers() ([]model.Teacher, error) {
	rows, err := s.db.Query(
		`SELECT id, email, password_hash, name, created_at FROM teachers ORDER BY created_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var teachers []model.Teacher
	for rows.Next() {
		var t model.Teacher
		if err := rows.Scan(&t.ID, &t.Email, &t.PasswordHash, &t.Name, &t.CreatedAt); err != nil {
			return nil, err
		}
		teachers = append(teachers, t)
	}
	return teachers, rows.Err()
}

// CreateStudent inserts a student roster record and returns it with the
// backend-assigned id filled in.
func (s *Store) CreateStudent(st model.Student) (model.Student, error) {
	st.ID = newID()
	st.CreatedAt = nowMillis()
	_, err := s.db.Exec(
		`INSERT INTO students (id, email, password_hash, name, subject_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		st.ID, st.Email, st.PasswordHash, st.Name, st.SubjectID, st.CreatedAt,
	)
	if err != nil {
		slog.Error("failed to create student", "email", st.Email, "error", err)
		return model.Student{}, err
	}
	slog.Info("created student", "id", st.ID, "email", st.Email, "subject_id", st.SubjectID)
	s.notify(TopicStudents)
	return st, nil
}

// ListStudents returns the full student roster.
func (s *Store) ListStudents() ([]model.Student, error) {
	rows, err := s.db.Query(
		`SELECT id, email, password_hash, name, subject_id, created_at FROM students ORDER BY created_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var students []model.Student
	for rows.Next() {
		var st model.Student
		if err := rows.Scan(&st.ID, &st.Email, &st.PasswordHash, &st.Name, &st.SubjectID, &st.CreatedAt); err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}
