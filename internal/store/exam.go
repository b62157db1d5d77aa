package store

import (
	"github.com/shabonaa/exambuilder/internal/model"
)

// CreateExam inserts an exam record, stamping the creation timestamp.
func (s *Store) CreateExam(e model.Exam) (model.Exam, error) {
	e.ID = newID()
	e.CreatedAt = nowMillis()
	e.UpdatedAt = e.CreatedAt
	_, err := s.db.Exec(
		`INSERT INTO exams (id, title, description, time_limit, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.Title, e.Description, e.TimeLimit, e.Active, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return model.Exam{}, err
	}
	s.notify(TopicExams)
	return e, nil
}

// UpdateExam overwrites an exam's editable fields and stamps the update
// timestamp. The creation timestamp is left untouched.
func (s *Store) UpdateExam(e model.Exam) error {
	_, err := s.db.Exec(
		`UPDATE exams SET title = $1, description = $2, time_limit = $3, active = $4, updated_at = $5
		 WHERE id = $6`,
		e.Title, e.Description, e.TimeLimit, e.Active, nowMillis(), e.ID,
	)
	if err != nil {
		return err
	}
	s.notify(TopicExams)
	return nil
}

// DeleteExam removes the exam record only. The question cascade is the
// caller's responsibility, one delete per owned question.
func (s *Store) DeleteExam(id string) error {
	_, err := s.db.Exec(`DELETE FROM exams WHERE id = $1`, id)
	if err != nil {
		return err
	}
	s.notify(TopicExams)
	return nil
}

// GetExam returns an exam by id.
func (s *Store) GetExam(id string) (model.Exam, error) {
	var e model.Exam
	err := s.db.QueryRow(
		`SELECT id, title, description, time_limit, active, created_at, updated_at
		 FROM exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.Title, &e.Description, &e.TimeLimit, &e.Active, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

// ListExams returns all exams, newest first.
func (s *Store) ListExams() ([]model.Exam, error) {
	rows, err := s.db.Query(
		`SELECT id, title, description, time_limit, active, created_at, updated_at
		 FROM exams ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.TimeLimit, &e.Active, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// ExamCount returns the number of exam records.
func (s *Store) ExamCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM exams`).Scan(&count)
	return count, err
}
