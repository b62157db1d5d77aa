package store

import (
	"encoding/json"
	"fmt"

	"github.com/shabonaa/exambuilder/internal/model"
)

// CreateQuestion inserts a question record. A zero OrderKey gets the current
// timestamp so new questions sort after existing ones.
func (s *Store) CreateQuestion(q model.Question) (model.Question, error) {
	q.ID = newID()
	if q.OrderKey == 0 {
		q.OrderKey = nowMillis()
	}
	opts, err := json.Marshal(q.Options)
	if err != nil {
		return model.Question{}, fmt.Errorf("marshal options: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO questions (id, exam_id, topic, text, options_json, correct_id, explanation, order_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		q.ID, q.ExamID, q.Topic, q.Text, string(opts), q.CorrectID, q.Explanation, q.OrderKey,
	)
	if err != nil {
		return model.Question{}, err
	}
	s.notify(TopicQuestions)
	return q, nil
}

// UpdateQuestion overwrites a question's fields in place.
func (s *Store) UpdateQuestion(q model.Question) error {
	opts, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	_, err = s.db.Exec(
		`UPDATE questions SET exam_id = $1, topic = $2, text = $3, options_json = $4,
		 correct_id = $5, explanation = $6, order_key = $7 WHERE id = $8`,
		q.ExamID, q.Topic, q.Text, string(opts), q.CorrectID, q.Explanation, q.OrderKey, q.ID,
	)
	if err != nil {
		return err
	}
	s.notify(TopicQuestions)
	return nil
}

// DeleteQuestion removes a question record.
func (s *Store) DeleteQuestion(id string) error {
	_, err := s.db.Exec(`DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	s.notify(TopicQuestions)
	return nil
}

// GetQuestion returns a question by id.
func (s *Store) GetQuestion(id string) (model.Question, error) {
	row := s.db.QueryRow(
		`SELECT id, exam_id, topic, text, options_json, correct_id, explanation, order_key
		 FROM questions WHERE id = $1`, id,
	)
	return scanQuestion(row)
}

// ListQuestions returns every question across all exams.
func (s *Store) ListQuestions() ([]model.Question, error) {
	rows, err := s.db.Query(
		`SELECT id, exam_id, topic, text, options_json, correct_id, explanation, order_key
		 FROM questions`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ListQuestionsForExam returns an exam's questions in display order.
func (s *Store) ListQuestionsForExam(examID string) ([]model.Question, error) {
	rows, err := s.db.Query(
		`SELECT id, exam_id, topic, text, options_json, correct_id, explanation, order_key
		 FROM questions WHERE exam_id = $1 ORDER BY order_key`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// QuestionCount returns the number of question records.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (model.Question, error) {
	var q model.Question
	var opts string
	if err := row.Scan(&q.ID, &q.ExamID, &q.Topic, &q.Text, &opts, &q.CorrectID, &q.Explanation, &q.OrderKey); err != nil {
		return model.Question{}, err
	}
	if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
		return model.Question{}, fmt.Errorf("decode options for question %s: %w", q.ID, err)
	}
	return q, nil
}
