package store

import (
	"encoding/json"
	"fmt"

	"github.com/shabonaa/exambuilder/internal/model"
)

// SaveResult writes the two copies of a finished timed attempt's outcome:
// one under the student's private namespace and one in the shared analytics
// namespace. The caller supplies the shared-copy fields (StudentName,
// SubjectID); the private copy is stored without them. Results are never
// updated after creation.
func (s *Store) SaveResult(r model.Result) error {
	if r.SubjectID == "" {
		return fmt.Errorf("save result: missing subject id")
	}
	answers, err := json.Marshal(r.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	if r.Timestamp == 0 {
		r.Timestamp = nowMillis()
	}

	_, err = s.db.Exec(
		`INSERT INTO results (id, subject_id, exam_id, exam_title, score, total, percentage, created_at, answers_json)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		newID(), r.SubjectID, r.ExamID, r.ExamTitle, r.Score, r.Total, r.Percentage, r.Timestamp, string(answers),
	)
	if err != nil {
		return fmt.Errorf("save private result: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO all_results (id, exam_id, exam_title, score, total, percentage, created_at, answers_json, student_name, subject_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		newID(), r.ExamID, r.ExamTitle, r.Score, r.Total, r.Percentage, r.Timestamp, string(answers), r.StudentName, r.SubjectID,
	)
	if err != nil {
		return fmt.Errorf("save shared result: %w", err)
	}

	s.notify(StudentResultsTopic(r.SubjectID))
	s.notify(TopicAllResults)
	return nil
}

// ListResultsForStudent returns one student's private result history, newest
// first.
func (s *Store) ListResultsForStudent(subjectID string) ([]model.Result, error) {
	rows, err := s.db.Query(
		`SELECT id, exam_id, exam_title, score, total, percentage, created_at, answers_json
		 FROM results WHERE subject_id = $1 ORDER BY created_at DESC`, subjectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.Result
	for rows.Next() {
		var r model.Result
		var answers string
		if err := rows.Scan(&r.ID, &r.ExamID, &r.ExamTitle, &r.Score, &r.Total, &r.Percentage, &r.Timestamp, &answers); err != nil {
			return nil, err
		}
		decodeAnswers(answers, &r)
		results = append(results, r)
	}
	return results, rows.Err()
}

// ListAllResults returns the shared analytics namespace, newest first.
func (s *Store) ListAllResults() ([]model.Result, error) {
	rows, err := s.db.Query(
		`SELECT id, exam_id, exam_title, score, total, percentage, created_at, answers_json, student_name, subject_id
		 FROM all_results ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.Result
	for rows.Next() {
		var r model.Result
		var answers string
		if err := rows.Scan(&r.ID, &r.ExamID, &r.ExamTitle, &r.Score, &r.Total, &r.Percentage, &r.Timestamp, &answers, &r.StudentName, &r.SubjectID); err != nil {
			return nil, err
		}
		decodeAnswers(answers, &r)
		results = append(results, r)
	}
	return results, rows.Err()
}

// GetSharedResult returns one shared-namespace result by id.
func (s *Store) GetSharedResult(id string) (model.Result, error) {
	var r model.Result
	var answers string
	err := s.db.QueryRow(
		`SELECT id, exam_id, exam_title, score, total, percentage, created_at, answers_json, student_name, subject_id
		 FROM all_results WHERE id = $1`, id,
	).Scan(&r.ID, &r.ExamID, &r.ExamTitle, &r.Score, &r.Total, &r.Percentage, &r.Timestamp, &answers, &r.StudentName, &r.SubjectID)
	if err != nil {
		return model.Result{}, err
	}
	decodeAnswers(answers, &r)
	return r, nil
}

// decodeAnswers restores the answer mapping. Results written before answer
// tracking have an empty mapping, which readers must distinguish from zero
// answers; a missing or undecodable payload leaves Answers nil.
func decodeAnswers(raw string, r *model.Result) {
	if raw == "" || raw == "null" {
		return
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return
	}
	r.Answers = m
}
