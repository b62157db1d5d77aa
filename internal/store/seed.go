package store

import (
	"errors"
	"fmt"

	"github.com/shabonaa/exambuilder/internal/model"
)

// ErrNotEmpty is returned when the demo seed is requested against a catalog
// that already has exams.
var ErrNotEmpty = errors.New("exam catalog is not empty")

var demoExam = model.Exam{
	Title:       "Grade 10 Practice Assessment",
	Description: "This simulated examination covers core Grade 10 concepts including Algebra, Geometry, Functions, and Probability.",
	TimeLimit:   30,
	Active:      true,
}

var demoQuestions = []model.Question{
	{
		Topic: "Algebra II",
		Text:  "Solve for x in the quadratic equation: x² - 8x + 15 = 0",
		Options: []model.Option{
			{ID: "A", Text: "x = 3, x = 5"},
			{ID: "B", Text: "x = -3, x = -5"},
			{ID: "C", Text: "x = 2, x = 6"},
			{ID: "D", Text: "x = -2, x = -6"},
		},
		CorrectID:   "A",
		Explanation: "Factoring the quadratic equation gives (x - 3)(x - 5) = 0. Therefore, the solutions are x = 3 and x = 5.",
	},
	{
		Topic: "Functions",
		Text:  "Given the function f(x) = 3x² - 2x + 5, calculate the value of f(-2).",
		Options: []model.Option{
			{ID: "A", Text: "13"},
			{ID: "B", Text: "21"},
			{ID: "C", Text: "9"},
			{ID: "D", Text: "17"},
		},
		CorrectID:   "B",
		Explanation: "Substitute x = -2 into the function: f(-2) = 3(-2)² - 2(-2) + 5 = 3(4) + 4 + 5 = 12 + 4 + 5 = 21.",
	},
	{
		Topic: "Geometry",
		Text:  "In a right triangle, the length of the hypotenuse is 13 units and one leg is 5 units. What is the length of the other leg?",
		Options: []model.Option{
			{ID: "A", Text: "8 units"},
			{ID: "B", Text: "10 units"},
			{ID: "C", Text: "12 units"},
			{ID: "D", Text: "14 units"},
		},
		CorrectID:   "C",
		Explanation: "Using the Pythagorean theorem (a² + b² = c²): 5² + b² = 13². 25 + b² = 169. b² = 144, so b = 12.",
	},
}

// SeedDemo creates one demo exam with three questions. It is a one-shot
// action, offered only while the exam catalog is empty.
func (s *Store) SeedDemo() error {
	count, err := s.ExamCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrNotEmpty
	}

	exam, err := s.CreateExam(demoExam)
	if err != nil {
		return fmt.Errorf("seed exam: %w", err)
	}
	base := nowMillis()
	for i, q := range demoQuestions {
		q.ExamID = exam.ID
		q.OrderKey = base + int64(i)
		if _, err := s.CreateQuestion(q); err != nil {
			return fmt.Errorf("seed question %d: %w", i+1, err)
		}
	}
	return nil
}
