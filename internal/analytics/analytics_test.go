package analytics

import (
	"testing"

	"github.com/shabonaa/exambuilder/internal/model"
)

func sampleQuestions() []model.Question {
	opts := []model.Option{{ID: "A"}, {ID: "B"}, {ID: "C"}, {ID: "D"}}
	return []model.Question{
		{ID: "q1", Topic: "algebra", Options: opts, CorrectID: "A"},
		{ID: "q2", Topic: "geometry", Options: opts, CorrectID: "B"},
		{ID: "q3", Topic: "algebra", Options: opts, CorrectID: "C"},
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name         string
		score, total int
		want         int
	}{
		{"zero total", 0, 0, 0},
		{"perfect", 5, 5, 100},
		{"none", 0, 5, 0},
		{"rounds up", 2, 3, 67},
		{"rounds half up", 1, 8, 13},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percentage(tt.score, tt.total); got != tt.want {
				t.Errorf("Percentage(%d, %d) = %d, want %d", tt.score, tt.total, got, tt.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	if got := Summarize(nil); got.AveragePercentage != 0 || got.Submissions != 0 {
		t.Errorf("empty Summarize = %+v, want zeros", got)
	}

	got := Summarize([]model.Result{
		{Percentage: 100},
		{Percentage: 67},
		{Percentage: 33},
	})
	if got.Submissions != 3 {
		t.Errorf("expected 3 submissions, got %d", got.Submissions)
	}
	if got.AveragePercentage != 67 {
		t.Errorf("expected average 67, got %d", got.AveragePercentage)
	}
}

func TestReview(t *testing.T) {
	qs := sampleQuestions()
	answers := map[string]string{"q1": "A", "q2": "D"}

	reviews := Review(qs, answers)
	if len(reviews) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(reviews))
	}
	if !reviews[0].Correct || reviews[0].Skipped {
		t.Errorf("q1 should be correct: %+v", reviews[0])
	}
	if reviews[1].Correct || reviews[1].Skipped || reviews[1].ChosenID != "D" {
		t.Errorf("q2 should be a wrong answer: %+v", reviews[1])
	}
	if !reviews[2].Skipped {
		t.Errorf("q3 should be skipped: %+v", reviews[2])
	}

	// Pure function: same inputs, same output.
	again := Review(qs, answers)
	for i := range reviews {
		if reviews[i].ChosenID != again[i].ChosenID ||
			reviews[i].Correct != again[i].Correct ||
			reviews[i].Skipped != again[i].Skipped {
			t.Errorf("review row %d differs between calls", i)
		}
	}
}

func TestTopicBreakdown(t *testing.T) {
	qs := sampleQuestions()
	stats := TopicBreakdown(qs, map[string]string{"q1": "A", "q3": "D"})

	if len(stats) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(stats))
	}
	// First-appearance order.
	if stats[0].Topic != "algebra" || stats[1].Topic != "geometry" {
		t.Fatalf("unexpected topic order: %v", stats)
	}
	if stats[0].Correct != 1 || stats[0].Total != 2 || stats[0].Percentage != 50 {
		t.Errorf("algebra = %+v, want 1/2 (50%%)", stats[0])
	}
	if stats[1].Correct != 0 || stats[1].Total != 1 || stats[1].Percentage != 0 {
		t.Errorf("geometry = %+v, want 0/1 (0%%)", stats[1])
	}
}

func TestReviewFromResult(t *testing.T) {
	qs := sampleQuestions()

	legacy := model.Result{ID: "r1", Score: 2, Total: 3}
	got := ReviewFromResult(qs, legacy)
	if got.HasAnswers {
		t.Error("result without answers should report HasAnswers=false")
	}
	if got.Questions != nil || got.Topics != nil {
		t.Error("result without answers must not fabricate a breakdown")
	}

	full := model.Result{ID: "r2", Answers: map[string]string{"q1": "A"}}
	got = ReviewFromResult(qs, full)
	if !got.HasAnswers {
		t.Error("expected HasAnswers=true")
	}
	if len(got.Questions) != 3 || len(got.Topics) != 2 {
		t.Errorf("expected full breakdown, got %d questions and %d topics", len(got.Questions), len(got.Topics))
	}
}
