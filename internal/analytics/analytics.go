// Package analytics computes the derived views over attempts and persisted
// results: scores, per-topic accuracy, and per-question review tagging.
// Everything here is a pure function of its inputs.
package analytics

import (
	"math"

	"github.com/shabonaa/exambuilder/internal/model"
)

// Percentage is the rounded percent score, defined as 0 when total is 0.
func Percentage(score, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(score) / float64(total)))
}

// Score counts questions whose recorded answer equals the correct option.
func Score(questions []model.Question, answers map[string]string) int {
	score := 0
	for _, q := range questions {
		if answers[q.ID] == q.CorrectID {
			score++
		}
	}
	return score
}

// Summary aggregates one exam's shared results for the teacher dashboard.
type Summary struct {
	AveragePercentage int `json:"averagePercentage"`
	Submissions       int `json:"submissions"`
}

// Summarize computes the average percentage (rounded mean, 0 when there are
// no results) and the submission count.
func Summarize(results []model.Result) Summary {
	if len(results) == 0 {
		return Summary{}
	}
	sum := 0
	for _, r := range results {
		sum += r.Percentage
	}
	return Summary{
		AveragePercentage: int(math.Round(float64(sum) / float64(len(results)))),
		Submissions:       len(results),
	}
}

// QuestionReview tags one question of an attempt as correct, incorrect, or
// skipped.
type QuestionReview struct {
	Question model.Question `json:"question"`
	ChosenID string         `json:"chosenId,omitempty"`
	Correct  bool           `json:"correct"`
	Skipped  bool           `json:"skipped"`
}

// Review computes the per-question breakdown for an answer mapping. It is a
// pure function: identical inputs yield identical output.
func Review(questions []model.Question, answers map[string]string) []QuestionReview {
	reviews := make([]QuestionReview, 0, len(questions))
	for _, q := range questions {
		chosen, ok := answers[q.ID]
		reviews = append(reviews, QuestionReview{
			Question: q,
			ChosenID: chosen,
			Correct:  ok && chosen == q.CorrectID,
			Skipped:  !ok,
		})
	}
	return reviews
}

// TopicStat is per-topic accuracy across one attempt.
type TopicStat struct {
	Topic      string `json:"topic"`
	Correct    int    `json:"correct"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
}

// TopicBreakdown groups an attempt's questions by topic label, in order of
// first appearance.
func TopicBreakdown(questions []model.Question, answers map[string]string) []TopicStat {
	index := make(map[string]int)
	var stats []TopicStat
	for _, q := range questions {
		i, ok := index[q.Topic]
		if !ok {
			i = len(stats)
			index[q.Topic] = i
			stats = append(stats, TopicStat{Topic: q.Topic})
		}
		stats[i].Total++
		if answers[q.ID] == q.CorrectID {
			stats[i].Correct++
		}
	}
	for i := range stats {
		stats[i].Percentage = Percentage(stats[i].Correct, stats[i].Total)
	}
	return stats
}

// ResultReview is the teacher-facing review of one persisted result,
// re-rendered from the stored answer mapping rather than live attempt state.
type ResultReview struct {
	Result model.Result `json:"result"`
	// HasAnswers is false for results written before answer tracking; the
	// client shows a warning banner instead of fabricated rows.
	HasAnswers bool             `json:"hasAnswers"`
	Questions  []QuestionReview `json:"questions,omitempty"`
	Topics     []TopicStat      `json:"topics,omitempty"`
}

// ReviewFromResult rebuilds the per-question breakdown from a persisted
// result's stored answers against the exam's current question set.
func ReviewFromResult(questions []model.Question, r model.Result) ResultReview {
	if r.Answers == nil {
		return ResultReview{Result: r}
	}
	return ResultReview{
		Result:     r,
		HasAnswers: true,
		Questions:  Review(questions, r.Answers),
		Topics:     TopicBreakdown(questions, r.Answers),
	}
}
