package domain

import (
	"fmt"
	"strings"
)

// Question is one comparison unit: the accepted answers for a question and
// the answer a user actually gave.
type Question struct {
	correctAnswers []string
	userAnswer     string
}

// NewQuestion builds an immutable Question. The accepted answers are copied so
// later mutation of the caller's slice cannot leak into a running comparison.
func NewQuestion(correctAnswers []string, userAnswer string) (Question, error) {
	if len(correctAnswers) == 0 {
		return Question{}, NewMissingFieldError("correct_answers")
	}
	for i, a := range correctAnswers {
		if strings.TrimSpace(a) == "" {
			return Question{}, NewMissingFieldError(fmt.Sprintf("correct_answers[%d]", i))
		}
	}
	answers := make([]string, len(correctAnswers))
	copy(answers, correctAnswers)
	return Question{correctAnswers: answers, userAnswer: userAnswer}, nil
}

// CorrectAnswers returns a copy of the accepted answers in request order.
func (q Question) CorrectAnswers() []string {
	out := make([]string, len(q.correctAnswers))
	copy(out, q.correctAnswers)
	return out
}

// UserAnswer returns the user's answer text.
func (q Question) UserAnswer() string {
	return q.userAnswer
}

// Len is the number of accepted answers.
func (q Question) Len() int {
	return len(q.correctAnswers)
}

// Batch is an ordered list of questions. Output order mirrors this order.
type Batch struct {
	questions []Question
}

// NewBatch builds a Batch from at least one question.
func NewBatch(questions []Question) (Batch, error) {
	if len(questions) == 0 {
		return Batch{}, NewMissingFieldError("questions")
	}
	qs := make([]Question, len(questions))
	copy(qs, questions)
	return Batch{questions: qs}, nil
}

// Questions returns the questions in input order.
func (b Batch) Questions() []Question {
	out := make([]Question, len(b.questions))
	copy(out, b.questions)
	return out
}

// Len is the number of questions in the batch.
func (b Batch) Len() int {
	return len(b.questions)
}

// ComparisonResult holds the per-answer scores of one question and their maximum.
type ComparisonResult struct {
	Scores   []float64
	MaxScore float64
}

// NewComparisonResult derives MaxScore from scores. scores must be non-empty.
func NewComparisonResult(scores []float64) (*ComparisonResult, error) {
	if len(scores) == 0 {
		return nil, NewInvariantViolationError("no similarity scores to aggregate", nil)
	}
	best := scores[0]
	for _, s := range scores[1:] {
		if s > best {
			best = s
		}
	}
	return &ComparisonResult{Scores: scores, MaxScore: best}, nil
}

// BatchResult holds one maximum score per question, in input order.
type BatchResult struct {
	MaxScores []float64
}
