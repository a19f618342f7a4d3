package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"readly/internal/config"
	"readly/internal/domain"
	"readly/internal/dto"
)

// Validator provides request validation functionality
type Validator struct {
	maxQuestions      int
	maxCorrectAnswers int
	maxTextLength     int
}

// NewValidator creates a new validator instance. Non-positive limits disable
// the corresponding check.
func NewValidator(cfg config.ComparisonConfig) *Validator {
	return &Validator{
		maxQuestions:      cfg.MaxQuestions,
		maxCorrectAnswers: cfg.MaxCorrectAnswers,
		maxTextLength:     cfg.MaxTextLength,
	}
}

// ValidateCompareRequest validates a POST /compare body of either shape.
func (v *Validator) ValidateCompareRequest(req *dto.CompareRequest) domain.ValidationErrors {
	if req.IsMixed() {
		return domain.ValidationErrors{{
			Field:   "body",
			Code:    domain.CodeInvalidFormat,
			Message: "send either questions or correct_answers/user_answer, not both",
		}}
	}
	if req.IsBatch() {
		return v.ValidateBatch(req.Questions)
	}
	return v.ValidateQuestion("", req.QuestionRequest)
}

// ValidateBatch validates the questions of a batch request.
func (v *Validator) ValidateBatch(questions []dto.QuestionRequest) domain.ValidationErrors {
	var errors domain.ValidationErrors

	if len(questions) == 0 {
		return append(errors, domain.NewMissingFieldError("questions"))
	}
	if v.maxQuestions > 0 && len(questions) > v.maxQuestions {
		return append(errors, domain.NewOutOfRangeError("questions", len(questions), 1, v.maxQuestions))
	}

	for i, q := range questions {
		errors = append(errors, v.ValidateQuestion(fmt.Sprintf("questions[%d].", i), q)...)
	}
	return errors
}

// ValidateQuestion validates one question; prefix is prepended to field paths.
func (v *Validator) ValidateQuestion(prefix string, q dto.QuestionRequest) domain.ValidationErrors {
	var errors domain.ValidationErrors

	switch {
	case len(q.CorrectAnswers) == 0:
		errors = append(errors, domain.NewMissingFieldError(prefix+"correct_answers"))
	case v.maxCorrectAnswers > 0 && len(q.CorrectAnswers) > v.maxCorrectAnswers:
		errors = append(errors, domain.NewOutOfRangeError(prefix+"correct_answers", len(q.CorrectAnswers), 1, v.maxCorrectAnswers))
	default:
		for i, answer := range q.CorrectAnswers {
			errors = append(errors, v.validateText(fmt.Sprintf("%scorrect_answers[%d]", prefix, i), answer)...)
		}
	}

	if q.UserAnswer == nil {
		errors = append(errors, domain.NewMissingFieldError(prefix+"user_answer"))
	} else {
		errors = append(errors, v.validateLength(prefix+"user_answer", *q.UserAnswer, 0)...)
	}

	return errors
}

// validateText rejects blank accepted answers. The user answer may be empty
// and goes through validateLength only.
func (v *Validator) validateText(field, text string) domain.ValidationErrors {
	if strings.TrimSpace(text) == "" {
		return domain.ValidationErrors{domain.NewMissingFieldError(field)}
	}
	return v.validateLength(field, text, 1)
}

func (v *Validator) validateLength(field, text string, minLen int) domain.ValidationErrors {
	if n := utf8.RuneCountInString(text); v.maxTextLength > 0 && n > v.maxTextLength {
		return domain.ValidationErrors{domain.NewOutOfRangeError(field, n, minLen, v.maxTextLength)}
	}
	return nil
}
