package domain

import "fmt"

// Validate checks the question list invariants: non-empty, unique question IDs,
// unique option IDs per question, and a CorrectAnswer matching exactly one option.
func (q Quiz) Validate() error {
	if len(q.Questions) == 0 {
		return fmt.Errorf("%w: quiz %q has no questions", ErrInvalidQuiz, q.ID)
	}
	seen := make(map[string]struct{}, len(q.Questions))
	for i, question := range q.Questions {
		if question.ID == "" {
			return fmt.Errorf("%w: question %d has no id", ErrInvalidQuiz, i)
		}
		if _, dup := seen[question.ID]; dup {
			return fmt.Errorf("%w: duplicate question id %q", ErrInvalidQuiz, question.ID)
		}
		seen[question.ID] = struct{}{}

		options := make(map[string]struct{}, len(question.Options))
		matches := 0
		for _, opt := range question.Options {
			if opt.ID == "" {
				return fmt.Errorf("%w: question %q has an option without id", ErrInvalidQuiz, question.ID)
			}
			if _, dup := options[opt.ID]; dup {
				return fmt.Errorf("%w: question %q repeats option %q", ErrInvalidQuiz, question.ID, opt.ID)
			}
			options[opt.ID] = struct{}{}
			if opt.ID == question.CorrectAnswer {
				matches++
			}
		}
		if matches != 1 {
			return fmt.Errorf("%w: question %q correct answer %q matches %d options", ErrInvalidQuiz, question.ID, question.CorrectAnswer, matches)
		}
	}
	return nil
}

// HasOption reports whether optionID is one of the question's options.
func (q Question) HasOption(optionID string) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}
