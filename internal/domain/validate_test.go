package domain

import (
	"errors"
	"testing"
)

func TestQuizValidate(t *testing.T) {
	valid := Quiz{
		ID: "quiz-1",
		Questions: []Question{
			{ID: "q1", Text: "2+2?", Options: []Option{{ID: "a", Text: "3"}, {ID: "b", Text: "4"}}, CorrectAnswer: "b"},
		},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid quiz, got %v", err)
	}

	cases := map[string]Quiz{
		"empty":          {ID: "empty"},
		"missing answer": {ID: "x", Questions: []Question{{ID: "q1", Options: []Option{{ID: "a"}}, CorrectAnswer: "z"}}},
		"dup option":     {ID: "x", Questions: []Question{{ID: "q1", Options: []Option{{ID: "a"}, {ID: "a"}}, CorrectAnswer: "a"}}},
		"dup question": {ID: "x", Questions: []Question{
			{ID: "q1", Options: []Option{{ID: "a"}}, CorrectAnswer: "a"},
			{ID: "q1", Options: []Option{{ID: "a"}}, CorrectAnswer: "a"},
		}},
	}
	for name, quiz := range cases {
		if err := quiz.Validate(); !errors.Is(err, ErrInvalidQuiz) {
			t.Fatalf("%s: expected ErrInvalidQuiz, got %v", name, err)
		}
	}
}

func TestUserMessagesAreDistinct(t *testing.T) {
	expired := UserMessage(ErrExpired)
	mismatch := UserMessage(ErrCourseMismatch)
	format := UserMessage(ErrInvalidFormat)
	if expired == mismatch || expired == format || mismatch == format {
		t.Fatalf("expected distinct messages, got %q %q %q", expired, mismatch, format)
	}
}
