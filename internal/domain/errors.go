package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a quiz session has not been opened.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrInvalidQuiz indicates quiz content breaks the question list invariants.
	ErrInvalidQuiz = errors.New("invalid quiz")

	ErrStorageCorrupt          = errors.New("stored record corrupt")
	ErrStorageExpired          = errors.New("stored record expired")
	ErrStorageValidationFailed = errors.New("stored record failed validation")

	// ErrSigningFailed wraps key or HMAC failures while issuing a token.
	ErrSigningFailed = errors.New("token signing failed")
	// ErrInvalidFormat means a scanned token could not be decoded.
	ErrInvalidFormat = errors.New("invalid token format")
	// ErrExpired means the token is past its expiresAt.
	ErrExpired = errors.New("token expired")
	// ErrCourseMismatch means the token was issued for a different course.
	ErrCourseMismatch = errors.New("token course mismatch")
	// ErrInvalidSignature means the signature does not match the payload.
	ErrInvalidSignature = errors.New("token signature invalid")
	// ErrAlreadyRecorded is returned when a student replays the same token.
	ErrAlreadyRecorded = errors.New("attendance already recorded")
	// ErrSubmissionFailed wraps failures writing an attendance record.
	ErrSubmissionFailed = errors.New("attendance submission failed")
	// ErrDisplayNotFound is returned when no live QR display runs for a course.
	ErrDisplayNotFound = errors.New("no active QR display for course")
	// ErrNotSupported is returned by recorders that cannot list records.
	ErrNotSupported = errors.New("operation not supported")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// UserMessage maps an error to the text shown to students and operators.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidFormat):
		return "This QR code is not a valid attendance code."
	case errors.Is(err, ErrExpired):
		return "This QR code has expired. Ask for a fresh code and scan again."
	case errors.Is(err, ErrCourseMismatch):
		return "This QR code belongs to a different course."
	case errors.Is(err, ErrInvalidSignature):
		return "This QR code could not be verified."
	case errors.Is(err, ErrAlreadyRecorded):
		return "Your attendance for this code is already recorded."
	case errors.Is(err, ErrSigningFailed):
		return "Could not generate an attendance code. Try refreshing."
	case errors.Is(err, ErrSubmissionFailed):
		return "Could not submit attendance. Please try again."
	case errors.Is(err, ErrDisplayNotFound):
		return "No attendance code is being displayed for this course."
	case errors.Is(err, ErrQuizNotFound):
		return "Quiz not found."
	case errors.Is(err, ErrInvalidQuiz):
		return "Quiz content is invalid."
	case errors.Is(err, ErrSessionNotFound):
		return "Quiz session not found."
	case errors.Is(err, ErrUnauthorized):
		return "Please sign in."
	case errors.Is(err, ErrForbidden):
		return "You are not allowed to do that."
	default:
		return "Something went wrong."
	}
}
