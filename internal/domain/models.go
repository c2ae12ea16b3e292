package domain

import "time"

// DefaultQuestionSeconds is the per-question countdown in timer mode.
const DefaultQuestionSeconds = 30

// Option represents a possible answer for a question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question models an MCQ question; CorrectAnswer references exactly one option ID.
type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Options       []Option `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// Quiz is an ordered, immutable collection of questions.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title,omitempty"`
	Questions []Question `json:"questions"`
}

// QuizState is the whole mutable state of one participant's quiz session.
// An empty string in Answers marks an unanswered slot.
type QuizState struct {
	CurrentIndex int           `json:"currentIndex"`
	Answers      []string      `json:"answers"`
	TimeLeft     int           `json:"timeLeft"`
	IsTimerMode  bool          `json:"isTimerMode"`
	IsCompleted  bool          `json:"isCompleted"`
	IsPaused     bool          `json:"isPaused"`
	SessionKey   string        `json:"sessionKey"`
	StartTime    time.Time     `json:"startTime"`
	TimeElapsed  time.Duration `json:"timeElapsed"`
	Streak       int           `json:"streak"`
}

// Clone returns a deep copy so snapshots never alias the engine's answers slice.
func (s QuizState) Clone() QuizState {
	out := s
	out.Answers = append([]string(nil), s.Answers...)
	return out
}

// QuizStats are the read-only figures derived from a QuizState.
type QuizStats struct {
	Score              int           `json:"score"`
	Progress           float64       `json:"progress"`
	Remaining          int           `json:"remaining"`
	AvgTimePerQuestion time.Duration `json:"avgTimePerQuestion"`
	IsLastQuestion     bool          `json:"isLastQuestion"`
}

// QRPayload is the signed, time-boxed body of an attendance token.
// Timestamp and ExpiresAt are unix milliseconds.
type QRPayload struct {
	CourseID  string `json:"courseId"`
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"`
	ExpiresAt int64  `json:"expiresAt"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

// AttendanceRecord is produced once per validated scan.
type AttendanceRecord struct {
	CourseID  string    `json:"courseId"`
	StudentID string    `json:"studentId"`
	Timestamp time.Time `json:"timestamp"`
}

// Role distinguishes what an authenticated principal may do.
type Role string

const (
	RoleLecturer Role = "lecturer"
	RoleStudent  Role = "student"
)
