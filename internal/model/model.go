package model

import (
	"context"
	"time"
)

// Role represents a signed-in identity's access level.
type Role string

const (
	// RoleStudent is a student identity.
	RoleStudent Role = "student"
	// RoleTeacher is a teacher identity.
	RoleTeacher Role = "teacher"
)

// Valid reports whether the role is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTeacher
}

// Session is the signed-in identity for one browser. It is persisted as a
// serialized document keyed by an opaque token so a reload does not force
// re-authentication.
type Session struct {
	Token     string    `json:"-"`
	Role      Role      `json:"role"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	SubjectID string    `json:"subjectId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Valid reports whether a decoded session document is usable. Anything that
// fails this check is treated as absent, never as an error.
func (s Session) Valid() bool {
	return s.Role.Valid() && s.Email != "" && s.SubjectID != ""
}

// Teacher is one entry in the teacher roster.
type Teacher struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Name         string `json:"name"`
	CreatedAt    int64  `json:"createdAt"`
}

// Student is one entry in the student roster. SubjectID is the stable
// identifier under which the student's private results are namespaced.
type Student struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Name         string `json:"name"`
	SubjectID    string `json:"subjectId"`
	CreatedAt    int64  `json:"createdAt"`
}

// Exam is one authored assessment. TimeLimit is in minutes. Students only
// see exams whose Active flag is set. Timestamps are Unix milliseconds.
type Exam struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	TimeLimit   int    `json:"timeLimit"`
	Active      bool   `json:"isActive"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt,omitempty"`
}

// Option is one of a question's four choices.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// OptionIDs is the fixed option shape of the authoring UI.
var OptionIDs = []string{"A", "B", "C", "D"}

// ValidOptionID reports whether id is one of the four authorable option ids.
func ValidOptionID(id string) bool {
	for _, v := range OptionIDs {
		if v == id {
			return true
		}
	}
	return false
}

// Question belongs to exactly one exam. OrderKey determines display order
// within the exam.
type Question struct {
	ID          string   `json:"id"`
	ExamID      string   `json:"examId"`
	Topic       string   `json:"topic"`
	Text        string   `json:"text"`
	Options     []Option `json:"options"`
	CorrectID   string   `json:"correctId"`
	Explanation string   `json:"explanation"`
	OrderKey    int64    `json:"order"`
}

// HasOption reports whether id is one of the question's option ids.
func (q Question) HasOption(id string) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// Result is the persisted outcome of one finished timed attempt. It is
// written once and never mutated. Two copies exist: one under the student's
// private namespace and one in the shared analytics namespace; the shared
// copy additionally carries the student's name and subject id so teachers
// can review it.
type Result struct {
	ID         string            `json:"id"`
	ExamID     string            `json:"examId"`
	ExamTitle  string            `json:"examTitle"`
	Score      int               `json:"score"`
	Total      int               `json:"total"`
	Percentage int               `json:"percentage"`
	Timestamp  int64             `json:"timestamp"`
	Answers    map[string]string `json:"answers,omitempty"`

	// Shared-copy fields; empty on the private copy.
	StudentName string `json:"studentName,omitempty"`
	SubjectID   string `json:"studentId,omitempty"`
}

type sessionCtxKey struct{}

// ContextWithSession stores the authenticated session in the request context.
func ContextWithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, s)
}

// SessionFromContext retrieves the authenticated session from context, or nil.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionCtxKey{}).(*Session)
	return s
}
