// Package auth implements registration and sign-in for the two rosters.
// Credential checks run against the catalog cache's mirrors; roster writes
// and session persistence go through the store.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/shabonaa/exambuilder/internal/catalog"
	"github.com/shabonaa/exambuilder/internal/model"
	"github.com/shabonaa/exambuilder/internal/store"
)

var (
	// ErrAlreadyRegistered is returned when registering an email that already
	// exists in the matching roster.
	ErrAlreadyRegistered = errors.New("email already registered")
	// ErrInvalidCredentials is returned for any sign-in failure. Unknown
	// email and wrong password are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// The subject id teachers share; teacher attempts are never persisted, so a
// stable per-teacher namespace is not needed.
const teacherSubjectID = "teacher"

type Service struct {
	catalog *catalog.Cache
	store   *store.Store
}

func New(c *catalog.Cache, s *store.Store) *Service {
	return &Service{catalog: c, store: s}
}

// RegisterStudent creates a student roster entry and a signed-in session.
// The email is lower-cased and trimmed; a case-insensitive roster match
// fails with ErrAlreadyRegistered.
func (s *Service) RegisterStudent(name, email, password string) (model.Session, error) {
	email = normalizeEmail(email)
	if _, ok := s.catalog.StudentByEmail(email); ok {
		return model.Session{}, ErrAlreadyRegistered
	}

	hash, err := hashPassword(password)
	if err != nil {
		return model.Session{}, err
	}
	st, err := s.store.CreateStudent(model.Student{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		SubjectID:    "stu_" + uuid.NewString(),
	})
	if err != nil {
		return model.Session{}, err
	}
	return s.newSession(model.RoleStudent, st.Name, st.Email, st.SubjectID)
}

// SignInStudent matches email and password against the student roster.
func (s *Service) SignInStudent(email, password string) (model.Session, error) {
	st, ok := s.catalog.StudentByEmail(email)
	if !ok {
		return model.Session{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(st.PasswordHash), []byte(password)) != nil {
		return model.Session{}, ErrInvalidCredentials
	}
	return s.newSession(model.RoleStudent, st.Name, normalizeEmail(email), st.SubjectID)
}

// RegisterTeacher creates a teacher roster entry and a signed-in session.
func (s *Service) RegisterTeacher(name, email, password string) (model.Session, error) {
	email = normalizeEmail(email)
	if _, ok := s.catalog.TeacherByEmail(email); ok {
		return model.Session{}, ErrAlreadyRegistered
	}

	hash, err := hashPassword(password)
	if err != nil {
		return model.Session{}, err
	}
	t, err := s.store.CreateTeacher(model.Teacher{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
	})
	if err != nil {
		return model.Session{}, err
	}
	return s.newSession(model.RoleTeacher, t.Name, t.Email, teacherSubjectID)
}

// SignInTeacher matches email and password against the teacher roster.
func (s *Service) SignInTeacher(email, password string) (model.Session, error) {
	t, ok := s.catalog.TeacherByEmail(email)
	if !ok {
		return model.Session{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(t.PasswordHash), []byte(password)) != nil {
		return model.Session{}, ErrInvalidCredentials
	}
	name := t.Name
	if name == "" {
		name = "Teacher"
	}
	return s.newSession(model.RoleTeacher, name, normalizeEmail(email), teacherSubjectID)
}

// SignOut clears the persisted session for a token.
func (s *Service) SignOut(token string) error {
	return s.store.ClearSession(token)
}

func (s *Service) newSession(role model.Role, name, email, subjectID string) (model.Session, error) {
	sess := model.Session{
		Role:      role,
		Name:      name,
		Email:     email,
		SubjectID: subjectID,
	}
	token, err := s.store.SaveSession(sess)
	if err != nil {
		return model.Session{}, fmt.Errorf("save session: %w", err)
	}
	sess.Token = token
	return sess, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
