package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/shabonaa/exambuilder/internal/auth"
	"github.com/shabonaa/exambuilder/internal/model"
)

const sessionCookieName = "session"

type credentialsRequest struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Role      model.Role `json:"role"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	SubjectID string     `json:"subjectId"`
}

func sessionView(s model.Session) sessionResponse {
	return sessionResponse{Role: s.Role, Name: s.Name, Email: s.Email, SubjectID: s.SubjectID}
}

// requireAuth resolves the session cookie against the session table and puts
// the session on the request context. A missing, expired, or corrupt session
// is simply absent; the client gets a 401 and shows the sign-in screen.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			respondError(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}

		sess, err := h.store.LoadSession(cookie.Value)
		if err != nil {
			respondDBError(w, r, err)
			return
		}
		if sess == nil {
			h.clearSessionCookie(w)
			respondError(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}

		ctx := model.ContextWithSession(r.Context(), sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole returns middleware that checks the session has the given role.
func requireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := model.SessionFromContext(r.Context())
			if sess == nil {
				respondError(w, r, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if sess.Role != role {
				respondError(w, r, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) handleRegisterStudent(w http.ResponseWriter, r *http.Request) {
	h.handleCredentials(w, r, true, h.auth.RegisterStudent)
}

func (h *Handler) handleRegisterTeacher(w http.ResponseWriter, r *http.Request) {
	h.handleCredentials(w, r, true, h.auth.RegisterTeacher)
}

func (h *Handler) handleLoginStudent(w http.ResponseWriter, r *http.Request) {
	h.handleCredentials(w, r, false, func(_, email, password string) (model.Session, error) {
		return h.auth.SignInStudent(email, password)
	})
}

func (h *Handler) handleLoginTeacher(w http.ResponseWriter, r *http.Request) {
	h.handleCredentials(w, r, false, func(_, email, password string) (model.Session, error) {
		return h.auth.SignInTeacher(email, password)
	})
}

func (h *Handler) handleCredentials(w http.ResponseWriter, r *http.Request, needName bool, fn func(name, email, password string) (model.Session, error)) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}
	if req.Email == "" || req.Password == "" || (needName && req.Name == "") {
		respondError(w, r, http.StatusBadRequest, "InvalidRequest")
		return
	}

	sess, err := fn(req.Name, req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrAlreadyRegistered):
		respondError(w, r, http.StatusConflict, "AlreadyRegistered")
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(w, r, http.StatusUnauthorized, "InvalidCredentials")
		return
	case err != nil:
		respondDBError(w, r, err)
		return
	}

	if sess.Role == model.RoleStudent {
		// Keep the results mirror warm for the signed-in student.
		h.catalog.WatchStudent(sess.SubjectID)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
	respondJSON(w, http.StatusOK, sessionView(sess))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if err := h.auth.SignOut(cookie.Value); err != nil {
			slog.Error("sign out", "error", err)
		}
	}
	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := model.SessionFromContext(r.Context())
	respondJSON(w, http.StatusOK, sessionView(*sess))
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
}
