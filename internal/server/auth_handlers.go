package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cursorconnect/cursorconnect/internal/auth"
	"github.com/cursorconnect/cursorconnect/internal/store"
)

// userPayload is the public view of an account.
type userPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func publicUser(u *store.User) userPayload {
	return userPayload{ID: u.ID, Username: u.Username, Email: u.Email}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := in.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		s.log.Error("hashing password", "err", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	user, err := s.store.CreateUser(r.Context(), in.Username, in.Email, hash)
	if errors.Is(err, store.ErrDuplicateEmail) {
		writeError(w, http.StatusBadRequest, "Email is already registered. Please use a different email or login")
		return
	}
	if err != nil {
		s.log.Error("creating user", "err", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		s.log.Error("issuing token", "err", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"token":   token,
		"user":    publicUser(user),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := in.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.store.UserByEmail(r.Context(), in.Email)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !auth.CheckPassword(user.PasswordHash, in.Password)) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials. Please check your email and password")
		return
	}
	if err != nil {
		s.log.Error("looking up user", "err", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		s.log.Error("issuing token", "err", err)
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   token,
		"user":    publicUser(user),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    publicUser(user),
	})
}
