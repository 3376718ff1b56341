package server

import (
	"errors"
	"regexp"
	"strings"
)

var emailRe = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,})+$`)

// maxQueryLen bounds query text before any upstream call.
const maxQueryLen = 2000

type registerInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type queryInput struct {
	Query string `json:"query"`
}

func (in *registerInput) validate() error {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		return errors.New("Username is required")
	}
	if len(in.Username) > 50 {
		return errors.New("Username cannot be more than 50 characters")
	}
	if in.Email == "" {
		return errors.New("Email is required")
	}
	if !emailRe.MatchString(in.Email) {
		return errors.New("Please include a valid email")
	}
	if in.Password == "" {
		return errors.New("Password is required")
	}
	if len(in.Password) < 6 {
		return errors.New("Password must be at least 6 characters")
	}
	return nil
}

func (in *loginInput) validate() error {
	if in.Email == "" {
		return errors.New("Email is required")
	}
	if !emailRe.MatchString(in.Email) {
		return errors.New("Please include a valid email")
	}
	if in.Password == "" {
		return errors.New("Password is required")
	}
	return nil
}

func (in *queryInput) validate() error {
	in.Query = strings.TrimSpace(in.Query)
	if in.Query == "" {
		return errors.New("Query text is required")
	}
	if len(in.Query) > maxQueryLen {
		return errors.New("Query must be between 1 and 2000 characters")
	}
	return nil
}
