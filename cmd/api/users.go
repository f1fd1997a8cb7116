// cmd/api/users.go
// Account handlers: signup and login. Both answer with a fresh bearer token.
package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aoideee/bookreviews/internal/auth"
	"github.com/aoideee/bookreviews/internal/data"
	"github.com/aoideee/bookreviews/internal/validator"
)

type signupInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// signupHandler handles POST /v1/auth/signup.
func (app *applicationDependencies) signupHandler(w http.ResponseWriter, r *http.Request) {
	var input signupInput

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	input.Email = strings.TrimSpace(input.Email)
	input.Name = strings.TrimSpace(input.Name)

	v := validator.New()
	if data.ValidateUser(v, input.Email, input.Password, input.Name); !v.Valid() {
		app.failedValidationResponse(w, r, v)
		return
	}

	_, err = app.models.Users.GetByEmail(r.Context(), input.Email)
	switch {
	case err == nil:
		app.conflictResponse(w, r, "a user with this email already exists")
		return
	case !errors.Is(err, data.ErrRecordNotFound):
		app.serverErrorResponse(w, r, err)
		return
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	user := &data.User{
		Email:    input.Email,
		Password: hash,
		Name:     input.Name,
	}

	// The unique index still catches a signup that raced past the lookup above.
	err = app.models.Users.Insert(r.Context(), user)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrDuplicateEmail):
			app.conflictResponse(w, r, "a user with this email already exists")
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	token, err := app.tokens.Issue(user.ID, user.Email, user.Name)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	app.logger.Info("user registered", "user_id", user.ID)

	err = app.writeJSON(w, http.StatusCreated, envelope{
		"message": "user created successfully",
		"token":   token,
		"user":    user,
	}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// loginHandler handles POST /v1/auth/login. Unknown emails and wrong
// passwords get the same 401 so callers cannot probe for accounts.
func (app *applicationDependencies) loginHandler(w http.ResponseWriter, r *http.Request) {
	var input loginInput

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	input.Email = strings.TrimSpace(input.Email)

	v := validator.New()
	v.Check(input.Email != "", "email", "must be provided")
	v.Check(input.Password != "", "password", "must be provided")
	if !v.Valid() {
		app.failedValidationResponse(w, r, v)
		return
	}

	user, err := app.models.Users.GetByEmail(r.Context(), input.Email)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			app.invalidCredentialsResponse(w, r)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	match, err := auth.PasswordMatches(input.Password, user.Password)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
	if !match {
		app.invalidCredentialsResponse(w, r)
		return
	}

	token, err := app.tokens.Issue(user.ID, user.Email, user.Name)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{
		"message": "login successful",
		"token":   token,
		"user":    user,
	}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
