package handlers

import (
	"errors"
	"net/http"

	"github.com/xelth-com/assetledger/internal/accounts"
	"github.com/xelth-com/assetledger/internal/middleware"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// login handles user login
func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	var body LoginRequest
	if err := decodeJSON(req, &body); err != nil {
		respondErr(w, req, err)
		return
	}

	token, user, err := r.Accounts.Authenticate(req.Context(), body.Email, body.Password)
	if errors.Is(err, accounts.ErrInvalidCredentials) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		respondErr(w, req, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tokens": map[string]string{"accessToken": token},
		"user":   user,
	})
}

// me returns the authenticated user
func (r *Router) me(w http.ResponseWriter, req *http.Request) {
	a := middleware.ActorFromContext(req.Context())
	u, err := r.Accounts.Get(req.Context(), a.ID)
	if err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

func (r *Router) listUsers(w http.ResponseWriter, req *http.Request) {
	users, err := r.Accounts.List(req.Context())
	if err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (r *Router) createUser(w http.ResponseWriter, req *http.Request) {
	var body accounts.UserInput
	if err := decodeJSON(req, &body); err != nil {
		respondErr(w, req, err)
		return
	}
	u, err := r.Accounts.Create(req.Context(), body)
	if err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusCreated, u)
}

func (r *Router) deleteUser(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		respondErr(w, req, err)
		return
	}
	if err := r.Accounts.Delete(req.Context(), middleware.ActorFromContext(req.Context()).ID, id); err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
}

func (r *Router) resetPassword(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		respondErr(w, req, err)
		return
	}
	var body struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(req, &body); err != nil {
		respondErr(w, req, err)
		return
	}
	if err := r.Accounts.ResetPassword(req.Context(), id, body.Password); err != nil {
		respondErr(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}
