package api

import (
	"net/http"

	"github.com/youssefsiam38/activitypg/auth"
)

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	FullName string `json:"full_name"`
}

// Auth handlers

func (rt *router) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decode(w, r, &req) {
		return
	}
	user, err := rt.auth.SignUp(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (rt *router) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decode(w, r, &req) {
		return
	}
	session, err := rt.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		rt.writeErr(w, err)
		return
	}

	// The profile is created on first sign-in with the name given at sign-up.
	ctx := auth.WithUser(r.Context(), session.User)
	if _, err := rt.gw.Profiles.Ensure(ctx, session.User.ID, session.User.FullName); err != nil {
		rt.config.Logger.Warn("failed to ensure profile", "user_id", session.User.ID, "error", err)
	}
	writeJSON(w, http.StatusOK, session)
}

func (rt *router) handleSignOut(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "bearer token required")
		return
	}
	if err := rt.auth.SignOut(r.Context(), token); err != nil {
		rt.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"signed_out": true})
}

// Profile handlers

func (rt *router) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := rt.gw.Profiles.Get(r.Context())
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (rt *router) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decode(w, r, &req) {
		return
	}
	profile, err := rt.gw.Profiles.Upsert(r.Context(), req.FullName)
	if err != nil {
		rt.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
