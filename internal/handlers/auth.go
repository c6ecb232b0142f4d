package handlers

import (
	"net/http"

	"github.com/karmankarshows/carshow/internal/auth"
)

// handleLogin checks the admin password and starts a session.
func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	sess, ok := h.Auth.Login(req.Password)
	if !ok {
		h.Log.Warn("Admin login failed", "remote_addr", r.RemoteAddr)
		respondError(w, Unauthorized("Invalid password"))
		return
	}

	auth.SetSessionCookie(w, sess)
	h.Log.Info("Admin logged in", "remote_addr", r.RemoteAddr)
	respondOK(w, sess)
}

// handleLogout ends the session, if any
func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.CookieName); err == nil {
		h.Auth.Logout(cookie.Value)
	}
	auth.ClearSessionCookie(w)
	respondSuccess(w, "Logged out")
}

func (h *Handlers) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := adminSession(r)
	if err != nil {
		respondError(w, err)
		return
	}
	respondOK(w, sess)
}

// adminSession returns the session RequireAuthAPI attached to the request.
func adminSession(r *http.Request) (*auth.Session, error) {
	sess, ok := auth.FromContext(r.Context())
	if !ok {
		return nil, auth.ErrNoSession
	}
	return sess, nil
}
