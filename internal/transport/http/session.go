package http

import (
	"net/http"

	"github.com/google/uuid"
)

const (
	sessionHeader = "X-Ioclens-Session"
	sessionCookie = "ioclens_session"
)

// requestSession returns the session id the request carries, header first,
// or "" when it has none or the id is not a UUID.
func requestSession(r *http.Request) string {
	id := r.Header.Get(sessionHeader)
	if id == "" {
		if c, err := r.Cookie(sessionCookie); err == nil {
			id = c.Value
		}
	}
	if _, err := uuid.Parse(id); err != nil {
		return ""
	}
	return id
}

// ensureSession returns the request's session, starting a new one when it
// carries none. The id is echoed in the response header either way.
func ensureSession(w http.ResponseWriter, r *http.Request) string {
	id := requestSession(r)
	if id == "" {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	w.Header().Set(sessionHeader, id)
	return id
}
