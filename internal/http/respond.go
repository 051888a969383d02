package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/fjod/quickmarket/internal/notify"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// RedirectResponse is the body sent with a 303. Location carries the same
// target for clients that follow redirects.
type RedirectResponse struct {
	Redirect      string                `json:"redirect"`
	Notifications []notify.Notification `json:"notifications,omitempty"`
	Data          any                   `json:"data,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func respondRedirect(w http.ResponseWriter, body RedirectResponse) {
	w.Header().Set("Location", body.Redirect)
	respondJSON(w, http.StatusSeeOther, body)
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
