package server

import (
	"net/http"

	"photowall/internal/gallery"
	"photowall/internal/logging"
)

// CredentialsRequest is the JSON payload of the admin routes.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterResponse is the JSON response after a successful registration.
type RegisterResponse struct {
	Message string         `json:"message"`
	User    *gallery.Admin `json:"user"`
}

func (s *Server) handleRegisterAdmin(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := readJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	admin, err := s.registrar.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeAdminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, RegisterResponse{
		Message: "Admin registered successfully",
		User:    admin,
	})
}

func (s *Server) handleLoginAdmin(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := readJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := s.registrar.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeAdminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// writeAdminError hides internal causes behind a generic message.
func (s *Server) writeAdminError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("admin_request_failed", logging.Fields{
			"rid":  logging.RequestID(r.Context()),
			"path": r.URL.Path,
		}, err)
		writeMessage(w, status, "Server error")
		return
	}
	writeMessage(w, status, gallery.MessageOf(err))
}
