package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"photowall/internal/gallery"
	"photowall/internal/logging"
)

const (
	// maxFiles is the number of "images" parts accepted per submission.
	maxFiles = 10
	// multipartMemory is how much of a multipart body is held in memory
	// before parts spill to temporary files.
	multipartMemory = 32 << 20
)

// handleSubmit accepts a multipart form with "name", "socialMediaHandle"
// and up to maxFiles "images" parts.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		switch {
		case errors.As(err, &mbe):
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		case errors.Is(err, http.ErrNotMultipart):
			writeError(w, http.StatusBadRequest, "No files were uploaded.")
		default:
			writeError(w, http.StatusBadRequest, "bad multipart")
		}
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["images"]
	if len(headers) > maxFiles {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Too many files: at most %d images per submission.", maxFiles))
		return
	}

	files, err := readParts(headers)
	if err != nil {
		s.log.Warn("multipart_read_failed", logging.Fields{"rid": logging.RequestID(r.Context()), "error": err.Error()})
		writeError(w, http.StatusBadRequest, "bad multipart")
		return
	}

	meta := gallery.Metadata{
		Name:              r.FormValue("name"),
		SocialMediaHandle: r.FormValue("socialMediaHandle"),
	}

	sub, err := s.submitter.Submit(r.Context(), meta, files)
	if err != nil {
		writeError(w, statusFor(err), gallery.MessageOf(err))
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func readParts(headers []*multipart.FileHeader) ([]gallery.File, error) {
	files := make([]gallery.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, gallery.File{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

// handleListSubmissions returns every submission as a JSON array.
func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.submitter.List(r.Context())
	if err != nil {
		s.log.Error("submission_list_failed", logging.Fields{"rid": logging.RequestID(r.Context())}, err)
		writeError(w, statusFor(err), gallery.MessageOf(err))
		return
	}
	if claims := adminFromContext(r.Context()); claims != nil {
		s.log.Info("submissions_listed", logging.Fields{
			"rid":   logging.RequestID(r.Context()),
			"admin": claims.Username,
			"count": len(subs),
		})
	}
	writeJSON(w, http.StatusOK, subs)
}
