package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation"
)

const (
	detailEmailTaken     = "Email already registered"
	detailUserNotFound   = "User not found"
	detailPictureFailed  = "Profile picture storage failed"
	detailInternal       = "Internal server error"
	detailInvalidRequest = "Invalid request"
	detailPictureMissing = "Profile picture not found"
)

type errorResponse struct {
	Detail string            `json:"detail"`
	ID     string            `json:"id,omitempty"`
	Errors validation.Errors `json:"errors,omitempty"`
}

func (s *HTTPServer) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

func (s *HTTPServer) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// room for the text fields and multipart framing
	r.Body = http.MaxBytesReader(w, r.Body, s.maxPictureBytes+multipartMemory)

	req, err := parseRegisterRequest(r, s.maxPictureBytes)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Detail: "Request too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: detailInvalidRequest})
		return
	}

	if err := req.Validate(s.maxPictureBytes); err != nil {
		s.writeValidationError(w, err)
		return
	}

	user, err := s.registrar.Register(ctx, services.RegisterInput{
		FirstName:   req.FirstName,
		Email:       req.Email,
		Password:    req.Password,
		Phone:       req.Phone,
		Picture:     req.Picture,
		ContentType: req.ContentType,
	})

	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, user)
	case errors.Is(err, common.ErrorEmailAlreadyRegistered):
		writeJSON(w, http.StatusConflict, errorResponse{Detail: detailEmailTaken})
	case errors.Is(err, common.ErrorProfileStorageFailed):
		var pse *services.ProfileStorageError
		id := ""
		if errors.As(err, &pse) {
			id = pse.UserID
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: detailPictureFailed, ID: id})
	default:
		s.logger.Error(ctx, "registration failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: detailInternal})
	}
}

func (s *HTTPServer) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.finder.GetByID(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		s.writeLookupError(w, r, err, detailUserNotFound)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) getProfilePicture(w http.ResponseWriter, r *http.Request) {
	pic, err := s.finder.GetProfilePicture(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		s.writeLookupError(w, r, err, detailPictureMissing)
		return
	}

	w.Header().Set("Content-Type", contentType(pic.ContentType, pic.Data))
	w.Header().Set("Content-Length", strconv.Itoa(len(pic.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pic.Data)
}

// putProfilePicture replaces the picture of an existing user, either as a
// multipart "profile_picture" file or as the raw request body.
func (s *HTTPServer) putProfilePicture(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "user_id")

	r.Body = http.MaxBytesReader(w, r.Body, s.maxPictureBytes+multipartMemory)

	data, ct, err := s.readUploadedPicture(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Detail: "Request too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: detailInvalidRequest})
		return
	}

	err = validation.Validate(data, validation.Required, validation.By(maxSize(s.maxPictureBytes)))
	if err != nil {
		s.writeValidationError(w, validation.Errors{formPicture: err})
		return
	}

	err = s.registrar.RetryProfilePicture(ctx, userID, data, ct)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, common.ErrorNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: detailUserNotFound})
	case errors.Is(err, common.ErrorProfileStorageFailed):
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: detailPictureFailed, ID: userID})
	default:
		s.logger.Error(ctx, "profile picture retry failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: detailInternal})
	}
}

func (s *HTTPServer) readUploadedPicture(r *http.Request) ([]byte, string, error) {
	if err := r.ParseMultipartForm(multipartMemory); err == nil {
		file, header, err := r.FormFile(formPicture)
		if errors.Is(err, http.ErrMissingFile) {
			return nil, "", nil
		}
		if err != nil {
			return nil, "", err
		}
		defer file.Close()
		return readPicture(file, header, s.maxPictureBytes)
	} else if !errors.Is(err, http.ErrNotMultipart) {
		return nil, "", err
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, s.maxPictureBytes+1))
	if err != nil {
		return nil, "", err
	}
	return data, contentType(r.Header.Get("Content-Type"), data), nil
}

func (s *HTTPServer) writeLookupError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	if errors.Is(err, common.ErrorNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: notFound})
		return
	}
	s.logger.Error(r.Context(), "lookup failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: detailInternal})
}

func (s *HTTPServer) writeValidationError(w http.ResponseWriter, err error) {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: common.ErrorValidation.Error(), Errors: errs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
