package httpapi

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	formFirstName = "first_name"
	formEmail     = "email"
	formPassword  = "password"
	formPhone     = "phone"
	formPicture   = "profile_picture"

	// bcrypt only looks at the first 72 bytes
	maxPasswordLen = 72

	multipartMemory = 8 << 20
)

type registerRequest struct {
	FirstName   string `json:"first_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Phone       string `json:"phone"`
	Picture     []byte `json:"profile_picture"`
	ContentType string `json:"-"`
}

func (r registerRequest) Validate(maxPictureBytes int64) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, maxPasswordLen)),
		validation.Field(&r.Phone, validation.Required, validation.Length(1, 32)),
		validation.Field(&r.Picture, validation.Required, validation.By(maxSize(maxPictureBytes))),
	)
}

func maxSize(limit int64) validation.RuleFunc {
	return func(value interface{}) error {
		b, _ := value.([]byte)
		if int64(len(b)) > limit {
			return fmt.Errorf("must be at most %d bytes", limit)
		}
		return nil
	}
}

// parseRegisterRequest reads the multipart form. Field-level problems are left
// to Validate; only malformed bodies fail here.
func parseRegisterRequest(r *http.Request, maxPictureBytes int64) (*registerRequest, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, err
	}

	req := &registerRequest{
		FirstName: strings.TrimSpace(r.FormValue(formFirstName)),
		Email:     strings.TrimSpace(r.FormValue(formEmail)),
		Password:  r.FormValue(formPassword),
		Phone:     strings.TrimSpace(r.FormValue(formPhone)),
	}

	file, header, err := r.FormFile(formPicture)
	switch {
	case err == nil:
		defer file.Close()
		req.Picture, req.ContentType, err = readPicture(file, header, maxPictureBytes)
		if err != nil {
			return nil, err
		}
	case err == http.ErrMissingFile:
	default:
		return nil, err
	}

	return req, nil
}

// readPicture reads at most limit+1 bytes so an oversized upload is detected
// without buffering all of it.
func readPicture(f multipart.File, h *multipart.FileHeader, limit int64) ([]byte, string, error) {
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, "", err
	}
	return data, contentType(h.Header.Get("Content-Type"), data), nil
}

func contentType(declared string, data []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return http.DetectContentType(data)
}
