// Package client is a thin HTTP client for the userkeeper API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/userkeeper/internal/common"
)

// User is the public view of a registered user as returned by the server.
type User struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type RegisterRequest struct {
	FirstName   string
	Email       string
	Password    []byte
	Phone       string
	Picture     []byte
	PictureName string
	ContentType string
}

// APIError is a non-success response. It unwraps to the matching common
// sentinel so callers can use errors.Is.
type APIError struct {
	Status int
	Detail string
	UserID string
	Fields map[string]string
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for k, v := range e.Fields {
			parts = append(parts, k+": "+v)
		}
		return fmt.Sprintf("%d %s (%s)", e.Status, e.Detail, strings.Join(parts, "; "))
	}
	return fmt.Sprintf("%d %s", e.Status, e.Detail)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusConflict:
		return common.ErrorEmailAlreadyRegistered
	case e.Status == http.StatusNotFound:
		return common.ErrorNotFound
	case e.Status == http.StatusUnprocessableEntity:
		return common.ErrorValidation
	case e.Status >= 500 && e.UserID != "":
		return common.ErrorProfileStorageFailed
	default:
		return nil
	}
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// Register posts the registration form. On a partial registration the
// returned error matches common.ErrorProfileStorageFailed and carries the
// new user id in APIError.UserID.
func (c *Client) Register(ctx context.Context, r RegisterRequest) (*User, error) {
	body, contentType, err := registerForm(r)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/register", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	var u User
	if err := c.do(req, http.StatusCreated, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var u User
	if err := c.do(req, http.StatusOK, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetProfilePicture returns the picture bytes and their content type.
func (c *Client) GetProfilePicture(ctx context.Context, id string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user/"+url.PathEscape(id)+"/profile-picture", nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", decodeError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// PutProfilePicture uploads the picture of an existing user again.
func (c *Client) PutProfilePicture(ctx context.Context, id string, picture []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/user/"+url.PathEscape(id)+"/profile-picture", bytes.NewReader(picture))
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = http.DetectContentType(picture)
	}
	req.Header.Set("Content-Type", contentType)

	return c.do(req, http.StatusNoContent, nil)
}

func (c *Client) do(req *http.Request, want int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body struct {
		Detail string            `json:"detail"`
		ID     string            `json:"id"`
		Errors map[string]string `json:"errors"`
	}
	apiErr := &APIError{Status: resp.StatusCode, Detail: http.StatusText(resp.StatusCode)}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Detail != "" {
			apiErr.Detail = body.Detail
		}
		apiErr.UserID = body.ID
		apiErr.Fields = body.Errors
	}
	return apiErr
}

func registerForm(r RegisterRequest) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	fields := []struct{ name, value string }{
		{"first_name", r.FirstName},
		{"email", r.Email},
		{"password", string(r.Password)},
		{"phone", r.Phone},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	if len(r.Picture) > 0 {
		name := r.PictureName
		if name == "" {
			name = "picture"
		}
		ct := r.ContentType
		if ct == "" {
			ct = http.DetectContentType(r.Picture)
		}

		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="profile_picture"; filename=%q`, name))
		hdr.Set("Content-Type", ct)
		part, err := mw.CreatePart(hdr)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(r.Picture); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf, mw.FormDataContentType(), nil
}
