package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/nkiryanov/vidtube/internal/apperrors"
	"github.com/nkiryanov/vidtube/internal/media"
)

const (
	// Whole request body, videos included
	maxUploadBodySize = 256 << 20

	// Parts above this are spooled to disk
	maxUploadMemory = 32 << 20
)

// Parsed multipart request. Close releases opened files and temporary ones
type uploads struct {
	r      *http.Request
	opened []multipart.File
}

func readUploads(w http.ResponseWriter, r *http.Request) (*uploads, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodySize)

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperrors.BadRequest(fmt.Sprintf("Request is too large (maximum %d bytes)", tooLarge.Limit))
		}
		return nil, fmt.Errorf("%w: %w", apperrors.BadRequest("Multipart form expected"), err)
	}

	return &uploads{r: r}, nil
}

func (u *uploads) value(field string) string {
	return u.r.FormValue(field)
}

// File of the field. Body is nil if the field is absent
func (u *uploads) file(field string) (media.File, error) {
	f, header, err := u.r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return media.File{}, nil
	}
	if err != nil {
		return media.File{}, fmt.Errorf("%w: %w", apperrors.BadRequest("Can't read file "+field), err)
	}
	u.opened = append(u.opened, f)

	return media.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        f,
	}, nil
}

func (u *uploads) Close() {
	for _, f := range u.opened {
		_ = f.Close()
	}
	if u.r.MultipartForm != nil {
		_ = u.r.MultipartForm.RemoveAll()
	}
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, apperrors.BadRequest("Invalid " + name)
	}
	return id, nil
}

// Optional positive int query param, zero if absent
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperrors.BadRequest(name + " must be a positive number")
	}
	return n, nil
}
