package chat

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/dalemusser/parley/internal/app/system/attachments"
	"github.com/dalemusser/parley/internal/app/system/limits"
	"github.com/dalemusser/parley/internal/domain/models"
)

// uploadError is a client mistake in the multipart body.
type uploadError struct {
	status  int
	field   string
	message string
}

func (e *uploadError) Error() string { return e.message }

// parseSendForm reads the "message" field and the "files" parts. Every part
// is checked against the allowed MIME list before anything is stored; on any
// failure files already stored are removed again.
func (h *Handler) parseSendForm(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, []models.MediaFile, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseForm(); err != nil {
			return "", nil, formError(err)
		}
		return r.PostFormValue("message"), nil, nil
	}

	if err := r.ParseMultipartForm(limits.MultipartMemory); err != nil {
		return "", nil, formError(err)
	}
	defer r.MultipartForm.RemoveAll()

	text := ""
	if vals := r.MultipartForm.Value["message"]; len(vals) > 0 {
		text = vals[0]
	}

	parts := r.MultipartForm.File["files"]
	if len(parts) > limits.MaxFiles {
		return "", nil, &uploadError{http.StatusBadRequest, "files",
			fmt.Sprintf("At most %d files may be attached.", limits.MaxFiles)}
	}
	for _, p := range parts {
		if mt := partType(p); !attachments.Allowed(mt) {
			err := &attachments.UnsupportedTypeError{MimeType: mt}
			return "", nil, &uploadError{http.StatusBadRequest, "files", err.Error()}
		}
	}

	files := make([]models.MediaFile, 0, len(parts))
	for _, p := range parts {
		mf, err := h.storePart(ctx, p)
		if err != nil {
			_ = h.Files.Remove(files)
			return "", nil, err
		}
		files = append(files, mf)
	}
	return text, files, nil
}

func (h *Handler) storePart(ctx context.Context, p *multipart.FileHeader) (models.MediaFile, error) {
	f, err := p.Open()
	if err != nil {
		return models.MediaFile{}, err
	}
	defer f.Close()
	return h.Files.Save(ctx, p.Filename, partType(p), f)
}

func partType(p *multipart.FileHeader) string {
	if mt := p.Header.Get("Content-Type"); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

func formError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return &uploadError{http.StatusRequestEntityTooLarge, "files",
			fmt.Sprintf("Request exceeds the %d MB upload limit.", tooBig.Limit>>20)}
	}
	return &uploadError{http.StatusBadRequest, "", "Invalid form data."}
}
