package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	domain "github.com/bryanwahyu/automaton-review/internal/domain/review"
	"github.com/bryanwahyu/automaton-review/internal/middleware"
)

const (
	uploadField = "codeFile"
	// room for multipart headers and other small form fields
	bodySlack = 1 << 20
)

// readSubmission decides between a multipart upload and a JSON paste. An
// uploaded file always wins; a multipart body without codeFile is
// ErrNoFileUploaded even when it carries a code field.
func (r *Router) readSubmission(w http.ResponseWriter, req *http.Request) (domain.Submission, error) {
	limit := r.maxUpload + bodySlack
	if req.ContentLength > limit {
		return domain.Submission{}, domain.ErrFileTooLarge
	}
	req.Body = http.MaxBytesReader(w, req.Body, limit)

	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return r.readUpload(req)
	}
	return readPaste(req.Body)
}

func (r *Router) readUpload(req *http.Request) (domain.Submission, error) {
	mr, err := req.MultipartReader()
	if err != nil {
		return domain.Submission{}, fmt.Errorf("%w: %v", domain.ErrNoFileUploaded, err)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return domain.Submission{}, domain.ErrNoFileUploaded
		}
		if err != nil {
			return domain.Submission{}, bodyError(err, domain.ErrNoFileUploaded)
		}
		if part.FormName() != uploadField || part.FileName() == "" {
			part.Close()
			continue
		}

		name := middleware.SanitizeUploadName(part.FileName())
		data, err := io.ReadAll(io.LimitReader(part, r.maxUpload+1))
		part.Close()
		if err != nil {
			return domain.Submission{}, bodyError(err, domain.ErrNoFileUploaded)
		}
		if int64(len(data)) > r.maxUpload {
			return domain.Submission{}, domain.ErrFileTooLarge
		}
		if name == "" {
			return domain.Submission{}, domain.ErrNoFileUploaded
		}
		return domain.NewUpload(name, data), nil
	}
}

func readPaste(body io.Reader) (domain.Submission, error) {
	var payload struct {
		Code any `json:"code"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return domain.Submission{}, bodyError(err, domain.ErrEmptyOrInvalidCode)
	}
	code, ok := payload.Code.(string)
	if !ok {
		return domain.Submission{}, domain.ErrEmptyOrInvalidCode
	}
	return domain.Submission{Kind: domain.KindPaste, Code: code}, nil
}

// bodyError reports ErrFileTooLarge when the body cap was hit, else fallback.
func bodyError(err, fallback error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return domain.ErrFileTooLarge
	}
	return fmt.Errorf("%w: %v", fallback, err)
}
