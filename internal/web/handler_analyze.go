package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/opensitee/ingredientcheck/internal/domain"
	"github.com/opensitee/ingredientcheck/internal/service"
)

// allowedImageTypes is the set of MIME types accepted for uploaded labels.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// allowedImageMIME returns the sniffed MIME type and true if the data is an
// accepted image format, or ("", false) otherwise.
func allowedImageMIME(data []byte) (string, bool) {
	mime := http.DetectContentType(data)
	if allowedImageTypes[mime] {
		return mime, true
	}
	return "", false
}

// uploadError is a request problem detected before the pipeline runs.
type uploadError struct {
	status  int
	message string
}

func (e *uploadError) Error() string { return e.message }

type analyzeResponse struct {
	RequestID string `json:"request_id"`
	Rating    int    `json:"rating"`
	Result    string `json:"result"`
}

type errorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

type resultPage struct {
	Result *domain.Result
	Error  string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.renderPage(w, http.StatusOK, nil, "base.html", "index.html"); err != nil {
		s.logger.Error("render page failed", "page", "index", "error", err)
	}
}

func (s *Server) handleAnalyzePage(w http.ResponseWriter, r *http.Request) {
	res, err := s.analyze(w, r)
	status, page := http.StatusOK, resultPage{Result: res}
	if err != nil {
		status = statusFor(err)
		page.Error = userMessage(err)
	}
	if err := s.renderPage(w, status, page, "base.html", "result.html"); err != nil {
		s.logger.Error("render page failed", "page", "result", "error", err)
	}
}

func (s *Server) handleAnalyzeAPI(w http.ResponseWriter, r *http.Request) {
	res, err := s.analyze(w, r)
	if err != nil {
		resp := errorResponse{Error: userMessage(err)}
		var stageErr *service.StageError
		if errors.As(err, &stageErr) {
			resp.Stage = stageErr.Stage.String()
		}
		s.writeJSON(w, statusFor(err), resp)
		return
	}
	s.writeJSON(w, http.StatusOK, analyzeResponse{
		RequestID: res.RequestID,
		Rating:    int(res.Rating),
		Result:    res.Text,
	})
}

// multipartOverhead is the body allowance for boundaries, part headers and
// the health field on top of the image limit.
const multipartOverhead = 64 << 10

// analyze validates the upload, stores it for the duration of the run and
// hands it to the pipeline.
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) (*domain.Result, error) {
	bodyLimit := s.maxUpload + multipartOverhead
	if r.ContentLength > bodyLimit {
		return nil, &uploadError{status: http.StatusRequestEntityTooLarge, message: "image is too large"}
	}
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &uploadError{status: http.StatusRequestEntityTooLarge, message: "image is too large"}
		}
		return nil, &uploadError{status: http.StatusBadRequest, message: "failed to parse form"}
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			s.logger.Error("failed to remove multipart temp files", "error", err)
		}
	}()

	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, &uploadError{status: http.StatusBadRequest, message: "image file required"}
	}
	defer closeWithLog(file, "upload file", s.logger)
	if header.Size > s.maxUpload {
		return nil, &uploadError{status: http.StatusRequestEntityTooLarge, message: "image is too large"}
	}

	imageData, err := io.ReadAll(file)
	if err != nil {
		s.logger.Error("read upload failed", "error", err)
		return nil, &uploadError{status: http.StatusInternalServerError, message: "failed to read file"}
	}

	mimeType, ok := allowedImageMIME(imageData)
	if !ok {
		return nil, &uploadError{status: http.StatusUnsupportedMediaType, message: "unsupported image format, upload a JPEG or PNG"}
	}
	format, _ := domain.FormatFromMIME(mimeType)

	img, err := s.images.Save(r.Context(), format, bytes.NewReader(imageData))
	if err != nil {
		s.logger.Error("save upload failed", "error", err)
		return nil, &uploadError{status: http.StatusInternalServerError, message: "failed to store image"}
	}
	defer func() {
		if err := s.images.Delete(context.WithoutCancel(r.Context()), img); err != nil {
			s.logger.Error("failed to delete upload", "path", img.Path, "error", err)
		}
	}()

	return s.service.Analyze(r.Context(), img, r.FormValue("health"))
}

// statusFor maps pipeline and upload failures to HTTP status codes.
func statusFor(err error) int {
	var upErr *uploadError
	switch {
	case errors.As(err, &upErr):
		return upErr.status
	case errors.Is(err, domain.ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrAuthentication), errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// userMessage returns a message safe to show to the client. Upstream error
// bodies stay in the logs.
func userMessage(err error) string {
	var upErr *uploadError
	switch {
	case errors.As(err, &upErr):
		return upErr.message
	case errors.Is(err, domain.ErrDecode):
		return "the image could not be decoded"
	case errors.Is(err, domain.ErrBackendUnavailable):
		return "text recognition is unavailable"
	case errors.Is(err, domain.ErrTimeout):
		return "the analysis took too long"
	case errors.Is(err, domain.ErrQuotaExceeded):
		return "the analysis service is rate limited, try again later"
	case errors.Is(err, domain.ErrAuthentication):
		return "the analysis service rejected its credentials"
	case errors.Is(err, domain.ErrServiceUnavailable):
		return "the analysis service is unavailable"
	default:
		return "analysis failed"
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write json failed", "error", err)
	}
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
