package handlers

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/anstrom/scanexport/internal/api/middleware"
	"github.com/anstrom/scanexport/internal/batch"
	"github.com/anstrom/scanexport/internal/errors"
	"github.com/anstrom/scanexport/internal/logging"
)

// Response headers set by Convert.
const (
	HeaderBatchID        = "X-Batch-ID"
	HeaderSkippedSources = "X-Skipped-Sources"
	HeaderDecoded        = "X-Decoded-Sources"
)

const defaultBodyLabel = "request"

// ConvertResponseError is returned when no part of a request could be
// converted.
type ConvertResponseError struct {
	ErrorResponse
	BatchID string                `json:"batch_id"`
	Skipped []batch.SkippedSource `json:"skipped_sources"`
}

// ConvertHandler converts uploaded scan reports into JSON or CSV exports.
type ConvertHandler struct {
	options  []batch.Option
	maxParts int
	logger   *logging.Logger
}

// NewConvertHandler creates a convert handler. opts are applied to the
// collector of every request. Multipart requests may carry at most maxParts
// files.
func NewConvertHandler(logger *logging.Logger, maxParts int, opts ...batch.Option) *ConvertHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ConvertHandler{
		options:  opts,
		maxParts: maxParts,
		logger:   logger.WithFields("handler", "convert"),
	}
}

// Convert handles POST /convert/{format}. The body is either one XML report
// or a multipart form whose file parts are reports. Reports that cannot be
// decoded are skipped and named in the X-Skipped-Sources header. The request
// fails with 422 when no report could be decoded.
func (h *ConvertHandler) Convert(w http.ResponseWriter, r *http.Request) {
	format := mux.Vars(r)["format"]
	if format != batch.FormatJSON && format != batch.FormatCSV {
		writeError(w, r, http.StatusNotFound, errors.ErrConfigInvalid("format", format))
		return
	}

	pretty, err := parseBoolParam(r, "pretty")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	sources, err := h.readSources(r)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}
	if len(sources) == 0 {
		writeError(w, r, http.StatusBadRequest,
			errors.NewConfigFieldError(errors.CodeNoSourceMatch, "Request contains no report", "body", nil))
		return
	}

	opts := append([]batch.Option{}, h.options...)
	opts = append(opts, batch.WithPrettyJSON(pretty), batch.WithSinkName("response"))
	collector := batch.New(opts...)

	// The export is buffered so that headers can still report the outcome.
	var buf bytes.Buffer
	summary, err := collector.Collect(r.Context(), format, sources, &buf)
	if err != nil {
		h.logger.ErrorExport("Conversion failed", format, err, "request_id", requestID(r))
		writeError(w, r, statusFor(err), err)
		return
	}

	w.Header().Set(HeaderBatchID, summary.BatchID)
	w.Header().Set(HeaderDecoded, strconv.Itoa(summary.Decoded))
	if summary.Skipped > 0 {
		w.Header().Set(HeaderSkippedSources, strings.Join(summary.SkippedNames(), ","))
	}

	if summary.Decoded == 0 {
		writeJSON(w, r, http.StatusUnprocessableEntity, ConvertResponseError{
			ErrorResponse: newErrorResponse(r, http.StatusUnprocessableEntity,
				fmt.Errorf("none of %d reports could be decoded", summary.Sources)),
			BatchID: summary.BatchID,
			Skipped: summary.SkippedSources,
		})
		return
	}

	h.logger.InfoExport("Conversion completed", format,
		"request_id", requestID(r),
		"batch_id", summary.BatchID,
		"decoded", summary.Decoded,
		"skipped", summary.Skipped,
		"rows", summary.Rows)

	w.Header().Set("Content-Type", contentType(format))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("Failed to write conversion response", "request_id", requestID(r), "error", err)
	}
}

// readSources turns the request body into batch sources.
func (h *ConvertHandler) readSources(r *http.Request) ([]batch.Source, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err == nil && mediaType == "multipart/form-data" {
		return h.readMultipart(r)
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	label := r.URL.Query().Get("name")
	if label == "" {
		label = defaultBodyLabel
	}
	return []batch.Source{batch.BytesSource{Label: label, Data: data}}, nil
}

// readMultipart streams the file parts of a multipart body. Parts without a
// file name are ignored.
func (h *ConvertHandler) readMultipart(r *http.Request) ([]batch.Source, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, errors.NewConfigFieldError(errors.CodeValidation, err.Error(), "body", nil)
	}

	var sources []batch.Source
	for {
		part, err := reader.NextPart()
		if stderrors.Is(err, io.EOF) {
			return sources, nil
		}
		if err != nil {
			return nil, wrapPartError(err)
		}

		name := part.FileName()
		if name == "" {
			_ = part.Close()
			continue
		}
		if h.maxParts > 0 && len(sources) >= h.maxParts {
			_ = part.Close()
			return nil, errors.NewConfigFieldError(errors.CodeValidation,
				fmt.Sprintf("Too many files, at most %d are accepted", h.maxParts), "body", len(sources)+1)
		}

		data, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			return nil, wrapPartError(err)
		}
		sources = append(sources, batch.BytesSource{Label: uniqueLabel(sources, name), Data: data})
	}
}

func wrapPartError(err error) error {
	var maxErr *http.MaxBytesError
	if stderrors.As(err, &maxErr) {
		return err
	}
	return errors.WrapConfigError(errors.CodeValidation, "Malformed multipart body", err)
}

// uniqueLabel keeps source names distinct when several parts share a file
// name, so skipped parts can be told apart.
func uniqueLabel(sources []batch.Source, name string) string {
	label := name
	for n := 2; ; n++ {
		taken := false
		for _, src := range sources {
			if src.Name() == label {
				taken = true
				break
			}
		}
		if !taken {
			return label
		}
		label = fmt.Sprintf("%s#%d", name, n)
	}
}

func parseBoolParam(r *http.Request, key string) (bool, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, errors.ErrConfigInvalid(key, value)
	}
	return b, nil
}

func contentType(format string) string {
	if format == batch.FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json"
}

func requestID(r *http.Request) string {
	return middleware.GetRequestID(r)
}
