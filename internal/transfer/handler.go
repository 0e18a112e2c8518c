package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/miyuou/smartticket/internal"
	"github.com/miyuou/smartticket/internal/core/identity"
	"github.com/miyuou/smartticket/internal/transport"
)

const maxUploadBytes = 10 << 20

type ServiceAPI interface {
	Import(ctx context.Context, p identity.Principal, r io.Reader) (*ImportSummary, error)
	Export(ctx context.Context, p identity.Principal, w io.Writer) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger),
		Service:     service,
	}
}

// Import handles a multipart upload with the CSV in the "file" field.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	p, ok := h.Principal(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.HandleServiceError(w, r, internal.NewValidationError("file is too large", internal.ErrCodeInvalidCSV))
			return
		}
		h.HandleServiceError(w, r, internal.NewValidationFieldError("file", "No file provided", internal.ErrCodeMissingFile))
		return
	}
	defer file.Close()

	summary, err := h.Service.Import(r.Context(), p, file)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	p, ok := h.Principal(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.Service.Export(r.Context(), p, &buf); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="tickets.csv"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.Logger.Error("failed to write export", "error", err)
	}
}
