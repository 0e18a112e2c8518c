package stats

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/miyuou/smartticket/internal/core/identity"
	"github.com/miyuou/smartticket/internal/transport"
)

type ServiceAPI interface {
	GetStats(ctx context.Context, p identity.Principal) (*Report, error)
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

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	p, ok := h.Principal(w, r)
	if !ok {
		return
	}

	report, err := h.Service.GetStats(r.Context(), p)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, report)
}
