package lookup

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/miyuou/smartticket/internal/core/identity"
	"github.com/miyuou/smartticket/internal/transport"
)

type ServiceAPI interface {
	List(ctx context.Context, p identity.Principal, kind Kind) ([]*Item, error)
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

func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, KindCategory)
}

func (h *Handler) GetStatuts(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, KindStatus)
}

func (h *Handler) GetTypes(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, KindType)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, kind Kind) {
	p, ok := h.Principal(w, r)
	if !ok {
		return
	}

	items, err := h.Service.List(r.Context(), p, kind)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, items)
}
