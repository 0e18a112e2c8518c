package auth

import (
	"log/slog"
	"net/http"

	"github.com/miyuou/smartticket/internal"
	"github.com/miyuou/smartticket/internal/transport"
	"github.com/miyuou/smartticket/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI, lg *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	resp, err := h.Service.Authenticate(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

// AuthMiddleware resolves the bearer token into a principal. It never
// touches the database.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.HandleServiceError(w, r, internal.ErrMissingToken)
			return
		}

		claims, err := h.Service.ValidateAccessToken(token)
		if err != nil {
			logger.From(r.Context()).Info("token rejected", "error", err)
			h.HandleServiceError(w, r, err)
			return
		}

		p := claims.Principal()
		ctx := internal.ContextWithPrincipal(r.Context(), p)
		ctx = logger.With(ctx, "user_id", p.UserID, "role", p.Role.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
