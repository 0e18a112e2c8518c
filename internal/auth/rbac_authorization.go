package auth

import (
	"log/slog"
	"net/http"

	"github.com/miyuou/smartticket/internal"
	"github.com/miyuou/smartticket/internal/policy"
	"github.com/miyuou/smartticket/internal/transport"
)

// RBACAuthorization gates whole routes on the role-level policy decision.
// Services repeat the check, so this only rejects early.
type RBACAuthorization struct {
	*transport.BaseHandler
	onDeny func(op policy.Operation, reason policy.Reason)
}

func NewRBACAuthorization(logger *slog.Logger) *RBACAuthorization {
	return &RBACAuthorization{BaseHandler: transport.NewBaseHandler(logger)}
}

// OnDeny registers a callback run for every denied request.
func (ra *RBACAuthorization) OnDeny(fn func(op policy.Operation, reason policy.Reason)) {
	ra.onDeny = fn
}

func (ra *RBACAuthorization) Check(next http.HandlerFunc, op policy.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := internal.PrincipalFromContext(r.Context())
		if !ok {
			ra.Logger.WarnContext(r.Context(), "authorization check failed: principal not found in context")
			ra.HandleServiceError(w, r, internal.ErrMissingToken)
			return
		}

		d := policy.Authorize(p, op, nil)
		if !d.Allowed {
			ra.Logger.WarnContext(r.Context(), "access denied",
				"user_id", p.UserID,
				"role", p.Role.String(),
				"operation", string(op),
				"reason", string(d.Reason))
			if ra.onDeny != nil {
				ra.onDeny(op, d.Reason)
			}
			ra.HandleServiceError(w, r, d.Err())
			return
		}

		next.ServeHTTP(w, r)
	}
}

func (ra *RBACAuthorization) RequireOperation(op policy.Operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ra.Check(next.ServeHTTP, op)
	}
}
