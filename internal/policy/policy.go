// Package policy decides, for a principal and an operation, whether the
// operation is allowed and with which visibility and mutation scope.
//
// Authorize is a pure function. Callers run it once with a nil target before
// touching the store (role-level check) and, for ticket-scoped operations,
// again with the ticket's assignment set before any write.
package policy

import (
	"slices"

	"github.com/miyuou/smartticket/internal"
	"github.com/miyuou/smartticket/internal/core/identity"
)

type Operation string

const (
	OpListTickets  Operation = "list_tickets"
	OpReadTicket   Operation = "read_ticket"
	OpCreateTicket Operation = "create_ticket"
	OpUpdateTicket Operation = "update_ticket"
	OpDeleteTicket Operation = "delete_ticket"
	OpViewStats    Operation = "view_stats"
	OpExport       Operation = "export"
	OpImport       Operation = "import"
	OpManageUsers  Operation = "manage_users"
	OpViewLookups  Operation = "view_lookups"
)

var Operations = []Operation{
	OpListTickets, OpReadTicket, OpCreateTicket, OpUpdateTicket, OpDeleteTicket,
	OpViewStats, OpExport, OpImport, OpManageUsers, OpViewLookups,
}

// ScopeFilter restricts which tickets a caller may see. The zero value sees
// nothing; use All or AssignedTo.
type ScopeFilter struct {
	all        bool
	assignedTo int64
}

func All() ScopeFilter {
	return ScopeFilter{all: true}
}

func AssignedTo(userID int64) ScopeFilter {
	return ScopeFilter{assignedTo: userID}
}

func (f ScopeFilter) IsAll() bool {
	return f.all
}

// AssignedTo returns the technician id the filter is bound to, or 0 for All.
func (f ScopeFilter) AssignedTo() int64 {
	return f.assignedTo
}

type Mutation int

const (
	MutationNone Mutation = iota
	MutationStatusOnly
	MutationFull
)

func (m Mutation) String() string {
	switch m {
	case MutationFull:
		return "full"
	case MutationStatusOnly:
		return "status_only"
	}
	return "none"
}

type Scope struct {
	Filter   ScopeFilter
	Mutation Mutation
}

type Reason string

const (
	ReasonRoleNotPermitted Reason = "role_not_permitted"
	ReasonNotAssigned      Reason = "not_assigned"
	ReasonUnknownRole      Reason = "unknown_role"
)

type Decision struct {
	Allowed bool
	Scope   Scope
	Reason  Reason
}

// Err converts a deny into the matching Forbidden error, nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonNotAssigned:
		return internal.ErrNotAssigned
	case ReasonUnknownRole:
		return internal.ErrUnknownRole
	default:
		return internal.ErrRoleNotPermitted
	}
}

// Target is the part of a ticket the policy needs to see.
type Target struct {
	TechnicianIDs []int64
}

func allow(filter ScopeFilter, mutation Mutation) Decision {
	return Decision{Allowed: true, Scope: Scope{Filter: filter, Mutation: mutation}}
}

func deny(reason Reason) Decision {
	return Decision{Reason: reason}
}

func Authorize(p identity.Principal, op Operation, target *Target) Decision {
	switch p.Role {
	case identity.RoleAdmin:
		return authorizeAdmin(op)
	case identity.RoleTechnician:
		return authorizeTechnician(p.UserID, op, target)
	case identity.RoleRequester:
		return authorizeRequester(op)
	}
	return deny(ReasonUnknownRole)
}

func authorizeAdmin(op Operation) Decision {
	switch op {
	case OpListTickets, OpReadTicket, OpCreateTicket, OpUpdateTicket, OpDeleteTicket,
		OpViewStats, OpExport, OpImport, OpManageUsers, OpViewLookups:
		return allow(All(), MutationFull)
	}
	return deny(ReasonRoleNotPermitted)
}

func authorizeTechnician(userID int64, op Operation, target *Target) Decision {
	switch op {
	case OpListTickets, OpViewStats, OpExport:
		return allow(AssignedTo(userID), MutationNone)
	case OpReadTicket:
		if target != nil && !target.includes(userID) {
			return deny(ReasonNotAssigned)
		}
		return allow(AssignedTo(userID), MutationNone)
	case OpUpdateTicket:
		if target != nil && !target.includes(userID) {
			return deny(ReasonNotAssigned)
		}
		return allow(AssignedTo(userID), MutationStatusOnly)
	case OpViewLookups:
		return allow(All(), MutationNone)
	case OpCreateTicket, OpDeleteTicket, OpImport, OpManageUsers:
		return deny(ReasonRoleNotPermitted)
	}
	return deny(ReasonRoleNotPermitted)
}

// Requesters keep read access to every ticket, stats and export included.
func authorizeRequester(op Operation) Decision {
	switch op {
	case OpListTickets, OpReadTicket, OpViewStats, OpExport, OpViewLookups:
		return allow(All(), MutationNone)
	case OpCreateTicket, OpUpdateTicket, OpDeleteTicket, OpImport, OpManageUsers:
		return deny(ReasonRoleNotPermitted)
	}
	return deny(ReasonRoleNotPermitted)
}

func (t *Target) includes(userID int64) bool {
	return slices.Contains(t.TechnicianIDs, userID)
}
