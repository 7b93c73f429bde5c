/*
Package authz provides the capability predicate consumed by the core engines.

PURPOSE:
  Every mutating core operation takes an explicit Authorizer argument and
  denies the call with PermissionDeniedError before touching the store.
  There is no ambient session state — the caller (HTTP layer, CLI, test)
  constructs the capability token and passes it down.

ACTIONS:
  book_management  Register, retire, reactivate books
  ppl_management   Register and deactivate borrowers
  sanctions        Create manual sanctions, revoke sanctions
  reports_export   Export circulation reports

ROLES:
  admin       Holds every capability.
  librarian   Holds none of the gated capabilities; day-to-day circulation
              (opening and closing loans) is ungated and remains available.

SEE ALSO:
  - catalog/manager.go: book_management consumer
  - circulation/sanctions.go: sanctions consumer
  - api/handlers.go: converts request headers into a Role
*/
package authz

import (
	"errors"
	"fmt"
)

// Action is a symbolic capability checked before a gated operation.
type Action string

const (
	ActionBookManagement Action = "book_management"
	ActionPPLManagement  Action = "ppl_management"
	ActionSanctions      Action = "sanctions"
	ActionReportsExport  Action = "reports_export"
)

// Authorizer answers whether the acting principal holds a capability.
// Implementations must be side-effect free; the engines call this before
// any store access.
type Authorizer interface {
	HasCapability(action Action) bool
}

// ErrPermissionDenied is the sentinel for capability failures.
// Use errors.Is to detect it regardless of the wrapping error type.
var ErrPermissionDenied = errors.New("permission denied")

// PermissionDeniedError reports which action was refused.
type PermissionDeniedError struct {
	Action Action
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied for action %q", e.Action)
}

func (e *PermissionDeniedError) Unwrap() error {
	return ErrPermissionDenied
}

// Require returns a PermissionDeniedError unless auth holds the action.
// A nil Authorizer holds nothing.
func Require(auth Authorizer, action Action) error {
	if auth == nil || !auth.HasCapability(action) {
		return &PermissionDeniedError{Action: action}
	}
	return nil
}

// =============================================================================
// ROLE - Static role-to-capability mapping
// =============================================================================

// Role is a static Authorizer keyed by the user's role.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleLibrarian Role = "bibliotecario"
)

// HasCapability implements Authorizer. Admins hold every capability;
// librarians hold none of the gated ones.
func (r Role) HasCapability(Action) bool {
	return r == RoleAdmin
}

var _ Authorizer = Role("")

// ParseRole maps a role name to a Role. Unknown names yield a Role with
// no capabilities rather than an error: callers fail closed.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin
	case RoleLibrarian:
		return RoleLibrarian
	default:
		return Role(s)
	}
}
