// Package policy decides which caller may perform which operation.
package policy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/shortlist/internal/domain/model"
	"github.com/okian/shortlist/internal/domain/types"
)

// Role of a caller as asserted by the upstream gateway.
type Role string

// Roles.
const (
	RoleAdmin  Role = "admin"
	RoleClub   Role = "club"
	RoleViewer Role = "viewer"
)

// ParseRole maps a header value to a role; unknown or empty values are viewers.
func ParseRole(s string) Role {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleClub:
		return r
	}
	return RoleViewer
}

// Caller identifies who invokes an operation.
type Caller struct {
	Role Role
	Club string
}

// System is the caller used by trusted in-process tooling.
var System = Caller{Role: RoleAdmin}

// Action names a guarded operation.
type Action string

// Actions.
const (
	ActionView            Action = "view"
	ActionManageTeams     Action = "manage_teams"
	ActionManageRounds    Action = "manage_rounds"
	ActionSetCriteria     Action = "set_criteria"
	ActionEvaluate        Action = "evaluate"
	ActionFreeze          Action = "freeze"
	ActionUnfreeze        Action = "unfreeze"
	ActionViewEvaluations Action = "view_evaluations"
	ActionSetWeight       Action = "set_weight"
	ActionShortlist       Action = "shortlist"
	ActionHandleAbsentees Action = "handle_absentees"
	ActionExport          Action = "export"
)

// ErrForbidden is the cause attached to PermissionDenied errors.
var ErrForbidden = errors.New("caller may not perform this action")

// Policy authorizes a caller for an action, optionally on a round.
type Policy interface {
	Authorize(c Caller, a Action, r *model.Round) error
}

// RolePolicy grants admins everything, lets a club manage the rounds it owns
// and leaves reads open to everyone.
type RolePolicy struct {
	clubActions map[Action]bool
}

// NewRolePolicy returns the default policy.
func NewRolePolicy() *RolePolicy {
	return &RolePolicy{clubActions: map[Action]bool{
		ActionSetCriteria:     true,
		ActionEvaluate:        true,
		ActionFreeze:          true,
		ActionViewEvaluations: true,
		ActionExport:          true,
	}}
}

// Authorize implements Policy.
func (p *RolePolicy) Authorize(c Caller, a Action, r *model.Round) error {
	if a == ActionView || c.Role == RoleAdmin {
		return nil
	}
	if c.Role == RoleClub && p.clubActions[a] && r != nil && c.Club != "" && r.Club == c.Club {
		return nil
	}
	return types.WrapKind("policy.authorize", types.ErrPermissionDenied,
		fmt.Errorf("%w: role=%s action=%s", ErrForbidden, c.Role, a))
}
