package routing

import (
	"strings"

	"github.com/jrsteele09/swishview/users"
)

// Role is the resolved role of a visitor, including the signed-out case.
type Role string

const (
	RoleAnonymous Role = "anonymous"
	RoleUser      Role = Role(users.RoleUser)
	RoleAdmin     Role = Role(users.RoleAdmin)
)

// RoleOf maps a derived user role onto a routing role.
func RoleOf(r users.RoleType) Role {
	switch r {
	case users.RoleAdmin:
		return RoleAdmin
	case users.RoleUser:
		return RoleUser
	}
	return RoleAnonymous
}

const (
	PathHome       = "/"
	PathAuth       = "/auth"
	PathDashboard  = "/dashboard"
	PathAdmin      = "/admin"
	PathAdminLogin = "/admin-login"
	PathPayment    = "/payment/"
)

// Request is one navigation attempt.
type Request struct {
	Path      string
	Role      Role
	AdminGate bool // visitor holds an admin-gate flag
}

// Decision is where the visitor ends up. Redirect is set when the visitor has to be
// sent somewhere other than where they asked to go.
type Decision struct {
	Path     string
	Redirect bool
}

// Policy is the Routing Policy. It is a pure function of the request.
type Policy struct {
	adminGate bool
}

type PolicyOption func(*Policy)

// WithAdminGate lets an admin-gate flag open the admin surface without an Admin
// session. It is off unless configured.
func WithAdminGate(enabled bool) PolicyOption {
	return func(p *Policy) {
		p.adminGate = enabled
	}
}

func NewPolicy(options ...PolicyOption) *Policy {
	p := &Policy{}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *Policy) AdminGateEnabled() bool {
	return p.adminGate
}

// Landing is the authenticated entry point for role.
func Landing(role Role) string {
	switch role {
	case RoleAdmin:
		return PathAdmin
	case RoleUser:
		return PathDashboard
	}
	return PathAuth
}

// Decide maps a requested path and role to the allowed destination.
func (p *Policy) Decide(req Request) Decision {
	path := req.Path
	if path == "" {
		path = PathHome
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	gated := p.adminGate && req.AdminGate

	switch {
	case path == PathAuth:
		if req.Role != RoleAnonymous {
			return redirect(Landing(req.Role))
		}
	case path == PathDashboard:
		if req.Role == RoleAnonymous {
			return redirect(PathAuth)
		}
		if req.Role == RoleAdmin {
			return redirect(PathAdmin)
		}
	case path == PathAdmin:
		switch {
		case req.Role == RoleAdmin, gated:
		case req.Role == RoleUser:
			return redirect(PathDashboard)
		case p.adminGate:
			return redirect(PathAdminLogin)
		default:
			return redirect(PathAuth)
		}
	case path == PathAdminLogin:
		if req.Role == RoleAdmin || gated {
			return redirect(PathAdmin)
		}
		if !p.adminGate {
			return redirect(Landing(req.Role))
		}
	case strings.HasPrefix(path+"/", PathPayment):
		if req.Role == RoleAnonymous {
			return redirect(PathAuth)
		}
	}
	return Decision{Path: path}
}

func redirect(path string) Decision {
	return Decision{Path: path, Redirect: true}
}
