// Package policy wires the application's authorization rules into a gate.
package policy

import (
	"context"

	"github.com/mrosario/funeraria/gate"
	"github.com/mrosario/funeraria/internal/models"
)

// NewGate registers the policies for all guarded resource types.
// Contract deletion and catalog mutation are admin capabilities; everything
// else only requires an authenticated user.
func NewGate() *gate.Gate[*models.User] {
	g := gate.NewGate[*models.User]()
	g.Register("contract", gate.PolicyFunc[*models.User](func(_ context.Context, u *models.User, action gate.Action, _ any) bool {
		if action == gate.ActionDelete {
			return u.IsAdmin()
		}
		return true
	}))
	g.Register("catalog", gate.PolicyFunc[*models.User](func(_ context.Context, u *models.User, action gate.Action, _ any) bool {
		switch action {
		case gate.ActionCreate, gate.ActionUpdate, gate.ActionDelete:
			return u.IsAdmin()
		default:
			return true
		}
	}))
	return g
}
