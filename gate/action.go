package gate

// Action names the operation a policy is asked about.
type Action string

// The actions the registered policies distinguish. Mutating actions on
// guarded resources are typically restricted to the admin role.
const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)
