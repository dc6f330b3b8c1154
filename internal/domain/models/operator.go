package models

const (
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

// Operator is the authenticated caller carried in the request context.
type Operator struct {
	Name string
	Role string
}
