package domain

type Role string

const (
	RoleBuyer    Role = "buyer"
	RoleDesigner Role = "designer"
)

// Identity is the already-authenticated caller handed to the core.
type Identity struct {
	SubjectID string
	Role      Role
}
