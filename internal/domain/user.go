package domain

import "time"

// UserRole separates ticket requesters from support operators.
type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleAgent    UserRole = "agent"
	RoleAdmin    UserRole = "admin"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case RoleCustomer, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// UserRoleValues lists valid roles, for validation messages.
func UserRoleValues() []string {
	return []string{string(RoleCustomer), string(RoleAgent), string(RoleAdmin)}
}

// User is the domain model for every account: customers submitting tickets
// and agents/admins working them. Only role=agent participates in scheduling.
//
// IsAvailable is a toggle the agent (or availability recomputation) flips;
// Capacity is the maximum number of active tickets the agent may hold at
// once. Capacity 0 means the agent should never be considered available —
// that is not enforced on write, only lazily by recomputation.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         UserRole
	IsAvailable  bool
	Capacity     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAgent reports whether the user participates in assignment scheduling.
func (u *User) IsAgent() bool {
	return u != nil && u.Role == RoleAgent
}

// AgentLoad annotates an agent with its derived active ticket count. The
// count is always computed from the ticket table, never cached.
type AgentLoad struct {
	Agent       User
	ActiveCount int
}

// HasSpareCapacity reports whether the agent can take one more ticket.
func (l AgentLoad) HasSpareCapacity() bool {
	return l.ActiveCount < l.Agent.Capacity
}
