package dto

import (
	"time"

	"github.com/deskhub/support-service/internal/domain"
)

// RegisterRequest payload.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateUserRequest is the admin provisioning payload.
type CreateUserRequest struct {
	Username string          `json:"username"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     domain.UserRole `json:"role"`
}

// UserResponse is the public account view.
type UserResponse struct {
	ID       int64           `json:"id"`
	Username string          `json:"username"`
	Email    string          `json:"email"`
	Role     domain.UserRole `json:"role"`
}

// SessionResponse wraps a login/registration result.
type SessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// UpdateAvailabilityRequest is the agent profile PATCH payload.
type UpdateAvailabilityRequest struct {
	IsAvailable *bool `json:"is_available"`
	Capacity    *int  `json:"capacity"`
}

// AvailabilityResponse is the agent profile plus derived load.
type AvailabilityResponse struct {
	Role                domain.UserRole `json:"role"`
	IsAvailable         bool            `json:"is_available"`
	Capacity            int             `json:"capacity"`
	ActiveAssignedCount int             `json:"active_assigned_count"`
}

// AgentPresence is one row of the admin presence listing.
type AgentPresence struct {
	ID                  int64  `json:"id"`
	Username            string `json:"username"`
	Email               string `json:"email"`
	IsAvailable         bool   `json:"is_available"`
	Capacity            int    `json:"capacity"`
	ActiveAssignedCount int    `json:"active_assigned_count"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
	}
}
