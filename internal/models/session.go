package models

// Roles a session can carry.
const (
	RoleContributor = "contributor"
	RoleAdmin       = "admin"
)

// Session identifies the current actor: the resolved role+name pair plus the
// login time in unix milliseconds.
type Session struct {
	Role      string `json:"role"`
	Name      string `json:"name"`
	Timestamp int64  `json:"timestamp"`
}

// ContributorLoginRequest is the payload for contributor login
type ContributorLoginRequest struct {
	Name string `json:"name" validate:"required,min=2,max=50"`
}

// AdminLoginRequest is the payload for admin login
type AdminLoginRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=50"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the session token back to the client
type LoginResponse struct {
	Token   string  `json:"token"`
	Session Session `json:"session"`
}
