package domain

import "time"

// BootstrapAdminUsername is the account created on first initialization.
const BootstrapAdminUsername = "admin"

// AdminUser is an administrator account. The API key is a long-lived static
// credential returned on login, not a session token.
type AdminUser struct {
	ID             string     `json:"id" db:"id"`
	Username       string     `json:"username" db:"username"`
	PasswordDigest string     `json:"-" db:"password_hash"`
	APIKey         *string    `json:"-" db:"api_key"`
	IsSuperadmin   bool       `json:"is_superadmin" db:"is_superadmin"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	LastLogin      *time.Time `json:"last_login" db:"last_login"`
}

// LoginRequest is the request body for password login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is returned on successful password login.
type LoginResponse struct {
	APIKey       string `json:"api_key"`
	Username     string `json:"username"`
	IsSuperadmin bool   `json:"is_superadmin"`
}

// CreateAdminRequest is the request body for creating an admin account.
type CreateAdminRequest struct {
	Username     string `json:"username" validate:"required,min=3,max=64,alphanum"`
	Password     string `json:"password" validate:"required,min=8,max=72"`
	IsSuperadmin bool   `json:"is_superadmin"`
}

// CreateAdminResponse is returned when creating an admin.
// The API key is only shown once.
type CreateAdminResponse struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	APIKey       string    `json:"api_key"`
	IsSuperadmin bool      `json:"is_superadmin"`
	CreatedAt    time.Time `json:"created_at"`
}
