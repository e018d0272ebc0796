package account

import "tap-arena/internal/auth"

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

type LoginResponse struct {
	Token string        `json:"token"`
	User  auth.Identity `json:"user"`
}

type MeResponse struct {
	User auth.Identity `json:"user"`
}
