package dto

import (
	"time"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// LoginRequest payload.
type LoginRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

// AuthResponse describes tokens.
type AuthResponse struct {
	AccessToken string         `json:"access_token"`
	ExpiresAt   time.Time      `json:"expires_at"`
	Account     domain.Account `json:"account"`
}
