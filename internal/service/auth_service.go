package service

import (
	"context"
	"time"

	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/config"
	"github.com/spec-kit/servicedesk/internal/domain"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

// AuthService signs in the demo accounts.
type AuthService struct {
	tokenMgr        *auth.TokenManager
	requirePassword bool
	demoHash        string
}

// NewAuthService builds the service. When passwords are required the
// configured demo password is hashed once here.
func NewAuthService(cfg config.Config, tokens *auth.TokenManager) (*AuthService, error) {
	s := &AuthService{
		tokenMgr:        tokens,
		requirePassword: cfg.Auth.RequirePassword,
	}
	if s.tokenMgr == nil {
		s.tokenMgr = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	}
	if s.requirePassword {
		hash, err := auth.HashPassword(cfg.Auth.DemoPassword, cfg.Auth.BcryptCost)
		if err != nil {
			return nil, err
		}
		s.demoHash = hash
	}
	return s, nil
}

// Login succeeds when identity exactly matches a demo account. The
// password is only checked when passwords are required.
func (s *AuthService) Login(ctx context.Context, identity, password string) (domain.Account, string, time.Time, error) {
	account, ok := domain.LookupAccount(identity)
	if !ok {
		return domain.Account{}, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if s.requirePassword {
		if err := auth.ComparePassword(s.demoHash, password); err != nil {
			return domain.Account{}, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
	}
	token, expiresAt, err := s.tokenMgr.GenerateToken(account.Identity, account.Role)
	if err != nil {
		return domain.Account{}, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return account, token, expiresAt, nil
}

// Tokens exposes the token manager for the auth middleware.
func (s *AuthService) Tokens() *auth.TokenManager {
	return s.tokenMgr
}
