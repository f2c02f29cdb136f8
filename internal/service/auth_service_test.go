package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/servicedesk/internal/config"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/service"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

func authConfig(requirePassword bool) config.Config {
	return config.Config{Auth: config.AuthConfig{
		JWTSecret:             "test",
		AccessTokenTTLMinutes: 5,
		RequirePassword:       requirePassword,
		DemoPassword:          "demo123",
		BcryptCost:            4,
	}}
}

func TestLoginIgnoresPasswordByDefault(t *testing.T) {
	svc, err := service.NewAuthService(authConfig(false), nil)
	require.NoError(t, err)

	account, token, _, err := svc.Login(context.Background(), domain.BusinessIdentity, "anything")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleBusiness, account.Role)

	claims, err := svc.Tokens().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.BusinessIdentity, claims.Identity)

	_, _, _, err = svc.Login(context.Background(), "BUSINESS.USER@contoso.com", "")
	assert.ErrorIs(t, err, apperrors.NewUnauthorized(""))

	_, _, _, err = svc.Login(context.Background(), " "+domain.BusinessIdentity+" ", "")
	assert.ErrorIs(t, err, apperrors.NewUnauthorized(""))
}

func TestLoginChecksPasswordWhenRequired(t *testing.T) {
	svc, err := service.NewAuthService(authConfig(true), nil)
	require.NoError(t, err)

	_, _, _, err = svc.Login(context.Background(), domain.SupportIdentity, "wrong")
	assert.Error(t, err)

	account, _, _, err := svc.Login(context.Background(), domain.SupportIdentity, "demo123")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSupport, account.Role)
}
