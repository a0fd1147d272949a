package service

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/thnhpht/ITS/internal/auth"
	"github.com/thnhpht/ITS/internal/config"
	apperrors "github.com/thnhpht/ITS/pkg/util"
)

// AuthService authenticates the ops API operator.
type AuthService struct {
	username     string
	passwordHash string
	tokenMgr     *auth.TokenManager
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, tokens *auth.TokenManager) *AuthService {
	return &AuthService{
		username:     cfg.OperatorUsername,
		passwordHash: cfg.OperatorPasswordHash,
		tokenMgr:     tokens,
	}
}

// Login checks the operator credentials and issues an access token that
// may call both the ops endpoints and the resolution callback.
func (s *AuthService) Login(_ context.Context, username, password string) (string, time.Time, error) {
	if s.passwordHash == "" {
		return "", time.Time{}, apperrors.NewUnauthorized("operator login disabled")
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) != 1 {
		return "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if err := auth.ComparePassword(s.passwordHash, password); err != nil {
		return "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	return s.tokenMgr.GenerateToken(username, auth.RoleOperator, auth.RoleCallback)
}
