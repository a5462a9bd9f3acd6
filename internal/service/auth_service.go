package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"memeshare/api/internal/config"
	"memeshare/api/internal/models"
	"memeshare/api/internal/security"
)

type AuthService struct {
	cfg config.SecurityConfig
	now func() time.Time
	log zerolog.Logger
}

func NewAuthService(cfg config.SecurityConfig, log zerolog.Logger) *AuthService {
	return &AuthService{
		cfg: cfg,
		now: time.Now,
		log: log,
	}
}

type AdminToken struct {
	AccessToken string
	TokenID     string
	ExpiresAt   time.Time
}

// Verify exchanges the shared admin password for a bearer token. The
// configured password may be stored as an argon2id hash.
func (s *AuthService) Verify(password string) (AdminToken, error) {
	if s.cfg.AdminPassword == "" || password == "" {
		return AdminToken{}, ErrUnauthorized
	}

	if !s.passwordMatches(password) {
		s.log.Warn().Msg("admin login rejected")
		return AdminToken{}, ErrUnauthorized
	}

	signed, claims, err := security.GenerateAdminToken(s.cfg.JWTSecret, models.AdminSubject, s.cfg.JWTTTL, s.now())
	if err != nil {
		return AdminToken{}, fmt.Errorf("issue admin token: %w", err)
	}

	s.log.Info().Str("token_id", claims.ID).Msg("admin token issued")
	return AdminToken{
		AccessToken: signed,
		TokenID:     claims.ID,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// AuthorizeAdmin accepts a raw token or an "Authorization: Bearer" value.
func (s *AuthService) AuthorizeAdmin(token string) (models.AdminIdentity, error) {
	token = strings.TrimSpace(token)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return models.AdminIdentity{}, ErrUnauthorized
	}

	claims, err := security.ParseAdminToken(token, s.cfg.JWTSecret)
	if err != nil {
		return models.AdminIdentity{}, ErrUnauthorized
	}
	if claims.Subject != models.AdminSubject {
		return models.AdminIdentity{}, ErrForbidden
	}

	identity := models.AdminIdentity{
		Subject: claims.Subject,
		TokenID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}

func (s *AuthService) passwordMatches(password string) bool {
	if security.IsPasswordHash(s.cfg.AdminPassword) {
		ok, err := security.VerifyPassword(password, s.cfg.AdminPassword)
		if err != nil {
			s.log.Error().Err(err).Msg("admin password hash is malformed")
			return false
		}
		return ok
	}
	return security.SecretsEqual(password, s.cfg.AdminPassword)
}
