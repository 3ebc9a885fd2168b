package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"cleanzone-api/apperrors"
	"cleanzone-api/models"
	"cleanzone-api/repositories"
)

type AuthService struct {
	store  *repositories.Store
	hasher *PasswordHasher
	tokens *TokenService
	log    *logrus.Logger
}

func NewAuthService(store *repositories.Store, hasher *PasswordHasher, tokens *TokenService, log *logrus.Logger) *AuthService {
	return &AuthService{store: store, hasher: hasher, tokens: tokens, log: log}
}

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.SessionResponse, error) {
	name, err := models.NewName(req.Name)
	if err != nil {
		return nil, err
	}
	email, err := models.NewEmail(req.Email)
	if err != nil {
		return nil, err
	}
	password, err := models.NewPassword(req.Password)
	if err != nil {
		return nil, err
	}

	exists, err := s.store.Users.ExistsByEmail(ctx, email.String())
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.Conflict("email is already registered")
	}

	hash, err := s.hasher.Hash(password.String())
	if err != nil {
		return nil, apperrors.Internal(err, "failed to hash password")
	}

	user := &models.User{
		Name:     name.String(),
		Email:    email.String(),
		Password: hash,
		Role:     models.RoleUser,
	}
	if err := s.store.Users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.WithField("user_id", user.ID).Info("user registered")
	return s.session(user)
}

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.SessionResponse, error) {
	email, err := models.NewEmail(req.Email)
	if err != nil {
		return nil, apperrors.Authentication("invalid email or password")
	}

	user, err := s.store.Users.FindByEmail(ctx, email.String())
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			s.hasher.VerifyMissing(req.Password)
			return nil, apperrors.Authentication("invalid email or password")
		}
		return nil, err
	}
	if !s.hasher.Verify(req.Password, user.Password) {
		return nil, apperrors.Authentication("invalid email or password")
	}

	if s.hasher.NeedsRehash(user.Password) {
		if hash, err := s.hasher.Hash(req.Password); err == nil {
			if err := s.store.Users.Update(ctx, user.ID, map[string]interface{}{"password": hash}); err != nil {
				s.log.WithError(err).WithField("user_id", user.ID).Warn("failed to upgrade password hash")
			}
		}
	}

	return s.session(user)
}

// Authenticate resolves a bearer token into its claims.
func (s *AuthService) Authenticate(token string) (*Claims, error) {
	return s.tokens.Parse(token)
}

func (s *AuthService) session(user *models.User) (*models.SessionResponse, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &models.SessionResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.ToResponse(),
	}, nil
}
