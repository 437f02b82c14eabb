package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ikkim/quickcart-backend/internal/app/model"
	"github.com/ikkim/quickcart-backend/internal/app/repository"
	"github.com/ikkim/quickcart-backend/pkg/logger"
	"github.com/ikkim/quickcart-backend/pkg/util"
	"gorm.io/gorm"
)

var (
	ErrEmailAlreadyExists  = errors.New("email already exists")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrUserNotFound        = errors.New("user not found")
	ErrWeakPassword        = errors.New("password does not meet the policy")
	ErrNameRequired        = errors.New("name is required")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// ProfileUpdate carries the fields a shopper may change; nil leaves a field as is.
type ProfileUpdate struct {
	Name       *string
	Phone      *string
	Address    *string
	City       *string
	PostalCode *string
}

type AuthService interface {
	Register(email, password, name, phone string) (*model.User, *util.TokenPair, error)
	Login(email, password string) (*model.User, *util.TokenPair, error)
	RefreshTokens(refreshToken string) (*model.User, *util.TokenPair, error)
	GetUserByID(id string) (*model.User, error)
	GetUserByEmail(email string) (*model.User, error)
	UpdateProfile(userID string, update ProfileUpdate) (*model.User, error)
}

type authService struct {
	userRepo      repository.UserRepository
	jwtSecret     string
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

func NewAuthService(
	userRepo repository.UserRepository,
	jwtSecret string,
	accessExpiry, refreshExpiry time.Duration,
) AuthService {
	return &authService{
		userRepo:      userRepo,
		jwtSecret:     jwtSecret,
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// session issues a fresh token pair for user.
func (s *authService) session(user *model.User) (*model.User, *util.TokenPair, error) {
	tokens, err := util.GenerateTokenPair(user.ID, user.Email, string(user.Role), s.jwtSecret, s.accessExpiry, s.refreshExpiry)
	if err != nil {
		logger.Error("Failed to generate tokens", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, nil, err
	}
	return user, tokens, nil
}

func (s *authService) lookup(find func() (*model.User, error)) (*model.User, error) {
	user, err := find()
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *authService) Register(email, password, name, phone string) (*model.User, *util.TokenPair, error) {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, ErrNameRequired
	}
	if err := util.CheckPasswordPolicy(password); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}

	_, err := s.lookup(func() (*model.User, error) { return s.userRepo.FindByEmail(email) })
	switch {
	case err == nil:
		logger.Warn("Registration rejected, email taken", map[string]interface{}{
			"email": email,
		})
		return nil, nil, ErrEmailAlreadyExists
	case !errors.Is(err, ErrUserNotFound):
		return nil, nil, err
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, nil, err
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Phone:        strings.TrimSpace(phone),
		Role:         model.RoleUser,
	}
	if err := s.userRepo.Create(user); err != nil {
		logger.Error("Failed to create user", err, map[string]interface{}{
			"email": email,
		})
		return nil, nil, err
	}

	logger.Info("User registered", map[string]interface{}{
		"user_id": user.ID,
	})
	return s.session(user)
}

func (s *authService) Login(email, password string) (*model.User, *util.TokenPair, error) {
	email = normalizeEmail(email)

	user, err := s.lookup(func() (*model.User, error) { return s.userRepo.FindByEmail(email) })
	if errors.Is(err, ErrUserNotFound) {
		logger.Warn("Login failed: unknown email", map[string]interface{}{
			"email": email,
		})
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, err
	}

	if !util.VerifyPassword(user.PasswordHash, password) {
		logger.Warn("Login failed: wrong password", map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, nil, ErrInvalidCredentials
	}
	return s.session(user)
}

// RefreshTokens trades a refresh token for a new pair. The user is reloaded
// so a changed role or a deleted account takes effect.
func (s *authService) RefreshTokens(refreshToken string) (*model.User, *util.TokenPair, error) {
	claims, err := util.ValidateToken(refreshToken, s.jwtSecret)
	if err != nil || claims.TokenType != util.TokenTypeRefresh {
		return nil, nil, ErrInvalidRefreshToken
	}

	user, err := s.GetUserByID(claims.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, nil, err
	}
	return s.session(user)
}

func (s *authService) GetUserByID(id string) (*model.User, error) {
	return s.lookup(func() (*model.User, error) { return s.userRepo.FindByID(id) })
}

// GetUserByEmail backs checkout prefill
func (s *authService) GetUserByEmail(email string) (*model.User, error) {
	email = normalizeEmail(email)
	return s.lookup(func() (*model.User, error) { return s.userRepo.FindByEmail(email) })
}

func (s *authService) UpdateProfile(userID string, update ProfileUpdate) (*model.User, error) {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return nil, err
	}

	apply := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	apply(&user.Name, update.Name)
	apply(&user.Phone, update.Phone)
	apply(&user.Address, update.Address)
	apply(&user.City, update.City)
	apply(&user.PostalCode, update.PostalCode)
	if user.Name == "" {
		return nil, ErrNameRequired
	}

	if err := s.userRepo.UpdateProfile(user); err != nil {
		logger.Error("Failed to update profile", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return user, nil
}
