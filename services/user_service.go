package services

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/secureboard/models"
	"github.com/cppla/secureboard/repository"
	"github.com/cppla/secureboard/security"
	"github.com/cppla/secureboard/utils"
)

const defaultRole = "ROLE_USER"

// SignupRequest is the signup form.
type SignupRequest struct {
	Email    string
	Password string
	Name     string
	Auth     string
}

// UserService is the authentication provider and the signup flow.
type UserService struct {
	users         repository.UserRepository
	log           *zap.Logger
	checkPassword func(hash, password string) bool
}

// NewUserService creates a UserService.
func NewUserService(users repository.UserRepository, log *zap.Logger) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{users: users, log: log, checkPassword: utils.CheckPassword}
}

// Signup hashes the password, stores the user and returns the new id.
// A taken email yields ErrDuplicateEmail.
func (s *UserService) Signup(ctx context.Context, req SignupRequest) (uint, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return 0, errors.Wrap(ErrInvalidInput, "email and password are required")
	}
	auth := normalizeAuth(req.Auth)

	hash, err := utils.HashPassword(req.Password)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return 0, errors.Wrap(ErrInvalidInput, err.Error())
	}
	if err != nil {
		return 0, errors.Wrap(err, "hash password")
	}

	user := &models.User{
		Email:    email,
		Password: hash,
		Name:     utils.StripTags(strings.TrimSpace(req.Name)),
		Auth:     auth,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if repository.IsDuplicateKey(err) {
			return 0, ErrDuplicateEmail
		}
		return 0, err
	}
	s.log.Info("user signed up", zap.Uint("user_id", user.ID), zap.String("roles", auth))
	return user.ID, nil
}

// LoadPrincipal looks the user up by email and builds its principal.
func (s *UserService) LoadPrincipal(ctx context.Context, email string) (*security.Principal, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return security.NewPrincipal(user.ID, user.Email, user.Name, user.Password, user.Auth), nil
}

// Authenticate checks a login attempt. Unknown emails and wrong passwords both yield ErrBadCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*security.Principal, error) {
	p, err := s.LoadPrincipal(ctx, strings.TrimSpace(email))
	if errors.Is(err, ErrUserNotFound) {
		s.checkPassword(utils.DummyHash(), password)
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if !s.checkPassword(p.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	return p, nil
}

// ListUsers returns every registered account.
func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

// normalizeAuth cleans a role string so it always parses into a non-empty role set.
func normalizeAuth(auth string) string {
	roles := security.ParseRoles(auth)
	if len(roles) == 0 {
		return defaultRole
	}
	tokens := make([]string, 0, len(roles))
	for _, token := range strings.Split(auth, ",") {
		token = strings.TrimSpace(token)
		if _, ok := roles[token]; ok {
			tokens = append(tokens, token)
			delete(roles, token)
		}
	}
	return strings.Join(tokens, ",")
}
