package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/quickcart/apiserver/internal/store"
	"github.com/quickcart/apiserver/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// TokenIssuer signs identity tokens.
type TokenIssuer interface {
	Issue(userID, role string) (string, error)
}

// UserOptions tunes UserService behavior.
type UserOptions struct {
	// AllowRoleSignup lets registrants choose the admin role.
	AllowRoleSignup bool

	// HashCost is the bcrypt cost; zero means bcrypt.DefaultCost.
	HashCost int
}

// UserService encapsulates registration and login.
type UserService struct {
	repo   UserRepository
	tokens TokenIssuer
	opts   UserOptions
	log    logrus.FieldLogger
}

func NewUserService(repo UserRepository, tokens TokenIssuer, opts UserOptions, log logrus.FieldLogger) *UserService {
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	return &UserService{repo: repo, tokens: tokens, opts: opts, log: log}
}

// RegisterInput is the payload accepted at registration.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// LoginResult carries the issued token and the user summary.
type LoginResult struct {
	Token string
	User  types.User
}

// Register creates a new account. Emails are unique ignoring case.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	role := strings.ToLower(strings.TrimSpace(in.Role))

	if name == "" {
		return types.User{}, invalid("name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return types.User{}, invalid("invalid email address")
	}
	if len(in.Password) < minPasswordLength {
		return types.User{}, invalid(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if role == "" {
		role = types.RoleCustomer
	}
	if !types.ValidRole(role) {
		return types.User{}, invalid("role must be customer or admin")
	}
	if role == types.RoleAdmin && !s.opts.AllowRoleSignup {
		return types.User{}, invalid("admin registration is disabled")
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return types.User{}, ErrConflict
	} else if !errors.Is(err, store.ErrNotFound) {
		s.log.WithError(err).Error("lookup user by email failed")
		return types.User{}, fmt.Errorf("check user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.opts.HashCost)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, ErrConflict
		}
		s.log.WithError(err).Error("create user failed")
		return types.User{}, fmt.Errorf("create user: %w", err)
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("user registered")
	return user, nil
}

// Login verifies credentials and issues a token.
func (s *UserService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return LoginResult{}, invalid("missing credentials")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, ErrUnauthorized
		}
		s.log.WithError(err).Error("lookup user by email failed")
		return LoginResult{}, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, ErrUnauthorized
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	return LoginResult{Token: token, User: user}, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}
