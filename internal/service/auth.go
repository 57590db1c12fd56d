package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/sakif/blogspace/internal/apperror"
	"github.com/sakif/blogspace/internal/auth"
	"github.com/sakif/blogspace/internal/model"
	"github.com/sakif/blogspace/internal/repository"
)

const MinPasswordLength = 6

// invalidCredentials is deliberately identical for unknown email and wrong
// password so login cannot be used to probe which emails exist.
const invalidCredentials = "invalid email or password"

// AuthService owns accounts: registration, login, GitHub sign-in and admin
// provisioning.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                               ↘ TokenService / PasswordService
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user and a freshly signed token so the handler
// can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// RegisterInput is a self-service sign-up.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// IdentityOf is the token payload for user.
func IdentityOf(user *model.User) model.Identity {
	return model.Identity{UserID: user.ID, Name: user.Name, IsAdmin: user.IsAdmin}
}

// Register creates a regular (non-admin) account.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	name, email, err := s.validateAccount(in.Name, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fail(ctx, s.logger, "hashing password", err)
	}

	user := &model.User{Name: name, Email: email, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, emailTaken()
		}
		return nil, fail(ctx, s.logger, "creating user", err)
	}

	s.logger.InfoContext(ctx, "user registered", slog.Int64("id", user.ID))
	return user, nil
}

// Login checks credentials and issues a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var missing []string
	if email == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, apperror.MissingFields(missing...)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(invalidCredentials)
		}
		return nil, fail(ctx, s.logger, "looking up user", err)
	}

	// GitHub-only accounts have no password to check against.
	if user.PasswordHash == "" {
		return nil, apperror.Unauthorized(invalidCredentials)
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.InfoContext(ctx, "login failed", slog.Int64("user_id", user.ID))
			return nil, apperror.Unauthorized(invalidCredentials)
		}
		return nil, fail(ctx, s.logger, "verifying password", err, slog.Int64("user_id", user.ID))
	}

	return s.issue(ctx, user)
}

// LoginOrRegisterGitHub resolves a GitHub profile to an account (linking by
// email when one exists) and issues a session token.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	ghID := ghUser.ID
	user := &model.User{
		Name:     ghUser.DisplayName(),
		Email:    ghUser.AccountEmail(),
		GitHubID: &ghID,
	}
	if err := s.users.UpsertGitHubUser(ctx, user); err != nil {
		return nil, fail(ctx, s.logger, "upserting GitHub user", err, slog.Int64("github_id", ghID))
	}

	s.logger.InfoContext(ctx, "user authenticated via GitHub",
		slog.Int64("user_id", user.ID),
		slog.String("login", ghUser.Login),
	)
	return s.issue(ctx, user)
}

// ProvisionAdmin creates an admin account, or promotes an existing regular
// account (resetting its name and password). An account that is already
// an admin is a Conflict. created reports which of the two happened.
func (s *AuthService) ProvisionAdmin(ctx context.Context, email, password, name string) (user *model.User, created bool, err error) {
	name, email, err = s.validateAccount(name, email, password)
	if err != nil {
		return nil, false, err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, false, fail(ctx, s.logger, "hashing password", err)
	}

	existing, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.IsAdmin {
			return nil, false, &apperror.AppError{
				Err:     apperror.ErrConflict,
				Message: fmt.Sprintf("user %s is already an admin", email),
				Field:   "email",
			}
		}
		existing.Name = name
		existing.PasswordHash = hash
		if err := s.users.PromoteUser(ctx, existing); err != nil {
			return nil, false, fail(ctx, s.logger, "promoting user", err, slog.Int64("user_id", existing.ID))
		}
		s.logger.InfoContext(ctx, "user promoted to admin", slog.Int64("id", existing.ID))
		return existing, false, nil

	case !errors.Is(err, apperror.ErrNotFound):
		return nil, false, fail(ctx, s.logger, "looking up user", err)
	}

	user = &model.User{Name: name, Email: email, PasswordHash: hash, IsAdmin: true}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, false, emailTaken()
		}
		return nil, false, fail(ctx, s.logger, "creating admin", err)
	}
	s.logger.InfoContext(ctx, "admin created", slog.Int64("id", user.ID))
	return user, true, nil
}

// GetUserByID returns the account behind a session, for /api/me.
func (s *AuthService) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fail(ctx, s.logger, "getting user", err, slog.Int64("user_id", id))
	}
	return user, nil
}

func (s *AuthService) issue(ctx context.Context, user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(IdentityOf(user))
	if err != nil {
		return nil, fail(ctx, s.logger, "generating token", err, slog.Int64("user_id", user.ID))
	}
	return &AuthResult{User: user, Token: token}, nil
}

// validateAccount trims and checks the fields shared by Register and
// ProvisionAdmin. The returned email is lowercased.
func (s *AuthService) validateAccount(name, email, password string) (string, string, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return "", "", apperror.MissingFields(missing...)
	}

	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return "", "", apperror.ValidationFailed("email", "email address is not valid")
	}
	if len(password) < MinPasswordLength {
		return "", "", apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > 72 {
		return "", "", apperror.ValidationFailed("password", "password must be 72 bytes or fewer")
	}
	return name, email, nil
}

func emailTaken() error {
	return &apperror.AppError{
		Err:     apperror.ErrConflict,
		Message: "an account with this email already exists",
		Field:   "email",
	}
}
