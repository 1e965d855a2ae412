package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"microblog/internal/auth"
	"microblog/internal/domain"
	"microblog/internal/repository"
	"microblog/internal/tokenstore"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUsernameTaken is returned when the requested username belongs to another user.
	ErrUsernameTaken = errors.New("username is already taken")
	// ErrEmailTaken is returned when the requested email belongs to another user.
	ErrEmailTaken = errors.New("email is already in use")
	// ErrInvalidToken is returned for reset tokens that are forged, expired, spent or name no user.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrUserNotFound is returned by lookups that match no user.
	ErrUserNotFound = errors.New("user not found")
)

// UserService is the credential store: registration, login and password resets.
type UserService interface {
	Register(ctx context.Context, username, email, password string) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id int64, username, aboutMe string) (*domain.User, error)
	// Touch records that the user was just active.
	Touch(ctx context.Context, id int64) error
	IssueResetToken(ctx context.Context, user *domain.User) (string, error)
	VerifyResetToken(ctx context.Context, token string) (*domain.User, error)
	// ResetPassword spends token and sets a new password for its user.
	ResetPassword(ctx context.Context, token, password string) (*domain.User, error)
}

type UserServiceConfig struct {
	ResetTTL   time.Duration
	BcryptCost int
}

type userService struct {
	users    repository.UserRepository
	tokens   *auth.Tokens
	consumed tokenstore.Store
	cfg      UserServiceConfig
	now      func() time.Time
}

func NewUserService(users repository.UserRepository, tokens *auth.Tokens, consumed tokenstore.Store, cfg UserServiceConfig) UserService {
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = 10 * time.Minute
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &userService{
		users:    users,
		tokens:   tokens,
		consumed: consumed,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *userService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = NormalizeEmail(email)

	if username == "" {
		return nil, errors.New("username is required")
	}
	if email == "" {
		return nil, errors.New("email is required")
	}
	if password == "" {
		return nil, errors.New("password is required")
	}
	if utf8.RuneCountInString(username) > domain.MaxUsernameLen {
		return nil, fmt.Errorf("username must be at most %d characters", domain.MaxUsernameLen)
	}
	if utf8.RuneCountInString(email) > domain.MaxEmailLen {
		return nil, fmt.Errorf("email must be at most %d characters", domain.MaxEmailLen)
	}

	if err := s.ensureAvailable(ctx, username, email); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		LastSeen:     now,
	}

	if _, err := s.users.Create(ctx, user); err != nil {
		return nil, translateUserError(err)
	}

	return sanitizeUser(user), nil
}

func (s *userService) ensureAvailable(ctx context.Context, username, email string) error {
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return sanitizeUser(user), nil
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.lookup(s.users.GetByID(ctx, id))
}

func (s *userService) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.lookup(s.users.GetByUsername(ctx, strings.TrimSpace(username)))
}

func (s *userService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.lookup(s.users.GetByEmail(ctx, NormalizeEmail(email)))
}

func (s *userService) lookup(user *domain.User, err error) (*domain.User, error) {
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) UpdateProfile(ctx context.Context, id int64, username, aboutMe string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	aboutMe = strings.TrimSpace(aboutMe)

	if username == "" {
		return nil, errors.New("username is required")
	}
	if utf8.RuneCountInString(username) > domain.MaxUsernameLen {
		return nil, fmt.Errorf("username must be at most %d characters", domain.MaxUsernameLen)
	}
	if utf8.RuneCountInString(aboutMe) > domain.MaxAboutMeLen {
		return nil, fmt.Errorf("about me must be at most %d characters", domain.MaxAboutMeLen)
	}

	if err := s.users.UpdateProfile(ctx, id, username, aboutMe); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, translateUserError(err)
	}
	return s.GetByID(ctx, id)
}

func (s *userService) Touch(ctx context.Context, id int64) error {
	if err := s.users.TouchLastSeen(ctx, id, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

func (s *userService) IssueResetToken(_ context.Context, user *domain.User) (string, error) {
	if user == nil || user.ID <= 0 {
		return "", ErrUserNotFound
	}
	return s.tokens.IssueReset(user.ID, s.cfg.ResetTTL)
}

func (s *userService) VerifyResetToken(ctx context.Context, token string) (*domain.User, error) {
	_, user, err := s.verifyReset(ctx, token)
	return user, err
}

func (s *userService) verifyReset(ctx context.Context, token string) (*auth.ResetClaims, *domain.User, error) {
	claims, err := s.tokens.ParseReset(token)
	if err != nil {
		return nil, nil, ErrInvalidToken
	}

	used, err := s.consumed.Used(ctx, claims.ID)
	if err != nil {
		return nil, nil, err
	}
	if used {
		return nil, nil, ErrInvalidToken
	}

	user, err := s.GetByID(ctx, claims.ResetPassword)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}
	return claims, user, nil
}

func (s *userService) ResetPassword(ctx context.Context, token, password string) (*domain.User, error) {
	if password == "" {
		return nil, errors.New("password is required")
	}

	claims, user, err := s.verifyReset(ctx, token)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	ttl := s.cfg.ResetTTL
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(s.now())
	}
	first, err := s.consumed.Consume(ctx, claims.ID, ttl)
	if err != nil {
		return nil, err
	}
	if !first {
		return nil, ErrInvalidToken
	}

	if err := s.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		// the password did not change, so the token stays usable
		if rerr := s.consumed.Release(ctx, claims.ID); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return nil, fmt.Errorf("reset password: %w", err)
	}
	return user, nil
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func translateUserError(err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicateUsername):
		return ErrUsernameTaken
	case errors.Is(err, repository.ErrDuplicateEmail):
		return ErrEmailTaken
	}
	return err
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	out := *user
	out.PasswordHash = ""
	return &out
}
