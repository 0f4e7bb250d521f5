package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"taskboard/internal/domain"
	"taskboard/internal/engine/auth"
	"taskboard/internal/repo"
)

const MinPasswordLength = 6

// Session is returned by Register and Login.
type Session struct {
	Token string             `json:"token"`
	User  domain.UserProfile `json:"user"`
}

type UserCreateOptions struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

func validateUser(opts *UserCreateOptions) error {
	opts.Name = strings.TrimSpace(opts.Name)
	opts.Email = repo.NormalizeEmail(opts.Email)
	if opts.Name == "" {
		return invalid("name", "name is required")
	}
	if opts.Email == "" {
		return invalid("email", "email is required")
	}
	if addr, err := mail.ParseAddress(opts.Email); err != nil || addr.Address != opts.Email {
		return invalid("email", "%q is not a valid email address", opts.Email)
	}
	if len(opts.Password) < MinPasswordLength {
		return invalid("password", "password must be at least %d characters", MinPasswordLength)
	}
	if opts.Role == "" {
		opts.Role = domain.RoleMember
	}
	if _, ok := domain.ParseRole(string(opts.Role)); !ok {
		return invalid("role", "role must be MEMBER or ADMIN")
	}
	return nil
}

// CreateUser stores a new user with a bcrypt password hash. It is the only way
// to create administrators.
func (e Engine) CreateUser(ctx context.Context, opts UserCreateOptions) (domain.User, error) {
	if err := validateUser(&opts); err != nil {
		return domain.User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	role, _ := domain.ParseRole(string(opts.Role))
	u, err := e.Store.InsertUser(ctx, domain.User{
		Name:         opts.Name,
		Email:        opts.Email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    e.timestamp(),
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return domain.User{}, invalid("email", "email %s is already registered", opts.Email)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	e.Log.WithFields(logrus.Fields{"user_id": u.ID, "role": u.Role}).Info("user created")
	return u, nil
}

// Register creates a member account and signs the caller in.
func (e Engine) Register(ctx context.Context, name, email, password string) (Session, error) {
	if !e.AllowRegistration {
		return Session{}, auth.ForbiddenError{Action: "register"}
	}
	u, err := e.CreateUser(ctx, UserCreateOptions{Name: name, Email: email, Password: password, Role: domain.RoleMember})
	if err != nil {
		return Session{}, err
	}
	return e.session(u)
}

// Login checks a password. Unknown emails and wrong passwords fail the same way.
func (e Engine) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := e.Store.GetUserByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		return Session{}, fmt.Errorf("%w: invalid email or password", auth.ErrUnauthenticated)
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Session{}, fmt.Errorf("%w: invalid email or password", auth.ErrUnauthenticated)
	}
	return e.session(u)
}

func (e Engine) session(u domain.User) (Session, error) {
	token, err := e.Tokens.Sign(u.ID)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{Token: token, User: u.Profile()}, nil
}

// IssueToken mints a token for an existing user.
func (e Engine) IssueToken(ctx context.Context, email string) (string, error) {
	u, err := e.Store.GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("user %s: %w", repo.NormalizeEmail(email), err)
	}
	return e.Tokens.Sign(u.ID)
}

func (e Engine) Profile(ctx context.Context, id domain.Identity) (domain.UserProfile, error) {
	if err := authenticated(id); err != nil {
		return domain.UserProfile{}, err
	}
	u, err := e.Store.GetUser(ctx, id.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.UserProfile{}, fmt.Errorf("%w: unknown user", auth.ErrUnauthenticated)
	}
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("lookup user: %w", err)
	}
	return u.Profile(), nil
}

func (e Engine) ListUsers(ctx context.Context) ([]domain.User, error) {
	return e.Store.ListUsers(ctx)
}

// CreateAPIKey stores a new key for the user and returns the plaintext secret.
// Only its hash is kept.
func (e Engine) CreateAPIKey(ctx context.Context, email, name string) (domain.APIKey, string, error) {
	u, err := e.Store.GetUserByEmail(ctx, email)
	if err != nil {
		return domain.APIKey{}, "", fmt.Errorf("user %s: %w", repo.NormalizeEmail(email), err)
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return domain.APIKey{}, "", err
	}
	secret := "tb_" + hex.EncodeToString(buf)
	key := domain.APIKey{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(secret),
		CreatedAt: e.timestamp(),
	}
	if err := e.Store.InsertAPIKey(ctx, key); err != nil {
		return domain.APIKey{}, "", fmt.Errorf("insert api key: %w", err)
	}
	return key, secret, nil
}

// ListAPIKeys lists keys, filtered to one user when email is set.
func (e Engine) ListAPIKeys(ctx context.Context, email string) ([]domain.APIKey, error) {
	var userID int64
	if strings.TrimSpace(email) != "" {
		u, err := e.Store.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("user %s: %w", repo.NormalizeEmail(email), err)
		}
		userID = u.ID
	}
	return e.Store.ListAPIKeys(ctx, userID)
}

func (e Engine) DeleteAPIKey(ctx context.Context, id string) error {
	if err := e.Store.DeleteAPIKey(ctx, id); err != nil {
		return fmt.Errorf("api key %s: %w", id, err)
	}
	return nil
}
