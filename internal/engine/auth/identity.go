package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskboard/internal/domain"
	"taskboard/internal/repo"
)

const DefaultTokenTTL = 24 * time.Hour

type UserLookup interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
}

type APIKeyLookup interface {
	GetAPIKeyByHash(ctx context.Context, hash string) (domain.APIKey, error)
}

// Tokens signs and verifies HS256 bearer tokens whose subject is a user id.
type Tokens struct {
	Secret string
	TTL    time.Duration
	Now    func() time.Time
}

func (t Tokens) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// Sign mints a token for the user.
func (t Tokens) Sign(userID int64) (string, error) {
	if strings.TrimSpace(t.Secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	ttl := t.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(t.Secret))
}

// Parse verifies a token and returns the user id it names.
func (t Tokens) Parse(token string) (int64, error) {
	if strings.TrimSpace(t.Secret) == "" {
		return 0, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	claims := &jwt.RegisteredClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(t.Secret), nil
	})
	if err != nil {
		return 0, err
	}
	if !parsed.Valid {
		return 0, errors.New("invalid token")
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("subject claim must be a user id")
	}
	return id, nil
}

// Resolver turns a request credential into the caller's Identity. The role
// always comes from the store, so a token never outlives a role change or the
// deletion of its user.
type Resolver struct {
	Users  UserLookup
	Keys   APIKeyLookup
	Tokens Tokens
}

// ResolveToken resolves a bearer token.
func (r Resolver) ResolveToken(ctx context.Context, token string) (domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Identity{}, fmt.Errorf("%w: token required", ErrUnauthenticated)
	}
	userID, err := r.Tokens.Parse(token)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}
	return r.identityFor(ctx, userID)
}

// ResolveAPIKey resolves a plaintext API key.
func (r Resolver) ResolveAPIKey(ctx context.Context, key string) (domain.Identity, error) {
	if strings.TrimSpace(key) == "" || r.Keys == nil {
		return domain.Identity{}, fmt.Errorf("%w: api key required", ErrUnauthenticated)
	}
	k, err := r.Keys.GetAPIKeyByHash(ctx, repo.HashAPIKey(key))
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Identity{}, fmt.Errorf("%w: invalid api key", ErrUnauthenticated)
	}
	if err != nil {
		return domain.Identity{}, err
	}
	return r.identityFor(ctx, k.UserID)
}

func (r Resolver) identityFor(ctx context.Context, userID int64) (domain.Identity, error) {
	u, err := r.Users.GetUser(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Identity{}, fmt.Errorf("%w: unknown user", ErrUnauthenticated)
	}
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{ID: u.ID, Role: u.Role}, nil
}
