package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskboard/internal/domain"
	"taskboard/internal/engine/auth"
	"taskboard/internal/repo"
)

type memUsers map[int64]domain.User

func (m memUsers) GetUser(_ context.Context, id int64) (domain.User, error) {
	u, ok := m[id]
	if !ok {
		return domain.User{}, repo.ErrNotFound
	}
	return u, nil
}

type memKeys map[string]domain.APIKey

func (m memKeys) GetAPIKeyByHash(_ context.Context, hash string) (domain.APIKey, error) {
	k, ok := m[hash]
	if !ok {
		return domain.APIKey{}, repo.ErrNotFound
	}
	return k, nil
}

type brokenUsers struct{}

func (brokenUsers) GetUser(context.Context, int64) (domain.User, error) {
	return domain.User{}, errors.New("connection reset")
}

func fixedTokens(now time.Time) auth.Tokens {
	return auth.Tokens{Secret: "s3cret", TTL: time.Hour, Now: func() time.Time { return now }}
}

func TestResolveToken(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	users := memUsers{7: {ID: 7, Name: "Ada", Role: domain.RoleAdmin}}
	r := auth.Resolver{Users: users, Tokens: fixedTokens(now)}

	token, err := r.Tokens.Sign(7)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	id, err := r.ResolveToken(context.Background(), token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id.ID != 7 || id.Role != domain.RoleAdmin {
		t.Fatalf("unexpected identity %+v", id)
	}

	users[7] = domain.User{ID: 7, Name: "Ada", Role: domain.RoleMember}
	id, err = r.ResolveToken(context.Background(), token)
	if err != nil || id.Role != domain.RoleMember {
		t.Fatalf("role should come from the store: %+v %v", id, err)
	}
}

func TestResolveTokenRejects(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	users := memUsers{7: {ID: 7, Role: domain.RoleMember}}
	r := auth.Resolver{Users: users, Tokens: fixedTokens(now)}

	valid, err := r.Tokens.Sign(7)
	if err != nil {
		t.Fatal(err)
	}
	ghost, err := r.Tokens.Sign(8)
	if err != nil {
		t.Fatal(err)
	}
	otherKey, err := auth.Tokens{Secret: "different", Now: r.Tokens.Now}.Sign(7)
	if err != nil {
		t.Fatal(err)
	}
	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString([]byte("s3cret"))
	if err != nil {
		t.Fatal(err)
	}
	expired := auth.Resolver{Users: users, Tokens: fixedTokens(now.Add(2 * time.Hour))}

	cases := []struct {
		name  string
		r     auth.Resolver
		token string
	}{
		{"empty", r, ""},
		{"garbage", r, "not-a-jwt"},
		{"wrong secret", r, otherKey},
		{"non numeric subject", r, badSubject},
		{"deleted user", r, ghost},
		{"expired", expired, valid},
	}
	for _, tc := range cases {
		if _, err := tc.r.ResolveToken(context.Background(), tc.token); !errors.Is(err, auth.ErrUnauthenticated) {
			t.Errorf("%s: expected unauthenticated, got %v", tc.name, err)
		}
	}
}

func TestResolveTokenStoreFailure(t *testing.T) {
	r := auth.Resolver{Users: brokenUsers{}, Tokens: fixedTokens(time.Now())}
	token, err := r.Tokens.Sign(1)
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.ResolveToken(context.Background(), token)
	if err == nil || errors.Is(err, auth.ErrUnauthenticated) {
		t.Fatalf("store failure should not look like bad credentials: %v", err)
	}
}

func TestResolveAPIKey(t *testing.T) {
	users := memUsers{3: {ID: 3, Role: domain.RoleMember}}
	keys := memKeys{repo.HashAPIKey("tb_live"): {ID: "k1", UserID: 3}, repo.HashAPIKey("tb_orphan"): {ID: "k2", UserID: 99}}
	r := auth.Resolver{Users: users, Keys: keys, Tokens: fixedTokens(time.Now())}

	id, err := r.ResolveAPIKey(context.Background(), "tb_live")
	if err != nil || id.ID != 3 {
		t.Fatalf("resolve key: %+v %v", id, err)
	}
	for _, key := range []string{"", "tb_unknown", "tb_orphan"} {
		if _, err := r.ResolveAPIKey(context.Background(), key); !errors.Is(err, auth.ErrUnauthenticated) {
			t.Errorf("key %q: expected unauthenticated, got %v", key, err)
		}
	}
}
