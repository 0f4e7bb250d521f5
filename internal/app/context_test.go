package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"taskboard/internal/config"
	"taskboard/internal/db"
	"taskboard/internal/domain"
	"taskboard/internal/logging"
)

func TestOpenSeedsBootstrapAdminOnce(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(dir, "board.db")
	cfg.Bootstrap.Admin = config.BootstrapAdmin{Email: "Root@Example.com", Password: "root-pass"}
	ctx := context.Background()

	a, err := Open(ctx, dir, cfg, logging.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	admin, err := a.Repo.GetUserByEmail(ctx, "root@example.com")
	if err != nil {
		t.Fatalf("admin not seeded: %v", err)
	}
	if admin.Role != domain.RoleAdmin || admin.Name != "Administrator" {
		t.Fatalf("unexpected admin %+v", admin)
	}
	a.Close()

	a, err = Open(ctx, dir, cfg, logging.Discard())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer a.Close()
	users, err := a.Repo.ListUsers(ctx)
	if err != nil || len(users) != 1 {
		t.Fatalf("admin should be seeded once: %v %v", users, err)
	}
	created, err := EnsureAdmin(ctx, a.Engine, cfg.Bootstrap.Admin)
	if err != nil || created {
		t.Fatalf("existing admin should be left alone: %v %v", created, err)
	}
}

func TestOpenAppliesRegistrationSetting(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Auth.AllowRegistration = false
	a, err := Open(context.Background(), dir, cfg, logging.Discard())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close()
	if a.Engine.AllowRegistration {
		t.Fatalf("registration should be closed")
	}
	if _, err := os.Stat(db.DefaultPath(dir)); err != nil {
		t.Fatalf("database should live in the workspace: %v", err)
	}
}
