package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"taskboard/internal/config"
	"taskboard/internal/db"
	"taskboard/internal/domain"
	"taskboard/internal/engine"
	"taskboard/internal/engine/auth"
	"taskboard/internal/migrate"
	"taskboard/internal/repo"
)

// App holds the long-lived resources shared by the CLI commands and the server.
type App struct {
	Config *config.Config
	DB     *sql.DB
	Repo   repo.Repo
	Engine engine.Engine
	Log    logrus.FieldLogger
}

// Open connects to the configured database, applies migrations and builds
// the engine. The bootstrap admin is seeded when configured.
func Open(ctx context.Context, workspace string, cfg *config.Config, log logrus.FieldLogger) (*App, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath = db.DefaultPath(workspace)
	}
	conn, dialect, err := db.Open(db.Config{Driver: cfg.Database.Driver, Path: dbPath, DSN: cfg.Database.DSN})
	if err != nil {
		return nil, err
	}
	version, err := migrate.Migrate(conn, dialect)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.WithFields(logrus.Fields{"dialect": dialect, "schema_version": version}).Debug("database ready")

	ttl, err := cfg.TokenTTL()
	if err != nil {
		conn.Close()
		return nil, err
	}
	r := repo.New(conn, dialect)
	e := engine.New(r, auth.Tokens{Secret: cfg.Auth.JWTSecret, TTL: ttl}, log)
	e.AllowRegistration = cfg.Auth.AllowRegistration
	a := &App{Config: cfg, DB: conn, Repo: r, Engine: e, Log: log}
	if cfg.Bootstrap.Admin.Enabled() {
		if _, err := EnsureAdmin(ctx, e, cfg.Bootstrap.Admin); err != nil {
			conn.Close()
			return nil, fmt.Errorf("bootstrap admin: %w", err)
		}
	}
	return a, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

// EnsureAdmin creates the configured administrator unless a user with that
// email already exists. An existing user keeps its role.
func EnsureAdmin(ctx context.Context, e engine.Engine, admin config.BootstrapAdmin) (bool, error) {
	_, err := e.Store.GetUserByEmail(ctx, admin.Email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return false, err
	}
	name := admin.Name
	if name == "" {
		name = "Administrator"
	}
	if _, err := e.CreateUser(ctx, engine.UserCreateOptions{
		Name:     name,
		Email:    admin.Email,
		Password: admin.Password,
		Role:     domain.RoleAdmin,
	}); err != nil {
		return false, err
	}
	return true, nil
}
