package repo

import (
	"context"
	"database/sql"
	"strings"

	"taskboard/internal/domain"
)

const userColumns = `id,name,email,password_hash,role,created_at`

func scanUser(s scanner) (domain.User, error) {
	var u domain.User
	var role string
	err := s.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	u.Role = domain.Role(role)
	return u, err
}

// NormalizeEmail is the canonical form under which emails are stored and looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r Repo) InsertUser(ctx context.Context, u domain.User) (domain.User, error) {
	u.Email = NormalizeEmail(u.Email)
	if u.Role == "" {
		u.Role = domain.RoleMember
	}
	id, err := r.insertReturningID(ctx, r.DB, `INSERT INTO users(name,email,password_hash,role,created_at) VALUES (?,?,?,?,?)`,
		u.Name, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt)
	if err != nil {
		return domain.User{}, err
	}
	u.ID = id
	return u, nil
}

func (r Repo) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, r.q(`SELECT `+userColumns+` FROM users WHERE id=?`), id))
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, r.q(`SELECT `+userColumns+` FROM users WHERE email=?`), NormalizeEmail(email)))
}

// ListUsers returns every user ordered by name.
func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}
