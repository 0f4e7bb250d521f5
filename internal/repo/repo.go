package repo

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"taskboard/internal/db"
)

// Repo is the SQL-backed entity store. Queries are written with `?`
// placeholders and rebound for the connection's dialect.
type Repo struct {
	DB      *sql.DB
	Dialect db.Dialect
}

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

func New(conn *sql.DB, dialect db.Dialect) Repo {
	return Repo{DB: conn, Dialect: dialect}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func (r Repo) q(query string) string {
	if r.Dialect != db.Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// insertReturningID runs an INSERT ... RETURNING id statement.
func (r Repo) insertReturningID(ctx context.Context, qr querier, query string, args ...any) (int64, error) {
	var id int64
	if err := qr.QueryRowContext(ctx, r.q(query+` RETURNING id`), args...).Scan(&id); err != nil {
		return 0, classify(err)
	}
	return id, nil
}

// classify maps driver-specific constraint failures onto repo sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key") {
		return errors.Join(ErrDuplicate, err)
	}
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
