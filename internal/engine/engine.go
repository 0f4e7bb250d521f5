package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"taskboard/internal/domain"
	"taskboard/internal/engine/auth"
	"taskboard/internal/logging"
)

// Store is the entity store the services run against. repo.Repo satisfies it.
type Store interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	InsertUser(ctx context.Context, u domain.User) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)

	ListTasks(ctx context.Context) ([]domain.Task, error)
	GetTask(ctx context.Context, id int64) (domain.Task, error)
	InsertTask(ctx context.Context, t domain.Task) (int64, error)
	UpdateTask(ctx context.Context, t domain.Task) error
	DeleteTask(ctx context.Context, id int64) error
	ListAttachments(ctx context.Context, taskID int64) ([]domain.Attachment, error)

	ListComments(ctx context.Context, taskID int64) ([]domain.Comment, error)
	GetComment(ctx context.Context, id int64) (domain.Comment, error)
	CreateComment(ctx context.Context, c domain.Comment) (domain.Comment, error)
	DeleteComment(ctx context.Context, id int64) error

	InsertAPIKey(ctx context.Context, key domain.APIKey) error
	GetAPIKeyByHash(ctx context.Context, hash string) (domain.APIKey, error)
	ListAPIKeys(ctx context.Context, userID int64) ([]domain.APIKey, error)
	DeleteAPIKey(ctx context.Context, id string) error
}

type Engine struct {
	Store  Store
	Tokens auth.Tokens
	Log    logrus.FieldLogger
	// AllowRegistration gates Register.
	AllowRegistration bool
	Now               func() time.Time
}

func New(store Store, tokens auth.Tokens, log logrus.FieldLogger) Engine {
	if log == nil {
		log = logging.Discard()
	}
	return Engine{
		Store:             store,
		Tokens:            tokens,
		Log:               log,
		AllowRegistration: true,
		Now:               time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// Resolver returns the identity resolver backed by the engine's store.
func (e Engine) Resolver() auth.Resolver {
	return auth.Resolver{Users: e.Store, Keys: e.Store, Tokens: e.Tokens}
}

// ValidationError reports malformed input on a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func authenticated(id domain.Identity) error {
	if id.ID == 0 {
		return fmt.Errorf("%w: identity required", auth.ErrUnauthenticated)
	}
	return nil
}

// authorize turns a policy decision into an error. The zero identity is
// reported as unauthenticated rather than forbidden.
func authorize(id domain.Identity, allowed bool, action string) error {
	if err := authenticated(id); err != nil {
		return err
	}
	if !allowed {
		return auth.ForbiddenError{Action: action}
	}
	return nil
}

// parseDueDate accepts a calendar date or an RFC 3339 timestamp and returns
// the RFC 3339 UTC form. Blank input clears the due date.
func parseDueDate(v *string) (*string, error) {
	if v == nil {
		return nil, nil
	}
	raw := strings.TrimSpace(*v)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", time.DateOnly} {
		if ts, err := time.Parse(layout, raw); err == nil {
			out := ts.UTC().Format(time.RFC3339)
			return &out, nil
		}
	}
	return nil, invalid("dueDate", "%q is not a date (want YYYY-MM-DD or RFC 3339)", raw)
}
