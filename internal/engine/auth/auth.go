package auth

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated covers missing, malformed, expired or stale credentials.
var ErrUnauthenticated = errors.New("unauthenticated")

// ForbiddenError indicates the caller is known but the policy denies the action.
type ForbiddenError struct {
	Action string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("not allowed to %s", e.Action)
}

// Actions named in ForbiddenError.
const (
	ActionListAllUsers        = "list all users"
	ActionListAssignableUsers = "list assignable users"
	ActionCreateTask          = "create tasks"
	ActionReadTask            = "read this task"
	ActionUpdateTask          = "update this task"
	ActionDeleteTask          = "delete this task"
	ActionCreateComment       = "comment on this task"
	ActionDeleteComment       = "delete this comment"
)
