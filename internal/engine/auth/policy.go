package auth

import "taskboard/internal/domain"

// The decisions below are stateless. Any identity that carries a user id is
// authenticated; the zero Identity never is.
//
// Task rules do not look at creator or assignee: every member may read, edit
// and delete every task on the board.

func authenticated(id domain.Identity) bool {
	return id.ID != 0
}

func CanViewAllUsers(id domain.Identity) bool {
	return authenticated(id) && id.Role == domain.RoleAdmin
}

func CanListAssignableUsers(id domain.Identity) bool {
	return authenticated(id)
}

func CanCreateTask(id domain.Identity) bool {
	return authenticated(id)
}

func CanReadTask(id domain.Identity, _ domain.Task) bool {
	return authenticated(id)
}

func CanUpdateTask(id domain.Identity, _ domain.Task) bool {
	return authenticated(id)
}

func CanDeleteTask(id domain.Identity, _ domain.Task) bool {
	return authenticated(id)
}

// CanCreateComment expects the caller to have established that the task exists.
func CanCreateComment(id domain.Identity, _ domain.Task) bool {
	return authenticated(id)
}

// CanDeleteComment allows the comment's author and administrators.
func CanDeleteComment(id domain.Identity, c domain.Comment) bool {
	if !authenticated(id) {
		return false
	}
	return id.ID == c.AuthorID || id.Role == domain.RoleAdmin
}
