package engine

import (
	"context"
	"fmt"

	"taskboard/internal/domain"
	"taskboard/internal/engine/auth"
)

// ListUsersForAssignment returns the assignment picker list, ordered by name.
func (e Engine) ListUsersForAssignment(ctx context.Context, id domain.Identity) ([]domain.UserSummary, error) {
	if err := authorize(id, auth.CanListAssignableUsers(id), auth.ActionListAssignableUsers); err != nil {
		return nil, err
	}
	users, err := e.Store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	res := make([]domain.UserSummary, 0, len(users))
	for _, u := range users {
		res = append(res, u.Summary())
	}
	return res, nil
}

// ListAllUsers returns every user with role and creation time. Admin only.
func (e Engine) ListAllUsers(ctx context.Context, id domain.Identity) ([]domain.UserProfile, error) {
	if err := authorize(id, auth.CanViewAllUsers(id), auth.ActionListAllUsers); err != nil {
		return nil, err
	}
	users, err := e.Store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	res := make([]domain.UserProfile, 0, len(users))
	for _, u := range users {
		res = append(res, u.Profile())
	}
	return res, nil
}
