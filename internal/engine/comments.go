package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"taskboard/internal/domain"
	"taskboard/internal/engine/auth"
)

// ListComments returns the comments of a task, newest first. An unknown task
// has no comments.
func (e Engine) ListComments(ctx context.Context, id domain.Identity, taskID int64) ([]domain.Comment, error) {
	if err := authorize(id, auth.CanReadTask(id, domain.Task{ID: taskID}), auth.ActionReadTask); err != nil {
		return nil, err
	}
	comments, err := e.Store.ListComments(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	if comments == nil {
		comments = []domain.Comment{}
	}
	return comments, nil
}

// CreateComment adds a comment authored by the caller. The store repeats the
// task existence check inside the insert transaction, so a task deleted in
// between still yields a not-found error instead of an orphan.
func (e Engine) CreateComment(ctx context.Context, id domain.Identity, taskID int64, content string) (domain.Comment, error) {
	if err := authenticated(id); err != nil {
		return domain.Comment{}, err
	}
	t, err := e.getTask(ctx, taskID)
	if err != nil {
		return domain.Comment{}, err
	}
	if err := authorize(id, auth.CanCreateComment(id, t), auth.ActionCreateComment); err != nil {
		return domain.Comment{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.Comment{}, invalid("content", "content is required")
	}
	c, err := e.Store.CreateComment(ctx, domain.Comment{
		Content:   content,
		TaskID:    taskID,
		AuthorID:  id.ID,
		CreatedAt: e.timestamp(),
	})
	if err != nil {
		return domain.Comment{}, fmt.Errorf("task %d: %w", taskID, err)
	}
	e.Log.WithFields(logrus.Fields{"task_id": taskID, "comment_id": c.ID, "user_id": id.ID}).Info("comment created")
	return c, nil
}

// DeleteComment removes a comment. Only its author or an administrator may.
func (e Engine) DeleteComment(ctx context.Context, id domain.Identity, commentID int64) error {
	if err := authenticated(id); err != nil {
		return err
	}
	c, err := e.Store.GetComment(ctx, commentID)
	if err != nil {
		return fmt.Errorf("comment %d: %w", commentID, err)
	}
	if err := authorize(id, auth.CanDeleteComment(id, c), auth.ActionDeleteComment); err != nil {
		return err
	}
	if err := e.Store.DeleteComment(ctx, commentID); err != nil {
		return fmt.Errorf("comment %d: %w", commentID, err)
	}
	e.Log.WithFields(logrus.Fields{"comment_id": commentID, "user_id": id.ID}).Info("comment deleted")
	return nil
}
