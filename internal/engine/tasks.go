package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"taskboard/internal/domain"
	"taskboard/internal/engine/auth"
	"taskboard/internal/repo"
)

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	Title        string
	Description  *string
	DueDate      *string
	AssignedToID *int64
}

// TaskUpdateOptions are parameters for updating a task. Title, Description
// and Status are left alone when nil. DueDate and AssignedToID always replace
// the stored values, so nil clears them.
type TaskUpdateOptions struct {
	Title        *string
	Description  *string
	Status       *string
	DueDate      *string
	AssignedToID *int64
}

func (e Engine) ListTasks(ctx context.Context, id domain.Identity) ([]domain.Task, error) {
	if err := authorize(id, auth.CanReadTask(id, domain.Task{}), auth.ActionReadTask); err != nil {
		return nil, err
	}
	tasks, err := e.Store.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, nil
}

func (e Engine) getTask(ctx context.Context, taskID int64) (domain.Task, error) {
	t, err := e.Store.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, fmt.Errorf("task %d: %w", taskID, err)
	}
	return t, nil
}

// GetTask returns a task with its comments, newest first, and attachments.
func (e Engine) GetTask(ctx context.Context, id domain.Identity, taskID int64) (domain.TaskDetail, error) {
	if err := authenticated(id); err != nil {
		return domain.TaskDetail{}, err
	}
	t, err := e.getTask(ctx, taskID)
	if err != nil {
		return domain.TaskDetail{}, err
	}
	if err := authorize(id, auth.CanReadTask(id, t), auth.ActionReadTask); err != nil {
		return domain.TaskDetail{}, err
	}
	comments, err := e.Store.ListComments(ctx, taskID)
	if err != nil {
		return domain.TaskDetail{}, fmt.Errorf("list comments: %w", err)
	}
	attachments, err := e.Store.ListAttachments(ctx, taskID)
	if err != nil {
		return domain.TaskDetail{}, fmt.Errorf("list attachments: %w", err)
	}
	if comments == nil {
		comments = []domain.Comment{}
	}
	if attachments == nil {
		attachments = []domain.Attachment{}
	}
	return domain.TaskDetail{Task: t, Comments: comments, Attachments: attachments}, nil
}

func (e Engine) CreateTask(ctx context.Context, id domain.Identity, opts TaskCreateOptions) (domain.Task, error) {
	if err := authorize(id, auth.CanCreateTask(id), auth.ActionCreateTask); err != nil {
		return domain.Task{}, err
	}
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return domain.Task{}, invalid("title", "title is required")
	}
	due, err := parseDueDate(opts.DueDate)
	if err != nil {
		return domain.Task{}, err
	}
	if err := e.checkAssignee(ctx, opts.AssignedToID); err != nil {
		return domain.Task{}, err
	}
	now := e.timestamp()
	t := domain.Task{
		Title:        title,
		Description:  opts.Description,
		Status:       domain.StatusPending,
		DueDate:      due,
		CreatedByID:  id.ID,
		AssignedToID: opts.AssignedToID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	taskID, err := e.Store.InsertTask(ctx, t)
	if err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	e.Log.WithFields(logrus.Fields{"task_id": taskID, "user_id": id.ID}).Info("task created")
	return e.getTask(ctx, taskID)
}

func (e Engine) UpdateTask(ctx context.Context, id domain.Identity, taskID int64, opts TaskUpdateOptions) (domain.Task, error) {
	if err := authenticated(id); err != nil {
		return domain.Task{}, err
	}
	t, err := e.getTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if err := authorize(id, auth.CanUpdateTask(id, t), auth.ActionUpdateTask); err != nil {
		return domain.Task{}, err
	}
	if opts.Title != nil {
		title := strings.TrimSpace(*opts.Title)
		if title == "" {
			return domain.Task{}, invalid("title", "title cannot be empty")
		}
		t.Title = title
	}
	if opts.Description != nil {
		t.Description = opts.Description
	}
	if opts.Status != nil {
		status := domain.TaskStatus(strings.ToUpper(strings.TrimSpace(*opts.Status)))
		if !status.Valid() {
			return domain.Task{}, invalid("status", "status must be one of PENDING, IN_PROGRESS, COMPLETED")
		}
		t.Status = status
	}
	due, err := parseDueDate(opts.DueDate)
	if err != nil {
		return domain.Task{}, err
	}
	if err := e.checkAssignee(ctx, opts.AssignedToID); err != nil {
		return domain.Task{}, err
	}
	t.DueDate = due
	t.AssignedToID = opts.AssignedToID
	t.UpdatedAt = e.timestamp()
	if err := e.Store.UpdateTask(ctx, t); err != nil {
		return domain.Task{}, fmt.Errorf("task %d: %w", taskID, err)
	}
	return e.getTask(ctx, taskID)
}

// DeleteTask removes a task along with its comments and attachments.
func (e Engine) DeleteTask(ctx context.Context, id domain.Identity, taskID int64) error {
	if err := authorize(id, auth.CanDeleteTask(id, domain.Task{ID: taskID}), auth.ActionDeleteTask); err != nil {
		return err
	}
	if err := e.Store.DeleteTask(ctx, taskID); err != nil {
		return fmt.Errorf("task %d: %w", taskID, err)
	}
	e.Log.WithFields(logrus.Fields{"task_id": taskID, "user_id": id.ID}).Info("task deleted")
	return nil
}

func (e Engine) checkAssignee(ctx context.Context, userID *int64) error {
	if userID == nil {
		return nil
	}
	if _, err := e.Store.GetUser(ctx, *userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return invalid("assignedToId", "user %d does not exist", *userID)
		}
		return fmt.Errorf("lookup assignee: %w", err)
	}
	return nil
}
