package repo

import (
	"context"
	"database/sql"

	"taskboard/internal/domain"
)

const taskSelect = `SELECT t.id,t.title,t.description,t.status,t.due_date,t.created_by_id,t.assigned_to_id,t.created_at,t.updated_at,
c.name,c.email,a.name,a.email
FROM tasks t
JOIN users c ON c.id=t.created_by_id
LEFT JOIN users a ON a.id=t.assigned_to_id`

func scanTask(s scanner) (domain.Task, error) {
	var t domain.Task
	var status string
	var description, dueDate, assigneeName, assigneeEmail sql.NullString
	var assigneeID sql.NullInt64
	var creator domain.UserSummary
	err := s.Scan(&t.ID, &t.Title, &description, &status, &dueDate, &t.CreatedByID, &assigneeID, &t.CreatedAt, &t.UpdatedAt,
		&creator.Name, &creator.Email, &assigneeName, &assigneeEmail)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.Status = domain.TaskStatus(status)
	if description.Valid {
		t.Description = &description.String
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.String
	}
	creator.ID = t.CreatedByID
	t.CreatedBy = &creator
	if assigneeID.Valid {
		id := assigneeID.Int64
		t.AssignedToID = &id
		t.AssignedTo = &domain.UserSummary{ID: id, Name: assigneeName.String, Email: assigneeEmail.String}
	}
	return t, nil
}

// ListTasks returns all tasks with creator and assignee projections, newest first.
func (r Repo) ListTasks(ctx context.Context) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, taskSelect+` ORDER BY t.created_at DESC, t.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// GetTask returns a task with creator and assignee projections.
func (r Repo) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	return scanTask(r.DB.QueryRowContext(ctx, r.q(taskSelect+` WHERE t.id=?`), id))
}

func (r Repo) InsertTask(ctx context.Context, t domain.Task) (int64, error) {
	return r.insertReturningID(ctx, r.DB, `INSERT INTO tasks(title,description,status,due_date,created_by_id,assigned_to_id,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		t.Title, nullableStringPtr(t.Description), string(t.Status), nullableStringPtr(t.DueDate), t.CreatedByID, nullableInt64Ptr(t.AssignedToID),
		t.CreatedAt, t.UpdatedAt)
}

// UpdateTask overwrites every mutable column of the task.
func (r Repo) UpdateTask(ctx context.Context, t domain.Task) error {
	res, err := r.DB.ExecContext(ctx, r.q(`UPDATE tasks SET title=?, description=?, status=?, due_date=?, assigned_to_id=?, updated_at=? WHERE id=?`),
		t.Title, nullableStringPtr(t.Description), string(t.Status), nullableStringPtr(t.DueDate), nullableInt64Ptr(t.AssignedToID), t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTask removes a task together with its comments and attachments in
// one transaction, so the result does not depend on foreign-key cascades.
func (r Repo) DeleteTask(ctx context.Context, id int64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM comments WHERE task_id=?`), id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM attachments WHERE task_id=?`), id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, r.q(`DELETE FROM tasks WHERE id=?`), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (r Repo) ListAttachments(ctx context.Context, taskID int64) ([]domain.Attachment, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(`SELECT id,task_id,filename,url,created_at FROM attachments WHERE task_id=? ORDER BY created_at ASC, id ASC`), taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Attachment
	for rows.Next() {
		var a domain.Attachment
		if err := rows.Scan(&a.ID, &a.TaskID, &a.Filename, &a.URL, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func exists(ctx context.Context, qr querier, query string, args ...any) (bool, error) {
	var n int
	err := qr.QueryRowContext(ctx, query, args...).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}
