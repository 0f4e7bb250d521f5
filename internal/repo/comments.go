package repo

import (
	"context"
	"database/sql"

	"taskboard/internal/domain"
)

const commentSelect = `SELECT cm.id,cm.content,cm.task_id,cm.author_id,cm.created_at,u.name,u.email
FROM comments cm
JOIN users u ON u.id=cm.author_id`

func scanComment(s scanner) (domain.Comment, error) {
	var c domain.Comment
	var author domain.UserSummary
	err := s.Scan(&c.ID, &c.Content, &c.TaskID, &c.AuthorID, &c.CreatedAt, &author.Name, &author.Email)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	author.ID = c.AuthorID
	c.Author = &author
	return c, nil
}

// ListComments returns the comments of a task, newest first.
func (r Repo) ListComments(ctx context.Context, taskID int64) ([]domain.Comment, error) {
	rows, err := r.DB.QueryContext(ctx, r.q(commentSelect+` WHERE cm.task_id=? ORDER BY cm.created_at DESC, cm.id DESC`), taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) GetComment(ctx context.Context, id int64) (domain.Comment, error) {
	return scanComment(r.DB.QueryRowContext(ctx, r.q(commentSelect+` WHERE cm.id=?`), id))
}

// CreateComment inserts a comment if its task still exists. The existence
// check and the insert share a transaction; a missing task yields ErrNotFound.
func (r Repo) CreateComment(ctx context.Context, c domain.Comment) (domain.Comment, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Comment{}, err
	}
	defer tx.Rollback()
	ok, err := exists(ctx, tx, r.q(`SELECT 1 FROM tasks WHERE id=?`), c.TaskID)
	if err != nil {
		return domain.Comment{}, err
	}
	if !ok {
		return domain.Comment{}, ErrNotFound
	}
	id, err := r.insertReturningID(ctx, tx, `INSERT INTO comments(content,task_id,author_id,created_at) VALUES (?,?,?,?)`,
		c.Content, c.TaskID, c.AuthorID, c.CreatedAt)
	if err != nil {
		return domain.Comment{}, err
	}
	created, err := scanComment(tx.QueryRowContext(ctx, r.q(commentSelect+` WHERE cm.id=?`), id))
	if err != nil {
		return domain.Comment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Comment{}, err
	}
	return created, nil
}

func (r Repo) DeleteComment(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, r.q(`DELETE FROM comments WHERE id=?`), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
