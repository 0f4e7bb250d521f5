package taskboardsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a minimal Taskboard HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client for baseURL, which includes the API base path
// (for example http://localhost:3001/api).
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

type User struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type Comment struct {
	ID        int64  `json:"id"`
	Content   string `json:"content"`
	TaskID    int64  `json:"taskId"`
	AuthorID  int64  `json:"authorId"`
	Author    *User  `json:"author"`
	CreatedAt string `json:"createdAt"`
}

type Attachment struct {
	ID       int64  `json:"id"`
	TaskID   int64  `json:"taskId"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

type Task struct {
	ID           int64        `json:"id"`
	Title        string       `json:"title"`
	Description  *string      `json:"description"`
	Status       string       `json:"status"`
	DueDate      *string      `json:"dueDate"`
	CreatedByID  int64        `json:"createdById"`
	AssignedToID *int64       `json:"assignedToId"`
	CreatedBy    *User        `json:"createdBy"`
	AssignedTo   *User        `json:"assignedTo"`
	Comments     []Comment    `json:"comments,omitempty"`
	Attachments  []Attachment `json:"attachments,omitempty"`
	CreatedAt    string       `json:"createdAt"`
	UpdatedAt    string       `json:"updatedAt"`
}

// TaskInput is the body of create and update calls. On update, nil Title,
// Description and Status are left unchanged while nil DueDate and
// AssignedToID clear the stored values.
type TaskInput struct {
	Title        *string `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	Status       *string `json:"status,omitempty"`
	DueDate      *string `json:"dueDate,omitempty"`
	AssignedToID *int64  `json:"assignedToId,omitempty"`
}

// Session is returned by Login and Register.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login exchanges credentials for a token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodPost, "auth/login", map[string]any{"email": email, "password": password}, &resp)
	if err == nil {
		c.BearerToken = resp.Token
	}
	return resp, err
}

// Register creates an account and keeps its token for later calls.
func (c *Client) Register(ctx context.Context, name, email, password string) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodPost, "auth/register", map[string]any{"name": name, "email": email, "password": password}, &resp)
	if err == nil {
		c.BearerToken = resp.Token
	}
	return resp, err
}

func (c *Client) Profile(ctx context.Context) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, "auth/profile", nil, &resp)
	return resp, err
}

func (c *Client) ListTasks(ctx context.Context) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodGet, "tasks", nil, &resp)
	return resp, err
}

// GetTask returns a task with its comments and attachments.
func (c *Client) GetTask(ctx context.Context, id int64) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("tasks/%d", id), nil, &resp)
	return resp, err
}

func (c *Client) CreateTask(ctx context.Context, in TaskInput) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", in, &resp)
	return resp, err
}

func (c *Client) UpdateTask(ctx context.Context, id int64, in TaskInput) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("tasks/%d", id), in, &resp)
	return resp, err
}

func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("tasks/%d", id), nil, nil)
}

func (c *Client) ListComments(ctx context.Context, taskID int64) ([]Comment, error) {
	var resp []Comment
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("comments/task/%d", taskID), nil, &resp)
	return resp, err
}

func (c *Client) CreateComment(ctx context.Context, taskID int64, content string) (Comment, error) {
	var resp Comment
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("comments/task/%d", taskID), map[string]any{"content": content}, &resp)
	return resp, err
}

func (c *Client) DeleteComment(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("comments/%d", id), nil, nil)
}

// ListUsers returns every user with role and creation time. Admin only.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var resp []User
	err := c.do(ctx, http.MethodGet, "users", nil, &resp)
	return resp, err
}

func (c *Client) ListUsersForAssignment(ctx context.Context) ([]User, error) {
	var resp []User
	err := c.do(ctx, http.MethodGet, "users/for-assignment", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
