package domain

import "strings"

type Role string

const (
	RoleMember Role = "MEMBER"
	RoleAdmin  Role = "ADMIN"
)

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleMember:
		return RoleMember, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

type TaskStatus string

const (
	StatusPending    TaskStatus = "PENDING"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Identity is the resolved caller of a request.
type Identity struct {
	ID   int64
	Role Role
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role" enum:"MEMBER,ADMIN"`
	CreatedAt    string `json:"createdAt" format:"date-time"`
}

// UserSummary is the projection exposed wherever a user is referenced.
type UserSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UserProfile is the projection exposed to administrators and to the user itself.
type UserProfile struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      Role   `json:"role" enum:"MEMBER,ADMIN"`
	CreatedAt string `json:"createdAt" format:"date-time"`
}

func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}

func (u User) Profile() UserProfile {
	return UserProfile{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt}
}

type Task struct {
	ID           int64        `json:"id"`
	Title        string       `json:"title"`
	Description  *string      `json:"description"`
	Status       TaskStatus   `json:"status" enum:"PENDING,IN_PROGRESS,COMPLETED"`
	DueDate      *string      `json:"dueDate" format:"date-time"`
	CreatedByID  int64        `json:"createdById"`
	AssignedToID *int64       `json:"assignedToId"`
	CreatedBy    *UserSummary `json:"createdBy,omitempty"`
	AssignedTo   *UserSummary `json:"assignedTo"`
	CreatedAt    string       `json:"createdAt" format:"date-time"`
	UpdatedAt    string       `json:"updatedAt" format:"date-time"`
}

// TaskDetail is a task together with its comments and attachments.
type TaskDetail struct {
	Task
	Comments    []Comment    `json:"comments"`
	Attachments []Attachment `json:"attachments"`
}

type Comment struct {
	ID        int64        `json:"id"`
	Content   string       `json:"content"`
	TaskID    int64        `json:"taskId"`
	AuthorID  int64        `json:"authorId"`
	Author    *UserSummary `json:"author,omitempty"`
	CreatedAt string       `json:"createdAt" format:"date-time"`
}

type Attachment struct {
	ID        int64  `json:"id"`
	TaskID    int64  `json:"taskId"`
	Filename  string `json:"filename"`
	URL       string `json:"url"`
	CreatedAt string `json:"createdAt" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    int64  `json:"userId"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"keyHash"`
	CreatedAt string `json:"createdAt" format:"date-time"`
}
