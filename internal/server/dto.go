package server

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"taskboard/internal/engine"
)

// Request payloads. Fields carry omitempty so that missing values reach the
// engine, which owns the validation messages.

type RegisterRequest struct {
	_        struct{} `json:"-" additionalProperties:"true"`
	Name     string   `json:"name,omitempty"`
	Email    string   `json:"email,omitempty" format:"email"`
	Password string   `json:"password,omitempty"`
}

type LoginRequest struct {
	_        struct{} `json:"-" additionalProperties:"true"`
	Email    string   `json:"email,omitempty"`
	Password string   `json:"password,omitempty"`
}

type CreateTaskRequest struct {
	_            struct{}   `json:"-" additionalProperties:"true"`
	Title        string     `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty" nullable:"true"`
	DueDate      *string    `json:"dueDate,omitempty" nullable:"true" doc:"YYYY-MM-DD or RFC 3339"`
	AssignedToID OptionalID `json:"assignedToId,omitempty"`
}

// UpdateTaskRequest leaves title, description and status unchanged when they
// are absent. dueDate and assignedToId are replaced, so leaving them out
// clears them.
type UpdateTaskRequest struct {
	_            struct{}   `json:"-" additionalProperties:"true"`
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty" nullable:"true"`
	Status       *string    `json:"status,omitempty" doc:"PENDING, IN_PROGRESS or COMPLETED"`
	DueDate      *string    `json:"dueDate,omitempty" nullable:"true" doc:"YYYY-MM-DD or RFC 3339"`
	AssignedToID OptionalID `json:"assignedToId,omitempty"`
}

type CreateCommentRequest struct {
	_       struct{} `json:"-" additionalProperties:"true"`
	Content string   `json:"content,omitempty"`
}

// Response payloads

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// OptionalID is a user reference as the front-ends send it: a number, a
// numeric string, an empty string or null. Zero and empty mean no user.
type OptionalID struct {
	Value   *int64
	Invalid bool
}

func (o *OptionalID) UnmarshalJSON(data []byte) error {
	*o = OptionalID{}
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			o.Invalid = true
			return nil
		}
	} else {
		text = string(raw)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil || id < 0 {
		o.Invalid = true
		return nil
	}
	if id != 0 {
		o.Value = &id
	}
	return nil
}

func (o OptionalID) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(*o.Value, 10)), nil
}

// Schema accepts any JSON value; UnmarshalJSON does the checking.
func (OptionalID) Schema(huma.Registry) *huma.Schema {
	return &huma.Schema{
		Description: "User id as a number or numeric string. Empty string, 0 or null mean unassigned.",
		Nullable:    true,
	}
}

// id returns the parsed id or a validation error for the field.
func (o OptionalID) id(field string) (*int64, error) {
	if o.Invalid {
		return nil, engine.ValidationError{Field: field, Message: "must be a user id"}
	}
	return o.Value, nil
}
