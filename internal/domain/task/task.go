package task

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("task not found")

type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateTaskRequest struct {
	Title       string `json:"title" binding:"required,min=1,max=255"`
	Description string `json:"description" binding:"omitempty,max=5000"`
}

// Update is partial: nil fields keep their stored value.
type UpdateTaskRequest struct {
	Title       *string `json:"title" binding:"omitempty,min=1,max=255"`
	Description *string `json:"description" binding:"omitempty,max=5000"`
}

type ListFilter struct {
	// OwnerID narrows the listing to a single owner; nil means store-wide.
	OwnerID *int64
	Offset  int
	Limit   int
}
