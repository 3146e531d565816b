package models

import "time"

// Task represents a todo item owned by a single user.
type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	IsCompleted bool      `json:"is_completed"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// TaskPatch lists the fields an update may change.
// A nil field is left untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	IsCompleted *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.IsCompleted == nil
}

// Apply copies the supplied fields of p onto t.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		d := *p.Description
		t.Description = &d
	}
	if p.IsCompleted != nil {
		t.IsCompleted = *p.IsCompleted
	}
}
