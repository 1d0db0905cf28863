// Package models defines client-side data models used by the gophtodo CLI.
package models

import "time"

// Task is the canonical task record returned by the API.
type Task struct {
	ID        uint       `json:"id"`
	Title     string     `json:"title"`
	Completed bool       `json:"completed"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// WasEdited reports whether the task changed after it was created.
func (t Task) WasEdited() bool {
	return !t.UpdatedAt.Equal(t.CreatedAt)
}
