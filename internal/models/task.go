package models

import (
	"time"

	"github.com/google/uuid"
)

type Task struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	ProjectID   *string   `json:"project_id,omitempty" db:"project_id"`
	Status      Status    `json:"status" db:"status"`
	Todos       []*Todo   `json:"todos" db:"-"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const StatusPending Status = "pending"
const StatusInProgress Status = "in_progress"
const StatusCompleted Status = "completed"
const StatusFailed Status = "failed"
const StatusBlocked Status = "blocked"

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusBlocked:
		return true
	}
	return false
}

// ограничения полей, общие для валидации на всех уровнях
const (
	TitleMaxLen       = 200
	DescriptionMaxLen = 1000
	TodoContentMaxLen = 500
	TodosMaxCount     = 50
)
