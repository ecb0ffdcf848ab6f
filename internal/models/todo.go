package models

import (
	"time"

	"github.com/google/uuid"
)

// Todo живёт строго внутри своей задачи: удаление задачи каскадно
// удаляет все её пункты.
type Todo struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	TaskID    uuid.UUID  `json:"task_id" db:"task_id"`
	Content   string     `json:"content" db:"content"`
	Status    TodoStatus `json:"status" db:"status"`
	SortOrder int        `json:"sort_order" db:"sort_order"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

type TodoStatus string

const TodoStatusPending TodoStatus = "pending"
const TodoStatusCompleted TodoStatus = "completed"

func (t *Todo) Completed() bool {
	return t.Status == TodoStatusCompleted
}

// TodoStatusFrom переводит булево представление проводного формата
// (completed) во внутренний статус колонки.
func TodoStatusFrom(completed bool) TodoStatus {
	if completed {
		return TodoStatusCompleted
	}
	return TodoStatusPending
}
