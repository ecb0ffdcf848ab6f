package dto

import (
	"time"

	"taskBoard/internal/models"

	"github.com/google/uuid"
)

type CreateTaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ProjectID   *string  `json:"project_id,omitempty"`
	Todos       []string `json:"todos"`
}

type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	ProjectID   *string `json:"project_id,omitempty"`
}

type UpdateTodoRequest struct {
	Completed *bool `json:"completed"`
}

type AddTodoRequest struct {
	Text string `json:"text"`
}

type CompleteTodoRequest struct {
	Content string `json:"content"`
}

// TodoResponse — проводной формат пункта. Граница имён стабильна:
// колонка content отдаётся как text, колонка status — как булево
// completed.
type TodoResponse struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
}

type TaskResponse struct {
	ID          uuid.UUID      `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	ProjectID   *string        `json:"project_id,omitempty"`
	Status      string         `json:"status"`
	Todos       []TodoResponse `json:"todos"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func FromTodo(td *models.Todo) TodoResponse {
	return TodoResponse{
		ID:        td.ID,
		Text:      td.Content,
		Completed: td.Completed(),
	}
}

func FromTask(t *models.Task) TaskResponse {
	todos := make([]TodoResponse, len(t.Todos))
	for i, td := range t.Todos {
		todos[i] = FromTodo(td)
	}
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		ProjectID:   t.ProjectID,
		Status:      string(t.Status),
		Todos:       todos,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func FromTaskList(tasks []*models.Task) []TaskResponse {
	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = FromTask(t)
	}
	return result
}
