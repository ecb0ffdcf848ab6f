package handlers

import (
	"context"

	"taskBoard/internal/handlers/dto"
	"taskBoard/internal/models"
	"taskBoard/internal/repository"
	"taskBoard/internal/service"

	"github.com/google/uuid"
)

type Service interface {
	HealthCheck(ctx context.Context) error
	CreateTask(ctx context.Context, p service.CreateTaskParams) (*models.Task, error)
	GetTaskByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	ListTasks(ctx context.Context, f repository.TaskFilter) ([]*models.Task, error)
	UpdateTask(ctx context.Context, id uuid.UUID, options ...service.TaskOption) (*models.Task, error)
	DeleteTask(ctx context.Context, id uuid.UUID) (bool, error)
	AddTodo(ctx context.Context, taskID uuid.UUID, content string) (*models.Task, error)
	UpdateTodo(ctx context.Context, taskID, todoID uuid.UUID, completed bool) (*models.Task, error)
	CompleteTodoByContent(ctx context.Context, taskID uuid.UUID, content string) (*models.Task, error)
}

// Notifier — канал рассылки событий доски подписчикам реального
// времени. Вызывается только после успешной фиксации мутации; сбой
// доставки никогда не влияет на ответ клиенту.
type Notifier interface {
	TaskCreated(task dto.TaskResponse)
	TaskUpdated(task dto.TaskResponse)
	TaskDeleted(id uuid.UUID)
}
