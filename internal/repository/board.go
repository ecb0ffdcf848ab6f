package repository

import (
	"context"
	"time"

	"taskBoard/internal/models"

	"github.com/google/uuid"
)

// TaskFilter — фильтр списка задач; пустое значение поля означает
// отсутствие фильтрации по нему.
type TaskFilter struct {
	Status    models.Status
	ProjectID string
}

// Board — контракт хранилища доски. Все методы принимают значения только
// через связанные параметры. Многострочные мутации выполняются внутри
// WithTx: fn получает репозиторий, привязанный к открытой транзакции,
// commit при nil, rollback при любой ошибке.
type Board interface {
	WithTx(ctx context.Context, fn func(r Board) error) error
	HealthCheck(ctx context.Context) error

	InsertTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error)
	ListTasks(ctx context.Context, f TaskFilter) ([]*models.Task, error)
	UpdateTask(ctx context.Context, t *models.Task) error
	DeleteTask(ctx context.Context, id uuid.UUID) (bool, error)

	InsertTodo(ctx context.Context, td *models.Todo) error
	GetTodo(ctx context.Context, taskID, todoID uuid.UUID) (*models.Todo, error)
	ListTodos(ctx context.Context, taskID uuid.UUID) ([]*models.Todo, error)
	SetTodoStatus(ctx context.Context, todoID uuid.UUID, status models.TodoStatus, updatedAt time.Time) error
	NextSortOrder(ctx context.Context, taskID uuid.UUID) (int, error)
	CountTodos(ctx context.Context, taskID uuid.UUID) (pending, completed int, err error)
	FindPendingTodoByContent(ctx context.Context, taskID uuid.UUID, content string) (*models.Todo, error)
	HasCompletedTodoWithContent(ctx context.Context, taskID uuid.UUID, content string) (bool, error)
}
