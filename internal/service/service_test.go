package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"taskBoard/internal/logger"
	"taskBoard/internal/models"
	"taskBoard/internal/repository"
	"taskBoard/internal/repository/board/inmemory"
	"taskBoard/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init(false)
	m.Run()
}

func newService(t *testing.T) (*service.BoardService, *inmemory.Storage) {
	t.Helper()
	repo := inmemory.New()
	svc := service.NewBoardService(repo, nil)
	return &svc, repo
}

func TestCreateTask_Validation(t *testing.T) {
	tests := []struct {
		name   string
		params service.CreateTaskParams
		field  string
	}{
		{
			name:   "пустой title",
			params: service.CreateTaskParams{Title: ""},
			field:  "title",
		},
		{
			name:   "слишком длинный title",
			params: service.CreateTaskParams{Title: strings.Repeat("x", models.TitleMaxLen+1)},
			field:  "title",
		},
		{
			name: "слишком длинное описание",
			params: service.CreateTaskParams{
				Title:       "T",
				Description: strings.Repeat("x", models.DescriptionMaxLen+1),
			},
			field: "description",
		},
		{
			name: "слишком много пунктов",
			params: service.CreateTaskParams{
				Title: "T",
				Todos: make([]string, models.TodosMaxCount+1),
			},
			field: "todos",
		},
		{
			name: "пустой пункт",
			params: service.CreateTaskParams{
				Title: "T",
				Todos: []string{"a", ""},
			},
			field: "todos",
		},
		{
			name: "слишком длинный пункт",
			params: service.CreateTaskParams{
				Title: "T",
				Todos: []string{strings.Repeat("x", models.TodoContentMaxLen+1)},
			},
			field: "todos",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService(t)

			_, err := svc.CreateTask(context.Background(), tt.params)
			require.Error(t, err)

			var busErr *service.BusinessError
			require.ErrorAs(t, err, &busErr)
			assert.Equal(t, service.CodeValidationError, busErr.Code)
			assert.Equal(t, tt.field, busErr.Details["field"])
		})
	}
}

func TestCreateTask_InitialState(t *testing.T) {
	svc, _ := newService(t)

	task, err := svc.CreateTask(context.Background(), service.CreateTaskParams{
		Title: "T",
		Todos: []string{"a", "b"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, task.Status)
	require.Len(t, task.Todos, 2)

	// порядок вставки стабилен и монотонен
	assert.Equal(t, "a", task.Todos[0].Content)
	assert.Equal(t, 1, task.Todos[0].SortOrder)
	assert.Equal(t, "b", task.Todos[1].Content)
	assert.Equal(t, 2, task.Todos[1].SortOrder)

	for _, td := range task.Todos {
		assert.Equal(t, models.TodoStatusPending, td.Status)
		assert.Equal(t, task.ID, td.TaskID)
	}
}

// закон автозавершения: часть пунктов -> in_progress, все -> completed
func TestUpdateTodo_AutoCompletion(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, service.CreateTaskParams{
		Title: "T",
		Todos: []string{"a", "b", "c"},
	})
	require.NoError(t, err)

	task, err = svc.UpdateTodo(ctx, task.ID, task.Todos[0].ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, task.Status)

	task, err = svc.UpdateTodo(ctx, task.ID, task.Todos[1].ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, task.Status)

	task, err = svc.UpdateTodo(ctx, task.ID, task.Todos[2].ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, task.Status)
}

// закон возврата: выполненная задача с возвращённым пунктом снова в работе
func TestUpdateTodo_Regression(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, service.CreateTaskParams{
		Title: "T",
		Todos: []string{"a"},
	})
	require.NoError(t, err)

	task, err = svc.UpdateTodo(ctx, task.ID, task.Todos[0].ID, true)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, task.Status)

	task, err = svc.UpdateTodo(ctx, task.ID, task.Todos[0].ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, task.Status)
}

func TestUpdateTodo_ProtectedStatusNotOverridden(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, service.CreateTaskParams{
		Title: "T",
		Todos: []string{"a"},
	})
	require.NoError(t, err)

	task, err = svc.UpdateTask(ctx, task.ID, service.WithStatus(models.StatusFailed))
	require.NoError(t, err)
	require.Equal(t, models.StatusFailed, task.Status)

	// выполнение всех пунктов не трогает вручную проваленную задачу
	task, err = svc.UpdateTodo(ctx, task.ID, task.Todos[0].ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, task.Status)
}

// пересчёт идемпотентен: повторная мутация с тем же состоянием пунктов
// даёт тот же статус
func TestUpdateTodo_DerivationIdempotent(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, service.CreateTaskParams{
		Title: "T",
		Todos: []string{"a", "b"},
	})
	require.NoError(t, err)

	first, err := svc.UpdateTodo(ctx, task.ID, task.Todos[0].ID, true)
	require.NoError(t, err)

	second, err := svc.UpdateTodo(ctx, task.ID, task.Todos[0].ID, true)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, models.StatusInProgress, second.Status)
}

func TestUpdateTodo_NotFound(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, service.CreateTaskParams{Title: "T", Todos: []string{"a"}})
	require.NoError(t, err)

	_, err = svc.UpdateTodo(ctx, task.ID, uuid.New(), true)
	var busErr *service.BusinessError
	require.ErrorAs(t, err, &busErr)
	assert.Equal(t, service.CodeNotFound, busErr.Code)

	_, err = svc.UpdateTodo(ctx, uuid.New(), task.Todos[0].ID, true)
	require.ErrorAs(t, err, &busErr)
	assert.Equal(t, service.CodeNotFound, busErr.Code)
}

func TestCompleteTodoByContent(t *testing.T) {
	t.Run("при дублях закрывается пункт с меньшим sort_order", func(t *testing.T) {
		svc, _ := newService(t)
		ctx := context.Background()

		task, err := svc.CreateTask(ctx, service.CreateTaskParams{
			Title: "T",
			Todos: []string{"dup", "dup"},
		})
		require.NoError(t, err)

		task, err = svc.CompleteTodoByContent(ctx, task.ID, "dup")
		require.NoError(t, err)

		assert.True(t, task.Todos[0].Completed())
		assert.False(t, task.Todos[1].Completed())
		assert.Equal(t, models.StatusInProgress, task.Status)
	})

	t.Run("несуществующее содержимое — NOT_FOUND, задача не тронута", func(t *testing.T) {
		svc, _ := newService(t)
		ctx := context.Background()

		task, err := svc.CreateTask(ctx, service.CreateTaskParams{
			Title: "T",
			Todos: []string{"a"},
		})
		require.NoError(t, err)

		_, err = svc.CompleteTodoByContent(ctx, task.ID, "nonexistent")
		var busErr *service.BusinessError
		require.ErrorAs(t, err, &busErr)
		assert.Equal(t, service.CodeNotFound, busErr.Code)

		got, err := svc.GetTaskByID(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, got.Status)
		assert.False(t, got.Todos[0].Completed())
	})

	t.Run("уже выполненный пункт — ALREADY_COMPLETED", func(t *testing.T) {
		svc, _ := newService(t)
		ctx := context.Background()

		task, err := svc.CreateTask(ctx, service.CreateTaskParams{
			Title: "T",
			Todos: []string{"a", "b"},
		})
		require.NoError(t, err)

		_, err = svc.CompleteTodoByContent(ctx, task.ID, "a")
		require.NoError(t, err)

		_, err = svc.CompleteTodoByContent(ctx, task.ID, "a")
		var busErr *service.BusinessError
		require.ErrorAs(t, err, &busErr)
		assert.Equal(t, service.CodeAlreadyCompleted, busErr.Code)
	})

	t.Run("сценарий из жизни агента: a, b -> completed", func(t *testing.T) {
		svc, _ := newService(t)
		ctx := context.Background()

		task, err := svc.CreateTask(ctx, service.CreateTaskParams{
			Title: "T",
			Todos: []string{"a", "b"},
		})
		require.NoError(t, err)
		require.Equal(t, models.StatusPending, task.Status)

		task, err = svc.CompleteTodoByContent(ctx, task.ID, "a")
		require.NoError(t, err)
		assert.Equal(t, models.StatusInProgress, task.Status)

		task, err = svc.CompleteTodoByContent(ctx, task.ID, "b")
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, task.Status)
	})
}

func TestAddTodo_RevertsCompletedTask(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, service.CreateTaskParams{Title: "T", Todos: []string{"a"}})
	require.NoError(t, err)

	task, err = svc.UpdateTodo(ctx, task.ID, task.Todos[0].ID, true)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, task.Status)

	task, err = svc.AddTodo(ctx, task.ID, "b")
	require.NoError(t, err)

	assert.Equal(t, models.StatusInProgress, task.Status)
	require.Len(t, task.Todos, 2)
	assert.Equal(t, 2, task.Todos[1].SortOrder)
}

func TestDeleteTask(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, service.CreateTaskParams{Title: "T", Todos: []string{"a", "b"}})
	require.NoError(t, err)

	deleted, err := svc.DeleteTask(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	// каскад: пунктов не осталось
	todos, err := repo.ListTodos(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, todos)

	// повторное удаление — no-op, не ошибка
	deleted, err = svc.DeleteTask(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestUpdateTask(t *testing.T) {
	t.Run("неизвестный id", func(t *testing.T) {
		svc, _ := newService(t)

		_, err := svc.UpdateTask(context.Background(), uuid.New(), service.WithTitle("x"))
		var busErr *service.BusinessError
		require.ErrorAs(t, err, &busErr)
		assert.Equal(t, service.CodeNotFound, busErr.Code)
	})

	t.Run("обновление по белому списку полей", func(t *testing.T) {
		svc, _ := newService(t)
		ctx := context.Background()

		task, err := svc.CreateTask(ctx, service.CreateTaskParams{Title: "T"})
		require.NoError(t, err)

		updated, err := svc.UpdateTask(ctx, task.ID,
			service.WithTitle("новое название"),
			service.WithDescription("описание"),
			service.WithStatus(models.StatusInProgress),
		)
		require.NoError(t, err)

		assert.Equal(t, "новое название", updated.Title)
		assert.Equal(t, "описание", updated.Description)
		assert.Equal(t, models.StatusInProgress, updated.Status)
		assert.Equal(t, task.CreatedAt, updated.CreatedAt)
	})

	t.Run("валидация после применения опций", func(t *testing.T) {
		svc, _ := newService(t)
		ctx := context.Background()

		task, err := svc.CreateTask(ctx, service.CreateTaskParams{Title: "T"})
		require.NoError(t, err)

		_, err = svc.UpdateTask(ctx, task.ID, service.WithTitle(""))
		var busErr *service.BusinessError
		require.ErrorAs(t, err, &busErr)
		assert.Equal(t, service.CodeValidationError, busErr.Code)
	})
}

func TestListTasks(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	project := "alpha"
	_, err := svc.CreateTask(ctx, service.CreateTaskParams{Title: "first"})
	require.NoError(t, err)
	second, err := svc.CreateTask(ctx, service.CreateTaskParams{Title: "second", ProjectID: &project})
	require.NoError(t, err)

	all, err := svc.ListTasks(ctx, repository.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	// новые сверху
	assert.Equal(t, "second", all[0].Title)

	byProject, err := svc.ListTasks(ctx, repository.TaskFilter{ProjectID: "alpha"})
	require.NoError(t, err)
	require.Len(t, byProject, 1)
	assert.Equal(t, second.ID, byProject[0].ID)

	byStatus, err := svc.ListTasks(ctx, repository.TaskFilter{Status: models.StatusPending})
	require.NoError(t, err)
	assert.Len(t, byStatus, 2)
}

// flakyRepo имитирует падение хранилища на N-й вставке пункта
type flakyRepo struct {
	repository.Board
	failOn  int
	inserts *int
}

func (f *flakyRepo) WithTx(ctx context.Context, fn func(repository.Board) error) error {
	return f.Board.WithTx(ctx, func(tx repository.Board) error {
		return fn(&flakyRepo{Board: tx, failOn: f.failOn, inserts: f.inserts})
	})
}

func (f *flakyRepo) InsertTodo(ctx context.Context, td *models.Todo) error {
	*f.inserts++
	if *f.inserts >= f.failOn {
		return fmt.Errorf("db connection failed")
	}
	return f.Board.InsertTodo(ctx, td)
}

// атомарность создания: падение на середине не оставляет ни задачи, ни
// пунктов
func TestCreateTask_Atomicity(t *testing.T) {
	inner := inmemory.New()
	inserts := 0
	repo := &flakyRepo{Board: inner, failOn: 3, inserts: &inserts}
	svc := service.NewBoardService(repo, nil)
	ctx := context.Background()

	_, err := svc.CreateTask(ctx, service.CreateTaskParams{
		Title: "T",
		Todos: []string{"a", "b", "c", "d", "e"},
	})
	require.Error(t, err)
	assert.False(t, errors.As(err, new(*service.BusinessError)))

	tasks, err := inner.ListTasks(ctx, repository.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks, "после отката не должно остаться ни одной строки")
}

// одновременное выполнение двух разных пунктов одной задачи: оба
// коммитятся, итоговый статус учитывает оба
func TestUpdateTodo_ConcurrentNoLostUpdate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, service.CreateTaskParams{
		Title: "T",
		Todos: []string{"a", "b"},
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, todoID := range []uuid.UUID{task.Todos[0].ID, task.Todos[1].ID} {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = svc.UpdateTodo(ctx, task.ID, id, true)
		}(i, todoID)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	got, err := svc.GetTaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
}
