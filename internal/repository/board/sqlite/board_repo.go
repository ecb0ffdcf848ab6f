package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskBoard/internal/logger"
	"taskBoard/internal/models"
	"taskBoard/internal/repository"
	storage "taskBoard/internal/storage/sqlite"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Storage — репозиторий доски поверх SQLite. Вне транзакции запросы
// идут напрямую в пул, внутри WithTx — через открытый *sql.Tx.
type Storage struct {
	store *storage.Store
	q     storage.Querier
}

func New(store *storage.Store) *Storage {
	return &Storage{store: store, q: store.SQL()}
}

var _ repository.Board = (*Storage)(nil)

func (s *Storage) WithTx(ctx context.Context, fn func(r repository.Board) error) error {
	return s.store.InTx(ctx, func(tx *sql.Tx) error {
		return fn(&Storage{store: s.store, q: tx})
	})
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Storage) InsertTask(ctx context.Context, t *models.Task) error {
	start := time.Now()

	query := `INSERT INTO tasks
				(id, title, description, project_id, status, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.q.ExecContext(ctx, query,
		t.ID,
		t.Title,
		t.Description,
		t.ProjectID,
		t.Status,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		logger.Error("Repository: Не удалось добавить задачу", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("добавление задачи: %w", err)
	}

	warnSlow(start, 50*time.Millisecond)
	return nil
}

const taskColumns = `id, title, description, project_id, status, created_at, updated_at`

func scanTask(row interface{ Scan(dest ...any) error }) (*models.Task, error) {
	task := &models.Task{}
	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.ProjectID,
		&task.Status,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Storage) GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	start := time.Now()

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

	task, err := scanTask(s.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить задачу", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задачи: %w", err)
	}

	warnSlow(start, 100*time.Millisecond)
	return task, nil
}

func (s *Storage) ListTasks(ctx context.Context, f repository.TaskFilter) ([]*models.Task, error) {
	start := time.Now()

	query := `SELECT ` + taskColumns + ` FROM tasks`
	conds := []string{}
	args := []any{}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.ProjectID != "" {
		conds = append(conds, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: Не удалось получить задачи", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	defer rows.Close()

	tasks := []*models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			logger.Warn("Repository: Ошибка сканирования задачи", zap.Error(err))
			continue
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}

	warnSlow(start, 100*time.Millisecond)
	return tasks, nil
}

func (s *Storage) UpdateTask(ctx context.Context, t *models.Task) error {
	start := time.Now()

	query := `UPDATE tasks
			SET title = ?,
				description = ?,
				project_id = ?,
				status = ?,
				updated_at = ?
			WHERE id = ?`

	res, err := s.q.ExecContext(ctx, query,
		t.Title,
		t.Description,
		t.ProjectID,
		t.Status,
		t.UpdatedAt,
		t.ID,
	)
	if err != nil {
		logger.Error("Repository: Не удалось обновить задачу", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("обновление задачи: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("обновление задачи: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}

	warnSlow(start, 100*time.Millisecond)
	return nil
}

// DeleteTask удаляет задачу; пункты уходят каскадом по внешнему ключу.
// Отсутствующий id не ошибка — возвращается false.
func (s *Storage) DeleteTask(ctx context.Context, id uuid.UUID) (bool, error) {
	start := time.Now()

	res, err := s.q.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		logger.Error("Repository: Не удалось удалить задачу", err, zap.Duration("ms", time.Since(start)))
		return false, fmt.Errorf("удаление задачи: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("удаление задачи: %w", err)
	}

	warnSlow(start, 100*time.Millisecond)
	return affected > 0, nil
}

func (s *Storage) InsertTodo(ctx context.Context, td *models.Todo) error {
	start := time.Now()

	query := `INSERT INTO todos
				(id, task_id, content, status, sort_order, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.q.ExecContext(ctx, query,
		td.ID,
		td.TaskID,
		td.Content,
		td.Status,
		td.SortOrder,
		td.CreatedAt,
		td.UpdatedAt,
	)
	if err != nil {
		logger.Error("Repository: Не удалось добавить пункт", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("добавление пункта: %w", err)
	}

	warnSlow(start, 50*time.Millisecond)
	return nil
}

const todoColumns = `id, task_id, content, status, sort_order, created_at, updated_at`

func scanTodo(row interface{ Scan(dest ...any) error }) (*models.Todo, error) {
	todo := &models.Todo{}
	err := row.Scan(
		&todo.ID,
		&todo.TaskID,
		&todo.Content,
		&todo.Status,
		&todo.SortOrder,
		&todo.CreatedAt,
		&todo.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return todo, nil
}

func (s *Storage) GetTodo(ctx context.Context, taskID, todoID uuid.UUID) (*models.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE id = ? AND task_id = ?`

	todo, err := scanTodo(s.q.QueryRowContext(ctx, query, todoID, taskID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		logger.Error("Repository: Не удалось получить пункт", err)
		return nil, fmt.Errorf("получение пункта: %w", err)
	}
	return todo, nil
}

func (s *Storage) ListTodos(ctx context.Context, taskID uuid.UUID) ([]*models.Todo, error) {
	start := time.Now()

	query := `SELECT ` + todoColumns + ` FROM todos WHERE task_id = ? ORDER BY sort_order`

	rows, err := s.q.QueryContext(ctx, query, taskID)
	if err != nil {
		logger.Error("Repository: Не удалось получить пункты", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("получение пунктов: %w", err)
	}
	defer rows.Close()

	todos := []*models.Todo{}
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			logger.Warn("Repository: Ошибка сканирования пункта", zap.Error(err))
			continue
		}
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		logger.Error("Repository: Ошибка итерации по строкам", err)
		return nil, fmt.Errorf("итерация по строкам: %w", err)
	}

	warnSlow(start, 100*time.Millisecond)
	return todos, nil
}

func (s *Storage) SetTodoStatus(ctx context.Context, todoID uuid.UUID, status models.TodoStatus, updatedAt time.Time) error {
	query := `UPDATE todos SET status = ?, updated_at = ? WHERE id = ?`

	res, err := s.q.ExecContext(ctx, query, status, updatedAt, todoID)
	if err != nil {
		logger.Error("Repository: Не удалось обновить пункт", err)
		return fmt.Errorf("обновление пункта: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("обновление пункта: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Storage) NextSortOrder(ctx context.Context, taskID uuid.UUID) (int, error) {
	var next int
	query := `SELECT COALESCE(MAX(sort_order), 0) + 1 FROM todos WHERE task_id = ?`

	if err := s.q.QueryRowContext(ctx, query, taskID).Scan(&next); err != nil {
		logger.Error("Repository: Не удалось вычислить порядок пункта", err)
		return 0, fmt.Errorf("порядок пункта: %w", err)
	}
	return next, nil
}

func (s *Storage) CountTodos(ctx context.Context, taskID uuid.UUID) (pending, completed int, err error) {
	query := `SELECT
				COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
				COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0)
			FROM todos WHERE task_id = ?`

	if err := s.q.QueryRowContext(ctx, query, taskID).Scan(&pending, &completed); err != nil {
		logger.Error("Repository: Не удалось посчитать пункты", err)
		return 0, 0, fmt.Errorf("подсчёт пунктов: %w", err)
	}
	return pending, completed, nil
}

// FindPendingTodoByContent находит невыполненный пункт с точно
// совпадающим содержимым; при дублях побеждает наименьший sort_order.
func (s *Storage) FindPendingTodoByContent(ctx context.Context, taskID uuid.UUID, content string) (*models.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos
			WHERE task_id = ? AND content = ? AND status = 'pending'
			ORDER BY sort_order
			LIMIT 1`

	todo, err := scanTodo(s.q.QueryRowContext(ctx, query, taskID, content))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		logger.Error("Repository: Не удалось найти пункт по содержимому", err)
		return nil, fmt.Errorf("поиск пункта: %w", err)
	}
	return todo, nil
}

func (s *Storage) HasCompletedTodoWithContent(ctx context.Context, taskID uuid.UUID, content string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (
				SELECT 1 FROM todos
				WHERE task_id = ? AND content = ? AND status = 'completed'
			)`

	if err := s.q.QueryRowContext(ctx, query, taskID, content).Scan(&exists); err != nil {
		logger.Error("Repository: Не удалось проверить пункт по содержимому", err)
		return false, fmt.Errorf("проверка пункта: %w", err)
	}
	return exists, nil
}

func warnSlow(start time.Time, limit time.Duration) {
	if time.Since(start) > limit {
		logger.Warn("Repository: Медленный запрос", zap.Duration("ms", time.Since(start)))
	}
}
