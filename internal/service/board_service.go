package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"taskBoard/internal/logger"
	"taskBoard/internal/models"
	"taskBoard/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// здесь живут все бизнес-правила доски; переходы статуса задачи
// решаются только в этом пакете

// DefaultProtectedStatuses — статусы, выставленные вручную, которые
// автоматический пересчёт никогда не перезаписывает.
var DefaultProtectedStatuses = []string{
	string(models.StatusFailed),
	string(models.StatusBlocked),
}

type BoardService struct {
	repo      repository.Board
	protected map[models.Status]struct{}
}

// NewBoardService создаёт сервис; protected — настраиваемый набор
// защищённых статусов, nil означает набор по умолчанию.
func NewBoardService(repo repository.Board, protected []string) BoardService {
	if protected == nil {
		protected = DefaultProtectedStatuses
	}
	set := make(map[models.Status]struct{}, len(protected))
	for _, s := range protected {
		set[models.Status(s)] = struct{}{}
	}
	return BoardService{repo: repo, protected: set}
}

type CreateTaskParams struct {
	Title       string
	Description string
	ProjectID   *string
	Todos       []string
}

// CreateTask создаёт задачу и её начальные пункты одной транзакцией:
// либо видна задача со всеми пунктами, либо ничего.
func (s *BoardService) CreateTask(ctx context.Context, p CreateTaskParams) (*models.Task, error) {
	if err := validateTitle(p.Title); err != nil {
		return nil, err
	}
	if err := validateDescription(p.Description); err != nil {
		return nil, err
	}
	if len(p.Todos) > models.TodosMaxCount {
		return nil, NewValidationError("todos", fmt.Sprintf("не более %d пунктов", models.TodosMaxCount))
	}
	for i, content := range p.Todos {
		if err := validateTodoContent(content); err != nil {
			logger.Warn("Service: Ошибка валидации пункта", zap.Int("index", i))
			return nil, err
		}
	}

	now := time.Now().UTC()
	task := &models.Task{
		ID:          uuid.New(),
		Title:       p.Title,
		Description: p.Description,
		ProjectID:   p.ProjectID,
		Status:      models.StatusPending,
		Todos:       []*models.Todo{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.repo.WithTx(ctx, func(r repository.Board) error {
		if err := r.InsertTask(ctx, task); err != nil {
			return fmt.Errorf("создание задачи: %w", err)
		}
		for i, content := range p.Todos {
			todo := &models.Todo{
				ID:        uuid.New(),
				TaskID:    task.ID,
				Content:   content,
				Status:    models.TodoStatusPending,
				SortOrder: i + 1,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := r.InsertTodo(ctx, todo); err != nil {
				return fmt.Errorf("создание пункта: %w", err)
			}
			task.Todos = append(task.Todos, todo)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Service: Задача создана",
		zap.String("task_id", task.ID.String()),
		zap.Int("todos", len(task.Todos)))
	return task, nil
}

func (s *BoardService) GetTaskByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	task, err := s.loadTask(ctx, s.repo, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Info("Service: Задача не найдена", zap.String("target_id", id.String()))
			return nil, NewNotFound("задача", id.String())
		}
		return nil, fmt.Errorf("получение задачи: %w", err)
	}
	return task, nil
}

// ListTasks возвращает задачи от новых к старым, каждая со своими
// пунктами. Отдельный запрос пунктов на задачу — осознанный компромисс
// для масштаба доски.
func (s *BoardService) ListTasks(ctx context.Context, f repository.TaskFilter) ([]*models.Task, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, NewValidationError("status", "неизвестный статус")
	}

	tasks, err := s.repo.ListTasks(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	for _, task := range tasks {
		todos, err := s.repo.ListTodos(ctx, task.ID)
		if err != nil {
			return nil, fmt.Errorf("получение пунктов: %w", err)
		}
		task.Todos = todos
	}
	return tasks, nil
}

func (s *BoardService) UpdateTask(ctx context.Context, id uuid.UUID, options ...TaskOption) (*models.Task, error) {
	var updated *models.Task

	err := s.repo.WithTx(ctx, func(r repository.Board) error {
		task, err := r.GetTask(ctx, id)
		if err != nil {
			return err
		}

		for _, opt := range options {
			opt(task)
		}

		if err := validateTitle(task.Title); err != nil {
			return err
		}
		if err := validateDescription(task.Description); err != nil {
			return err
		}
		if !task.Status.Valid() {
			return NewValidationError("status", "неизвестный статус")
		}

		task.UpdatedAt = time.Now().UTC()
		if err := r.UpdateTask(ctx, task); err != nil {
			return err
		}

		updated, err = s.loadTask(ctx, r, id)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Info("Service: Задача не найдена", zap.String("target_id", id.String()))
			return nil, NewNotFound("задача", id.String())
		}
		var busErr *BusinessError
		if errors.As(err, &busErr) {
			return nil, busErr
		}
		return nil, fmt.Errorf("обновление задачи: %w", err)
	}

	logger.Info("Service: Задача обновлена", zap.String("task_id", id.String()))
	return updated, nil
}

// UpdateTodo переключает выполненность одного пункта и в той же
// транзакции пересчитывает статус родительской задачи.
func (s *BoardService) UpdateTodo(ctx context.Context, taskID, todoID uuid.UUID, completed bool) (*models.Task, error) {
	var updated *models.Task

	err := s.repo.WithTx(ctx, func(r repository.Board) error {
		task, err := r.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		todo, err := r.GetTodo(ctx, taskID, todoID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := r.SetTodoStatus(ctx, todo.ID, models.TodoStatusFrom(completed), now); err != nil {
			return err
		}
		if err := s.deriveStatus(ctx, r, task, now); err != nil {
			return err
		}

		updated, err = s.loadTask(ctx, r, taskID)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Info("Service: Задача или пункт не найдены",
				zap.String("task_id", taskID.String()),
				zap.String("todo_id", todoID.String()))
			return nil, NewNotFound("пункт", todoID.String())
		}
		return nil, fmt.Errorf("обновление пункта: %w", err)
	}

	logger.Info("Service: Пункт обновлён",
		zap.String("task_id", taskID.String()),
		zap.String("todo_id", todoID.String()),
		zap.Bool("completed", completed),
		zap.String("task_status", string(updated.Status)))
	return updated, nil
}

// CompleteTodoByContent закрывает самый ранний невыполненный пункт с
// точно совпадающим текстом. Нужен внешней автоматизации, которая не
// знает идентификаторов пунктов; «уже выполнен» и «не найден»
// различаются кодом ошибки.
func (s *BoardService) CompleteTodoByContent(ctx context.Context, taskID uuid.UUID, content string) (*models.Task, error) {
	var updated *models.Task

	err := s.repo.WithTx(ctx, func(r repository.Board) error {
		task, err := r.GetTask(ctx, taskID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return NewNotFound("задача", taskID.String())
			}
			return err
		}

		todo, err := r.FindPendingTodoByContent(ctx, taskID, content)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				done, checkErr := r.HasCompletedTodoWithContent(ctx, taskID, content)
				if checkErr != nil {
					return checkErr
				}
				if done {
					return NewAlreadyCompleted(content)
				}
				return NewNotFound("пункт", content)
			}
			return err
		}

		now := time.Now().UTC()
		if err := r.SetTodoStatus(ctx, todo.ID, models.TodoStatusCompleted, now); err != nil {
			return err
		}
		if err := s.deriveStatus(ctx, r, task, now); err != nil {
			return err
		}

		updated, err = s.loadTask(ctx, r, taskID)
		return err
	})
	if err != nil {
		var busErr *BusinessError
		if errors.As(err, &busErr) {
			logger.Info("Service: Пункт по содержимому не закрыт",
				zap.String("task_id", taskID.String()),
				zap.String("code", busErr.Code))
			return nil, busErr
		}
		return nil, fmt.Errorf("закрытие пункта по содержимому: %w", err)
	}

	logger.Info("Service: Пункт закрыт по содержимому",
		zap.String("task_id", taskID.String()),
		zap.String("task_status", string(updated.Status)))
	return updated, nil
}

// AddTodo добавляет пункт в конец списка задачи и пересчитывает её
// статус: выполненная задача с новым пунктом возвращается в работу.
func (s *BoardService) AddTodo(ctx context.Context, taskID uuid.UUID, content string) (*models.Task, error) {
	if err := validateTodoContent(content); err != nil {
		return nil, err
	}

	var updated *models.Task

	err := s.repo.WithTx(ctx, func(r repository.Board) error {
		task, err := r.GetTask(ctx, taskID)
		if err != nil {
			return err
		}

		todos, err := r.ListTodos(ctx, taskID)
		if err != nil {
			return err
		}
		if len(todos) >= models.TodosMaxCount {
			return NewValidationError("todos", fmt.Sprintf("не более %d пунктов", models.TodosMaxCount))
		}

		order, err := r.NextSortOrder(ctx, taskID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		todo := &models.Todo{
			ID:        uuid.New(),
			TaskID:    taskID,
			Content:   content,
			Status:    models.TodoStatusPending,
			SortOrder: order,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := r.InsertTodo(ctx, todo); err != nil {
			return err
		}
		if err := s.deriveStatus(ctx, r, task, now); err != nil {
			return err
		}

		updated, err = s.loadTask(ctx, r, taskID)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFound("задача", taskID.String())
		}
		var busErr *BusinessError
		if errors.As(err, &busErr) {
			return nil, busErr
		}
		return nil, fmt.Errorf("добавление пункта: %w", err)
	}

	logger.Info("Service: Пункт добавлен", zap.String("task_id", taskID.String()))
	return updated, nil
}

// DeleteTask удаляет задачу вместе с пунктами; отсутствующий id — не
// ошибка, а false.
func (s *BoardService) DeleteTask(ctx context.Context, id uuid.UUID) (bool, error) {
	deleted, err := s.repo.DeleteTask(ctx, id)
	if err != nil {
		return false, fmt.Errorf("удаление задачи: %w", err)
	}
	if deleted {
		logger.Info("Service: Задача удалена", zap.String("task_id", id.String()))
	}
	return deleted, nil
}

func (s *BoardService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}

// deriveStatus — детерминированный и идемпотентный пересчёт статуса
// задачи по состоянию её пунктов; вызывается в той же транзакции, что
// и мутация пунктов:
//   - пунктов pending нет и есть выполненные → completed;
//   - есть и те и другие → in_progress, если задача была pending или
//     completed (возврат из выполненной);
//   - возврат последнего выполненного пункта тоже снимает completed;
//   - защищённые статусы не трогаются никогда.
func (s *BoardService) deriveStatus(ctx context.Context, r repository.Board, task *models.Task, now time.Time) error {
	if s.isProtected(task.Status) {
		return nil
	}

	pending, completed, err := r.CountTodos(ctx, task.ID)
	if err != nil {
		return err
	}

	next := task.Status
	switch {
	case pending == 0 && completed > 0:
		next = models.StatusCompleted
	case pending > 0 && completed > 0:
		if task.Status == models.StatusPending || task.Status == models.StatusCompleted {
			next = models.StatusInProgress
		}
	case pending > 0 && completed == 0:
		if task.Status == models.StatusCompleted {
			next = models.StatusInProgress
		}
	}

	if next == task.Status {
		return nil
	}

	logger.Info("Service: Автоматический переход статуса",
		zap.String("task_id", task.ID.String()),
		zap.String("from", string(task.Status)),
		zap.String("to", string(next)))

	task.Status = next
	task.UpdatedAt = now
	return r.UpdateTask(ctx, task)
}

func (s *BoardService) isProtected(status models.Status) bool {
	_, ok := s.protected[status]
	return ok
}

func (s *BoardService) loadTask(ctx context.Context, r repository.Board, id uuid.UUID) (*models.Task, error) {
	task, err := r.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	todos, err := r.ListTodos(ctx, id)
	if err != nil {
		return nil, err
	}
	task.Todos = todos
	return task, nil
}

func validateTitle(title string) error {
	if title == "" {
		return NewValidationError("title", "не может быть пустым")
	}
	if utf8.RuneCountInString(title) > models.TitleMaxLen {
		return NewValidationError("title", fmt.Sprintf("не длиннее %d символов", models.TitleMaxLen))
	}
	return nil
}

func validateDescription(description string) error {
	if utf8.RuneCountInString(description) > models.DescriptionMaxLen {
		return NewValidationError("description", fmt.Sprintf("не длиннее %d символов", models.DescriptionMaxLen))
	}
	return nil
}

func validateTodoContent(content string) error {
	if content == "" {
		return NewValidationError("todos", "пункт не может быть пустым")
	}
	if utf8.RuneCountInString(content) > models.TodoContentMaxLen {
		return NewValidationError("todos", fmt.Sprintf("пункт не длиннее %d символов", models.TodoContentMaxLen))
	}
	return nil
}
