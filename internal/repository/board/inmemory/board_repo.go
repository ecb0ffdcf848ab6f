package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"taskBoard/internal/models"
	"taskBoard/internal/repository"

	"github.com/google/uuid"
)

// Storage — репозиторий доски в памяти: для тестов и repository.type =
// inmemory. Транзакция реализована снимком состояния: fn работает с
// копией, при успехе копия становится текущим состоянием, при ошибке
// просто выбрасывается.
type Storage struct {
	mu sync.Mutex
	st *state
}

func New() *Storage {
	return &Storage{st: newState()}
}

var _ repository.Board = (*Storage)(nil)

func (s *Storage) WithTx(ctx context.Context, fn func(r repository.Board) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(&txRepo{st: snapshot}); err != nil {
		return err
	}
	s.st = snapshot
	return nil
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	return nil
}

func (s *Storage) InsertTask(ctx context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.insertTask(t)
}

func (s *Storage) GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getTask(id)
}

func (s *Storage) ListTasks(ctx context.Context, f repository.TaskFilter) ([]*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listTasks(f)
}

func (s *Storage) UpdateTask(ctx context.Context, t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.updateTask(t)
}

func (s *Storage) DeleteTask(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.deleteTask(id)
}

func (s *Storage) InsertTodo(ctx context.Context, td *models.Todo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.insertTodo(td)
}

func (s *Storage) GetTodo(ctx context.Context, taskID, todoID uuid.UUID) (*models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.getTodo(taskID, todoID)
}

func (s *Storage) ListTodos(ctx context.Context, taskID uuid.UUID) ([]*models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.listTodos(taskID)
}

func (s *Storage) SetTodoStatus(ctx context.Context, todoID uuid.UUID, status models.TodoStatus, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.setTodoStatus(todoID, status, updatedAt)
}

func (s *Storage) NextSortOrder(ctx context.Context, taskID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.nextSortOrder(taskID), nil
}

func (s *Storage) CountTodos(ctx context.Context, taskID uuid.UUID) (pending, completed int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending, completed = s.st.countTodos(taskID)
	return pending, completed, nil
}

func (s *Storage) FindPendingTodoByContent(ctx context.Context, taskID uuid.UUID, content string) (*models.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.findPendingTodoByContent(taskID, content)
}

func (s *Storage) HasCompletedTodoWithContent(ctx context.Context, taskID uuid.UUID, content string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.hasCompletedTodoWithContent(taskID, content), nil
}

// txRepo — репозиторий внутри транзакции: работает со снимком без
// блокировок, мьютекс уже удерживается внешним WithTx.
type txRepo struct {
	st *state
}

var _ repository.Board = (*txRepo)(nil)

// вложенный WithTx просто продолжает текущую транзакцию
func (t *txRepo) WithTx(ctx context.Context, fn func(r repository.Board) error) error {
	return fn(t)
}

func (t *txRepo) HealthCheck(ctx context.Context) error { return nil }

func (t *txRepo) InsertTask(ctx context.Context, task *models.Task) error {
	return t.st.insertTask(task)
}

func (t *txRepo) GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return t.st.getTask(id)
}

func (t *txRepo) ListTasks(ctx context.Context, f repository.TaskFilter) ([]*models.Task, error) {
	return t.st.listTasks(f)
}

func (t *txRepo) UpdateTask(ctx context.Context, task *models.Task) error {
	return t.st.updateTask(task)
}

func (t *txRepo) DeleteTask(ctx context.Context, id uuid.UUID) (bool, error) {
	return t.st.deleteTask(id)
}

func (t *txRepo) InsertTodo(ctx context.Context, td *models.Todo) error {
	return t.st.insertTodo(td)
}

func (t *txRepo) GetTodo(ctx context.Context, taskID, todoID uuid.UUID) (*models.Todo, error) {
	return t.st.getTodo(taskID, todoID)
}

func (t *txRepo) ListTodos(ctx context.Context, taskID uuid.UUID) ([]*models.Todo, error) {
	return t.st.listTodos(taskID)
}

func (t *txRepo) SetTodoStatus(ctx context.Context, todoID uuid.UUID, status models.TodoStatus, updatedAt time.Time) error {
	return t.st.setTodoStatus(todoID, status, updatedAt)
}

func (t *txRepo) NextSortOrder(ctx context.Context, taskID uuid.UUID) (int, error) {
	return t.st.nextSortOrder(taskID), nil
}

func (t *txRepo) CountTodos(ctx context.Context, taskID uuid.UUID) (pending, completed int, err error) {
	pending, completed = t.st.countTodos(taskID)
	return pending, completed, nil
}

func (t *txRepo) FindPendingTodoByContent(ctx context.Context, taskID uuid.UUID, content string) (*models.Todo, error) {
	return t.st.findPendingTodoByContent(taskID, content)
}

func (t *txRepo) HasCompletedTodoWithContent(ctx context.Context, taskID uuid.UUID, content string) (bool, error) {
	return t.st.hasCompletedTodoWithContent(taskID, content), nil
}

// state — собственно данные: задачи и пункты по задачам.
type state struct {
	tasks map[uuid.UUID]*models.Task
	todos map[uuid.UUID]map[uuid.UUID]*models.Todo
	seq   map[uuid.UUID]int
	next  int
}

func newState() *state {
	return &state{
		tasks: make(map[uuid.UUID]*models.Task),
		todos: make(map[uuid.UUID]map[uuid.UUID]*models.Todo),
		seq:   make(map[uuid.UUID]int),
	}
}

func (st *state) clone() *state {
	cp := newState()
	cp.next = st.next
	for id, t := range st.tasks {
		cp.tasks[id] = copyTask(t)
		cp.seq[id] = st.seq[id]
	}
	for taskID, byID := range st.todos {
		m := make(map[uuid.UUID]*models.Todo, len(byID))
		for id, td := range byID {
			m[id] = copyTodo(td)
		}
		cp.todos[taskID] = m
	}
	return cp
}

func copyTask(t *models.Task) *models.Task {
	cp := *t
	cp.Todos = nil
	if t.ProjectID != nil {
		v := *t.ProjectID
		cp.ProjectID = &v
	}
	return &cp
}

func copyTodo(td *models.Todo) *models.Todo {
	cp := *td
	return &cp
}

func (st *state) insertTask(t *models.Task) error {
	if _, ok := st.tasks[t.ID]; ok {
		return repository.ErrDuplicate
	}
	st.tasks[t.ID] = copyTask(t)
	st.todos[t.ID] = make(map[uuid.UUID]*models.Todo)
	st.next++
	st.seq[t.ID] = st.next
	return nil
}

func (st *state) getTask(id uuid.UUID) (*models.Task, error) {
	t, ok := st.tasks[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyTask(t), nil
}

func (st *state) listTasks(f repository.TaskFilter) ([]*models.Task, error) {
	tasks := []*models.Task{}
	for _, t := range st.tasks {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.ProjectID != "" && (t.ProjectID == nil || *t.ProjectID != f.ProjectID) {
			continue
		}
		tasks = append(tasks, copyTask(t))
	}
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
		return st.seq[tasks[i].ID] > st.seq[tasks[j].ID]
	})
	return tasks, nil
}

func (st *state) updateTask(t *models.Task) error {
	if _, ok := st.tasks[t.ID]; !ok {
		return repository.ErrNotFound
	}
	st.tasks[t.ID] = copyTask(t)
	return nil
}

func (st *state) deleteTask(id uuid.UUID) (bool, error) {
	if _, ok := st.tasks[id]; !ok {
		return false, nil
	}
	delete(st.tasks, id)
	delete(st.todos, id)
	delete(st.seq, id)
	return true, nil
}

func (st *state) insertTodo(td *models.Todo) error {
	byID, ok := st.todos[td.TaskID]
	if !ok {
		return repository.ErrNotFound
	}
	if _, ok := byID[td.ID]; ok {
		return repository.ErrDuplicate
	}
	byID[td.ID] = copyTodo(td)
	return nil
}

func (st *state) getTodo(taskID, todoID uuid.UUID) (*models.Todo, error) {
	td, ok := st.todos[taskID][todoID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyTodo(td), nil
}

func (st *state) listTodos(taskID uuid.UUID) ([]*models.Todo, error) {
	todos := []*models.Todo{}
	for _, td := range st.todos[taskID] {
		todos = append(todos, copyTodo(td))
	}
	sort.Slice(todos, func(i, j int) bool {
		return todos[i].SortOrder < todos[j].SortOrder
	})
	return todos, nil
}

func (st *state) setTodoStatus(todoID uuid.UUID, status models.TodoStatus, updatedAt time.Time) error {
	for _, byID := range st.todos {
		if td, ok := byID[todoID]; ok {
			td.Status = status
			td.UpdatedAt = updatedAt
			return nil
		}
	}
	return repository.ErrNotFound
}

func (st *state) nextSortOrder(taskID uuid.UUID) int {
	max := 0
	for _, td := range st.todos[taskID] {
		if td.SortOrder > max {
			max = td.SortOrder
		}
	}
	return max + 1
}

func (st *state) countTodos(taskID uuid.UUID) (pending, completed int) {
	for _, td := range st.todos[taskID] {
		switch td.Status {
		case models.TodoStatusPending:
			pending++
		case models.TodoStatusCompleted:
			completed++
		}
	}
	return pending, completed
}

func (st *state) findPendingTodoByContent(taskID uuid.UUID, content string) (*models.Todo, error) {
	var found *models.Todo
	for _, td := range st.todos[taskID] {
		if td.Content != content || td.Status != models.TodoStatusPending {
			continue
		}
		if found == nil || td.SortOrder < found.SortOrder {
			found = td
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return copyTodo(found), nil
}

func (st *state) hasCompletedTodoWithContent(taskID uuid.UUID, content string) bool {
	for _, td := range st.todos[taskID] {
		if td.Content == content && td.Status == models.TodoStatusCompleted {
			return true
		}
	}
	return false
}
