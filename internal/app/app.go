package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"taskBoard/internal/config"
	"taskBoard/internal/handlers"
	"taskBoard/internal/logger"
	"taskBoard/internal/middleware"
	"taskBoard/internal/repository"
	boardinmemory "taskBoard/internal/repository/board/inmemory"
	boardsqlite "taskBoard/internal/repository/board/sqlite"
	"taskBoard/internal/service"
	storage "taskBoard/internal/storage/sqlite"
	"taskBoard/internal/worker"
	"taskBoard/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// хаб рассылки обязан реализовывать интерфейс нотификатора handlers
var _ handlers.Notifier = (*ws.Hub)(nil)

type App struct {
	config    *config.Config
	server    *http.Server
	router    *chi.Mux
	hub       *ws.Hub
	worker    *worker.MaintenanceWorker
	shutdowns []func() // функции для graceful shutdown, в обратном порядке
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

// Init поднимает все зависимости: логгер, хранилище с миграциями,
// репозиторий, сервис, рассылку и роутер. Ошибка инициализации
// фатальна — без хранилища трафик обслуживать нечем.
func (a *App) Init(ctx context.Context) error {
	if err := logger.Init(a.config.Logging.Development); err != nil {
		return fmt.Errorf("инициализация логгера: %w", err)
	}
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("Завершение работы логгирования...")
		logger.Sync()
	})

	var repo repository.Board
	switch a.config.Repository.Type {
	case "inmemory":
		repo = boardinmemory.New()
	default:
		store, err := storage.New(ctx, a.config.Database.Path)
		if err != nil {
			return fmt.Errorf("инициализация хранилища: %w", err)
		}
		a.shutdowns = append(a.shutdowns, store.Close)

		if err := store.Migrate(); err != nil {
			return fmt.Errorf("миграции: %w", err)
		}

		repo = boardsqlite.New(store)
		a.worker = worker.NewMaintenanceWorker(store, &a.config.Database.CheckpointInterval)
	}

	boardService := service.NewBoardService(repo, a.config.Board.ProtectedStatuses)

	a.hub = ws.NewHub()
	taskHandler := handlers.NewTaskHandler(&boardService, a.hub)

	a.router = newRouter(a.config, &taskHandler, a.hub)
	a.server = &http.Server{
		Addr:    a.config.GetServerAddr(),
		Handler: a.router,
	}

	return nil
}

func newRouter(cfg *config.Config, taskHandler *handlers.TaskHandler, hub *ws.Hub) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.RateLimit(cfg.Server.RateLimitRPM))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Route("/tasks", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.Server.RequestTimeout))

		r.Get("/", taskHandler.GetTasks)  // GET /tasks
		r.Post("/", taskHandler.PostTask) // POST /tasks

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", taskHandler.GetTaskByID)       // GET /tasks/{id}
			r.Put("/", taskHandler.UpdateTaskByID)    // PUT /tasks/{id}
			r.Delete("/", taskHandler.DeleteTaskByID) // DELETE /tasks/{id}

			r.Post("/todos", taskHandler.PostTodo)                        // POST /tasks/{id}/todos
			r.Post("/todos/complete", taskHandler.CompleteTodoByContent)  // POST /tasks/{id}/todos/complete
			r.Put("/todos/{todoID}", taskHandler.UpdateTodoByID)          // PUT /tasks/{id}/todos/{todoID}
			r.Post("/todos/{todoID}/complete", taskHandler.CompleteTodoByID) // POST /tasks/{id}/todos/{todoID}/complete
		})
	})

	r.Get("/health", taskHandler.HealthCheck)

	// долгоживущее соединение — без таймаута запросов
	r.Get("/ws", hub.ServeWS)

	return r
}

// Run запускает рассылку, фоновый воркер и HTTP-сервер; блокируется до
// отмены ctx, после чего гасит сервер и зависимости в обратном порядке.
func (a *App) Run(ctx context.Context) error {
	go a.hub.Run(ctx)
	if a.worker != nil {
		go a.worker.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server started: " + a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.runShutdowns()
		return fmt.Errorf("http-сервер: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Остановка сервера...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ошибка остановки сервера", err)
	}

	a.runShutdowns()
	return nil
}

func (a *App) runShutdowns() {
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}
}
