package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"taskBoard/internal/handlers/dto"
	"taskBoard/internal/logger"
	"taskBoard/internal/models"
	"taskBoard/internal/repository"
	"taskBoard/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TaskHandler struct {
	TaskService Service
	Notifier    Notifier
}

func NewTaskHandler(taskService Service, notifier Notifier) TaskHandler {
	return TaskHandler{
		TaskService: taskService,
		Notifier:    notifier,
	}
}

func (h *TaskHandler) PostTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	if !checkContentType(r, "application/json") {
		logger.Warn("HTTP: Неверный тип контента",
			zap.String("received", r.Header.Get("Content-Type")),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type должен быть application/json")
		return
	}

	var request dto.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		logger.Warn("HTTP: Ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "неверное тело запроса: "+err.Error())
		return
	}
	defer r.Body.Close()

	task, err := h.TaskService.CreateTask(r.Context(), service.CreateTaskParams{
		Title:       request.Title,
		Description: request.Description,
		ProjectID:   request.ProjectID,
		Todos:       request.Todos,
	})
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		responseServerError(w, "create_task", err)
		return
	}

	response := dto.FromTask(task)

	logger.Info("HTTP_OUT: Задача создана",
		zap.String("task_id", task.ID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithBody(w, http.StatusCreated, response)
	h.Notifier.TaskCreated(response)
}

func (h *TaskHandler) GetTasks(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	filter := repository.TaskFilter{
		Status:    models.Status(r.URL.Query().Get("status")),
		ProjectID: r.URL.Query().Get("project_id"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		logger.Warn("HTTP: Ошибка валидации",
			zap.String("field", "status"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "неизвестное значение status")
		return
	}

	tasks, err := h.TaskService.ListTasks(r.Context(), filter)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		responseServerError(w, "list_tasks", err)
		return
	}

	logger.Info("HTTP_OUT: Задачи получены",
		zap.Int("count", len(tasks)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithBody(w, http.StatusOK, dto.FromTaskList(tasks))
}

func (h *TaskHandler) GetTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	task, err := h.TaskService.GetTaskByID(r.Context(), id)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		responseServerError(w, "get_task", err)
		return
	}

	logger.Info("HTTP_OUT: Задача получена",
		zap.String("task_id", task.ID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithBody(w, http.StatusOK, dto.FromTask(task))
}

func (h *TaskHandler) UpdateTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	if !checkContentType(r, "application/json") {
		logger.Warn("HTTP: Неверный тип контента",
			zap.String("received", r.Header.Get("Content-Type")),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type должен быть application/json")
		return
	}

	var request dto.UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		logger.Warn("HTTP: Ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "неверно переданы параметры обновления: "+err.Error())
		return
	}
	defer r.Body.Close()

	// белый список изменяемых полей; всё прочее в теле игнорируется
	options := []service.TaskOption{}
	if request.Title != nil {
		options = append(options, service.WithTitle(*request.Title))
	}
	if request.Description != nil {
		options = append(options, service.WithDescription(*request.Description))
	}
	if request.Status != nil {
		status := models.Status(*request.Status)
		if !status.Valid() {
			responseWithError(w, http.StatusBadRequest, "неизвестное значение status")
			return
		}
		options = append(options, service.WithStatus(status))
	}
	if request.ProjectID != nil {
		options = append(options, service.WithProject(request.ProjectID))
	}

	task, err := h.TaskService.UpdateTask(r.Context(), id, options...)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		responseServerError(w, "update_task", err)
		return
	}

	response := dto.FromTask(task)

	logger.Info("HTTP_OUT: Задача обновлена",
		zap.String("task_id", id.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithBody(w, http.StatusOK, response)
	h.Notifier.TaskUpdated(response)
}

func (h *TaskHandler) DeleteTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	deleted, err := h.TaskService.DeleteTask(r.Context(), id)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		responseServerError(w, "delete_task", err)
		return
	}
	if !deleted {
		handleBusinessError(w, service.NewNotFound("задача", id.String()))
		return
	}

	logger.Info("HTTP_OUT: Задача удалена",
		zap.String("task_id", id.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusNoContent))

	w.WriteHeader(http.StatusNoContent)
	h.Notifier.TaskDeleted(id)
}

func (h *TaskHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: Health check")

	if err := h.TaskService.HealthCheck(r.Context()); err != nil {
		responseWithJSON(w, http.StatusServiceUnavailable, toPayload("status", "unavailable"))
		return
	}
	responseWithJSON(w, http.StatusOK, toPayload("status", "ok"))
}

func parseID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	idParam := chi.URLParam(r, param)
	id, err := uuid.Parse(idParam)
	if err != nil {
		logger.Warn("HTTP: Не удалось получить id",
			zap.String("param", param),
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "не удалось получить "+param+": "+err.Error())
		return uuid.Nil, false
	}
	if id == uuid.Nil {
		logger.Warn("HTTP: Неверное значение id",
			zap.String("param", param),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, param+" не может быть пустым")
		return uuid.Nil, false
	}
	return id, true
}
