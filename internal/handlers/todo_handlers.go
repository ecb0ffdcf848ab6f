package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"taskBoard/internal/handlers/dto"
	"taskBoard/internal/logger"

	"go.uber.org/zap"
)

func (h *TaskHandler) UpdateTodoByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	taskID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	todoID, ok := parseID(w, r, "todoID")
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

	var request dto.UpdateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		logger.Warn("HTTP: Ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "неверное тело запроса: "+err.Error())
		return
	}
	defer r.Body.Close()

	if request.Completed == nil {
		logger.Warn("HTTP: Ошибка валидации",
			zap.String("field", "completed"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "поле completed обязательно")
		return
	}

	task, err := h.TaskService.UpdateTodo(r.Context(), taskID, todoID, *request.Completed)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		responseServerError(w, "update_todo", err)
		return
	}

	response := dto.FromTask(task)

	logger.Info("HTTP_OUT: Пункт обновлён",
		zap.String("task_id", taskID.String()),
		zap.String("todo_id", todoID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithBody(w, http.StatusOK, response)
	h.Notifier.TaskUpdated(response)
}

func (h *TaskHandler) CompleteTodoByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	taskID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	todoID, ok := parseID(w, r, "todoID")
	if !ok {
		return
	}

	task, err := h.TaskService.UpdateTodo(r.Context(), taskID, todoID, true)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		responseServerError(w, "complete_todo", err)
		return
	}

	response := dto.FromTask(task)

	logger.Info("HTTP_OUT: Пункт выполнен",
		zap.String("task_id", taskID.String()),
		zap.String("todo_id", todoID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithBody(w, http.StatusOK, response)
	h.Notifier.TaskUpdated(response)
}

func (h *TaskHandler) PostTodo(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	taskID, ok := parseID(w, r, "id")
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

	var request dto.AddTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		logger.Warn("HTTP: Ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "неверное тело запроса: "+err.Error())
		return
	}
	defer r.Body.Close()

	task, err := h.TaskService.AddTodo(r.Context(), taskID, request.Text)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		responseServerError(w, "add_todo", err)
		return
	}

	response := dto.FromTask(task)

	logger.Info("HTTP_OUT: Пункт добавлен",
		zap.String("task_id", taskID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithBody(w, http.StatusCreated, response)
	h.Notifier.TaskUpdated(response)
}

// CompleteTodoByContent — вход для внешней автоматизации: агент
// отмечает прогресс текстом пункта, не зная его идентификатора.
func (h *TaskHandler) CompleteTodoByContent(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	taskID, ok := parseID(w, r, "id")
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

	var request dto.CompleteTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		logger.Warn("HTTP: Ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "неверное тело запроса: "+err.Error())
		return
	}
	defer r.Body.Close()

	if request.Content == "" {
		logger.Warn("HTTP: Ошибка валидации",
			zap.String("field", "content"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "поле content обязательно")
		return
	}

	task, err := h.TaskService.CompleteTodoByContent(r.Context(), taskID, request.Content)
	if err != nil {
		if handleBusinessError(w, err) {
			return
		}
		responseServerError(w, "complete_todo_by_content", err)
		return
	}

	response := dto.FromTask(task)

	logger.Info("HTTP_OUT: Пункт закрыт по содержимому",
		zap.String("task_id", taskID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithBody(w, http.StatusOK, response)
	h.Notifier.TaskUpdated(response)
}
