package handlers

import (
	"errors"
	"net/http"

	"taskBoard/internal/logger"
	"taskBoard/internal/service"

	"go.uber.org/zap"
)

// handleBusinessError переводит BusinessError в структурированный
// JSON-ответ; возвращает false, если ошибка не бизнесовая.
func handleBusinessError(w http.ResponseWriter, err error) bool {
	var businessErr *service.BusinessError
	if !errors.As(err, &businessErr) {
		return false
	}

	statusCode := mapBusinessErrorToHTTP(businessErr.Code)

	logger.Warn("HTTP: Бизнес-ошибка",
		zap.String("error_code", businessErr.Code),
		zap.Int("http_status", statusCode))

	responseWithJSON(w, statusCode,
		toPayload("error", businessErr.Code),
		toPayload("message", businessErr.Message),
		toPayload("details", businessErr.Details),
	)
	return true
}

func mapBusinessErrorToHTTP(code string) int {
	switch code {
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeValidationError:
		return http.StatusBadRequest
	case service.CodeAlreadyCompleted:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// responseServerError скрывает внутренние детали от клиента; сама
// ошибка остаётся в логах.
func responseServerError(w http.ResponseWriter, operation string, err error) {
	logger.Error("HTTP: Ошибка Service", err, zap.String("operation", operation))
	responseWithJSON(w, http.StatusInternalServerError,
		toPayload("error", "INTERNAL"),
		toPayload("message", "внутренняя ошибка сервера"),
	)
}
