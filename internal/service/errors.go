package service

import "fmt"

// BusinessError — ошибка бизнес-логики с машинным кодом; handlers
// переводят код в HTTP-статус.
type BusinessError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (b *BusinessError) Error() string {
	if b.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", b.Code, b.Message, b.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", b.Code, b.Message)
}

func (b *BusinessError) Unwrap() error {
	return b.Err
}

const (
	CodeNotFound         = "NOT_FOUND"
	CodeValidationError  = "VALIDATION_ERROR"
	CodeAlreadyCompleted = "ALREADY_COMPLETED"
)

func NewNotFound(resource, id string) *BusinessError {
	return &BusinessError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %s не найден(а)", resource, id),
		Details: map[string]any{
			"resource": resource,
			"id":       id,
		},
	}
}

func NewValidationError(field, reason string) *BusinessError {
	return &BusinessError{
		Code:    CodeValidationError,
		Message: fmt.Sprintf("Неверное значение поля '%s': %s", field, reason),
		Details: map[string]any{
			"field":  field,
			"reason": reason,
		},
	}
}

func NewAlreadyCompleted(content string) *BusinessError {
	return &BusinessError{
		Code:    CodeAlreadyCompleted,
		Message: fmt.Sprintf("Пункт '%s' уже выполнен", content),
		Details: map[string]any{
			"content": content,
		},
	}
}
