package service

import "taskBoard/internal/models"

// TaskOption — функция частичного обновления задачи; белый список
// изменяемых полей исчерпывается набором конструкторов ниже.
type TaskOption func(*models.Task)

func WithTitle(title string) TaskOption {
	return func(task *models.Task) {
		task.Title = title
	}
}

func WithDescription(description string) TaskOption {
	return func(task *models.Task) {
		task.Description = description
	}
}

func WithStatus(status models.Status) TaskOption {
	return func(task *models.Task) {
		task.Status = status
	}
}

func WithProject(projectID *string) TaskOption {
	return func(task *models.Task) {
		task.ProjectID = projectID
	}
}
