package worker

import (
	"context"
	"time"

	"taskBoard/internal/logger"
	storage "taskBoard/internal/storage/sqlite"

	"go.uber.org/zap"
)

// MaintenanceWorker периодически переносит WAL в основной файл базы и
// пишет в лог размеры доски. На корректность не влияет — чистая
// профилактика файла базы.
type MaintenanceWorker struct {
	store    *storage.Store
	interval time.Duration
}

func NewMaintenanceWorker(store *storage.Store, interval *time.Duration) *MaintenanceWorker {
	intervalToSet := 5 * time.Minute
	if interval != nil && *interval > 0 {
		intervalToSet = *interval
	}
	return &MaintenanceWorker{
		store:    store,
		interval: intervalToSet,
	}
}

func (w *MaintenanceWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logger.Info("Worker: Фоновая профилактика базы", zap.Time("started_at", time.Now()))
			w.Check(ctx)
		case <-ctx.Done():
			logger.Info("Worker: Фоновая профилактика останавливается")
			return
		}
	}
}

func (w *MaintenanceWorker) Check(ctx context.Context) {
	start := time.Now()

	if err := w.store.Checkpoint(ctx); err != nil {
		logger.Warn("Worker: Ошибка wal checkpoint", zap.Error(err))
		return
	}

	tasks, todos, err := w.store.Counts(ctx)
	if err != nil {
		logger.Warn("Worker: Ошибка подсчёта строк", zap.Error(err))
		return
	}

	logger.Info("Worker: Завершение профилактики",
		zap.Duration("ms", time.Since(start)),
		zap.Int("tasks", tasks),
		zap.Int("todos", todos),
	)
}
