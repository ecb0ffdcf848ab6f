package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"time"

	"taskBoard/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store — единственный разделяемый ресурс процесса: файл SQLite и пул
// соединений над ним. Все мутации проходят через InTx.
type Store struct {
	db   *sql.DB
	path string
}

// New открывает (или создаёт) файл базы, включает контроль внешних
// ключей и WAL-журналирование, проверяет соединение. Повторный вызов
// на том же файле безопасен.
func New(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf(
		"file:%s?_time_format=sqlite&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
		url.PathEscape(path),
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		logger.Error("Repository: Ошибка открытия файла базы", err, zap.String("path", path))
		return nil, fmt.Errorf("открытие базы: %w", err)
	}

	// запись в SQLite в любом случае сериализуется одним писателем,
	// лишние соединения только плодят SQLITE_BUSY
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(time.Minute * 5)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		logger.Error("Repository: Неудачная проверка ping", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", err)
	}

	logger.Info("Repository: Успешное открытие базы SQLite", zap.String("path", path))
	return &Store{db: db, path: path}, nil
}

// Migrate применяет ещё не применённые миграции из встроенной
// директории. Каждая миграция исполняется в собственной транзакции и
// записывается в журнал применённых только после commit; частичный сбой
// откатывается целиком и останавливает запуск.
func (s *Store) Migrate() error {
	logger.Info("Repository: Применение миграций")

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		logger.Error("Repository: Ошибка чтения миграций", err)
		return fmt.Errorf("чтение миграций: %w", err)
	}

	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		logger.Error("Repository: Ошибка инициализации драйвера миграций", err)
		return fmt.Errorf("драйвер миграций: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		logger.Error("Repository: Ошибка инициализации миграций", err)
		return fmt.Errorf("инициализация миграций: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Repository: Ошибка применения миграций", err)
		return fmt.Errorf("применение миграций: %w", err)
	}

	logger.Info("Repository: Схема актуальна")
	return nil
}

// Querier объединяет *sql.DB и *sql.Tx: код запросов одинаково работает
// и внутри, и вне транзакции.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// InTx открывает транзакцию, выполняет fn, фиксирует при nil и
// откатывает при любой ошибке. Частичные состояния снаружи транзакции
// не видны.
func (s *Store) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("Repository: Ошибка открытия транзакции", err)
		return fmt.Errorf("открытие транзакции: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("Repository: Ошибка отката транзакции", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		logger.Error("Repository: Ошибка фиксации транзакции", err)
		return fmt.Errorf("фиксация транзакции: %w", err)
	}
	return nil
}

func (s *Store) SQL() *sql.DB {
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	return nil
}

// Checkpoint переносит накопленный WAL в основной файл базы.
func (s *Store) Checkpoint(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	return nil
}

// Counts возвращает число задач и пунктов — для периодической
// статистики фонового воркера.
func (s *Store) Counts(ctx context.Context) (tasks, todos int, err error) {
	row := s.db.QueryRowContext(ctx, "SELECT (SELECT COUNT(*) FROM tasks), (SELECT COUNT(*) FROM todos)")
	if err := row.Scan(&tasks, &todos); err != nil {
		return 0, 0, fmt.Errorf("подсчёт строк: %w", err)
	}
	return tasks, todos, nil
}

func (s *Store) Close() {
	s.db.Close()
	logger.Info("Repository: Закрытие соединений SQLite")
}
