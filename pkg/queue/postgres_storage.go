package queue

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Migrations holds the goose migrations creating the queue tables.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of the migrations inside Migrations.
const MigrationsDir = "migrations"

// DB is the subset of *pgxpool.Pool used by PostgresStorage.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

const taskColumns = `id, queue, task_name, payload, status, priority, retry_count, max_retries,
	scheduled_at, locked_until, locked_by, processed_at, error, created_at`

// PostgresStorage implements the queue repositories on PostgreSQL.
// Concurrent workers claim with FOR UPDATE SKIP LOCKED, so any number of
// processes can share the tables.
type PostgresStorage struct {
	db  DB
	now func() time.Time
}

// NewPostgresStorage creates a Postgres-backed storage. Apply Migrations
// before use.
func NewPostgresStorage(db DB) (*PostgresStorage, error) {
	if db == nil {
		return nil, ErrRepositoryNil
	}
	return &PostgresStorage{db: db, now: time.Now}, nil
}

// CreateTask implements EnqueuerRepository
func (s *PostgresStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return ErrPayloadNil
	}

	payload := task.Payload
	if payload == nil {
		payload = []byte{}
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO queue_tasks (id, queue, task_name, payload, status, priority, retry_count,
			max_retries, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		task.ID, task.Queue, task.TaskName, payload, string(task.Status), int16(task.Priority),
		int16(task.RetryCount), int16(task.MaxRetries), task.ScheduledAt, task.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrTaskExists, task.ID)
		}
		return fmt.Errorf("failed to insert task %s: %w", task.ID, err)
	}

	return nil
}

// ClaimTask implements WorkerRepository. Pending tasks and tasks whose lock
// expired are both eligible; higher priority first, then earliest due.
func (s *PostgresStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	now := s.now()

	row := s.db.QueryRow(ctx, `
		UPDATE queue_tasks
		SET status = 'processing', locked_until = $3, locked_by = $2
		WHERE id = (
			SELECT id FROM queue_tasks
			WHERE queue = ANY($1)
				AND scheduled_at <= $4
				AND (status = 'pending' OR (status = 'processing' AND locked_until < $4))
			ORDER BY priority DESC, scheduled_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+taskColumns,
		queues, workerID, now.Add(lockDuration), now,
	)

	task, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoTaskToClaim
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}

	return task, nil
}

// CompleteTask implements WorkerRepository
func (s *PostgresStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE queue_tasks
		SET status = 'completed', processed_at = $2, locked_until = NULL, locked_by = NULL
		WHERE id = $1 AND status = 'processing'`,
		taskID, s.now(),
	)
	if err != nil {
		return fmt.Errorf("failed to complete task %s: %w", taskID, err)
	}
	if tag.RowsAffected() == 0 {
		return s.notProcessing(ctx, taskID)
	}
	return nil
}

// FailTask implements WorkerRepository
func (s *PostgresStorage) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var (
			status     string
			retryCount int16
			maxRetries int16
		)
		err := tx.QueryRow(ctx,
			`SELECT status, retry_count, max_retries FROM queue_tasks WHERE id = $1 FOR UPDATE`,
			taskID,
		).Scan(&status, &retryCount, &maxRetries)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		if err != nil {
			return fmt.Errorf("failed to load task %s: %w", taskID, err)
		}
		if TaskStatus(status) != TaskStatusProcessing {
			return fmt.Errorf("%w: %s", ErrTaskNotProcessing, taskID)
		}

		retryCount++
		if retryCount >= maxRetries {
			_, err = tx.Exec(ctx, `
				UPDATE queue_tasks
				SET status = 'failed', retry_count = $2, error = $3, locked_until = NULL, locked_by = NULL
				WHERE id = $1`,
				taskID, retryCount, errorMsg,
			)
		} else {
			_, err = tx.Exec(ctx, `
				UPDATE queue_tasks
				SET status = 'pending', retry_count = $2, error = $3, scheduled_at = $4,
					locked_until = NULL, locked_by = NULL
				WHERE id = $1`,
				taskID, retryCount, errorMsg, s.now().Add(retryBackoff(int8(retryCount))),
			)
		}
		if err != nil {
			return fmt.Errorf("failed to fail task %s: %w", taskID, err)
		}
		return nil
	})
}

// MoveToDLQ implements WorkerRepository
func (s *PostgresStorage) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		task, err := scanTask(tx.QueryRow(ctx,
			`SELECT `+taskColumns+` FROM queue_tasks WHERE id = $1 FOR UPDATE`, taskID))
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
		if err != nil {
			return fmt.Errorf("failed to load task %s: %w", taskID, err)
		}

		entry := newDLQEntry(task, s.now())
		_, err = tx.Exec(ctx, `
			INSERT INTO queue_tasks_dlq (id, task_id, queue, task_name, payload, priority, error,
				retry_count, failed_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			entry.ID, entry.TaskID, entry.Queue, entry.TaskName, entry.Payload, int16(entry.Priority),
			entry.Error, int16(entry.RetryCount), entry.FailedAt, entry.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert DLQ entry for task %s: %w", taskID, err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM queue_tasks WHERE id = $1`, taskID); err != nil {
			return fmt.Errorf("failed to delete task %s: %w", taskID, err)
		}
		return nil
	})
}

// ExtendLock implements WorkerRepository
func (s *PostgresStorage) ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE queue_tasks SET locked_until = $2 WHERE id = $1 AND status = 'processing'`,
		taskID, s.now().Add(duration),
	)
	if err != nil {
		return fmt.Errorf("failed to extend lock for task %s: %w", taskID, err)
	}
	if tag.RowsAffected() == 0 {
		return s.notProcessing(ctx, taskID)
	}
	return nil
}

// GetTask returns a stored task.
func (s *PostgresStorage) GetTask(ctx context.Context, taskID uuid.UUID) (*Task, error) {
	task, err := scanTask(s.db.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM queue_tasks WHERE id = $1`, taskID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", taskID, err)
	}
	return task, nil
}

// DeadLetters returns all dead letter entries, oldest first.
func (s *PostgresStorage) DeadLetters(ctx context.Context) ([]TasksDlq, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, task_id, queue, task_name, payload, priority, error, retry_count, failed_at, created_at
		FROM queue_tasks_dlq ORDER BY failed_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	defer rows.Close()

	var out []TasksDlq
	for rows.Next() {
		var (
			entry      TasksDlq
			priority   int16
			retryCount int16
		)
		if err := rows.Scan(&entry.ID, &entry.TaskID, &entry.Queue, &entry.TaskName, &entry.Payload,
			&priority, &entry.Error, &retryCount, &entry.FailedAt, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dead letter: %w", err)
		}
		entry.Priority = Priority(priority)
		entry.RetryCount = int8(retryCount)
		out = append(out, entry)
	}

	return out, rows.Err()
}

func (s *PostgresStorage) notProcessing(ctx context.Context, taskID uuid.UUID) error {
	var exists bool
	if err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM queue_tasks WHERE id = $1)`, taskID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check task %s: %w", taskID, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return fmt.Errorf("%w: %s", ErrTaskNotProcessing, taskID)
}

func scanTask(row pgx.Row) (*Task, error) {
	var (
		task       Task
		status     string
		priority   int16
		retryCount int16
		maxRetries int16
	)
	err := row.Scan(
		&task.ID, &task.Queue, &task.TaskName, &task.Payload, &status, &priority,
		&retryCount, &maxRetries, &task.ScheduledAt, &task.LockedUntil, &task.LockedBy,
		&task.ProcessedAt, &task.Error, &task.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Status = TaskStatus(status)
	task.Priority = Priority(priority)
	task.RetryCount = int8(retryCount)
	task.MaxRetries = int8(maxRetries)

	return &task, nil
}
