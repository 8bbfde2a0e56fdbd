package queue_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dmitrymomot/sesmailer/pkg/pg"
	"github.com/dmitrymomot/sesmailer/pkg/queue"
)

// storage is what both integration suites exercise.
type storage interface {
	queue.EnqueuerRepository
	queue.WorkerRepository
	GetTask(ctx context.Context, taskID uuid.UUID) (*queue.Task, error)
}

// storageSuite holds the scenarios shared by every persistent backend.
type storageSuite struct {
	suite.Suite
	container testcontainers.Container
	newStore  func(queueName string) storage
}

func (s *storageSuite) TearDownSuite() {
	if s.container != nil {
		if err := s.container.Terminate(context.Background()); err != nil {
			s.T().Logf("failed to terminate container: %v", err)
		}
	}
}

func (s *storageSuite) uniqueQueue() string {
	return "q-" + uuid.NewString()
}

func (s *storageSuite) TestClaimCompleteRoundTrip() {
	ctx := context.Background()
	q := s.uniqueQueue()
	store := s.newStore(q)

	task := pendingTask(q, queue.PriorityDefault, time.Now().Add(-time.Second))
	s.Require().NoError(store.CreateTask(ctx, task))
	s.ErrorIs(store.CreateTask(ctx, task), queue.ErrTaskExists)

	workerID := uuid.New()
	claimed, err := store.ClaimTask(ctx, workerID, []string{q}, time.Minute)
	s.Require().NoError(err)
	s.Equal(task.ID, claimed.ID)
	s.Equal(queue.TaskStatusProcessing, claimed.Status)
	s.JSONEq(string(task.Payload), string(claimed.Payload))

	_, err = store.ClaimTask(ctx, workerID, []string{q}, time.Minute)
	s.ErrorIs(err, queue.ErrNoTaskToClaim)

	s.Require().NoError(store.ExtendLock(ctx, task.ID, time.Hour))
	s.Require().NoError(store.CompleteTask(ctx, task.ID))
	s.Error(store.CompleteTask(ctx, task.ID))
}

func (s *storageSuite) TestDelayedTaskIsNotClaimed() {
	ctx := context.Background()
	q := s.uniqueQueue()
	store := s.newStore(q)

	s.Require().NoError(store.CreateTask(ctx, pendingTask(q, queue.PriorityDefault, time.Now().Add(time.Hour))))

	_, err := store.ClaimTask(ctx, uuid.New(), []string{q}, time.Minute)
	s.ErrorIs(err, queue.ErrNoTaskToClaim)
}

func (s *storageSuite) TestFailRetriesThenDeadLetters() {
	ctx := context.Background()
	q := s.uniqueQueue()
	store := s.newStore(q)

	task := pendingTask(q, queue.PriorityDefault, time.Now().Add(-time.Second))
	task.MaxRetries = 1
	s.Require().NoError(store.CreateTask(ctx, task))

	_, err := store.ClaimTask(ctx, uuid.New(), []string{q}, time.Minute)
	s.Require().NoError(err)
	s.Require().NoError(store.FailTask(ctx, task.ID, "smtp exploded"))

	failed, err := store.GetTask(ctx, task.ID)
	s.Require().NoError(err)
	s.Equal(queue.TaskStatusFailed, failed.Status)
	s.Equal(int8(1), failed.RetryCount)

	s.Require().NoError(store.MoveToDLQ(ctx, task.ID))
	_, err = store.GetTask(ctx, task.ID)
	s.ErrorIs(err, queue.ErrTaskNotFound)
}

func (s *storageSuite) TestExpiredLockIsReclaimed() {
	ctx := context.Background()
	q := s.uniqueQueue()
	store := s.newStore(q)

	task := pendingTask(q, queue.PriorityDefault, time.Now().Add(-time.Second))
	s.Require().NoError(store.CreateTask(ctx, task))

	_, err := store.ClaimTask(ctx, uuid.New(), []string{q}, time.Millisecond)
	s.Require().NoError(err)

	time.Sleep(20 * time.Millisecond)

	reclaimed, err := store.ClaimTask(ctx, uuid.New(), []string{q}, time.Minute)
	s.Require().NoError(err)
	s.Equal(task.ID, reclaimed.ID)
}

type RedisStorageSuite struct {
	storageSuite
}

func TestRedisStorageSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	suite.Run(t, new(RedisStorageSuite))
}

func (s *RedisStorageSuite) SetupSuite() {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	s.Require().NoError(err, "failed to start container")
	s.container = container

	host, err := container.Host(ctx)
	s.Require().NoError(err)
	port, err := container.MappedPort(ctx, "6379")
	s.Require().NoError(err)

	client := goredis.NewClient(&goredis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	s.T().Cleanup(func() { _ = client.Close() })

	s.newStore = func(queueName string) storage {
		store, err := queue.NewRedisStorage(client, queue.WithRedisPrefix("test:"+queueName))
		s.Require().NoError(err)
		return store
	}
}

func (s *RedisStorageSuite) TestDeadLetters() {
	ctx := context.Background()
	q := s.uniqueQueue()
	store := s.newStore(q).(*queue.RedisStorage)

	task := pendingTask(q, queue.PriorityDefault, time.Now().Add(-time.Second))
	s.Require().NoError(store.CreateTask(ctx, task))
	s.Require().NoError(store.MoveToDLQ(ctx, task.ID))

	dead, err := store.DeadLetters(ctx)
	s.Require().NoError(err)
	s.Require().Len(dead, 1)
	s.Equal(task.ID, dead[0].TaskID)
}

func (s *RedisStorageSuite) TestExpiredLockStaysWithItsQueue() {
	ctx := context.Background()
	mail, digest := s.uniqueQueue(), s.uniqueQueue()
	store := s.newStore(mail)

	task := pendingTask(mail, queue.PriorityDefault, time.Now().Add(-time.Second))
	s.Require().NoError(store.CreateTask(ctx, task))

	_, err := store.ClaimTask(ctx, uuid.New(), []string{mail}, time.Millisecond)
	s.Require().NoError(err)
	time.Sleep(20 * time.Millisecond)

	_, err = store.ClaimTask(ctx, uuid.New(), []string{digest}, time.Minute)
	s.ErrorIs(err, queue.ErrNoTaskToClaim, "a worker on another queue leaves the lock alone")

	reclaimed, err := store.ClaimTask(ctx, uuid.New(), []string{digest, mail}, time.Minute)
	s.Require().NoError(err)
	s.Equal(task.ID, reclaimed.ID)
}

type PostgresStorageSuite struct {
	storageSuite
	pool *pgxpool.Pool
}

func TestPostgresStorageSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	suite.Run(t, new(PostgresStorageSuite))
}

func (s *PostgresStorageSuite) SetupSuite() {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_PASSWORD": "secret",
				"POSTGRES_USER":     "mailer",
				"POSTGRES_DB":       "mailer",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	s.Require().NoError(err, "failed to start container")
	s.container = container

	host, err := container.Host(ctx)
	s.Require().NoError(err)
	port, err := container.MappedPort(ctx, "5432")
	s.Require().NoError(err)

	cfg := pg.Config{
		ConnectionString: fmt.Sprintf("postgres://mailer:secret@%s:%s/mailer?sslmode=disable", host, port.Port()),
		MaxOpenConns:     4,
		RetryAttempts:    5,
		RetryInterval:    time.Second,
		MigrationsTable:  "queue_migrations",
	}

	s.pool, err = pg.Connect(ctx, cfg)
	s.Require().NoError(err)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.Require().NoError(pg.Migrate(ctx, s.pool, queue.Migrations, queue.MigrationsDir, cfg, log))
	s.Require().NoError(pg.Healthcheck(s.pool)(ctx))

	store, err := queue.NewPostgresStorage(s.pool)
	s.Require().NoError(err)
	s.newStore = func(string) storage { return store }
}

func (s *PostgresStorageSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	s.storageSuite.TearDownSuite()
}

func (s *PostgresStorageSuite) TestPriorityOrdering() {
	ctx := context.Background()
	q := s.uniqueQueue()
	store := s.newStore(q)

	low := pendingTask(q, queue.PriorityLow, time.Now().Add(-time.Minute))
	high := pendingTask(q, queue.PriorityHigh, time.Now().Add(-time.Second))
	s.Require().NoError(store.CreateTask(ctx, low))
	s.Require().NoError(store.CreateTask(ctx, high))

	first, err := store.ClaimTask(ctx, uuid.New(), []string{q}, time.Minute)
	s.Require().NoError(err)
	s.Equal(high.ID, first.ID)
}

func (s *PostgresStorageSuite) TestDeadLetters() {
	ctx := context.Background()
	q := s.uniqueQueue()
	store := s.newStore(q).(*queue.PostgresStorage)

	task := pendingTask(q, queue.PriorityDefault, time.Now().Add(-time.Second))
	s.Require().NoError(store.CreateTask(ctx, task))
	s.Require().NoError(store.MoveToDLQ(ctx, task.ID))

	dead, err := store.DeadLetters(ctx)
	s.Require().NoError(err)

	var found bool
	for _, entry := range dead {
		if entry.TaskID == task.ID {
			found = true
		}
	}
	s.True(found)
}
