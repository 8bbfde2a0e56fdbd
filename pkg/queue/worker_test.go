package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sesmailer/pkg/queue"
)

// MockWorkerRepository is a mock implementation of WorkerRepository
type MockWorkerRepository struct {
	mock.Mock
}

func (m *MockWorkerRepository) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*queue.Task, error) {
	args := m.Called(ctx, workerID, queues, lockDuration)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*queue.Task), args.Error(1)
}

func (m *MockWorkerRepository) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	args := m.Called(ctx, taskID)
	return args.Error(0)
}

func (m *MockWorkerRepository) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	args := m.Called(ctx, taskID, errorMsg)
	return args.Error(0)
}

func (m *MockWorkerRepository) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	args := m.Called(ctx, taskID)
	return args.Error(0)
}

func (m *MockWorkerRepository) ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error {
	args := m.Called(ctx, taskID, duration)
	return args.Error(0)
}

type testPayload struct {
	Message string `json:"message"`
	Value   int    `json:"value"`
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTask(t *testing.T, name string, payload any, retryCount, maxRetries int8) *queue.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return &queue.Task{
		ID:          uuid.New(),
		Queue:       queue.DefaultQueueName,
		TaskName:    name,
		Payload:     data,
		Status:      queue.TaskStatusProcessing,
		Priority:    queue.PriorityDefault,
		RetryCount:  retryCount,
		MaxRetries:  maxRetries,
		ScheduledAt: time.Now(),
		CreatedAt:   time.Now(),
	}
}

func TestNewWorker(t *testing.T) {
	t.Parallel()

	t.Run("successful creation", func(t *testing.T) {
		t.Parallel()

		worker, err := queue.NewWorker(new(MockWorkerRepository),
			queue.WithQueues("mail", "", "mail", "default"),
			queue.WithPullInterval(time.Second),
			queue.WithLockTimeout(time.Minute),
			queue.WithMaxConcurrentTasks(5),
			queue.WithWorkerLogger(silentLogger()),
		)
		require.NoError(t, err)
		require.NotNil(t, worker)
		assert.NotEqual(t, uuid.Nil, worker.ID())
	})

	t.Run("nil repository error", func(t *testing.T) {
		t.Parallel()

		worker, err := queue.NewWorker(nil)
		assert.ErrorIs(t, err, queue.ErrRepositoryNil)
		assert.Nil(t, worker)
	})
}

func TestWorker_ProcessNext(t *testing.T) {
	t.Parallel()

	t.Run("nothing to claim", func(t *testing.T) {
		t.Parallel()

		repo := new(MockWorkerRepository)
		defer repo.AssertExpectations(t)
		repo.On("ClaimTask", mock.Anything, mock.Anything, []string{"mail"}, time.Minute).
			Return(nil, queue.ErrNoTaskToClaim).Once()

		worker, err := queue.NewWorker(repo, queue.WithQueues("mail"), queue.WithLockTimeout(time.Minute),
			queue.WithWorkerLogger(silentLogger()))
		require.NoError(t, err)

		processed, err := worker.ProcessNext(context.Background())
		require.NoError(t, err)
		assert.False(t, processed)
	})

	t.Run("claim error is returned", func(t *testing.T) {
		t.Parallel()

		repo := new(MockWorkerRepository)
		defer repo.AssertExpectations(t)
		claimErr := errors.New("connection refused")
		repo.On("ClaimTask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, claimErr).Once()

		worker, err := queue.NewWorker(repo, queue.WithWorkerLogger(silentLogger()))
		require.NoError(t, err)

		processed, err := worker.ProcessNext(context.Background())
		assert.ErrorIs(t, err, claimErr)
		assert.False(t, processed)
	})

	t.Run("handler success completes task", func(t *testing.T) {
		t.Parallel()

		task := newTestTask(t, "greet", testPayload{Message: "hi", Value: 7}, 0, 3)

		repo := new(MockWorkerRepository)
		defer repo.AssertExpectations(t)
		repo.On("ClaimTask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(task, nil).Once()
		repo.On("CompleteTask", mock.Anything, task.ID).Return(nil).Once()

		worker, err := queue.NewWorker(repo, queue.WithWorkerLogger(silentLogger()))
		require.NoError(t, err)

		var got testPayload
		worker.RegisterHandlers(queue.NewTaskHandler("greet",
			func(ctx context.Context, job *queue.Job, p testPayload) error {
				got = p
				assert.Equal(t, 1, job.Attempts())
				return nil
			}))

		processed, err := worker.ProcessNext(context.Background())
		require.NoError(t, err)
		assert.True(t, processed)
		assert.Equal(t, testPayload{Message: "hi", Value: 7}, got)
	})

	t.Run("handler delete acknowledges once", func(t *testing.T) {
		t.Parallel()

		task := newTestTask(t, "greet", testPayload{}, 0, 3)

		repo := new(MockWorkerRepository)
		defer repo.AssertExpectations(t)
		repo.On("ClaimTask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(task, nil).Once()
		repo.On("CompleteTask", mock.Anything, task.ID).Return(nil).Once()

		worker, err := queue.NewWorker(repo, queue.WithWorkerLogger(silentLogger()))
		require.NoError(t, err)

		worker.RegisterHandlers(queue.NewTaskHandler("greet",
			func(ctx context.Context, job *queue.Job, _ testPayload) error {
				return job.Delete(ctx)
			}))

		_, err = worker.ProcessNext(context.Background())
		require.NoError(t, err)
	})

	t.Run("handler error fails task", func(t *testing.T) {
		t.Parallel()

		task := newTestTask(t, "greet", testPayload{}, 0, 3)

		repo := new(MockWorkerRepository)
		defer repo.AssertExpectations(t)
		repo.On("ClaimTask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(task, nil).Once()
		repo.On("FailTask", mock.Anything, task.ID, "boom").Return(nil).Once()

		worker, err := queue.NewWorker(repo, queue.WithWorkerLogger(silentLogger()))
		require.NoError(t, err)

		worker.RegisterHandlers(queue.NewTaskHandler("greet",
			func(ctx context.Context, job *queue.Job, _ testPayload) error {
				return errors.New("boom")
			}))

		processed, err := worker.ProcessNext(context.Background())
		require.NoError(t, err)
		assert.True(t, processed)
		repo.AssertNotCalled(t, "MoveToDLQ", mock.Anything, mock.Anything)
	})

	t.Run("last attempt moves task to DLQ", func(t *testing.T) {
		t.Parallel()

		task := newTestTask(t, "greet", testPayload{}, 2, 3)

		repo := new(MockWorkerRepository)
		defer repo.AssertExpectations(t)
		repo.On("ClaimTask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(task, nil).Once()
		repo.On("FailTask", mock.Anything, task.ID, "boom").Return(nil).Once()
		repo.On("MoveToDLQ", mock.Anything, task.ID).Return(nil).Once()

		worker, err := queue.NewWorker(repo, queue.WithWorkerLogger(silentLogger()))
		require.NoError(t, err)

		worker.RegisterHandlers(queue.NewTaskHandler("greet",
			func(ctx context.Context, job *queue.Job, _ testPayload) error {
				assert.Equal(t, 3, job.Attempts())
				return errors.New("boom")
			}))

		_, err = worker.ProcessNext(context.Background())
		require.NoError(t, err)
	})

	t.Run("missing handler goes to DLQ", func(t *testing.T) {
		t.Parallel()

		task := newTestTask(t, "unknown", testPayload{}, 0, 3)

		repo := new(MockWorkerRepository)
		defer repo.AssertExpectations(t)
		repo.On("ClaimTask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(task, nil).Once()
		repo.On("FailTask", mock.Anything, task.ID, mock.AnythingOfType("string")).Return(nil).Once()
		repo.On("MoveToDLQ", mock.Anything, task.ID).Return(nil).Once()

		worker, err := queue.NewWorker(repo, queue.WithWorkerLogger(silentLogger()))
		require.NoError(t, err)
		worker.RegisterHandlers(queue.NewTaskHandler("greet",
			func(ctx context.Context, job *queue.Job, _ testPayload) error { return nil }))

		processed, err := worker.ProcessNext(context.Background())
		assert.ErrorIs(t, err, queue.ErrHandlerNotFound)
		assert.True(t, processed)
	})

	t.Run("panic is recovered as failure", func(t *testing.T) {
		t.Parallel()

		task := newTestTask(t, "greet", testPayload{}, 0, 3)

		repo := new(MockWorkerRepository)
		defer repo.AssertExpectations(t)
		repo.On("ClaimTask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(task, nil).Once()
		repo.On("FailTask", mock.Anything, task.ID, mock.AnythingOfType("string")).Return(nil).Once()

		worker, err := queue.NewWorker(repo, queue.WithWorkerLogger(silentLogger()))
		require.NoError(t, err)
		worker.RegisterHandlers(queue.NewTaskHandler("greet",
			func(ctx context.Context, job *queue.Job, _ testPayload) error { panic("oops") }))

		_, err = worker.ProcessNext(context.Background())
		assert.Error(t, err)
	})

	t.Run("error after delete is not retried", func(t *testing.T) {
		t.Parallel()

		task := newTestTask(t, "greet", testPayload{}, 0, 3)

		repo := new(MockWorkerRepository)
		defer repo.AssertExpectations(t)
		repo.On("ClaimTask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(task, nil).Once()
		repo.On("CompleteTask", mock.Anything, task.ID).Return(nil).Once()

		worker, err := queue.NewWorker(repo, queue.WithWorkerLogger(silentLogger()))
		require.NoError(t, err)
		worker.RegisterHandlers(queue.NewTaskHandler("greet",
			func(ctx context.Context, job *queue.Job, _ testPayload) error {
				require.NoError(t, job.Delete(ctx))
				return errors.New("late failure")
			}))

		_, err = worker.ProcessNext(context.Background())
		require.NoError(t, err)
		repo.AssertNotCalled(t, "FailTask", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestWorker_Lifecycle(t *testing.T) {
	t.Parallel()

	t.Run("start without handlers", func(t *testing.T) {
		t.Parallel()

		worker, err := queue.NewWorker(new(MockWorkerRepository), queue.WithWorkerLogger(silentLogger()))
		require.NoError(t, err)
		assert.ErrorIs(t, worker.Start(context.Background()), queue.ErrNoHandlers)
	})

	t.Run("stop before start", func(t *testing.T) {
		t.Parallel()

		worker, err := queue.NewWorker(new(MockWorkerRepository), queue.WithWorkerLogger(silentLogger()))
		require.NoError(t, err)
		assert.ErrorIs(t, worker.Stop(), queue.ErrWorkerNotStarted)
	})

	t.Run("processes tasks from memory storage", func(t *testing.T) {
		t.Parallel()

		store := queue.NewMemoryStorage()
		t.Cleanup(func() { _ = store.Close() })

		enq, err := queue.NewEnqueuer(store)
		require.NoError(t, err)

		worker, err := queue.NewWorker(store,
			queue.WithPullInterval(10*time.Millisecond),
			queue.WithWorkerLogger(silentLogger()))
		require.NoError(t, err)

		done := make(chan testPayload, 1)
		worker.RegisterHandlers(queue.NewTaskHandler("greet",
			func(ctx context.Context, job *queue.Job, p testPayload) error {
				done <- p
				return nil
			}))

		require.NoError(t, worker.Start(context.Background()))
		assert.ErrorIs(t, worker.Start(context.Background()), queue.ErrWorkerStarted)

		require.NoError(t, enq.Push(context.Background(), "greet", testPayload{Message: "queued"}, ""))

		select {
		case p := <-done:
			assert.Equal(t, "queued", p.Message)
		case <-time.After(2 * time.Second):
			t.Fatal("task was not processed")
		}

		require.NoError(t, worker.Stop())

		assert.Eventually(t, func() bool {
			return len(store.Tasks(queue.TaskStatusCompleted)) == 1
		}, time.Second, 10*time.Millisecond)
	})
}
