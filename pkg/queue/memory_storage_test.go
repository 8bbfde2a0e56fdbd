package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/sesmailer/pkg/queue"
)

func pendingTask(queueName string, priority queue.Priority, scheduledAt time.Time) *queue.Task {
	return &queue.Task{
		ID:          uuid.New(),
		Queue:       queueName,
		TaskName:    "test-task",
		Payload:     []byte(`{"data":"test"}`),
		Status:      queue.TaskStatusPending,
		Priority:    priority,
		MaxRetries:  3,
		ScheduledAt: scheduledAt,
		CreatedAt:   time.Now(),
	}
}

func newMemoryStorage(t *testing.T) *queue.MemoryStorage {
	t.Helper()
	s := queue.NewMemoryStorage()
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMemoryStorage_CreateTask(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := newMemoryStorage(t)

	task := pendingTask(queue.DefaultQueueName, queue.PriorityDefault, time.Now())
	require.NoError(t, storage.CreateTask(ctx, task))
	assert.ErrorIs(t, storage.CreateTask(ctx, task), queue.ErrTaskExists)
	assert.ErrorIs(t, storage.CreateTask(ctx, nil), queue.ErrPayloadNil)

	stored, err := storage.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.TaskName, stored.TaskName)
}

func TestMemoryStorage_ClaimTask(t *testing.T) {
	t.Parallel()

	t.Run("honours queue names and delays", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		storage := newMemoryStorage(t)

		other := pendingTask("other", queue.PriorityDefault, time.Now())
		delayed := pendingTask("mail", queue.PriorityDefault, time.Now().Add(time.Hour))
		require.NoError(t, storage.CreateTask(ctx, other))
		require.NoError(t, storage.CreateTask(ctx, delayed))

		_, err := storage.ClaimTask(ctx, uuid.New(), []string{"mail"}, time.Minute)
		assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)
	})

	t.Run("orders by priority then due time", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		storage := newMemoryStorage(t)
		now := time.Now()

		low := pendingTask("mail", queue.PriorityLow, now.Add(-time.Hour))
		highLate := pendingTask("mail", queue.PriorityHigh, now.Add(-time.Minute))
		highEarly := pendingTask("mail", queue.PriorityHigh, now.Add(-2*time.Minute))
		for _, task := range []*queue.Task{low, highLate, highEarly} {
			require.NoError(t, storage.CreateTask(ctx, task))
		}

		workerID := uuid.New()
		var order []uuid.UUID
		for range 3 {
			claimed, err := storage.ClaimTask(ctx, workerID, []string{"mail"}, time.Minute)
			require.NoError(t, err)
			assert.Equal(t, queue.TaskStatusProcessing, claimed.Status)
			require.NotNil(t, claimed.LockedBy)
			assert.Equal(t, workerID, *claimed.LockedBy)
			order = append(order, claimed.ID)
		}

		assert.Equal(t, []uuid.UUID{highEarly.ID, highLate.ID, low.ID}, order)
	})
}

func TestMemoryStorage_Lifecycle(t *testing.T) {
	t.Parallel()

	t.Run("complete", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		storage := newMemoryStorage(t)
		task := pendingTask("mail", queue.PriorityDefault, time.Now())
		require.NoError(t, storage.CreateTask(ctx, task))

		assert.ErrorIs(t, storage.CompleteTask(ctx, task.ID), queue.ErrTaskNotProcessing)
		assert.ErrorIs(t, storage.CompleteTask(ctx, uuid.New()), queue.ErrTaskNotFound)

		_, err := storage.ClaimTask(ctx, uuid.New(), []string{"mail"}, time.Minute)
		require.NoError(t, err)
		require.NoError(t, storage.ExtendLock(ctx, task.ID, time.Hour))
		require.NoError(t, storage.CompleteTask(ctx, task.ID))

		stored, err := storage.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.TaskStatusCompleted, stored.Status)
		assert.NotNil(t, stored.ProcessedAt)
		assert.Nil(t, stored.LockedBy)
	})

	t.Run("fail reschedules then exhausts", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		storage := newMemoryStorage(t)
		task := pendingTask("mail", queue.PriorityDefault, time.Now())
		task.MaxRetries = 2
		require.NoError(t, storage.CreateTask(ctx, task))

		_, err := storage.ClaimTask(ctx, uuid.New(), []string{"mail"}, time.Minute)
		require.NoError(t, err)
		require.NoError(t, storage.FailTask(ctx, task.ID, "first"))

		stored, err := storage.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, queue.TaskStatusPending, stored.Status)
		assert.Equal(t, int8(1), stored.RetryCount)
		assert.True(t, stored.ScheduledAt.After(time.Now()))
		require.NotNil(t, stored.Error)
		assert.Equal(t, "first", *stored.Error)

		// backoff keeps it out of reach
		_, err = storage.ClaimTask(ctx, uuid.New(), []string{"mail"}, time.Minute)
		assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)
	})

	t.Run("move to DLQ", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		storage := newMemoryStorage(t)
		task := pendingTask("mail", queue.PriorityDefault, time.Now())
		task.MaxRetries = 1
		require.NoError(t, storage.CreateTask(ctx, task))

		_, err := storage.ClaimTask(ctx, uuid.New(), []string{"mail"}, time.Minute)
		require.NoError(t, err)
		require.NoError(t, storage.FailTask(ctx, task.ID, "fatal"))
		assert.Len(t, storage.Tasks(queue.TaskStatusFailed), 1)

		require.NoError(t, storage.MoveToDLQ(ctx, task.ID))

		_, err = storage.GetTask(ctx, task.ID)
		assert.ErrorIs(t, err, queue.ErrTaskNotFound)

		dead := storage.DeadLetters()
		require.Len(t, dead, 1)
		assert.Equal(t, task.ID, dead[0].TaskID)
		assert.Equal(t, "fatal", dead[0].Error)
		assert.Equal(t, int8(1), dead[0].RetryCount)
	})

	t.Run("expired lock returns task to pending", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		storage := newMemoryStorage(t)
		task := pendingTask("mail", queue.PriorityDefault, time.Now())
		require.NoError(t, storage.CreateTask(ctx, task))

		_, err := storage.ClaimTask(ctx, uuid.New(), []string{"mail"}, 10*time.Millisecond)
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			return len(storage.Tasks(queue.TaskStatusPending)) == 1
		}, 3*time.Second, 50*time.Millisecond)
	})
}

func TestMemoryStorage_CompletedRetention(t *testing.T) {
	t.Parallel()

	complete := func(t *testing.T, storage *queue.MemoryStorage) uuid.UUID {
		t.Helper()
		ctx := context.Background()
		task := pendingTask("mail", queue.PriorityDefault, time.Now())
		require.NoError(t, storage.CreateTask(ctx, task))
		_, err := storage.ClaimTask(ctx, uuid.New(), []string{"mail"}, time.Minute)
		require.NoError(t, err)
		require.NoError(t, storage.CompleteTask(ctx, task.ID))
		return task.ID
	}

	t.Run("drops oldest beyond limit", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage(queue.WithCompletedRetention(2))
		t.Cleanup(func() { _ = storage.Close() })

		first := complete(t, storage)
		second := complete(t, storage)
		third := complete(t, storage)

		_, err := storage.GetTask(context.Background(), first)
		assert.ErrorIs(t, err, queue.ErrTaskNotFound)

		kept := storage.Tasks(queue.TaskStatusCompleted)
		require.Len(t, kept, 2)
		assert.Equal(t, second, kept[0].ID)
		assert.Equal(t, third, kept[1].ID)
	})

	t.Run("zero keeps nothing", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage(queue.WithCompletedRetention(0))
		t.Cleanup(func() { _ = storage.Close() })

		id := complete(t, storage)

		_, err := storage.GetTask(context.Background(), id)
		assert.ErrorIs(t, err, queue.ErrTaskNotFound)
		assert.Empty(t, storage.Tasks(queue.TaskStatusCompleted))
	})
}
