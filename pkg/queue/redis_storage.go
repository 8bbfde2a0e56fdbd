package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces all keys written by RedisStorage.
const DefaultRedisPrefix = "sesmailer:queue"

// Task documents live in one hash, due times in a sorted set per queue and
// lock deadlines in a shared processing set. All keys share a hash tag so
// the scripts stay valid on Redis Cluster.
var (
	createTaskScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 0 then
  return 0
end
redis.call('ZADD', KEYS[2], ARGV[3], ARGV[1])
return 1
`)

	claimTaskScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local lock_until = tonumber(ARGV[2])
local pending_prefix = ARGV[3]

local requested = {}
for i = 3, #KEYS do
  requested[KEYS[i]] = true
end

local expired = redis.call('ZRANGEBYSCORE', KEYS[2], '-inf', now)
for _, id in ipairs(expired) do
  local raw = redis.call('HGET', KEYS[1], id)
  if not raw then
    redis.call('ZREM', KEYS[2], id)
  else
    local pending = pending_prefix .. cjson.decode(raw).queue
    if requested[pending] then
      redis.call('ZREM', KEYS[2], id)
      redis.call('ZADD', pending, now, id)
    end
  end
end

local best_id, best_score, best_key
for i = 3, #KEYS do
  local item = redis.call('ZRANGEBYSCORE', KEYS[i], '-inf', now, 'WITHSCORES', 'LIMIT', 0, 1)
  if #item > 0 then
    local score = tonumber(item[2])
    if best_score == nil or score < best_score then
      best_id, best_score, best_key = item[1], score, KEYS[i]
    end
  end
end

if not best_id then
  return false
end

redis.call('ZREM', best_key, best_id)
redis.call('ZADD', KEYS[2], lock_until, best_id)
return best_id
`)

	completeTaskScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
  return -1
end
if redis.call('ZREM', KEYS[2], ARGV[1]) == 0 then
  return 0
end
redis.call('HDEL', KEYS[1], ARGV[1])
return 1
`)
)

// RedisStorageOption configures a RedisStorage.
type RedisStorageOption func(*RedisStorage)

// WithRedisPrefix overrides the key prefix.
func WithRedisPrefix(prefix string) RedisStorageOption {
	return func(s *RedisStorage) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// RedisStorage implements the queue repositories on Redis.
//
// Tasks are claimed by due time across the requested queues; priority is
// stored but not used for ordering. Completed tasks are removed.
type RedisStorage struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStorage creates a Redis-backed storage.
func NewRedisStorage(client redis.UniversalClient, opts ...RedisStorageOption) (*RedisStorage, error) {
	if client == nil {
		return nil, ErrRepositoryNil
	}

	s := &RedisStorage{
		client: client,
		prefix: DefaultRedisPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *RedisStorage) key(parts ...string) string {
	return "{" + s.prefix + "}:" + strings.Join(parts, ":")
}

func (s *RedisStorage) tasksKey() string      { return s.key("tasks") }
func (s *RedisStorage) processingKey() string { return s.key("processing") }
func (s *RedisStorage) dlqKey() string        { return s.key("dlq") }
func (s *RedisStorage) pendingKey(queue string) string {
	return s.key("pending", queue)
}

// CreateTask implements EnqueuerRepository
func (s *RedisStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return ErrPayloadNil
	}

	data, err := json.Marshal(task)
	if err != nil {
		return errors.Join(ErrPayloadMarshal, err)
	}

	created, err := createTaskScript.Run(ctx, s.client,
		[]string{s.tasksKey(), s.pendingKey(task.Queue)},
		task.ID.String(), data, task.ScheduledAt.UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to store task %s: %w", task.ID, err)
	}
	if created == 0 {
		return fmt.Errorf("%w: %s", ErrTaskExists, task.ID)
	}

	return nil
}

// ClaimTask implements WorkerRepository. Expired locks of tasks in the
// requested queues are released back to those queues before the earliest
// due task is claimed; the script only touches keys passed in KEYS, so
// expired tasks of other queues wait for a worker that polls them.
func (s *RedisStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	if len(queues) == 0 {
		return nil, ErrNoTaskToClaim
	}

	now := s.now()
	lockUntil := now.Add(lockDuration)

	keys := make([]string, 0, len(queues)+2)
	keys = append(keys, s.tasksKey(), s.processingKey())
	for _, q := range queues {
		keys = append(keys, s.pendingKey(q))
	}

	id, err := claimTaskScript.Run(ctx, s.client, keys,
		now.UnixMilli(), lockUntil.UnixMilli(), s.key("pending")+":",
	).Text()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoTaskToClaim
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}

	task, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	task.Status = TaskStatusProcessing
	task.LockedUntil = &lockUntil
	task.LockedBy = &workerID

	if err := s.save(ctx, s.client, task); err != nil {
		return nil, err
	}

	return task, nil
}

// CompleteTask implements WorkerRepository
func (s *RedisStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	res, err := completeTaskScript.Run(ctx, s.client,
		[]string{s.tasksKey(), s.processingKey()}, taskID.String(),
	).Int()
	if err != nil {
		return fmt.Errorf("failed to complete task %s: %w", taskID, err)
	}

	switch res {
	case -1:
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	case 0:
		return fmt.Errorf("%w: %s", ErrTaskNotProcessing, taskID)
	}
	return nil
}

// FailTask implements WorkerRepository
func (s *RedisStorage) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	task, err := s.loadProcessing(ctx, taskID)
	if err != nil {
		return err
	}

	task.RetryCount++
	task.Error = &errorMsg
	task.LockedUntil = nil
	task.LockedBy = nil

	exhausted := task.RetryCount >= task.MaxRetries
	if exhausted {
		task.Status = TaskStatusFailed
	} else {
		task.Status = TaskStatusPending
		task.ScheduledAt = s.now().Add(retryBackoff(task.RetryCount))
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if err := s.save(ctx, pipe, task); err != nil {
			return err
		}
		pipe.ZRem(ctx, s.processingKey(), task.ID.String())
		if !exhausted {
			pipe.ZAdd(ctx, s.pendingKey(task.Queue), redis.Z{
				Score:  float64(task.ScheduledAt.UnixMilli()),
				Member: task.ID.String(),
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to fail task %s: %w", taskID, err)
	}

	return nil
}

// MoveToDLQ implements WorkerRepository
func (s *RedisStorage) MoveToDLQ(ctx context.Context, taskID uuid.UUID) error {
	task, err := s.load(ctx, taskID.String())
	if err != nil {
		return err
	}

	entry := newDLQEntry(task, s.now())
	data, err := json.Marshal(entry)
	if err != nil {
		return errors.Join(ErrPayloadMarshal, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.dlqKey(), entry.ID.String(), data)
		pipe.HDel(ctx, s.tasksKey(), task.ID.String())
		pipe.ZRem(ctx, s.processingKey(), task.ID.String())
		pipe.ZRem(ctx, s.pendingKey(task.Queue), task.ID.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to move task %s to DLQ: %w", taskID, err)
	}

	return nil
}

// ExtendLock implements WorkerRepository. The lock deadline lives in the
// processing set; the stored document is not rewritten.
func (s *RedisStorage) ExtendLock(ctx context.Context, taskID uuid.UUID, duration time.Duration) error {
	if _, err := s.loadProcessing(ctx, taskID); err != nil {
		return err
	}

	lockUntil := s.now().Add(duration)
	err := s.client.ZAdd(ctx, s.processingKey(), redis.Z{
		Score:  float64(lockUntil.UnixMilli()),
		Member: taskID.String(),
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to extend lock for task %s: %w", taskID, err)
	}

	return nil
}

// GetTask returns a stored task.
func (s *RedisStorage) GetTask(ctx context.Context, taskID uuid.UUID) (*Task, error) {
	return s.load(ctx, taskID.String())
}

// DeadLetters returns all dead letter entries.
func (s *RedisStorage) DeadLetters(ctx context.Context) ([]TasksDlq, error) {
	values, err := s.client.HVals(ctx, s.dlqKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}

	out := make([]TasksDlq, 0, len(values))
	for _, v := range values {
		var entry TasksDlq
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			return nil, errors.Join(ErrPayloadUnmarshal, err)
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *RedisStorage) load(ctx context.Context, id string) (*Task, error) {
	raw, err := s.client.HGet(ctx, s.tasksKey(), id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", id, err)
	}

	var task Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, errors.Join(ErrPayloadUnmarshal, err)
	}
	return &task, nil
}

func (s *RedisStorage) loadProcessing(ctx context.Context, taskID uuid.UUID) (*Task, error) {
	task, err := s.load(ctx, taskID.String())
	if err != nil {
		return nil, err
	}

	err = s.client.ZScore(ctx, s.processingKey(), taskID.String()).Err()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotProcessing, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check lock of task %s: %w", taskID, err)
	}

	return task, nil
}

func (s *RedisStorage) save(ctx context.Context, c redis.Cmdable, task *Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return errors.Join(ErrPayloadMarshal, err)
	}
	if err := c.HSet(ctx, s.tasksKey(), task.ID.String(), data).Err(); err != nil {
		return fmt.Errorf("failed to save task %s: %w", task.ID, err)
	}
	return nil
}
