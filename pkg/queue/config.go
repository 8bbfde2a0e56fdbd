package queue

import "time"

// Config holds the configuration for the mail queue worker and storage
type Config struct {
	Driver             string        `env:"QUEUE_DRIVER" envDefault:"memory"` // memory, redis or postgres
	Queues             []string      `env:"QUEUE_NAMES" envSeparator:"," envDefault:"mail,default"`
	PollInterval       time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"5s"`
	LockTimeout        time.Duration `env:"QUEUE_LOCK_TIMEOUT" envDefault:"5m"`
	ShutdownTimeout    time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	MaxConcurrentTasks int           `env:"QUEUE_MAX_CONCURRENT_TASKS" envDefault:"10"`
	MaxRetries         int8          `env:"QUEUE_MAX_RETRIES" envDefault:"3"`
	RedisPrefix        string        `env:"QUEUE_REDIS_PREFIX" envDefault:"sesmailer:queue"`
	MemoryRetention    int           `env:"QUEUE_MEMORY_RETENTION" envDefault:"1000"` // completed tasks kept by the memory driver
}

// WorkerOptions converts the config into worker options.
func (c Config) WorkerOptions() []WorkerOption {
	opts := []WorkerOption{
		WithPullInterval(c.PollInterval),
		WithLockTimeout(c.LockTimeout),
		WithMaxConcurrentTasks(c.MaxConcurrentTasks),
	}
	if len(c.Queues) > 0 {
		opts = append(opts, WithQueues(c.Queues...))
	}
	return opts
}
