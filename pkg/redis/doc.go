// Package redis connects to the Redis server backing the mail queue.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	store, err := queue.NewRedisStorage(client, queue.WithRedisPrefix("mail"))
//
// Healthcheck wraps a ping for readiness probes. Errors are joined with the
// package sentinels so callers can match them with errors.Is.
package redis
