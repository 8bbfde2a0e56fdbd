// Package queue provides a storage-agnostic job queue used to defer mail
// delivery to background workers.
//
// The package is organised around three parts:
//
//   - Enqueuer: persists named tasks with a JSON payload, optionally delayed
//   - Worker: claims due tasks and dispatches them to a Handler by task name
//   - Job: the claimed task as seen by a handler; Delete acknowledges it
//
// Components talk to persistence only through EnqueuerRepository and
// WorkerRepository. MemoryStorage, RedisStorage and PostgresStorage
// implement both.
//
// # Usage
//
//	store := queue.NewMemoryStorage()
//	defer store.Close()
//
//	enq, _ := queue.NewEnqueuer(store, queue.WithDefaultQueue("mail"))
//	_ = enq.Push(ctx, "welcome", WelcomePayload{UserID: id}, "")
//
//	worker, _ := queue.NewWorker(store, queue.WithQueues("mail"))
//	worker.RegisterHandlers(queue.NewTaskHandler("welcome",
//	    func(ctx context.Context, job *queue.Job, p WelcomePayload) error {
//	        // work...
//	        return job.Delete(ctx)
//	    }))
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(worker.Run(ctx))
//
// # Retries
//
// A handler error records the failure and reschedules the task with a
// linear backoff. Once RetryCount reaches MaxRetries the task is moved to
// the dead letter queue. Tasks without a registered handler go there
// directly. A handler returning nil gets its task completed even if it did
// not call Job.Delete.
package queue
