// Command mailworker runs the queue worker that sends queued email messages.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/sesmailer/pkg/broadcast"
	"github.com/dmitrymomot/sesmailer/pkg/config"
	"github.com/dmitrymomot/sesmailer/pkg/container"
	"github.com/dmitrymomot/sesmailer/pkg/email"
	"github.com/dmitrymomot/sesmailer/pkg/httpserver"
	"github.com/dmitrymomot/sesmailer/pkg/logger"
	"github.com/dmitrymomot/sesmailer/pkg/pg"
	"github.com/dmitrymomot/sesmailer/pkg/queue"
	"github.com/dmitrymomot/sesmailer/pkg/redis"
	"github.com/dmitrymomot/sesmailer/pkg/sesmailer"
)

const serviceName = "mailworker"

// Queue storage drivers.
const (
	driverMemory   = "memory"
	driverRedis    = "redis"
	driverPostgres = "postgres"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML file of environment keys (optional)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		slog.Error("mailworker stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

// storage is the queue backend the worker and enqueuer share.
type storage interface {
	queue.WorkerRepository
	queue.EnqueuerRepository
}

func run(ctx context.Context, configPath string) error {
	var (
		logCfg    logger.Config
		mailCfg   email.Config
		queueCfg  queue.Config
		healthCfg httpserver.Config
	)
	if err := loadConfig(configPath, &logCfg); err != nil {
		return err
	}
	if err := loadConfig(configPath, &mailCfg); err != nil {
		return err
	}
	if err := loadConfig(configPath, &queueCfg); err != nil {
		return err
	}
	if err := loadConfig(configPath, &healthCfg); err != nil {
		return err
	}

	logOpt, err := logger.WithConfig(logCfg, serviceName)
	if err != nil {
		return err
	}
	log := logger.New(logOpt)
	logger.SetAsDefault(log)

	store, checks, closeStore, err := openStorage(ctx, configPath, queueCfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	enqueuer, err := queue.NewEnqueuer(store,
		queue.WithDefaultQueue(mailCfg.Queue),
		queue.WithDefaultMaxRetries(queueCfg.MaxRetries),
	)
	if err != nil {
		return err
	}

	sender, err := sesmailer.NewSender(ctx, mailCfg)
	if err != nil {
		return err
	}

	builders := email.NewBuilders()
	registerBuilders(builders)

	events := broadcast.NewMemoryBroadcaster[email.Event](64)
	defer func() { _ = events.Close() }()

	c := container.New()
	c.Instance(sesmailer.LoggerService, log)
	c.Instance(sesmailer.SenderService, sender)
	c.Instance(sesmailer.RendererService, newViews())
	c.Instance(sesmailer.EnqueuerService, enqueuer)
	c.Instance(sesmailer.BuildersService, builders)
	c.Instance(sesmailer.NotifierService, email.NewBroadcastNotifier(events))
	sesmailer.Register(c, mailCfg)

	mailer, err := sesmailer.Mailer(c)
	if err != nil {
		return err
	}

	worker, err := queue.NewWorker(store, append(queueCfg.WorkerOptions(), queue.WithWorkerLogger(log))...)
	if err != nil {
		return err
	}
	worker.RegisterHandlers(mailer.QueueHandler())

	archive, err := sesmailer.NewArchive(ctx, mailCfg)
	if err != nil {
		return err
	}

	log.InfoContext(ctx, "starting mailworker",
		slog.String("mail_driver", mailCfg.Driver),
		slog.String("queue_driver", queueCfg.Driver),
		slog.Any("queues", queueCfg.Queues),
		slog.Bool("pretend", mailer.Pretending()),
		slog.Bool("archive", archive != nil),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		email.Listen(gctx, events, email.EventSent, func(ctx context.Context, e email.Event) {
			log.DebugContext(ctx, "message sent",
				logger.MessageID(e.Response.MessageID),
				logger.Recipients(e.Message.Payload().Recipients()),
			)
			if archive == nil {
				return
			}
			if err := archive.Fire(ctx, e); err != nil {
				log.WarnContext(ctx, "failed to archive message", logger.Error(err))
			}
		})
		return nil
	})
	g.Go(worker.Run(gctx))
	if healthCfg.Enabled() {
		probes := httpserver.NewFromConfig(healthCfg,
			httpserver.WithLogger(log),
			httpserver.WithStartHook(func(addr string, l *slog.Logger) {
				l.Info("probe server listening", slog.String("addr", addr))
			}),
		)
		g.Go(func() error { return probes.Run(gctx, httpserver.NewProbeRouter(log, checks...)) })
	}

	return waitWithTimeout(gctx, g, queueCfg.ShutdownTimeout, log)
}

// waitWithTimeout waits for g, giving it timeout once ctx is done.
func waitWithTimeout(ctx context.Context, g *errgroup.Group, timeout time.Duration, log *slog.Logger) error {
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", logger.Duration(timeout))

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-timer.C:
		return fmt.Errorf("shutdown timed out after %s", timeout)
	}
}

func loadConfig[T any](path string, v *T) error {
	if path != "" {
		return config.LoadFile(path, v)
	}
	return config.Load(v)
}

func openStorage(ctx context.Context, configPath string, cfg queue.Config, log *slog.Logger) (storage, []httpserver.Check, func(), error) {
	switch cfg.Driver {
	case driverMemory, "":
		s := queue.NewMemoryStorage(queue.WithCompletedRetention(cfg.MemoryRetention))
		return s, nil, func() { _ = s.Close() }, nil

	case driverRedis:
		var redisCfg redis.Config
		if err := loadConfig(configPath, &redisCfg); err != nil {
			return nil, nil, nil, err
		}
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return nil, nil, nil, err
		}
		s, err := queue.NewRedisStorage(client, queue.WithRedisPrefix(cfg.RedisPrefix))
		if err != nil {
			_ = client.Close()
			return nil, nil, nil, err
		}
		checks := []httpserver.Check{{Name: driverRedis, Fn: redis.Healthcheck(client)}}
		return s, checks, func() { _ = client.Close() }, nil

	case driverPostgres:
		var pgCfg pg.Config
		if err := loadConfig(configPath, &pgCfg); err != nil {
			return nil, nil, nil, err
		}
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := pg.Migrate(ctx, pool, queue.Migrations, queue.MigrationsDir, pgCfg, log); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		s, err := queue.NewPostgresStorage(pool)
		if err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		checks := []httpserver.Check{{Name: driverPostgres, Fn: pg.Healthcheck(pool)}}
		return s, checks, pool.Close, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown queue driver %q", cfg.Driver)
	}
}
