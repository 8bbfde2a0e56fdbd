// Package logger builds *slog.Logger instances from functional options and
// ships the attribute helpers used across the mailer.
//
// New creates a text or JSON handler and wraps it with LogHandlerDecorator,
// which runs any registered ContextExtractor for every handled record.
//
//	log := logger.New(
//	    logger.WithEnvironment(os.Getenv("APP_ENV"), "mailworker"),
//	    logger.WithContextValue("task_id", taskIDKey),
//	)
//	log.InfoContext(ctx, "message sent",
//	    logger.Recipients(to),
//	    logger.Provider("ses"),
//	    logger.Duration(time.Since(start)),
//	)
//
// Config carries LOG_LEVEL, LOG_FORMAT and APP_ENV; WithConfig turns it into
// an Option and rejects unknown levels or formats.
//
// Error and Errors return an empty attribute for nil errors, so
//
//	log.Info("done", logger.Error(err))
//
// needs no nil check.
package logger
