// Package logger builds *slog.Logger values with a shared shape: JSON or text
// output, a minimum level, static attributes and ContextExtractor hooks that
// copy request-scoped values (such as a request id) into every record.
//
//	log := logger.New(
//		logger.WithEnvironment("production", "mediactl"),
//		logger.WithContextExtractors(requestid.LoggerExtractor),
//	)
//	log.InfoContext(ctx, "attached", logger.MediaID(rec.ID), logger.Path(rec.Filename))
//
// FromConfig does the same from the LOG_LEVEL, LOG_FORMAT and APP_ENV
// variables. Attribute helpers such as Error return an empty attribute for
// nil input, so they can be passed unconditionally.
package logger
