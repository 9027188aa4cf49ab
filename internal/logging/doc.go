// Package logging provides structured logging with OpenTelemetry integration.
//
// The package wraps Zap with:
//   - a Trace level (-2, below Debug) for per-record build detail
//   - stderr and OpenTelemetry outputs, so stdout stays free for command output
//   - automatic context fields (trace_id, build.id, conversation.id, request.id)
//   - field-name and pattern redaction in the encoder
//   - per-level sampling (errors never sampled)
//
// # Usage
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithBuildID(ctx, buildID)
//	logger.Info(ctx, "index built", zap.Int("conversations", n))
//
// # Configuration
//
// Settings come from the "logging" section of the chatindex config file and
// CHATINDEX_LOGGING_* environment variables. The CLI --log-level flag wins
// over both.
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
//	tl.AssertField(t, "test message", "key", "value")
package logging
