package logging

import (
	"context"
	"regexp"
	"strconv"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	buildKey ctxKey = iota
	conversationKey
	requestKey
)

// fieldNames are the log keys for each context value, in output order.
var fieldNames = []struct {
	key  ctxKey
	name string
}{
	{buildKey, "build.id"},
	{conversationKey, "conversation.id"},
	{requestKey, "request.id"},
}

// validID bounds ids to 128 printable, delimiter-free characters so a
// hostile export or request header cannot forge log lines.
var validID = regexp.MustCompile(`^[a-zA-Z0-9_.:-]{1,128}$`)

// ContextFields returns the span and id fields carried by ctx.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()))
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}
	for _, f := range fieldNames {
		if v, _ := ctx.Value(f.key).(string); v != "" {
			fields = append(fields, zap.String(f.name, v))
		}
	}
	return fields
}

// WithBuildID tags logs with the index build id. Build ids are generated
// internally, so an invalid one is a programming error and panics.
func WithBuildID(ctx context.Context, id string) context.Context {
	if !validID.MatchString(id) {
		panic("logging: invalid build id " + strconv.Quote(id))
	}
	return context.WithValue(ctx, buildKey, id)
}

func BuildIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(buildKey).(string)
	return id
}

// WithConversationID tags logs with a conversation id from the export.
// Ids that would not log cleanly are skipped.
func WithConversationID(ctx context.Context, id string) context.Context {
	if !validID.MatchString(id) {
		return ctx
	}
	return context.WithValue(ctx, conversationKey, id)
}

func ConversationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(conversationKey).(string)
	return id
}

// WithRequestID tags logs with a client-supplied request id, skipping ids
// that would not log cleanly.
func WithRequestID(ctx context.Context, id string) context.Context {
	if !validID.MatchString(id) {
		return ctx
	}
	return context.WithValue(ctx, requestKey, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestKey).(string)
	return id
}
