package process

import (
	"context"

	"github.com/me/dispatch/pkg/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/me/dispatch/internal/process"

// startSpan opens a span for one lifecycle transition. The global provider
// is a no-op unless the host installs one.
func startSpan(ctx context.Context, op string, job *model.Job) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "process."+op,
		trace.WithAttributes(
			attribute.String("job.id", job.ID),
			attribute.Int("job.seq", job.Seq),
			attribute.Int("process.pid", job.PID),
		),
	)
}

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func pidAttr(pid int) attribute.KeyValue {
	return attribute.Int("process.pid", pid)
}
