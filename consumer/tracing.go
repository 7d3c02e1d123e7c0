package consumer

import (
	"context"

	opentracing "github.com/opentracing/opentracing-go"
)

func span(ctx context.Context, tracer opentracing.Tracer, op string) (opentracing.Span, context.Context) {
	return opentracing.StartSpanFromContextWithTracer(ctx, tracer, "consumer: "+op)
}
