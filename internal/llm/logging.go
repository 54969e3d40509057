package llm

import (
	"context"
	"time"

	"ai_mentor_backend/pkg/logger"
	"ai_mentor_backend/pkg/monitoring"
	"ai_mentor_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// LoggingProvider records latency, token usage and failures of every call.
type LoggingProvider struct {
	inner Provider
	name  string
}

// WithLogging wraps a Provider with structured logging, metrics and a trace span.
func WithLogging(p Provider, name string) Provider {
	return &LoggingProvider{inner: p, name: name}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	purpose := PurposeFrom(ctx)
	ctx, span := tracing.StartSpan(ctx, "llm.generate",
		attribute.String("llm.provider", l.name),
		attribute.String("llm.model", l.inner.ModelID()),
		attribute.String("llm.purpose", purpose),
	)

	start := time.Now()
	resp, err := l.inner.Generate(ctx, req)
	elapsed := time.Since(start)

	monitoring.LLMLatency.WithLabelValues(l.name, purpose).Observe(elapsed.Seconds())
	tracing.EndSpan(span, err)

	fields := []zap.Field{
		zap.String("provider", l.name),
		zap.String("model", l.inner.ModelID()),
		zap.String("purpose", purpose),
		zap.Duration("latency", elapsed),
	}
	if err != nil {
		logger.Log.Warn("LLM request failed", append(fields, zap.Error(err))...)
		return nil, err
	}

	logger.Log.Debug("LLM request completed", append(fields,
		zap.Int("inputTokens", resp.Usage.InputTokens),
		zap.Int("outputTokens", resp.Usage.OutputTokens),
		zap.String("stopReason", resp.StopReason),
	)...)
	return resp, nil
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}
