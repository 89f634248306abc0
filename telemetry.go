package streamobject

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/streamobject/provider"
)

// TelemetryConfig mirrors the experimental_telemetry option bag.
type TelemetryConfig struct {
	Enabled       bool
	RecordInputs  bool
	RecordOutputs bool
	FunctionID    string
	Metadata      map[string]string
	Tracer        trace.Tracer
}

// telemetryRecorder wraps the OpenTelemetry tracer. A nil *telemetryRecorder (or one built with
// Enabled=false) makes every method a no-op, the same "guarded call"
// pattern the ambient logger/metrics facades use throughout this engine.
type telemetryRecorder struct {
	cfg    TelemetryConfig
	tracer trace.Tracer
}

func newTelemetryRecorder(cfg TelemetryConfig) *telemetryRecorder {
	if !cfg.Enabled {
		return nil
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/xraph/streamobject")
	}
	return &telemetryRecorder{cfg: cfg, tracer: tracer}
}

type callAttrs struct {
	executionID   string
	provider      string
	model         string
	prompt        string
	promptFormat  provider.InputFormat
	schema        map[string]any
	schemaName    string
	mode          provider.ModeKind
	temperature   *float64
	topP          *float64
	topK          *int
	freqPenalty   *float64
	presPenalty   *float64
	stopSequences []string
	maxTokens     *int
}

// startCallSpan opens the outer "ai.streamObject" span for the whole call.
func (t *telemetryRecorder) startCallSpan(ctx context.Context, attrs callAttrs) (context.Context, trace.Span) {
	if t == nil {
		return ctx, nil
	}

	kvs := []attribute.KeyValue{
		attribute.String("operation.name", "ai.streamObject"),
		attribute.String("resource.name", attrs.model),
		attribute.String("ai.executionId", attrs.executionID),
		attribute.String("gen_ai.system", attrs.provider),
		attribute.String("gen_ai.request.model", attrs.model),
		attribute.String("ai.schema.name", attrs.schemaName),
	}
	kvs = append(kvs, settingsAttrs(attrs)...)
	if t.cfg.FunctionID != "" {
		kvs = append(kvs, attribute.String("ai.functionId", t.cfg.FunctionID))
	}
	for k, v := range t.cfg.Metadata {
		kvs = append(kvs, attribute.String("ai.telemetry.metadata."+k, v))
	}

	if t.cfg.RecordInputs {
		kvs = append(kvs,
			attribute.String("ai.prompt", attrs.prompt),
			attribute.String("ai.prompt.format", string(attrs.promptFormat)),
		)
		if attrs.schema != nil {
			if schemaJSON, err := json.Marshal(attrs.schema); err == nil {
				kvs = append(kvs, attribute.String("ai.schema", string(schemaJSON)))
			}
		}
	}

	ctx, span := t.tracer.Start(ctx, "ai.streamObject", trace.WithAttributes(kvs...))
	return ctx, span
}

// startDoStreamSpan opens the inner "ai.streamObject.doStream" span
// wrapping the provider call itself.
func (t *telemetryRecorder) startDoStreamSpan(ctx context.Context, mode provider.ModeKind) (context.Context, trace.Span) {
	if t == nil {
		return ctx, nil
	}
	ctx, span := t.tracer.Start(ctx, "ai.streamObject.doStream", trace.WithAttributes(
		attribute.String("operation.name", "ai.streamObject.doStream"),
		attribute.String("ai.mode", string(mode)),
	))
	return ctx, span
}

func settingsAttrs(a callAttrs) []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, 8)
	if a.temperature != nil {
		kvs = append(kvs, attribute.Float64("gen_ai.request.temperature", *a.temperature))
	}
	if a.topP != nil {
		kvs = append(kvs, attribute.Float64("gen_ai.request.top_p", *a.topP))
	}
	if a.topK != nil {
		kvs = append(kvs, attribute.Int("gen_ai.request.top_k", *a.topK))
	}
	if a.freqPenalty != nil {
		kvs = append(kvs, attribute.Float64("gen_ai.request.frequency_penalty", *a.freqPenalty))
	}
	if a.presPenalty != nil {
		kvs = append(kvs, attribute.Float64("gen_ai.request.presence_penalty", *a.presPenalty))
	}
	if len(a.stopSequences) > 0 {
		kvs = append(kvs, attribute.StringSlice("gen_ai.request.stop_sequences", a.stopSequences))
	}
	if a.maxTokens != nil {
		kvs = append(kvs, attribute.Int("gen_ai.request.max_tokens", *a.maxTokens))
	}
	return kvs
}

// recordFirstChunk marks the "ai.stream.firstChunk" event on the first
// non-error fragment.
func (t *telemetryRecorder) recordFirstChunk(span trace.Span, msToFirstChunk int64) {
	if t == nil || span == nil {
		return
	}
	span.AddEvent("ai.stream.firstChunk")
	span.SetAttributes(attribute.Int64("ai.response.msToFirstChunk", msToFirstChunk))
}

type finishAttrs struct {
	finishReason            provider.FinishReason
	usage                   provider.Usage
	object                  any
	msToFinish              int64
	avgCompletionTokensPerS float64
}

// recordFinish marks the "ai.stream.finish" event and sets the terminal
// span attributes: response finish reason, usage, and (when RecordOutputs
// is set) the resolved object.
func (t *telemetryRecorder) recordFinish(span trace.Span, f finishAttrs) {
	if t == nil || span == nil {
		return
	}
	span.AddEvent("ai.stream.finish")
	span.SetAttributes(
		attribute.String("ai.response.finishReason", string(f.finishReason)),
		attribute.StringSlice("gen_ai.response.finish_reasons", []string{string(f.finishReason)}),
		attribute.Int("gen_ai.usage.input_tokens", f.usage.PromptTokens),
		attribute.Int("gen_ai.usage.output_tokens", f.usage.CompletionTokens),
		attribute.Int("ai.usage.promptTokens", f.usage.PromptTokens),
		attribute.Int("ai.usage.completionTokens", f.usage.CompletionTokens),
		attribute.Int64("ai.response.msToFinish", f.msToFinish),
		attribute.Float64("ai.response.avgCompletionTokensPerSecond", f.avgCompletionTokensPerS),
	)
	if t.cfg.RecordOutputs && f.object != nil {
		if objJSON, err := json.Marshal(f.object); err == nil {
			span.SetAttributes(attribute.String("ai.response.object", string(objJSON)))
		}
	}
	span.SetStatus(codes.Ok, "")
}

// recordError records a non-fatal provider error on the span without
// ending it — ProviderError fragments do not, by themselves, fail the call.
func (t *telemetryRecorder) recordError(span trace.Span, err error) {
	if t == nil || span == nil || err == nil {
		return
	}
	span.RecordError(err)
}

// recordFailure records a hard failure and sets the span's error status.
func (t *telemetryRecorder) recordFailure(span trace.Span, err error) {
	if t == nil || span == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func endSpan(span trace.Span) {
	if span == nil {
		return
	}
	span.End()
}
