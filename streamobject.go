// Package streamobject drives a language-model provider's fragment stream
// into a validated structured value, exposing the in-flight decode as four
// independently-consumable channels alongside terminal awaitables for the
// finished object, usage, finish reason, and provider metadata.
package streamobject

import (
	"context"
	"time"

	"github.com/google/uuid"
	logger "github.com/xraph/go-utils/log"
	"github.com/xraph/go-utils/metrics"

	"github.com/xraph/streamobject/internal/messages"
	"github.com/xraph/streamobject/internal/prompt"
	"github.com/xraph/streamobject/provider"
)

// Call is a fluent builder for one streamed structured-output request,
// mirroring the With*/Start shape the rest of this engine's sibling
// builders use.
type Call struct {
	pv      provider.Provider
	logger  logger.Logger
	metrics metrics.Metrics

	shape             Shape
	modePref          ModePreference
	schema            map[string]any
	schemaName        string
	schemaDescription string
	validate          ValidateFunc

	prompt       string
	vars         map[string]any
	systemPrompt string
	history      []provider.Message

	temperature      *float64
	topP             *float64
	topK             *int
	frequencyPenalty *float64
	presencePenalty  *float64
	maxTokens        *int
	stopSequences    []string
	seed             *int
	headers          map[string]string
	providerMetadata map[string]any

	telemetry       TelemetryConfig
	thinkingMarkers ThinkingMarkers
	now             clock
	generateID      func() string

	onFinish func(FinishEvent)
}

// NewCall starts a builder against the given provider.
func NewCall(pv provider.Provider, log logger.Logger, m metrics.Metrics) *Call {
	return &Call{
		pv:       pv,
		logger:   log,
		metrics:  m,
		shape:    ShapeObject,
		modePref: ModeAuto,
		vars:     make(map[string]any),
		now:      func() int64 { return time.Now().UnixMilli() },
		generateID: func() string { return uuid.NewString() },
	}
}

// WithShape sets the caller-facing output contract.
func (c *Call) WithShape(shape Shape) *Call {
	c.shape = shape

	return c
}

// WithMode sets the provider-facing decoding mode preference.
func (c *Call) WithMode(mode ModePreference) *Call {
	c.modePref = mode

	return c
}

// WithSchema sets the JSON Schema the output must satisfy.
func (c *Call) WithSchema(schema map[string]any) *Call {
	c.schema = schema

	return c
}

// WithSchemaName names the schema for tool mode and telemetry attributes.
func (c *Call) WithSchemaName(name string) *Call {
	c.schemaName = name

	return c
}

// WithSchemaDescription describes the schema for tool mode and telemetry attributes.
func (c *Call) WithSchemaDescription(description string) *Call {
	c.schemaDescription = description

	return c
}

// WithValidate sets the validation function applied at finalize time.
func (c *Call) WithValidate(fn ValidateFunc) *Call {
	c.validate = fn

	return c
}

// WithPrompt sets the user prompt template.
func (c *Call) WithPrompt(prompt string) *Call {
	c.prompt = prompt

	return c
}

// WithVar sets a single prompt template variable.
func (c *Call) WithVar(key string, value any) *Call {
	c.vars[key] = value

	return c
}

// WithVars sets multiple prompt template variables.
func (c *Call) WithVars(vars map[string]any) *Call {
	for k, v := range vars {
		c.vars[k] = v
	}

	return c
}

// WithSystemPrompt sets the caller-supplied system prompt.
func (c *Call) WithSystemPrompt(system string) *Call {
	c.systemPrompt = system

	return c
}

// WithMessages sets conversation history placed ahead of the rendered user prompt.
func (c *Call) WithMessages(history []provider.Message) *Call {
	c.history = history

	return c
}

// WithTemperature sets the sampling temperature.
func (c *Call) WithTemperature(v float64) *Call {
	c.temperature = &v

	return c
}

// WithTopP sets nucleus sampling probability mass.
func (c *Call) WithTopP(v float64) *Call {
	c.topP = &v

	return c
}

// WithTopK sets the top-k sampling cutoff.
func (c *Call) WithTopK(v int) *Call {
	c.topK = &v

	return c
}

// WithFrequencyPenalty sets the frequency penalty.
func (c *Call) WithFrequencyPenalty(v float64) *Call {
	c.frequencyPenalty = &v

	return c
}

// WithPresencePenalty sets the presence penalty.
func (c *Call) WithPresencePenalty(v float64) *Call {
	c.presencePenalty = &v

	return c
}

// WithMaxTokens caps the number of completion tokens.
func (c *Call) WithMaxTokens(v int) *Call {
	c.maxTokens = &v

	return c
}

// WithStopSequences sets the provider's stop sequences.
func (c *Call) WithStopSequences(seqs ...string) *Call {
	c.stopSequences = seqs

	return c
}

// WithSeed sets the provider's sampling seed.
func (c *Call) WithSeed(v int) *Call {
	c.seed = &v

	return c
}

// WithHeaders sets transport-level headers passed through to the provider.
func (c *Call) WithHeaders(h map[string]string) *Call {
	c.headers = h

	return c
}

// WithProviderMetadata attaches opaque provider-specific call metadata.
func (c *Call) WithProviderMetadata(m map[string]any) *Call {
	c.providerMetadata = m

	return c
}

// WithTelemetry enables and configures the span tree this call emits.
func (c *Call) WithTelemetry(cfg TelemetryConfig) *Call {
	c.telemetry = cfg

	return c
}

// WithThinkingMarkers enables detection of marker-delimited reasoning blocks
// inline within the provider's text-delta stream. Text inside a recognized
// block is surfaced on FullStream as a reasoning event instead of being fed
// to the JSON buffer. Unconfigured, every text-delta feeds the JSON buffer
// directly.
func (c *Call) WithThinkingMarkers(markers ThinkingMarkers) *Call {
	c.thinkingMarkers = markers

	return c
}

// WithClock overrides the orchestrator's time source; tests use this to get
// deterministic latency attributes.
func (c *Call) WithClock(now func() int64) *Call {
	c.now = now

	return c
}

// WithIDGenerator overrides the source of the per-call execution ID
// recorded in telemetry.
func (c *Call) WithIDGenerator(gen func() string) *Call {
	c.generateID = gen

	return c
}

// OnFinish registers the callback invoked once, after the terminal
// promises settle, with exactly one of Object/Err populated.
func (c *Call) OnFinish(fn func(FinishEvent)) *Call {
	c.onFinish = fn

	return c
}

// Start renders the prompt, resolves the mode adapter, opens the provider
// stream, and returns a StreamObjectResult whose channels are already safe
// to range over — the channels are created before the upstream pump
// starts and are buffered, and the pump blocks rather than drops when a
// buffer is full, so a caller subscribing after Start returns misses
// nothing.
func (c *Call) Start(ctx context.Context) (*StreamObjectResult, error) {
	if c.pv == nil {
		return nil, newInvalidArgument("no provider configured")
	}

	renderedPrompt, err := prompt.Render(c.prompt, c.vars)
	if err != nil {
		return nil, newInvalidArgument("prompt rendering failed: %v", err)
	}

	strat := newStrategy(c.shape, c.schema, c.validate)
	info := c.pv.Info()

	adapted, err := buildModeAdapter(c.modePref, c.shape, c.schemaName, c.schemaDescription, strat.providerSchema(), info)
	if err != nil {
		return nil, err
	}

	system := joinNonEmpty(c.systemPrompt, adapted.injectedSystem)
	msgs := messages.Build(system, c.history, renderedPrompt)

	options := provider.CallOptions{
		Mode:             adapted.providerMode,
		InputFormat:      provider.InputFormatMessages,
		Messages:         msgs,
		Temperature:      c.temperature,
		TopP:             c.topP,
		TopK:             c.topK,
		FrequencyPenalty: c.frequencyPenalty,
		PresencePenalty:  c.presencePenalty,
		StopSequences:    c.stopSequences,
		MaxTokens:        c.maxTokens,
		Seed:             c.seed,
		Headers:          c.headers,
		ProviderMetadata: c.providerMetadata,
	}

	tele := newTelemetryRecorder(c.telemetry)
	callCtx, callSpan := tele.startCallSpan(ctx, callAttrs{
		executionID:   c.generateID(),
		provider:      info.Provider,
		model:         info.ModelID,
		prompt:        renderedPrompt,
		promptFormat:  provider.InputFormatMessages,
		schema:        strat.providerSchema(),
		schemaName:    c.schemaName,
		mode:          adapted.resolvedKind,
		temperature:   c.temperature,
		topP:          c.topP,
		topK:          c.topK,
		freqPenalty:   c.frequencyPenalty,
		presPenalty:   c.presencePenalty,
		stopSequences: c.stopSequences,
		maxTokens:     c.maxTokens,
	})

	doStreamCtx, doStreamSpan := tele.startDoStreamSpan(callCtx, adapted.resolvedKind)
	streamResult, err := c.pv.DoStream(doStreamCtx, options)
	endSpan(doStreamSpan)
	if err != nil {
		tele.recordFailure(callSpan, err)
		endSpan(callSpan)
		if c.logger != nil {
			c.logger.Error("provider doStream failed",
				logger.String("provider", info.Provider),
				logger.String("model", info.ModelID),
				logger.Error(err),
			)
		}
		if c.metrics != nil {
			c.metrics.Counter("streamobject.call.errors", metrics.WithLabel("error", "do_stream")).Inc()
		}
		return nil, newTransport(err)
	}

	orch := newOrchestrator(adapted, strat, newThinkingSplitter(c.thinkingMarkers), c.now, tele, callSpan, c.onFinish)

	go func() {
		defer endSpan(callSpan)
		orch.run(callCtx, streamResult)
	}()

	if c.logger != nil {
		c.logger.Debug("streaming structured output",
			logger.String("provider", info.Provider),
			logger.String("model", info.ModelID),
			logger.String("mode", string(adapted.resolvedKind)),
			logger.String("shape", string(c.shape)),
		)
	}
	if c.metrics != nil {
		c.metrics.Counter("streamobject.call.started", metrics.WithLabel("mode", string(adapted.resolvedKind))).Inc()
	}

	return &StreamObjectResult{orch: orch, shape: c.shape}, nil
}

func joinNonEmpty(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out == "" {
			out = p
		} else {
			out = out + "\n\n" + p
		}
	}
	return out
}

// StreamObjectResult is the caller-facing handle returned by Call.Start.
type StreamObjectResult struct {
	orch  *orchestrator
	shape Shape
}

// TextStream yields the raw text-delta substream, in order.
func (r *StreamObjectResult) TextStream() <-chan string { return r.orch.textCh }

// PartialObjectStream yields successive distinct partial snapshots.
func (r *StreamObjectResult) PartialObjectStream() <-chan any { return r.orch.partialCh }

// ElementStream yields newly-completed array elements, in index order. For
// non-array shapes it never sends and is closed when the stream ends.
func (r *StreamObjectResult) ElementStream() <-chan any { return r.orch.elementCh }

// FullStream multiplexes text-delta, reasoning, object, and error events in
// the order they occur; the single finish event, when the stream finishes,
// is the last one sent.
func (r *StreamObjectResult) FullStream() <-chan FullStreamEvent { return r.orch.fullCh }

// Object blocks until the final value is validated and resolved, or ctx is done.
func (r *StreamObjectResult) Object(ctx context.Context) (any, error) {
	return r.orch.objectFuture.wait(ctx)
}

// Usage blocks until the provider's final token accounting resolves.
func (r *StreamObjectResult) Usage(ctx context.Context) (provider.Usage, error) {
	return r.orch.usageFuture.wait(ctx)
}

// FinishReason blocks until the terminal finish reason resolves.
func (r *StreamObjectResult) FinishReason(ctx context.Context) (provider.FinishReason, error) {
	return r.orch.finishFuture.wait(ctx)
}

// ProviderMetadata blocks until the finish fragment's provider metadata resolves.
func (r *StreamObjectResult) ProviderMetadata(ctx context.Context) (map[string]any, error) {
	return r.orch.metadataFuture.wait(ctx)
}
