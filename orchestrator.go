package streamobject

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/streamobject/internal/partialjson"
	"github.com/xraph/streamobject/provider"
)

// streamState is the orchestrator's lifecycle position.
type streamState string

const (
	stateInit      streamState = "init"
	stateStreaming streamState = "streaming"
	stateFinishing streamState = "finishing"
	stateFailing   streamState = "failing"
	stateDone      streamState = "done"
)

const defaultConsumerBufferSize = 64

type fullStreamEventType string

const (
	fullEventTextDelta fullStreamEventType = "text-delta"
	fullEventReasoning fullStreamEventType = "reasoning"
	fullEventObject    fullStreamEventType = "object"
	fullEventError     fullStreamEventType = "error"
	fullEventFinish    fullStreamEventType = "finish"
)

// FullStreamEvent is the tagged variant multiplexed on StreamObjectResult.FullStream.
// A reasoning event carries text a configured ThinkingMarkers pair found
// inside a marker-delimited block; that text never reaches the JSON buffer.
type FullStreamEvent struct {
	Type fullStreamEventType

	TextDelta      string
	ReasoningDelta string
	Object         any
	Err            error
	Finish         *FinishEvent
}

// FinishEvent is the terminal record delivered on fullStream and to onFinish.
type FinishEvent struct {
	FinishReason     provider.FinishReason
	Usage            provider.Usage
	ProviderMetadata map[string]any
	LogProbs         provider.LogProbs
	Object           any
	Err              error
}

// clock is the sole time source the orchestrator consults, so latency
// metrics stay deterministic under test.
type clock func() int64

// orchestrator is the single-threaded, cooperative state machine that
// drives a provider's fragment stream through the mode adapter, the
// partial-JSON parser, and the output strategy, and fans the result out to
// the four consumer-facing channels.
type orchestrator struct {
	mu    sync.Mutex
	state streamState

	mode     *adaptedMode
	strategy *strategy
	thinking *thinkingSplitter
	now      clock
	tele     *telemetryRecorder
	span     trace.Span
	onFinish func(FinishEvent)

	textBuf        []byte
	publishedCount int
	lastPartial    any
	hasLastPartial bool
	lastErr        error

	textCh    chan string
	partialCh chan any
	elementCh chan any
	fullCh    chan FullStreamEvent

	objectFuture   *future[any]
	usageFuture    *future[provider.Usage]
	finishFuture   *future[provider.FinishReason]
	metadataFuture *future[map[string]any]

	startedAt      int64
	firstChunkSeen bool
}

func newOrchestrator(mode *adaptedMode, strat *strategy, thinking *thinkingSplitter, now clock, tele *telemetryRecorder, span trace.Span, onFinish func(FinishEvent)) *orchestrator {
	if now == nil {
		now = func() int64 { return 0 }
	}
	return &orchestrator{
		state:          stateInit,
		mode:           mode,
		strategy:       strat,
		thinking:       thinking,
		now:            now,
		tele:           tele,
		span:           span,
		onFinish:       onFinish,
		textCh:         make(chan string, defaultConsumerBufferSize),
		partialCh:      make(chan any, defaultConsumerBufferSize),
		elementCh:      make(chan any, defaultConsumerBufferSize),
		fullCh:         make(chan FullStreamEvent, defaultConsumerBufferSize),
		objectFuture:   newFuture[any](),
		usageFuture:    newFuture[provider.Usage](),
		finishFuture:   newFuture[provider.FinishReason](),
		metadataFuture: newFuture[map[string]any](),
	}
}

// run drives the upstream fragment stream to completion. It owns the
// upstream pump as an errgroup member so that a consumer-triggered
// cancellation of ctx propagates to the provider stream the same way a
// hard upstream failure propagates to the consumers.
func (o *orchestrator) run(ctx context.Context, result *provider.StreamResult) {
	o.mu.Lock()
	o.state = stateStreaming
	o.startedAt = o.now()
	o.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return o.pump(gctx, result.Stream)
	})

	err := g.Wait()

	o.mu.Lock()
	state := o.state
	o.mu.Unlock()

	if state != stateDone {
		if ctx.Err() != nil {
			o.cancel(ctx.Err())
		} else if err != nil {
			o.fail(newTransport(err))
		}
	}

	close(o.textCh)
	close(o.partialCh)
	close(o.elementCh)
	close(o.fullCh)
}

func (o *orchestrator) pump(ctx context.Context, stream <-chan provider.Fragment) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frag, ok := <-stream:
			if !ok {
				return nil
			}
			if done := o.handleFragment(ctx, frag); done {
				return nil
			}
		}
	}
}

// handleFragment processes one upstream fragment and reports whether the
// stream has reached its terminal finish event.
func (o *orchestrator) handleFragment(ctx context.Context, frag provider.Fragment) bool {
	if !o.firstChunkSeen && frag.Type != provider.FragmentError {
		o.firstChunkSeen = true
		o.tele.recordFirstChunk(o.span, o.now()-o.startedAt)
	}

	if delta, ok := textDeltaContribution(o.mode.resolvedKind, frag); ok && delta != "" {
		o.appendText(ctx, delta)
		return false
	}

	switch frag.Type {
	case provider.FragmentError:
		wrapped := newProviderError(frag.Error)
		o.lastErr = wrapped
		o.publish(ctx, FullStreamEvent{Type: fullEventError, Err: wrapped})
		o.tele.recordError(o.span, frag.Error)
		return false
	case provider.FragmentFinish:
		o.finish(ctx, frag.Finish)
		return true
	default:
		return false
	}
}

func (o *orchestrator) appendText(ctx context.Context, delta string) {
	forJSON, forReasoning := delta, ""
	if o.thinking != nil {
		forJSON, forReasoning = o.thinking.Feed(delta)
	}

	if forReasoning != "" {
		o.publish(ctx, FullStreamEvent{Type: fullEventReasoning, ReasoningDelta: forReasoning})
	}

	if forJSON == "" {
		return
	}

	o.textBuf = append(o.textBuf, forJSON...)

	o.publish(ctx, FullStreamEvent{Type: fullEventTextDelta, TextDelta: forJSON})
	select {
	case o.textCh <- forJSON:
	case <-ctx.Done():
		return
	}

	o.advance(ctx)
}

// advance re-parses the rolling text buffer and publishes a new partial
// snapshot (and, for array shape, newly-complete elements) if anything
// changed.
func (o *orchestrator) advance(ctx context.Context) {
	result := partialjson.Parse(string(o.textBuf))
	if result.State == partialjson.StateFailed {
		return
	}

	if o.strategy.shape == ShapeArray {
		fresh, advanced := o.strategy.newElements(result.Value, o.publishedCount)
		o.publishedCount = advanced
		for _, elem := range fresh {
			select {
			case o.elementCh <- elem:
			case <-ctx.Done():
				return
			}
		}
	}

	partial, ok := o.strategy.partial(result.Value)
	if !ok {
		return
	}
	if o.hasLastPartial && deepEqual(o.lastPartial, partial) {
		return
	}
	o.lastPartial = partial
	o.hasLastPartial = true

	select {
	case o.partialCh <- partial:
	case <-ctx.Done():
		return
	}
	o.publish(ctx, FullStreamEvent{Type: fullEventObject, Object: partial})
}

func (o *orchestrator) publish(ctx context.Context, ev FullStreamEvent) {
	select {
	case o.fullCh <- ev:
	case <-ctx.Done():
	}
}

// finish transitions Streaming→Finishing: flush the last partial, finalize
// the accumulated text against the strategy, resolve the terminal
// promises, and emit the single terminal fullStream event.
func (o *orchestrator) finish(ctx context.Context, f *provider.FinishFragment) {
	o.mu.Lock()
	o.state = stateFinishing
	o.mu.Unlock()

	if o.thinking != nil {
		forJSON, forReasoning := o.thinking.Flush()
		if forReasoning != "" {
			o.publish(ctx, FullStreamEvent{Type: fullEventReasoning, ReasoningDelta: forReasoning})
		}
		if forJSON != "" {
			o.textBuf = append(o.textBuf, forJSON...)
			o.publish(ctx, FullStreamEvent{Type: fullEventTextDelta, TextDelta: forJSON})
			select {
			case o.textCh <- forJSON:
			case <-ctx.Done():
			}
		}
	}

	o.advance(ctx)

	value, err := o.strategy.finalize(string(o.textBuf))

	finishedAt := o.now()
	usage := provider.Usage{}
	reason := provider.FinishOther
	var providerMeta map[string]any
	var logprobs provider.LogProbs
	if f != nil {
		usage = f.Usage
		reason = f.FinishReason
		providerMeta = f.ProviderMetadata
		logprobs = f.LogProbs
	}

	ev := FinishEvent{
		FinishReason:     reason,
		Usage:            usage,
		ProviderMetadata: providerMeta,
		LogProbs:         logprobs,
	}

	if err != nil {
		// Any finalize failure, whether a structural parse failure or a
		// per-element validation error, surfaces on the terminal object
		// promise wrapped as NoObjectGenerated so callers have one error
		// type to check against.
		streamErr := newNoObjectGenerated(err, string(o.textBuf), &usage)
		ev.Err = streamErr
		o.objectFuture.reject(streamErr)
	} else {
		ev.Object = value
		o.objectFuture.resolve(value)
	}

	o.usageFuture.resolve(usage)
	o.finishFuture.resolve(reason)
	o.metadataFuture.resolve(providerMeta)

	avgTokensPerSec := 0.0
	if msElapsed := finishedAt - o.startedAt; msElapsed > 0 {
		avgTokensPerSec = float64(usage.CompletionTokens) / (float64(msElapsed) / 1000.0)
	}
	o.tele.recordFinish(o.span, finishAttrs{
		finishReason:            reason,
		usage:                   usage,
		object:                  ev.Object,
		msToFinish:              finishedAt - o.startedAt,
		avgCompletionTokensPerS: avgTokensPerSec,
	})

	o.publish(ctx, FullStreamEvent{Type: fullEventFinish, Finish: &ev})

	o.mu.Lock()
	o.state = stateDone
	o.mu.Unlock()

	if o.onFinish != nil {
		o.onFinish(ev)
	}
}

// fail transitions to Failing on a hard upstream error: an exception from
// the pump itself rather than a recoverable {type:"error"} fragment.
func (o *orchestrator) fail(err error) {
	o.mu.Lock()
	o.state = stateFailing
	o.mu.Unlock()

	o.objectFuture.reject(err)
	o.usageFuture.reject(err)
	o.finishFuture.reject(err)
	o.metadataFuture.reject(err)

	o.tele.recordFailure(o.span, err)
}

// cancel rejects all terminal promises with Cancelled and does not invoke
// onFinish.
func (o *orchestrator) cancel(cause error) {
	cancelled := newCancelled(cause)

	o.mu.Lock()
	o.state = stateFailing
	o.mu.Unlock()

	o.objectFuture.reject(cancelled)
	o.usageFuture.reject(cancelled)
	o.finishFuture.reject(cancelled)
	o.metadataFuture.reject(cancelled)

	o.tele.recordFailure(o.span, cancelled)
}
