// Package loop drives the synthesize, prompt, infer cycle that feeds the
// observation store.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/network-event-observer/internal/types"
	"github.com/invisible-tech/network-event-observer/pkg/inference"
	"github.com/invisible-tech/network-event-observer/pkg/observe"
	"github.com/invisible-tech/network-event-observer/pkg/prompt"
)

// Prometheus metrics (registered once).
var (
	inferenceCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neo_inference_calls_total",
			Help: "Inference calls made by the generation loop, by outcome",
		},
		[]string{"outcome"},
	)
	eventsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "neo_events_generated_total",
			Help: "Synthetic events generated",
		},
		[]string{"event_type", "risk_level"},
	)
	loopRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "neo_loop_running",
			Help: "1 while the generation loop is running",
		},
	)
)

func init() {
	prometheus.MustRegister(inferenceCalls)
	prometheus.MustRegister(eventsGenerated)
	prometheus.MustRegister(loopRunning)
}

// DefaultInterval is the pause between ticks.
const DefaultInterval = 2 * time.Second

// TagGenerator marks records produced by the loop.
const TagGenerator = "generator"

// State of the loop. StateStopped is terminal.
type State int32

const (
	StateRunning State = iota + 1
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Generator produces synthetic events.
type Generator interface {
	Generate() types.SyntheticEvent
}

// Completer is the observed inference call.
type Completer interface {
	Create(ctx context.Context, model string, messages []inference.Message) (*inference.ChatResponse, error)
}

// InferenceCallFailed wraps any error returned by the inference call.
type InferenceCallFailed struct {
	Tick int
	Err  error
}

func (e *InferenceCallFailed) Error() string {
	return fmt.Sprintf("inference call failed on tick %d: %v", e.Tick, e.Err)
}

func (e *InferenceCallFailed) Unwrap() error {
	return e.Err
}

// Result is the outcome of one tick.
type Result struct {
	Tick       int
	Event      types.SyntheticEvent
	Prompt     string
	Completion string
	// Err is an *InferenceCallFailed, or nil on success.
	Err error
}

// OK reports whether the inference call succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Summary counts ticks by outcome.
type Summary struct {
	Ticks     int `json:"ticks"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Config for the generation loop.
type Config struct {
	Model string
	// Pause between ticks. Zero means no pause.
	Interval time.Duration
	// Stop after this many ticks. Zero means run until cancelled.
	MaxTicks int
	// OnResult, if set, is called synchronously after every tick.
	OnResult func(Result)
}

// Loop is a single-threaded generation loop. Exactly one inference call is in
// flight at a time.
type Loop struct {
	cfg       Config
	generator Generator
	client    Completer
	log       *logrus.Logger

	state atomic.Int32

	// mu guards summary. Only the goroutine running Tick writes it.
	mu      sync.Mutex
	summary Summary
}

// New creates a loop in the RUNNING state.
func New(cfg Config, generator Generator, client Completer, log *logrus.Logger) *Loop {
	l := &Loop{
		cfg:       cfg,
		generator: generator,
		client:    client,
		log:       log,
	}
	l.state.Store(int32(StateRunning))
	return l
}

// State returns the current state. Safe to call from any goroutine.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Summary returns the counts so far. Safe to call from any goroutine.
func (l *Loop) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.summary
}

// count applies fn to the summary under the lock and returns the result.
func (l *Loop) count(fn func(*Summary)) Summary {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(&l.summary)
	return l.summary
}

// Tick runs one iteration: synthesize an event, build its prompt and send it
// to the inference client. A failed call is reported in the result and is
// not counted as a success.
func (l *Loop) Tick(ctx context.Context) Result {
	tick := l.count(func(s *Summary) { s.Ticks++ }).Ticks
	event := l.generator.Generate()
	eventsGenerated.WithLabelValues(string(event.EventType), string(event.RiskLevel)).Inc()

	res := Result{
		Tick:   tick,
		Event:  event,
		Prompt: prompt.Build(event),
	}

	callCtx := observe.WithTags(observe.WithProperties(ctx, event.Properties()), TagGenerator)
	resp, err := l.client.Create(callCtx, l.cfg.Model, prompt.Messages(res.Prompt))
	if err != nil {
		res.Err = &InferenceCallFailed{Tick: res.Tick, Err: err}
		l.count(func(s *Summary) { s.Failed++ })
		l.reportFailure(ctx, res)
	} else {
		res.Completion = resp.Content()
		succeeded := l.count(func(s *Summary) { s.Succeeded++ }).Succeeded
		inferenceCalls.WithLabelValues("success").Inc()
		l.log.WithFields(logrus.Fields{
			"count":      succeeded,
			"event_type": event.EventType,
			"risk_level": event.RiskLevel,
		}).Info("Events generated and analyzed")
	}

	if l.cfg.OnResult != nil {
		l.cfg.OnResult(res)
	}
	return res
}

func (l *Loop) reportFailure(ctx context.Context, res Result) {
	fields := logrus.Fields{"tick": res.Tick, "event_type": res.Event.EventType}
	if ctx.Err() != nil && errors.Is(res.Err, ctx.Err()) {
		inferenceCalls.WithLabelValues("interrupted").Inc()
		l.log.WithFields(fields).Info("Inference call interrupted")
		return
	}
	inferenceCalls.WithLabelValues("failure").Inc()
	l.log.WithError(res.Err).WithFields(fields).Error("Error processing event")
}

// Run ticks until ctx is cancelled or MaxTicks is reached, then moves to
// STOPPED and returns the final summary. Cancellation is observed only at
// iteration boundaries and during the pause between ticks. Run on a stopped
// loop returns immediately.
func (l *Loop) Run(ctx context.Context) Summary {
	if l.State() == StateStopped {
		return l.Summary()
	}

	loopRunning.Set(1)
	l.log.WithFields(logrus.Fields{
		"model":     l.cfg.Model,
		"interval":  l.cfg.Interval.String(),
		"max_ticks": l.cfg.MaxTicks,
	}).Info("Starting network event generation")

	for l.shouldContinue(ctx) {
		l.Tick(ctx)
		if !l.shouldContinue(ctx) {
			break
		}
		if !l.pause(ctx) {
			break
		}
	}

	l.state.Store(int32(StateStopped))
	loopRunning.Set(0)
	sum := l.Summary()
	l.log.WithFields(logrus.Fields{
		"total":     sum.Succeeded,
		"failed":    sum.Failed,
		"ticks":     sum.Ticks,
		"cancelled": ctx.Err() != nil,
	}).Info("Stopped event generation")
	return sum
}

func (l *Loop) shouldContinue(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	return l.cfg.MaxTicks <= 0 || l.Summary().Ticks < l.cfg.MaxTicks
}

// pause waits for the configured interval. It returns false if ctx was
// cancelled first.
func (l *Loop) pause(ctx context.Context) bool {
	if l.cfg.Interval <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(l.cfg.Interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
