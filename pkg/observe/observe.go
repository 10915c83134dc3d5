// Package observe decorates an inference client so that every chat completion
// call is persisted as an observation record.
package observe

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/network-event-observer/pkg/inference"
)

var recordsWritten = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "neo_observation_records_total",
		Help: "Observation records handed to the store, by result",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(recordsWritten)
}

// recordTimeout bounds a single store write. Writes run detached from the
// caller's cancellation so an interrupted call is still recorded.
const recordTimeout = 5 * time.Second

// Completer is the chat completion call being observed.
type Completer interface {
	Create(ctx context.Context, model string, messages []inference.Message) (*inference.ChatResponse, error)
}

// Recorder persists observation records.
type Recorder interface {
	Insert(ctx context.Context, rec Record) error
}

// Record is one observed request/response pair.
type Record struct {
	ID               string                 `json:"id"`
	Model            string                 `json:"model"`
	Timestamp        time.Time              `json:"timestamp"`
	Messages         json.RawMessage        `json:"messages"`
	AssistantMessage string                 `json:"assistant_message,omitempty"`
	PromptTokens     int                    `json:"prompt_tokens"`
	CompletionTokens int                    `json:"completion_tokens"`
	TotalTokens      int                    `json:"total_tokens"`
	FinishReason     string                 `json:"finish_reason,omitempty"`
	LatencyMS        int64                  `json:"latency_ms"`
	Tags             []string               `json:"tags,omitempty"`
	Properties       map[string]interface{} `json:"properties,omitempty"`
	Error            string                 `json:"error,omitempty"`
	RawResponse      json.RawMessage        `json:"raw_response,omitempty"`
}

type propertiesKey struct{}
type tagsKey struct{}

// WithProperties attaches properties to the record produced by calls made with ctx.
func WithProperties(ctx context.Context, props map[string]interface{}) context.Context {
	return context.WithValue(ctx, propertiesKey{}, props)
}

// WithTags attaches tags to the record produced by calls made with ctx.
func WithTags(ctx context.Context, tags ...string) context.Context {
	return context.WithValue(ctx, tagsKey{}, tags)
}

// Client is a Completer that records every call it forwards.
type Client struct {
	next     Completer
	recorder Recorder
	log      *logrus.Logger
	now      func() time.Time
}

// Wrap returns a Client that forwards to next and records into recorder.
func Wrap(next Completer, recorder Recorder, log *logrus.Logger) *Client {
	return &Client{next: next, recorder: recorder, log: log, now: time.Now}
}

// Create forwards the call and records its outcome. The returned response and
// error are exactly those of the wrapped client.
func (c *Client) Create(ctx context.Context, model string, messages []inference.Message) (*inference.ChatResponse, error) {
	start := c.now()
	resp, err := c.next.Create(ctx, model, messages)

	rec := c.newRecord(ctx, model, messages, start)
	if err != nil {
		rec.Error = err.Error()
	} else if resp != nil {
		rec.AssistantMessage = resp.Content()
		rec.FinishReason = resp.FinishReason()
		rec.PromptTokens = resp.Usage.PromptTokens
		rec.CompletionTokens = resp.Usage.CompletionTokens
		rec.TotalTokens = resp.Usage.TotalTokens
		rec.RawResponse = resp.Raw
	}
	c.record(ctx, rec)

	return resp, err
}

func (c *Client) newRecord(ctx context.Context, model string, messages []inference.Message, start time.Time) Record {
	rec := Record{
		ID:        uuid.New().String(),
		Model:     model,
		Timestamp: start.UTC(),
		LatencyMS: c.now().Sub(start).Milliseconds(),
	}
	if msgs, err := json.Marshal(messages); err == nil {
		rec.Messages = msgs
	}
	if props, ok := ctx.Value(propertiesKey{}).(map[string]interface{}); ok {
		rec.Properties = props
	}
	if tags, ok := ctx.Value(tagsKey{}).([]string); ok {
		rec.Tags = tags
	}
	return rec
}

func (c *Client) record(ctx context.Context, rec Record) {
	if c.recorder == nil {
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := c.recorder.Insert(wctx, rec); err != nil {
		recordsWritten.WithLabelValues("failed").Inc()
		c.log.WithError(err).WithField("record_id", rec.ID).Warn("Failed to store observation record")
		return
	}
	recordsWritten.WithLabelValues("stored").Inc()
}
