// AngelaMos | 2026
// stream.go

package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/provider"
)

const (
	KindChunk  = "chunk"
	KindResult = "result"
	KindError  = "error"
)

var (
	ErrClosed      = errors.New("stream closed")
	ErrUnsupported = errors.New("streaming not supported by response writer")
)

const (
	upstreamMessage = "the generation provider failed, please try again"
	internalMessage = "an internal error occurred"
)

type ChunkData struct {
	Text string `json:"text"`
}

// Channel writes server-sent events for one request. Chunks may be sent any
// number of times; exactly one of Result or Fail ends the channel.
type Channel struct {
	mu       sync.Mutex
	w        http.ResponseWriter
	rc       *http.ResponseController
	ctx      context.Context
	closed   bool
	logger   *slog.Logger
	observer func(kind string)
}

type Option func(*Channel)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver is called with the kind of every event written.
func WithObserver(fn func(kind string)) Option {
	return func(c *Channel) {
		c.observer = fn
	}
}

// Open switches the response into event-stream mode. It must be called
// before anything else is written to w.
func Open(w http.ResponseWriter, r *http.Request, opts ...Option) (*Channel, error) {
	if !canFlush(w) {
		return nil, ErrUnsupported
	}

	c := &Channel{
		w:      w,
		rc:     http.NewResponseController(w),
		ctx:    r.Context(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	//nolint:errcheck // not every writer supports deadlines
	_ = c.rc.SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := c.rc.Flush(); err != nil {
		return nil, fmt.Errorf("flush stream headers: %w", err)
	}

	return c, nil
}

func (c *Channel) Chunk(text string) error {
	return c.send(KindChunk, ChunkData{Text: text}, false)
}

func (c *Channel) Result(payload any) error {
	return c.send(KindResult, payload, true)
}

func (c *Channel) Fail(code, message string) error {
	return c.send(KindError, core.ErrorBody{Code: code, Message: message}, true)
}

func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Channel) send(kind string, payload any, terminal bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if err := c.ctx.Err(); err != nil {
		c.closed = true
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", kind, err)
	}

	if terminal {
		c.closed = true
	}

	if _, err := fmt.Fprintf(c.w, "event: %s\ndata: %s\n\n", kind, data); err != nil {
		c.closed = true
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	if err := c.rc.Flush(); err != nil {
		c.closed = true
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	if c.observer != nil {
		c.observer(kind)
	}
	return nil
}

// Producer generates one response, calling emit for each fragment.
type Producer func(ctx context.Context, emit func(string) error) (any, error)

// Relay runs fn and terminates ch with its outcome. Errors and panics become
// an error event; the cause is logged and never sent to the client.
func Relay(ctx context.Context, ch *Channel, fn Producer) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("stream producer panic: %v", p)
			ch.logger.Error("stream producer panicked", "panic", p)
			_ = ch.Fail(core.CodeInternal, internalMessage) //nolint:errcheck
		}
	}()

	payload, err := fn(ctx, ch.Chunk)
	if err != nil {
		ch.fail(err)
		return err
	}

	return ch.Result(payload)
}

func (c *Channel) fail(err error) {
	if errors.Is(err, ErrClosed) || errors.Is(err, context.Canceled) {
		c.logger.Debug("stream ended by client", "error", err)
		return
	}

	code, message := core.CodeInternal, internalMessage
	if errors.Is(err, provider.ErrUpstream) {
		code, message = core.CodeUpstream, upstreamMessage
		c.logger.Warn("generation provider failed", "error", err)
	} else {
		c.logger.Error("stream producer failed", "error", err)
	}

	if failErr := c.Fail(code, message); failErr != nil {
		c.logger.Debug("could not deliver stream error", "error", failErr)
	}
}

type unwrapper interface {
	Unwrap() http.ResponseWriter
}

func canFlush(w http.ResponseWriter) bool {
	for {
		if _, ok := w.(http.Flusher); ok {
			return true
		}
		u, ok := w.(unwrapper)
		if !ok {
			return false
		}
		w = u.Unwrap()
	}
}
