// AngelaMos | 2026
// stream_test.go

package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/core"
	"github.com/carterperez-dev/templates/tenant-runtime/internal/provider"
)

type event struct {
	Kind string
	Data string
}

func parseEvents(t *testing.T, body string) []event {
	t.Helper()
	var (
		out     []event
		current event
	)
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.Kind = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.Data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if current.Kind != "" {
				out = append(out, current)
			}
			current = event{}
		}
	}
	require.NoError(t, scanner.Err())
	return out
}

func open(t *testing.T) (*Channel, *httptest.ResponseRecorder) {
	t.Helper()
	rec := httptest.NewRecorder()
	ch, err := Open(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	require.NoError(t, err)
	return ch, rec
}

func TestOpenSetsHeaders(t *testing.T) {
	_, rec := open(t)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.True(t, rec.Flushed)
}

type plainWriter struct {
	header http.Header
}

func (p *plainWriter) Header() http.Header         { return p.header }
func (p *plainWriter) Write(b []byte) (int, error) { return len(b), nil }
func (p *plainWriter) WriteHeader(int)             {}

func TestOpenRequiresFlusher(t *testing.T) {
	_, err := Open(&plainWriter{header: http.Header{}}, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestRelaySuccess(t *testing.T) {
	ch, rec := open(t)
	chunks := []string{"Once", " upon", " a", " time"}

	var kinds []string
	ch.observer = func(kind string) { kinds = append(kinds, kind) }

	err := Relay(context.Background(), ch, func(ctx context.Context, emit func(string) error) (any, error) {
		out, err := provider.Static{Chunks: chunks}.Stream(ctx, provider.Request{}, emit)
		if err != nil {
			return nil, err
		}
		return map[string]string{"text": out.Text}, nil
	})
	require.NoError(t, err)

	events := parseEvents(t, rec.Body.String())
	require.Len(t, events, len(chunks)+1)
	for i, c := range chunks {
		assert.Equal(t, KindChunk, events[i].Kind)
		var data ChunkData
		require.NoError(t, json.Unmarshal([]byte(events[i].Data), &data))
		assert.Equal(t, c, data.Text)
	}
	assert.Equal(t, KindResult, events[len(chunks)].Kind)
	assert.JSONEq(t, `{"text":"Once upon a time"}`, events[len(chunks)].Data)
	assert.Equal(t, []string{"chunk", "chunk", "chunk", "chunk", "result"}, kinds)
	assert.True(t, ch.Closed())
}

func TestRelayUpstreamFailure(t *testing.T) {
	ch, rec := open(t)
	failing := provider.Static{
		Chunks: []string{"partial"},
		Err:    fmt.Errorf("%w: connection reset", provider.ErrUpstream),
	}

	err := Relay(context.Background(), ch, func(ctx context.Context, emit func(string) error) (any, error) {
		return failing.Stream(ctx, provider.Request{}, emit)
	})
	require.ErrorIs(t, err, provider.ErrUpstream)

	events := parseEvents(t, rec.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, KindChunk, events[0].Kind)
	assert.Equal(t, KindError, events[1].Kind)

	var body core.ErrorBody
	require.NoError(t, json.Unmarshal([]byte(events[1].Data), &body))
	assert.Equal(t, core.CodeUpstream, body.Code)
	assert.NotContains(t, body.Message, "connection reset")

	for _, ev := range events {
		assert.NotEqual(t, KindResult, ev.Kind)
	}
}

func TestRelayInternalFailureAndPanic(t *testing.T) {
	t.Run("error", func(t *testing.T) {
		ch, rec := open(t)
		err := Relay(context.Background(), ch, func(context.Context, func(string) error) (any, error) {
			return nil, errors.New("pq: secret table detail")
		})
		require.Error(t, err)

		events := parseEvents(t, rec.Body.String())
		require.Len(t, events, 1)
		assert.Equal(t, KindError, events[0].Kind)
		assert.Contains(t, events[0].Data, core.CodeInternal)
		assert.NotContains(t, events[0].Data, "secret")
	})

	t.Run("panic", func(t *testing.T) {
		ch, rec := open(t)
		err := Relay(context.Background(), ch, func(context.Context, func(string) error) (any, error) {
			panic("boom")
		})
		require.Error(t, err)

		events := parseEvents(t, rec.Body.String())
		require.Len(t, events, 1)
		assert.Equal(t, KindError, events[0].Kind)
	})
}

func TestEventsAfterTerminalAreRejected(t *testing.T) {
	ch, rec := open(t)

	require.NoError(t, ch.Chunk("a"))
	require.NoError(t, ch.Result(map[string]int{"n": 1}))

	assert.ErrorIs(t, ch.Chunk("late"), ErrClosed)
	assert.ErrorIs(t, ch.Fail(core.CodeInternal, "late"), ErrClosed)
	assert.ErrorIs(t, ch.Result(nil), ErrClosed)

	assert.Len(t, parseEvents(t, rec.Body.String()), 2)
}

func TestChunkAfterDisconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rec := httptest.NewRecorder()
	ch, err := Open(rec, httptest.NewRequest(http.MethodPost, "/", nil).WithContext(ctx))
	require.NoError(t, err)

	require.NoError(t, ch.Chunk("first"))
	cancel()

	err = ch.Chunk("second")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, parseEvents(t, rec.Body.String()), 1)
}
