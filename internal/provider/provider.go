// AngelaMos | 2026
// provider.go

package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/carterperez-dev/templates/tenant-runtime/internal/config"
)

var (
	// ErrUpstream marks failures caused by the remote model provider.
	ErrUpstream      = errors.New("upstream provider error")
	ErrNotConfigured = fmt.Errorf("provider not configured: %w", ErrUpstream)
)

const (
	maxErrorBody  = 1 << 10
	maxEventBytes = 1 << 20
	doneSentinel  = "[DONE]"
)

type Request struct {
	System      string
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature *float64
}

type Completion struct {
	Text         string
	Model        string
	FinishReason string
}

// Generator streams a completion. onDelta is called once per text fragment
// in arrival order; a non-nil return stops the stream and is returned as is.
type Generator interface {
	Stream(
		ctx context.Context,
		req Request,
		onDelta func(string) error,
	) (*Completion, error)
}

// New returns an HTTP client, or a generator that always fails with
// ErrNotConfigured when no endpoint or key is set.
func New(cfg config.ProviderConfig) Generator {
	if cfg.BaseURL == "" || cfg.APIKey == "" {
		return unconfigured{}
	}
	return NewHTTPClient(cfg)
}

type unconfigured struct{}

func (unconfigured) Stream(
	context.Context,
	Request,
	func(string) error,
) (*Completion, error) {
	return nil, ErrNotConfigured
}

// HTTPClient speaks the OpenAI-compatible chat completions protocol with
// server-sent events.
type HTTPClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewHTTPClient(cfg config.ProviderConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *HTTPClient) Stream(
	ctx context.Context,
	req Request,
	onDelta func(string) error,
) (*Completion, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		Stream:      true,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/chat/completions",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck
		return nil, fmt.Errorf(
			"%w: status %d: %s",
			ErrUpstream,
			resp.StatusCode,
			strings.TrimSpace(string(snippet)),
		)
	}

	return c.consume(ctx, resp.Body, model, onDelta)
}

func (c *HTTPClient) consume(
	ctx context.Context,
	body io.Reader,
	model string,
	onDelta func(string) error,
) (*Completion, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventBytes)

	var text strings.Builder
	out := &Completion{Model: model}
	done := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == doneSentinel {
			done = true
			break
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, fmt.Errorf("%w: malformed event: %w", ErrUpstream, err)
		}
		if chunk.Error != nil {
			return nil, fmt.Errorf("%w: %s", ErrUpstream, chunk.Error.Message)
		}
		if chunk.Model != "" {
			out.Model = chunk.Model
		}

		for _, choice := range chunk.Choices {
			if choice.FinishReason != nil {
				out.FinishReason = *choice.FinishReason
			}
			delta := choice.Delta.Content
			if delta == "" {
				continue
			}
			text.WriteString(delta)
			if err := onDelta(delta); err != nil {
				return nil, err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: read stream: %w", ErrUpstream, err)
	}
	if !done && out.FinishReason == "" {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: stream ended before completion", ErrUpstream)
	}

	out.Text = text.String()
	return out, nil
}

// Static replays a fixed list of fragments, then fails with Err if set.
type Static struct {
	Chunks []string
	Delay  time.Duration
	Err    error
}

func (s Static) Stream(
	ctx context.Context,
	_ Request,
	onDelta func(string) error,
) (*Completion, error) {
	var text strings.Builder
	for _, chunk := range s.Chunks {
		if s.Delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.Delay):
			}
		}
		text.WriteString(chunk)
		if err := onDelta(chunk); err != nil {
			return nil, err
		}
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return &Completion{Text: text.String(), Model: "static", FinishReason: "stop"}, nil
}
