package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/gadicohen93/Veriver/internal/domain"
	"github.com/gadicohen93/Veriver/internal/logger"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultPollWait       = 25 * time.Second
	pollRetryDelay        = 2 * time.Second
)

// GatewayClient implements Client against a channel gateway sidecar that
// owns authentication and session state. Push events are consumed by
// long-polling the gateway's per-channel event cursor; one poll loop per
// channel keeps same-channel events in delivery order.
type GatewayClient struct {
	baseURL string
	http    *http.Client
	logger  logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	streams map[int64]*eventStream
}

type eventStream struct {
	entity   Entity
	onNew    Handler
	onEdited Handler
	started  bool
}

// NewGatewayClient creates a client for the gateway at baseURL.
func NewGatewayClient(baseURL string, log logger.Logger) *GatewayClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &GatewayClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultRequestTimeout + defaultPollWait},
		logger:  log,
		ctx:     ctx,
		cancel:  cancel,
		streams: make(map[int64]*eventStream),
	}
}

type entityResponse struct {
	ID        int64  `json:"id"`
	Handle    string `json:"handle"`
	Broadcast bool   `json:"broadcast"`
}

// Resolve looks up a handle via the gateway.
func (c *GatewayClient) Resolve(ctx context.Context, handle string) (Entity, error) {
	var resp entityResponse
	endpoint := fmt.Sprintf("%s/resolve?handle=%s", c.baseURL, url.QueryEscape(handle))
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return Entity{}, fmt.Errorf("resolve %s: %w", handle, err)
	}
	return Entity{ID: resp.ID, Handle: resp.Handle, Broadcast: resp.Broadcast}, nil
}

type messagesResponse struct {
	Messages []domain.RawMessage `json:"messages"`
}

// IterRecent fetches up to limit recent messages, newest first.
func (c *GatewayClient) IterRecent(ctx context.Context, entity Entity, limit int) ([]domain.RawMessage, error) {
	var resp messagesResponse
	endpoint := fmt.Sprintf("%s/channels/%d/messages?limit=%d", c.baseURL, entity.ID, limit)
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("recent messages for channel %d: %w", entity.ID, err)
	}
	return resp.Messages, nil
}

// OnNewMessage registers the new-message binding.
func (c *GatewayClient) OnNewMessage(entity Entity, h Handler) {
	c.bind(entity, func(s *eventStream) { s.onNew = h })
}

// OnEditedMessage registers the edited-message binding.
func (c *GatewayClient) OnEditedMessage(entity Entity, h Handler) {
	c.bind(entity, func(s *eventStream) { s.onEdited = h })
}

// bind records a binding for the entity's stream. The poll loop starts only
// once both bindings are present; polling earlier could consume an event
// whose handler is not registered yet.
func (c *GatewayClient) bind(entity Entity, set func(*eventStream)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.streams[entity.ID]
	if !ok {
		s = &eventStream{entity: entity}
		c.streams[entity.ID] = s
	}
	set(s)
	if !s.started && s.onNew != nil && s.onEdited != nil {
		s.started = true
		go c.pollEvents(s)
	}
}

type event struct {
	Type    string            `json:"type"`
	Cursor  int64             `json:"cursor"`
	Message domain.RawMessage `json:"message"`
}

type eventsResponse struct {
	Events []event `json:"events"`
}

// pollEvents long-polls the gateway's event cursor for one channel and
// dispatches to the registered bindings, in delivery order.
func (c *GatewayClient) pollEvents(s *eventStream) {
	var cursor int64
	for {
		if c.ctx.Err() != nil {
			return
		}

		endpoint := fmt.Sprintf("%s/channels/%d/events?after=%d&wait=%s",
			c.baseURL, s.entity.ID, cursor, defaultPollWait)

		var resp eventsResponse
		if err := c.getJSON(c.ctx, endpoint, &resp); err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.logger.Warn("event poll failed",
				logger.Int64("channel_id", s.entity.ID),
				logger.Error(err),
			)
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(pollRetryDelay):
			}
			continue
		}

		for _, ev := range resp.Events {
			if ev.Cursor > cursor {
				cursor = ev.Cursor
			}
			c.dispatch(s, ev)
		}
	}
}

func (c *GatewayClient) dispatch(s *eventStream, ev event) {
	c.mu.Lock()
	onNew, onEdited := s.onNew, s.onEdited
	c.mu.Unlock()

	switch ev.Type {
	case "message_new":
		if onNew != nil {
			onNew(c.ctx, ev.Message)
		}
	case "message_edited":
		if onEdited != nil {
			onEdited(c.ctx, ev.Message)
		}
	default:
		c.logger.Debug("ignoring unknown event type", logger.String("type", ev.Type))
	}
}

// DownloadMedia streams the message's attachment to dest.
func (c *GatewayClient) DownloadMedia(ctx context.Context, msg domain.RawMessage, dest string) (string, error) {
	endpoint := fmt.Sprintf("%s/messages/%d/media", c.baseURL, msg.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway returned %d for media of message %d", resp.StatusCode, msg.ID)
	}

	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return "", fmt.Errorf("write staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		// The caller never learns dest on failure, so the file must not
		// outlive this call.
		_ = os.Remove(dest)
		return "", fmt.Errorf("close staging file: %w", err)
	}
	return dest, nil
}

// Close stops all event streams.
func (c *GatewayClient) Close() {
	c.cancel()
}

func (c *GatewayClient) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
