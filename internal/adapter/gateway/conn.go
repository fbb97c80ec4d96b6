package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"kaiheila/internal/infra/config"
	applog "kaiheila/internal/infra/logger"
)

// Conn is a gateway WebSocket connection speaking Frame values.
// Heartbeat scheduling, reconnect policy and event dispatch belong to the caller.
type Conn struct {
	ws       *websocket.Conn
	compress bool
	logger   *slog.Logger
}

// DialOption configures Dial.
type DialOption func(*websocket.DialOptions)

// WithDialHTTPClient sets the HTTP client used for the upgrade request.
func WithDialHTTPClient(hc *http.Client) DialOption {
	return func(o *websocket.DialOptions) { o.HTTPClient = hc }
}

// Dial validates addr and opens a WebSocket connection to it. Dial errors
// never carry the connection token.
func Dial(ctx context.Context, addr Address, cfg config.GatewayConfig, logger *slog.Logger, opts ...DialOption) (*Conn, error) {
	target, err := addr.Build()
	if err != nil {
		return nil, redactedError{err}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}

	dialOpts := &websocket.DialOptions{
		// Payload compression is negotiated through the compress query flag.
		CompressionMode: websocket.CompressionDisabled,
	}
	for _, o := range opts {
		o(dialOpts)
	}

	ws, _, err := websocket.Dial(ctx, target, dialOpts)
	if err != nil {
		return nil, redactedError{fmt.Errorf("dial gateway %s: %w", target, err)}
	}
	if cfg.ReadLimit > 0 {
		ws.SetReadLimit(cfg.ReadLimit)
	}

	logger.Debug("gateway connected", "url", target, "resume", addr.Resume != nil)
	return &Conn{ws: ws, compress: addr.Compress, logger: logger}, nil
}

// ReadFrame blocks until the next frame arrives. Binary messages on a
// compressed connection are zlib-inflated.
func (c *Conn) ReadFrame(ctx context.Context) (Frame, error) {
	typ, data, err := c.ws.Read(ctx)
	if err != nil {
		return Frame{}, fmt.Errorf("read frame: %w", err)
	}
	return DecodeFrame(data, c.compress && typ == websocket.MessageBinary)
}

// WriteFrame sends f as a JSON text message.
func (c *Conn) WriteFrame(ctx context.Context, f Frame) error {
	if err := wsjson.Write(ctx, c.ws, f); err != nil {
		return fmt.Errorf("write %s frame: %w", f.S, err)
	}
	return nil
}

// redactedError masks token query values in the message of err while keeping
// it reachable through errors.Is and errors.As.
type redactedError struct {
	err error
}

func (e redactedError) Error() string { return applog.Redact(e.err.Error()) }

func (e redactedError) Unwrap() error { return e.err }

// Close performs a normal closure handshake.
func (c *Conn) Close() error {
	c.logger.Debug("gateway connection closing")
	return c.ws.Close(websocket.StatusNormalClosure, "")
}
