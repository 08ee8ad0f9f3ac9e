package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matheus3301/wppcrm/internal/bus"
	"github.com/matheus3301/wppcrm/internal/observability"
	"github.com/matheus3301/wppcrm/internal/status"
	"go.uber.org/zap"
)

var (
	// ErrNoToken means there was no access token to authenticate the socket.
	ErrNoToken = errors.New("realtime: no access token")
	// ErrGaveUp means every reconnect attempt failed.
	ErrGaveUp = errors.New("realtime: max reconnect attempts reached")
)

const (
	maxFrameBytes = 1 << 20
	pongWait      = 70 * time.Second
	pingPeriod    = 30 * time.Second
	writeWait     = 10 * time.Second
)

// Options configures a Client.
type Options struct {
	// URL is the websocket origin, e.g. wss://host. The contacts path and
	// token query are appended.
	URL         string
	BaseDelay   time.Duration
	MaxAttempts int
	Dialer      *websocket.Dialer
}

// Client keeps one receive-only socket per session open and publishes
// classified events to its subscribers.
type Client struct {
	opts    Options
	token   func() string
	machine *status.Machine
	log     *zap.Logger
	events  *bus.Topic[Event]

	mu      sync.Mutex
	conn    *websocket.Conn
	cancel  context.CancelFunc
	done    chan struct{}
	manual  bool
	lastErr error
}

// NewClient creates a client. token is consulted before every dial so a
// refreshed access token is picked up on reconnect.
func NewClient(opts Options, token func() string, machine *status.Machine, log *zap.Logger) *Client {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	return &Client{
		opts:    opts,
		token:   token,
		machine: machine,
		log:     log,
		events: bus.NewTopic(func(ev Event) {
			observability.IncEventDropped(ev.Kind())
		}),
	}
}

// Subscribe returns a channel of classified events and a cancel function.
func (c *Client) Subscribe(bufSize int) (<-chan Event, func()) {
	return c.events.Subscribe(bufSize)
}

// Connect starts the connection loop in the background. It fails with
// ErrNoToken, without scheduling any retry, when no token is available.
// Calling Connect while already running is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done != nil {
		select {
		case <-c.done:
		default:
			return nil
		}
	}
	if c.token() == "" {
		c.transition(status.AuthRequired)
		c.lastErr = ErrNoToken
		return ErrNoToken
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	c.manual = false
	c.lastErr = nil
	go c.run(ctx, c.done)
	return nil
}

// Disconnect closes the socket and suppresses further reconnects. It waits
// for the connection loop to exit.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.manual = true
	cancel, done, conn := c.cancel, c.done, c.conn
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = conn.Close()
	}
	<-done
}

// Done is closed when the connection loop exits. It is nil before Connect.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Err returns why the connection loop last stopped, if not by Disconnect.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Client) stopped(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manual || ctx.Err() != nil
}

func (c *Client) transition(to status.State) {
	if c.machine == nil {
		return
	}
	if err := c.machine.Transition(to); err != nil {
		c.log.Debug("connection state", zap.Error(err))
	}
}

func (c *Client) run(ctx context.Context, done chan struct{}) {
	final := status.Disconnected
	defer func() {
		c.transition(final)
		close(done)
	}()

	attempt := 0
	for {
		if attempt > 0 {
			if attempt > c.opts.MaxAttempts {
				c.log.Error("giving up on realtime connection", zap.Int("attempts", c.opts.MaxAttempts))
				c.setErr(ErrGaveUp)
				return
			}
			c.transition(status.Reconnecting)
			observability.IncWSReconnect()
			delay := time.Duration(attempt) * c.opts.BaseDelay
			c.log.Info("reconnecting",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", c.opts.MaxAttempts),
				zap.Duration("delay", delay),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}
		if c.stopped(ctx) {
			return
		}

		token := c.token()
		if token == "" {
			c.log.Warn("no access token, not reconnecting")
			c.setErr(ErrNoToken)
			final = status.AuthRequired
			return
		}

		c.transition(status.Connecting)
		conn, err := c.dial(ctx, token)
		if err != nil {
			if c.stopped(ctx) {
				return
			}
			c.log.Warn("realtime dial failed", zap.Int("attempt", attempt), zap.Error(err))
			c.setErr(err)
			attempt++
			continue
		}

		attempt = 0
		if !c.attach(conn) {
			_ = conn.Close()
			return
		}
		c.transition(status.Connected)
		observability.SetWSConnected(true)
		c.log.Info("realtime connected")

		err = c.readLoop(ctx, conn)
		c.detach()
		_ = conn.Close()
		observability.SetWSConnected(false)

		if c.stopped(ctx) {
			c.log.Info("realtime disconnected")
			return
		}
		c.log.Warn("realtime connection lost", zap.Error(err))
		c.setErr(err)
		attempt = 1
	}
}

// attach records conn as the live connection unless Disconnect already ran.
func (c *Client) attach(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.manual {
		return false
	}
	c.conn = conn
	return true
}

func (c *Client) detach() {
	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
}

func (c *Client) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// Endpoint builds the socket URL for token.
func Endpoint(base, token string) string {
	return strings.TrimRight(base, "/") + "/ws/contacts/?token=" + url.QueryEscape(token)
}

func (c *Client) dial(ctx context.Context, token string) (*websocket.Conn, error) {
	conn, resp, err := c.opts.Dialer.DialContext(ctx, Endpoint(c.opts.URL, token), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("handshake rejected token: %w", err)
		}
		return nil, err
	}
	return conn, nil
}

// readLoop consumes frames until the connection fails or ctx ends. A ping
// writer keeps idle connections alive.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	conn.SetReadLimit(maxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-stopPing:
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		observability.IncWSFrame("malformed")
		c.log.Debug("dropping malformed frame", zap.Error(err), zap.Int("bytes", len(data)))
		return
	}
	ev, err := Classify(f)
	if err != nil {
		observability.IncWSFrame("unrecognized")
		c.log.Debug("dropping frame", zap.Error(err), zap.ByteString("frame", data))
		return
	}
	observability.IncWSFrame(ev.Kind())
	c.events.Publish(ev)
}
