package orderfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"PricePulse/internal/domain/models"
	drepo "PricePulse/internal/domain/repository"
	applogger "PricePulse/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client is the SalesStream over the order feed's WebSocket API. One
// frame carries a batch of sales; Read fans them out as SalesEvents.
//
// The read loop outlives individual connections: a read failure is
// reported on the error channel and the loop then waits for Reconnect
// to swap in a live connection, so one Read call serves the stream's
// whole lifetime.
type Client struct {
	apiKey         string
	url            string
	products       []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *applogger.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	stopped   bool
}

// New builds the stream without dialing; Connect does that.
func New(apiKey, wsURL string, products []string, reconnectDelay, pingInterval time.Duration, l *applogger.Logger) drepo.SalesStream {
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Client{
		apiKey:         apiKey,
		url:            wsURL,
		products:       products,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            l,
	}
}

type subscribeMsg struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
}

type feedSale struct {
	ProductID string  `json:"product_id"`
	Units     int64   `json:"units"`
	Price     float64 `json:"price"`
	T         int64   `json:"t"` // milliseconds
}

type feedMessage struct {
	Type string     `json:"type"`
	Data []feedSale `json:"data"`
}

// Connect dials the feed and swaps the connection in.
func (c *Client) Connect(ctx context.Context) error {
	dialURL := c.url
	if c.apiKey != "" {
		dialURL = fmt.Sprintf("%s?token=%s", c.url, c.apiKey)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, dialURL, nil)
	if err != nil {
		return fmt.Errorf("orderfeed connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	c.log.Info("order feed connected", applogger.String("url", c.url))
	return nil
}

// Subscribe asks the feed for each configured product's sales.
func (c *Client) Subscribe(ctx context.Context) error {
	conn := c.current()
	if conn == nil {
		return fmt.Errorf("orderfeed not connected")
	}
	for _, p := range c.products {
		if err := conn.WriteJSON(subscribeMsg{Type: "subscribe", ProductID: p}); err != nil {
			return fmt.Errorf("subscribe %s: %w", p, err)
		}
	}
	c.log.Info("order feed subscribed", applogger.Int("products", len(c.products)))
	return nil
}

// Read starts the ping and read loops and returns their channels. Both
// channels close when the context ends or the client is closed.
func (c *Client) Read(ctx context.Context) (<-chan *models.SalesEvent, <-chan error) {
	events := make(chan *models.SalesEvent, 1024)
	errs := make(chan error, 1)

	go c.pingLoop(ctx)
	go c.readLoop(ctx, events, errs)

	return events, errs
}

func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if conn := c.current(); conn != nil {
				_ = conn.WriteMessage(websocket.PingMessage, nil)
			}
		}
	}
}

func (c *Client) readLoop(ctx context.Context, events chan<- *models.SalesEvent, errs chan<- error) {
	defer close(events)
	defer close(errs)

	for {
		if ctx.Err() != nil {
			return
		}

		conn, live, stopped := c.state()
		if stopped {
			return
		}
		if conn == nil || !live {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.reconnectDelay):
			}
			// Still down after the wait: nudge the consumer again so a
			// failed Reconnect gets another try.
			if _, live, stopped := c.state(); !live && !stopped {
				report(errs, fmt.Errorf("orderfeed disconnected"))
			}
			continue
		}

		_, frame, err := conn.ReadMessage()
		if err != nil {
			c.markDown()
			c.log.Warn("order feed read failed", applogger.Error(err))
			report(errs, fmt.Errorf("orderfeed read: %w", err))
			continue
		}
		deliver(events, frame)
	}
}

// deliver decodes one frame and fans its sales out. Control frames and
// acks share the socket with sales; anything that is not a sale batch
// is skipped.
func deliver(events chan<- *models.SalesEvent, frame []byte) {
	var m feedMessage
	if err := json.Unmarshal(frame, &m); err != nil || m.Type != "sale" {
		return
	}
	for _, s := range m.Data {
		ev := &models.SalesEvent{
			ProductID: s.ProductID,
			Timestamp: s.T / 1000,
			Units:     s.Units,
			Price:     s.Price,
		}
		select {
		case events <- ev:
		default:
			// drop when the buffer is full
		}
	}
}

// report never blocks; a pending error already carries the signal.
func report(errs chan<- error, err error) {
	select {
	case errs <- err:
	default:
	}
}

// Reconnect tears the old connection down, waits out the configured
// delay, then dials and resubscribes.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return fmt.Errorf("orderfeed closed")
	}
	c.dropConnLocked()
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}

	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close ends the stream for good; Reconnect refuses afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	return c.dropConnLocked()
}

func (c *Client) dropConnLocked() error {
	c.connected = false
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// markDown flags the connection dead so the read loop stops using it.
// Reconnect owns closing it.
func (c *Client) markDown() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

func (c *Client) current() *websocket.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

func (c *Client) state() (conn *websocket.Conn, live, stopped bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn, c.connected, c.stopped
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
