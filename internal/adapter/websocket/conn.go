package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/wsbroker/internal/domain"
)

const (
	writeDeadline    = 5 * time.Second
	defaultQueueSize = 256
)

// Router receives the inbound events of a connection.
type Router interface {
	Route(ctx context.Context, conn domain.Connection, frameType domain.FrameType, payload []byte)
	Acknowledge(conn domain.Connection)
}

type outbound struct {
	messageType int
	data        []byte
}

// Conn adapts a gorilla WebSocket to domain.Connection. All writes go through
// a single writer goroutine fed by a bounded queue, so Send and Ping never block.
type Conn struct {
	id         string
	connection *websocket.Conn
	clock      clockwork.Clock

	sendChannel chan outbound
	doneChannel chan struct{}
	signalOnce  sync.Once
	closeOnce   sync.Once
	wg          sync.WaitGroup
}

// NewConn wraps connection and starts its writer. queueSize bounds the number
// of frames buffered for a slow client before sends are dropped.
func NewConn(id string, connection *websocket.Conn, clock clockwork.Clock, queueSize int) *Conn {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	c := &Conn{
		id:          id,
		connection:  connection,
		clock:       clock,
		sendChannel: make(chan outbound, queueSize),
		doneChannel: make(chan struct{}),
	}
	c.wg.Add(1)
	go c.run()
	return c
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Send(frame domain.Frame) error {
	messageType := websocket.BinaryMessage
	if frame.Type == domain.TextFrame {
		messageType = websocket.TextMessage
	}
	return c.enqueue(outbound{messageType: messageType, data: frame.Data})
}

func (c *Conn) Ping() error {
	return c.enqueue(outbound{messageType: websocket.PingMessage})
}

// Close stops the writer, sends a going-away close frame carrying reason and
// closes the socket.
func (c *Conn) Close(reason string) error {
	c.signal()
	c.wg.Wait()

	var err error
	c.closeOnce.Do(func() {
		closeMsg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
		_ = c.connection.WriteControl(websocket.CloseMessage, closeMsg, c.clock.Now().Add(writeDeadline))
		err = c.connection.Close()
	})
	return err
}

// Terminate closes the socket without a close handshake.
func (c *Conn) Terminate() error {
	c.signal()
	err := c.closeTransport()
	c.wg.Wait()
	return err
}

// Serve reads frames until the connection fails or closes, handing each one to
// router in arrival order. Pongs are reported as probe acknowledgments.
func (c *Conn) Serve(ctx context.Context, router Router, maxMessageBytes int64) error {
	if maxMessageBytes > 0 {
		c.connection.SetReadLimit(maxMessageBytes)
	}
	c.connection.SetPongHandler(func(string) error {
		router.Acknowledge(c)
		return nil
	})

	for {
		messageType, data, err := c.connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				slog.DebugContext(ctx, "WebSocket read failed", "client_id", c.id, "error", err)
			}
			return err
		}
		router.Route(ctx, c, frameType(messageType), data)
	}
}

func (c *Conn) enqueue(msg outbound) error {
	select {
	case <-c.doneChannel:
		return domain.ErrConnectionClosed
	default:
	}

	select {
	case c.sendChannel <- msg:
		return nil
	default:
		return domain.ErrSendQueueFull
	}
}

func (c *Conn) run() {
	defer c.wg.Done()

	for {
		select {
		case msg := <-c.sendChannel:
			c.updateWriteDeadline()
			if err := c.connection.WriteMessage(msg.messageType, msg.data); err != nil {
				// the read loop observes the closed socket and deregisters
				c.signal()
				_ = c.closeTransport()
				return
			}
		case <-c.doneChannel:
			return
		}
	}
}

func (c *Conn) signal() {
	c.signalOnce.Do(func() { close(c.doneChannel) })
}

func (c *Conn) closeTransport() error {
	var err error
	c.closeOnce.Do(func() { err = c.connection.Close() })
	return err
}

func (c *Conn) updateWriteDeadline() {
	_ = c.connection.SetWriteDeadline(c.clock.Now().Add(writeDeadline))
}

func frameType(messageType int) domain.FrameType {
	if messageType == websocket.BinaryMessage {
		return domain.BinaryFrame
	}
	return domain.TextFrame
}
