// Package client implements a reconnecting WebSocket client for the
// pulsechat server. It authenticates on connect, correlates acks with
// requests, fans events out through a listener registry and keeps a
// rolling latency estimate from heartbeat round trips.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/perf"
	"github.com/pulsechat/pulsechat-server/internal/proto"
)

// State describes the connection lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	// StateFailed is terminal: the reconnect budget is spent and the
	// client gives up until Connect is called again.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	ErrNotConnected = errors.New("client: not connected")
	ErrGaveUp       = errors.New("client: reconnect attempts exhausted")
	ErrAuthRejected = errors.New("client: authentication rejected")
	ErrAckTimeout   = errors.New("client: ack timeout")
	errConnReplaced = errors.New("client: connection replaced")
)

// Options configures a Client. Zero values fall back to the defaults
// advertised by the server's /api/config endpoint.
type Options struct {
	URL   string
	Token string

	// AutoConnect dials immediately from New instead of waiting for an
	// explicit Connect call.
	AutoConnect bool

	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	HeartbeatInterval    time.Duration
	AckTimeout           time.Duration

	// Pool, when set, tracks this client's live connection under PoolKey
	// so callers can cap connections per endpoint.
	Pool    *perf.ConnPool
	PoolKey string

	Logger *zerolog.Logger
}

func (o *Options) withDefaults() {
	if o.MaxReconnectAttempts <= 0 {
		o.MaxReconnectAttempts = 5
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = 2 * time.Second
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 30 * time.Second
	}
	if o.AckTimeout <= 0 {
		o.AckTimeout = 10 * time.Second
	}
	if o.PoolKey == "" {
		o.PoolKey = o.URL
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
}

// Client is a single logical connection to the server. It is safe for
// concurrent use.
type Client struct {
	opts Options
	log  *zerolog.Logger

	state atomic.Int32
	seq   atomic.Uint64

	listeners *perf.ListenerRegistry
	latency   *perf.LatencyMonitor

	mu      sync.Mutex
	conn    *websocket.Conn
	cancel  context.CancelFunc
	pending map[string]chan *proto.Outbound
	active  map[string]struct{}
}

// New builds a client. With Options.AutoConnect set it also dials and
// returns the dial error, if any.
func New(ctx context.Context, opts Options) (*Client, error) {
	opts.withDefaults()
	c := &Client{
		opts:    opts,
		log:     opts.Logger,
		latency: perf.NewLatencyMonitor(10),
		pending: make(map[string]chan *proto.Outbound),
		active:  make(map[string]struct{}),
	}
	c.listeners = perf.NewListenerRegistry(c.attach)

	if opts.AutoConnect {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// attach marks an event as wanted so the read loop dispatches it. One
// native registration per event regardless of listener count.
func (c *Client) attach(event string, _ func(payload any)) func() {
	c.mu.Lock()
	c.active[event] = struct{}{}
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.active, event)
		c.mu.Unlock()
	}
}

// State reports the current lifecycle state.
func (c *Client) State() State { return State(c.state.Load()) }

// Latency exposes the heartbeat latency monitor.
func (c *Client) Latency() *perf.LatencyMonitor { return c.latency }

// On registers a handler for a server event. The returned function
// removes the handler.
func (c *Client) On(event string, fn func(payload any)) (off func()) {
	return c.listeners.On(event, fn)
}

// Connect dials the server and authenticates. Calling it from the
// failed state resets the reconnect budget.
func (c *Client) Connect(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) &&
		!c.state.CompareAndSwap(int32(StateFailed), int32(StateConnecting)) {
		return fmt.Errorf("client: connect from state %s", c.State())
	}

	if err := c.dial(ctx); err != nil {
		c.state.Store(int32(StateDisconnected))
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(runCtx)
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.opts.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}

	if err := c.authenticate(ctx, conn); err != nil {
		conn.Close(websocket.StatusPolicyViolation, "auth failed")
		return err
	}

	c.mu.Lock()
	old := c.conn
	c.conn = conn
	c.mu.Unlock()
	if old != nil {
		// The replaced handle must leave the pool too, or reconnect
		// cycles fill the named pool with dead connections.
		if c.opts.Pool != nil {
			c.opts.Pool.Remove(c.opts.PoolKey, old)
		}
		old.Close(websocket.StatusNormalClosure, errConnReplaced.Error())
	}

	if c.opts.Pool != nil {
		c.opts.Pool.Add(c.opts.PoolKey, conn)
	}

	c.state.Store(int32(StateConnected))
	c.log.Info().Str("url", c.opts.URL).Msg("connected")
	return nil
}

func (c *Client) authenticate(ctx context.Context, conn *websocket.Conn) error {
	payload, err := json.Marshal(proto.AuthenticateData{
		Token:    c.opts.Token,
		Protocol: proto.ProtocolVersion,
	})
	if err != nil {
		return err
	}
	frame := proto.Inbound{
		ID:   c.nextID(),
		Type: proto.InboundTypeAuthenticate,
		Data: payload,
	}
	if err := wsjson.Write(ctx, conn, frame); err != nil {
		return fmt.Errorf("send authenticate: %w", err)
	}

	var reply proto.Outbound
	if err := wsjson.Read(ctx, conn, &reply); err != nil {
		return fmt.Errorf("read authenticate reply: %w", err)
	}
	if reply.Type == proto.OutboundTypeError || (reply.OK != nil && !*reply.OK) {
		if reply.Error != nil {
			return fmt.Errorf("%w: %s", ErrAuthRejected, reply.Error.Msg)
		}
		return ErrAuthRejected
	}
	return nil
}

// run owns the connection: it reads frames, sends heartbeats and
// reconnects with an increasing delay until the budget runs out.
func (c *Client) run(ctx context.Context) {
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	go c.heartbeat(hbCtx)
	defer stopHeartbeat()

	attempts := 0
	for {
		err := c.readLoop(ctx)
		if ctx.Err() != nil || c.State() == StateDisconnected {
			return
		}
		c.log.Warn().Err(err).Msg("connection lost")
		c.failPending(err)

		for {
			attempts++
			if attempts > c.opts.MaxReconnectAttempts {
				c.state.Store(int32(StateFailed))
				c.log.Error().Int("attempts", attempts-1).Msg("giving up on reconnect")
				return
			}
			c.state.Store(int32(StateReconnecting))
			delay := time.Duration(attempts) * c.opts.ReconnectDelay

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}

			c.log.Info().Int("attempt", attempts).Dur("delay", delay).Msg("reconnecting")
			if err := c.dial(ctx); err != nil {
				c.log.Warn().Err(err).Int("attempt", attempts).Msg("reconnect failed")
				continue
			}
			attempts = 0
			break
		}
	}
}

func (c *Client) readLoop(ctx context.Context) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}
	for {
		var frame proto.Outbound
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return err
		}
		c.handleFrame(&frame)
	}
}

func (c *Client) handleFrame(frame *proto.Outbound) {
	if frame.ReplyTo != "" {
		c.mu.Lock()
		ch, ok := c.pending[frame.ReplyTo]
		if ok {
			delete(c.pending, frame.ReplyTo)
		}
		c.mu.Unlock()
		if ok {
			ch <- frame
		}
		return
	}
	if frame.Type != proto.OutboundTypeEvent {
		return
	}

	c.mu.Lock()
	_, wanted := c.active[frame.Event]
	c.mu.Unlock()
	if !wanted {
		return
	}
	c.listeners.Dispatch(frame.Event, frame.Data)
}

func (c *Client) heartbeat(ctx context.Context) {
	for {
		interval := c.latency.AdaptiveInterval(c.opts.HeartbeatInterval)
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
		conn := c.current()
		if conn == nil || c.State() != StateConnected {
			continue
		}
		start := time.Now()
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := conn.Ping(pingCtx)
		cancel()
		if err != nil {
			continue
		}
		c.latency.Record(time.Since(start))
	}
}

// Call sends a frame and waits for the matching ack or error reply.
func (c *Client) Call(ctx context.Context, kind string, data any) (*proto.Outbound, error) {
	conn := c.current()
	if conn == nil || c.State() != StateConnected {
		if c.State() == StateFailed {
			return nil, ErrGaveUp
		}
		return nil, ErrNotConnected
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	id := c.nextID()
	ch := make(chan *proto.Outbound, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	frame := proto.Inbound{ID: id, Type: kind, Data: payload}
	if err := wsjson.Write(ctx, conn, frame); err != nil {
		c.dropPending(id)
		return nil, err
	}

	select {
	case <-ctx.Done():
		c.dropPending(id)
		return nil, ctx.Err()
	case <-time.After(c.opts.AckTimeout):
		c.dropPending(id)
		return nil, ErrAckTimeout
	case reply := <-ch:
		return reply, nil
	}
}

// Notify sends a frame without waiting for a reply.
func (c *Client) Notify(ctx context.Context, kind string, data any) error {
	conn := c.current()
	if conn == nil || c.State() != StateConnected {
		return ErrNotConnected
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return wsjson.Write(ctx, conn, proto.Inbound{Type: kind, Data: payload})
}

// JoinRoom subscribes the connection to a room.
func (c *Client) JoinRoom(ctx context.Context, room string) error {
	return expectOK(c.Call(ctx, proto.InboundTypeRoomJoin, proto.RoomData{Room: room}))
}

// LeaveRoom unsubscribes the connection from a room.
func (c *Client) LeaveRoom(ctx context.Context, room string) error {
	return expectOK(c.Call(ctx, proto.InboundTypeRoomLeave, proto.RoomData{Room: room}))
}

// SendMessage posts a text message and returns the ack frame carrying
// the stored message.
func (c *Client) SendMessage(ctx context.Context, room, content string) (*proto.Outbound, error) {
	return c.Call(ctx, proto.InboundTypeMessageSend, proto.SendData{Room: room, Content: content})
}

// Typing reports typing activity. The server throttles repeats.
func (c *Client) Typing(ctx context.Context, room string, active bool) error {
	return c.Notify(ctx, proto.InboundTypeTyping, proto.TypingData{Room: room, Typing: active})
}

// SetStatus changes the presence status shown to other users.
func (c *Client) SetStatus(ctx context.Context, status string) error {
	return expectOK(c.Call(ctx, proto.InboundTypeStatus, proto.StatusData{Status: status}))
}

// Subscribe opts in to server-pushed data sync for a collection.
func (c *Client) Subscribe(ctx context.Context, dataType string) error {
	return expectOK(c.Call(ctx, proto.InboundTypeSubscribe, proto.SubscribeData{DataType: dataType}))
}

// Close tears down the connection and stops reconnect attempts.
func (c *Client) Close() error {
	c.state.Store(int32(StateDisconnected))
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.failPending(ErrNotConnected)
	if conn == nil {
		return nil
	}
	if c.opts.Pool != nil {
		c.opts.Pool.Remove(c.opts.PoolKey, conn)
	}
	return conn.Close(websocket.StatusNormalClosure, "bye")
}

func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Client) nextID() string {
	return "c-" + strconv.FormatUint(c.seq.Add(1), 10)
}

func (c *Client) dropPending(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) failPending(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan *proto.Outbound)
	c.mu.Unlock()
	for id, ch := range pending {
		errMsg := err.Error()
		ch <- &proto.Outbound{
			Type:    proto.OutboundTypeError,
			ReplyTo: id,
			Error:   &proto.Error{Code: "connection_lost", Msg: errMsg},
		}
	}
}

func expectOK(reply *proto.Outbound, err error) error {
	if err != nil {
		return err
	}
	if reply.Error != nil {
		return fmt.Errorf("server rejected request: %s", reply.Error.Msg)
	}
	if reply.OK != nil && !*reply.OK {
		return errors.New("server rejected request")
	}
	return nil
}
