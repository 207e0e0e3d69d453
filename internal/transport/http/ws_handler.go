package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/core"
	"github.com/pulsechat/pulsechat-server/internal/perf"
	"github.com/pulsechat/pulsechat-server/internal/proto"
)

// WSOptions tunes the WebSocket handler.
type WSOptions struct {
	HandshakeTimeout   time.Duration
	HeartbeatInterval  time.Duration
	RateLimitPerMinute int
}

// WSHandler upgrades HTTP connections, runs the authenticated handshake and
// bridges the socket to a core.Client.
type WSHandler struct {
	hub      *core.Hub
	provider core.IdentityProvider
	metrics  *perf.Metrics
	opts     WSOptions
	log      *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, provider core.IdentityProvider, metrics *perf.Metrics, opts WSOptions, logger *zerolog.Logger) *WSHandler {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 5 * time.Second
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 10 * time.Second
	}
	return &WSHandler{hub: hub, provider: provider, metrics: metrics, opts: opts, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client, err := h.handshake(ctx, conn)
	if err != nil {
		// The reason was already written to the socket; never retried
		// server-side, the client must reconnect with a fresh credential.
		h.log.Warn().Err(err).Msg("handshake rejected")
		conn.Close(websocket.StatusPolicyViolation, err.Error())
		return
	}

	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.heartbeat(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutines
	<-errCh
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// handshake reads the authenticate frame and calls the identity collaborator
// exactly once, bounded by the handshake timeout.
func (h *WSHandler) handshake(ctx context.Context, conn *websocket.Conn) (*core.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, h.opts.HandshakeTimeout)
	defer cancel()

	var inbound proto.Inbound
	if err := wsjson.Read(ctx, conn, &inbound); err != nil {
		return nil, errors.New("expected authenticate frame")
	}
	if inbound.Type != proto.InboundTypeAuthenticate {
		h.reject(ctx, conn, inbound.ID, core.ErrCodeAuthFailed, "first frame must be authenticate")
		return nil, errors.New("first frame must be authenticate")
	}

	var data proto.AuthenticateData
	if err := json.Unmarshal(inbound.Data, &data); err != nil || data.Token == "" {
		h.reject(ctx, conn, inbound.ID, core.ErrCodeAuthFailed, "credential token is required")
		return nil, errors.New("credential token is required")
	}

	identity, err := h.provider.Verify(ctx, data.Token)
	if err != nil {
		h.reject(ctx, conn, inbound.ID, core.ErrCodeAuthFailed, err.Error())
		return nil, err
	}
	if !identity.Has(core.CapabilityRealtime) {
		h.reject(ctx, conn, inbound.ID, core.ErrCodeNoCapability, "realtime capability required")
		return nil, errors.New("realtime capability required")
	}

	client := core.NewClient(uuid.NewString(), identity)
	ok := true
	_ = wsjson.Write(ctx, conn, proto.Outbound{
		Type:    proto.OutboundTypeAck,
		ReplyTo: inbound.ID,
		OK:      &ok,
		Data: map[string]any{
			"connectionId": client.ID,
			"user":         identity.Ref(),
			"protocol":     proto.ProtocolVersion,
		},
	})
	return client, nil
}

func (h *WSHandler) reject(ctx context.Context, conn *websocket.Conn, replyTo, code, reason string) {
	ok := false
	_ = wsjson.Write(ctx, conn, proto.Outbound{
		Type:    proto.OutboundTypeError,
		ReplyTo: replyTo,
		OK:      &ok,
		Error:   &proto.Error{Code: code, Msg: reason},
	})
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.opts.RateLimitPerMinute)

	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if !limiter.allow() {
			h.metrics.Throttled()
			if err := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: &proto.Error{Code: "rate_limited", Msg: "too many frames"},
			}); err != nil {
				return err
			}
			continue
		}

		cmd, protoErr, err := inboundToCommand(inbound)
		if err != nil {
			h.metrics.Error()
			h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("failed to map inbound")
			return err
		}
		if protoErr != nil {
			if writeErr := wsjson.Write(ctx, conn, proto.Outbound{
				Type:    proto.OutboundTypeError,
				ReplyTo: inbound.ID,
				Error:   protoErr,
			}); writeErr != nil {
				return writeErr
			}
			continue
		}
		if cmd != nil {
			select {
			case client.Commands <- cmd:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// heartbeat probes round-trip latency on a fixed interval, feeding the
// performance controller's rolling window.
func (h *WSHandler) heartbeat(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	ticker := time.NewTicker(h.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			if err := conn.Ping(ctx); err != nil {
				return err
			}
			h.metrics.RecordLatency(time.Since(start))
		case <-client.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
