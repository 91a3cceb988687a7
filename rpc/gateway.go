package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BrightTonyTech/taskledger/errors"
	"github.com/BrightTonyTech/taskledger/ledger"
	"github.com/BrightTonyTech/taskledger/logging"
	"github.com/BrightTonyTech/taskledger/members"
	"github.com/BrightTonyTech/taskledger/node"
	"github.com/BrightTonyTech/taskledger/notify"
)

// Gateway methods outside the ledger's own method set.
const (
	MethodHello = "hello"
	MethodInfo  = "info"
	MethodChat  = "chat"
)

// HelloParams identify a connection.
type HelloParams struct {
	Signer string `json:"signer"`
}

// HelloResult confirms the identification.
type HelloResult struct {
	Node     node.Info `json:"node"`
	Signer   string    `json:"signer"`
	CanWrite bool      `json:"can_write"`
}

// ChatParams carry a relayed chat line.
type ChatParams struct {
	Text string `json:"text"`
}

// Config configures a Gateway.
type Config struct {
	// Listen is the TCP address to serve on, e.g. ":8080".
	Listen string

	// Node serves submissions and queries.
	Node *node.Node

	// Roster gates who may submit transactions.
	Roster members.Roster

	// Broadcaster is the event channel pushed to peers and fed by chat.
	// Nil disables push and chat relay.
	Broadcaster notify.Broadcaster

	// Logger for gateway output. Nil uses a default stdout logger.
	Logger *logging.Logger

	// WriteTimeout bounds each WebSocket write. Default: 10s.
	WriteTimeout time.Duration

	// PingInterval for keepalive pings. Default: 30s.
	PingInterval time.Duration

	// MaxMessageSize limits inbound frames. Default: 1MB.
	MaxMessageSize int64

	// SendBuffer is the per-peer outbound queue length. Default: 64.
	SendBuffer int
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Listen:         ":8080",
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 1 << 20,
		SendBuffer:     64,
	}
}

// Gateway accepts WebSocket peers, dispatches their JSON-RPC traffic to
// the node, and pushes broadcast events to every connected peer.
type Gateway struct {
	cfg      Config
	node     *node.Node
	roster   members.Roster
	bcast    notify.Broadcaster
	logger   *logging.Logger
	upgrader websocket.Upgrader

	server   *http.Server
	listener net.Listener

	mu    sync.Mutex
	peers map[*peer]struct{}

	sub        notify.Subscription
	fanoutDone chan struct{}
	closed     atomic.Bool
}

// peer is one connected WebSocket client.
type peer struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	signer string
}

// New creates a gateway. Call Start to begin serving.
func New(cfg Config) (*Gateway, error) {
	if cfg.Node == nil {
		return nil, fmt.Errorf("node is required")
	}
	if cfg.Roster == nil {
		return nil, fmt.Errorf("roster is required")
	}

	def := DefaultConfig()
	if cfg.Listen == "" {
		cfg.Listen = def.Listen
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.New()
	}

	return &Gateway{
		cfg:    cfg,
		node:   cfg.Node,
		roster: cfg.Roster,
		bcast:  cfg.Broadcaster,
		logger: logger.WithComponent("rpc"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients are CLI tools and processes, not browsers.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		peers:      make(map[*peer]struct{}),
		fanoutDone: make(chan struct{}),
	}, nil
}

// Start binds the listener and serves until Close.
func (g *Gateway) Start() error {
	ln, err := net.Listen("tcp", g.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", g.cfg.Listen, err)
	}
	g.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.handleWS)
	mux.HandleFunc("/healthz", g.handleHealth)
	g.server = &http.Server{Handler: mux}

	if g.bcast != nil {
		sub, err := g.bcast.Subscribe()
		if err != nil {
			ln.Close()
			return fmt.Errorf("subscribe to broadcaster: %w", err)
		}
		g.sub = sub
		go g.fanout()
	} else {
		close(g.fanoutDone)
	}

	go func() {
		if err := g.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			g.logger.Error("serve failed", map[string]interface{}{"error": err.Error()})
		}
	}()
	g.logger.Info("gateway listening", map[string]interface{}{"addr": ln.Addr().String()})
	return nil
}

// Addr returns the bound address, useful when Listen was ":0".
func (g *Gateway) Addr() string {
	if g.listener == nil {
		return ""
	}
	return g.listener.Addr().String()
}

// Close disconnects all peers and stops the listener. The node and
// broadcaster are not closed; close them after the gateway.
func (g *Gateway) Close() error {
	if g.closed.Swap(true) {
		return nil
	}

	g.mu.Lock()
	peers := make([]*peer, 0, len(g.peers))
	for p := range g.peers {
		peers = append(peers, p)
	}
	g.mu.Unlock()
	for _, p := range peers {
		p.close()
	}

	if g.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		g.server.Shutdown(ctx)
	}

	if g.sub != nil {
		g.sub.Unsubscribe()
	}
	<-g.fanoutDone
	return nil
}

// fanout pushes broadcast events to every connected peer.
func (g *Gateway) fanout() {
	defer close(g.fanoutDone)
	for event := range g.sub.Events() {
		data, err := json.Marshal(Notification{JSONRPC: "2.0", Method: event.Type, Params: event})
		if err != nil {
			continue
		}
		g.mu.Lock()
		for p := range g.peers {
			p.offer(data)
		}
		g.mu.Unlock()
	}
}

// handleWS upgrades the connection and runs it until it drops.
func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	if g.closed.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	conn.SetReadLimit(g.cfg.MaxMessageSize)

	p := &peer{
		conn: conn,
		send: make(chan []byte, g.cfg.SendBuffer),
		done: make(chan struct{}),
	}
	g.mu.Lock()
	g.peers[p] = struct{}{}
	g.mu.Unlock()
	g.logger.PeerConnected(conn.RemoteAddr().String())

	go g.writeLoop(p)
	g.readLoop(p)

	p.close()
	g.mu.Lock()
	delete(g.peers, p)
	g.mu.Unlock()
	g.logger.PeerDisconnected(conn.RemoteAddr().String())
}

// readLoop dispatches inbound frames until the connection drops.
func (g *Gateway) readLoop(p *peer) {
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		g.dispatch(p, data)
	}
}

// writeLoop drains the peer's outbound queue.
func (g *Gateway) writeLoop(p *peer) {
	ticker := newPingTicker(g.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
		case data := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				p.close()
				return
			}
		}
	}
}

// newPingTicker returns a keepalive ticker, or one that never fires
// when the interval is negative.
func newPingTicker(interval time.Duration) *time.Ticker {
	if interval > 0 {
		return time.NewTicker(interval)
	}
	ticker := time.NewTicker(time.Hour)
	ticker.Stop()
	return ticker
}

// dispatch routes one inbound frame.
func (g *Gateway) dispatch(p *peer, data []byte) {
	req, perr := parseMessage(data)
	if perr != nil {
		p.respond(&Response{JSONRPC: "2.0", Error: perr})
		return
	}

	if req.ID == nil {
		g.handleNotification(p, req)
		return
	}

	result, err := g.call(p, req.Method, req.Params)
	if err != nil {
		p.respond(&Response{JSONRPC: "2.0", ID: req.ID, Error: errorBody(err)})
		return
	}
	p.respond(&Response{JSONRPC: "2.0", ID: req.ID, Result: result})
}

// call executes one request on behalf of the peer.
func (g *Gateway) call(p *peer, method string, params json.RawMessage) (interface{}, error) {
	switch {
	case method == MethodHello:
		var hp HelloParams
		if len(params) > 0 {
			if err := json.Unmarshal(params, &hp); err != nil {
				return nil, errors.Validation("malformed params", errors.WithCause(err))
			}
		}
		signer := strings.TrimSpace(hp.Signer)
		if signer == "" {
			return nil, errors.Validation("signer is required")
		}
		p.signer = signer
		return HelloResult{
			Node:     g.node.Info(),
			Signer:   signer,
			CanWrite: g.roster.CanWrite(signer),
		}, nil

	case method == MethodInfo:
		return g.node.Info(), nil

	case ledger.IsView(method):
		return g.node.Query(method, params)

	case ledger.IsTransaction(method):
		if p.signer == "" {
			return nil, errors.Unauthorized("identify with hello before submitting transactions")
		}
		if !g.roster.CanWrite(p.signer) {
			return nil, errors.Unauthorized(
				fmt.Sprintf("signer %s may not submit transactions", p.signer),
				errors.WithSigner(p.signer),
			)
		}
		var body interface{}
		if len(params) > 0 {
			body = params
		}
		return g.node.Submit(context.Background(), method, p.signer, body)

	default:
		return nil, errors.UnknownMethod(method)
	}
}

// handleNotification handles inbound fire-and-forget messages. Only
// chat is recognized; malformed or unexpected payloads are dropped
// without a reply.
func (g *Gateway) handleNotification(p *peer, req *Request) {
	if req.Method != MethodChat || g.bcast == nil {
		return
	}
	if p.signer == "" {
		g.logger.NotifyDropped(notify.EventChat, "peer has not identified")
		return
	}

	var cp ChatParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &cp); err != nil {
			g.logger.NotifyDropped(notify.EventChat, "malformed params")
			return
		}
	}
	text := strings.TrimSpace(cp.Text)
	if text == "" {
		return
	}
	if err := g.bcast.Publish(notify.Chat(text)); err != nil {
		g.logger.NotifyDropped(notify.EventChat, err.Error())
	}
}

// handleHealth answers the liveness probe.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"node":   g.node.Info(),
	})
}

// respond queues a response, waiting if the peer's queue is full.
func (p *peer) respond(resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	select {
	case p.send <- data:
	case <-p.done:
	}
}

// offer queues a push event, dropping it if the peer cannot keep up.
func (p *peer) offer(data []byte) {
	select {
	case p.send <- data:
	case <-p.done:
	default:
	}
}

// close shuts the connection down once.
func (p *peer) close() {
	p.once.Do(func() {
		close(p.done)
		p.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		p.conn.Close()
	})
}
