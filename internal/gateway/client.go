// Package gateway maintains one Discord (or Spacebar) gateway v9 websocket
// session: identify/resume handshake, heartbeating, zlib-stream
// decompression, and dispatch decoding into a buffered event stream the
// bridge engine consumes.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sparklost/spacebar-bridge/internal/logging"
)

// Session is one named gateway connection (e.g. "Discord" or "Spacebar").
// A Session is only safe to Run once; Events/Ready/MyID/Err may be called
// concurrently with Run from any goroutine.
type Session struct {
	name       string
	token      string
	host       string
	compressed bool

	httpClient *http.Client
	inflate    *inflator

	wsMu sync.Mutex
	ws   *websocket.Conn

	events chan Event

	sequence          atomic.Int64
	heartbeatAcked    atomic.Bool
	heartbeatInterval time.Duration

	sessionMu        sync.Mutex
	sessionID        string
	resumeGatewayURL string
	gatewayURL       string

	readyMu sync.Mutex
	ready   bool
	myID    string
	readyCh chan struct{}

	errMu sync.Mutex
	err   error
}

// New creates a gateway session. host is the bare API host (e.g.
// "discord.com"); compressed selects zlib-stream framing, which Spacebar
// does not support.
func New(name, token, host string, compressed bool) *Session {
	return &Session{
		name:       name,
		token:      token,
		host:       host,
		compressed: compressed,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		inflate:    &inflator{},
		events:     make(chan Event, 256),
		readyCh:    make(chan struct{}),
	}
}

// Events returns the channel of decoded dispatch events. The bridge engine
// drains this channel; it is never closed during normal operation.
func (s *Session) Events() <-chan Event { return s.events }

// Ready reports whether the READY dispatch has been processed at least once.
func (s *Session) Ready() bool {
	s.readyMu.Lock()
	defer s.readyMu.Unlock()
	return s.ready
}

// MyID returns the bridge's own user id on this endpoint, valid once Ready.
func (s *Session) MyID() string {
	s.readyMu.Lock()
	defer s.readyMu.Unlock()
	return s.myID
}

// Err returns the fatal error that ended the session, if any (e.g. an
// invalid token). A non-nil Err means Run has returned for good.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Session) setFatal(err error) {
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
}

// Run connects and keeps the session alive, resuming or re-identifying as
// needed, until ctx is cancelled or a fatal gateway error (invalid token)
// occurs. Reconnection is driven by ordinary control flow rather than a
// polled flag.
func (s *Session) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resumable, err := s.runOnce(ctx)
		if err != nil {
			if fatal, ok := err.(*fatalError); ok {
				s.setFatal(fatal.err)
				return fatal.err
			}
			logging.WithField("endpoint", s.name).Warnf("gateway connection ended: %v", err)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !resumable {
			s.sessionMu.Lock()
			s.sessionID = ""
			s.resumeGatewayURL = ""
			s.sequence.Store(0)
			s.sessionMu.Unlock()
			s.inflate.reset()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

type fatalError struct{ err error }

func (f *fatalError) Error() string { return f.err.Error() }

// runOnce establishes one connection, runs it until it drops, and reports
// whether the drop is resumable.
func (s *Session) runOnce(ctx context.Context) (resumable bool, err error) {
	s.sessionMu.Lock()
	resuming := s.sessionID != "" && s.resumeGatewayURL != ""
	s.sessionMu.Unlock()

	if err := s.dial(ctx, resuming); err != nil {
		return true, fmt.Errorf("dial: %w", err)
	}
	defer s.closeConn()

	hello, err := s.readHello(ctx)
	if err != nil {
		return true, fmt.Errorf("hello: %w", err)
	}
	s.heartbeatInterval = time.Duration(hello) * time.Millisecond

	if resuming {
		if err := s.sendResume(ctx); err != nil {
			return true, fmt.Errorf("resume: %w", err)
		}
	} else {
		if err := s.sendIdentify(ctx); err != nil {
			return true, fmt.Errorf("identify: %w", err)
		}
	}

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	disconnect := make(chan bool, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer cancel()
		disconnect <- s.heartbeatLoop(connCtx)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		r, fe := s.readLoop(connCtx)
		if fe != nil {
			err = fe
		}
		disconnect <- r
	}()

	// ReadMessage blocks on the raw connection and ignores ctx, so the
	// reader goroutine only notices a cancellation once the socket itself
	// errors out; force that here instead of waiting for a future frame.
	<-connCtx.Done()
	s.closeConn()
	wg.Wait()
	close(disconnect)

	resumable = true
	for r := range disconnect {
		resumable = resumable && r
	}
	if fe, ok := err.(*fatalError); ok {
		return false, fe
	}
	return resumable, err
}

func (s *Session) closeConn() {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	if s.ws != nil {
		s.ws.Close()
		s.ws = nil
	}
}

func (s *Session) dial(ctx context.Context, resume bool) error {
	url := s.gatewayURL
	s.sessionMu.Lock()
	if resume && s.resumeGatewayURL != "" {
		url = s.resumeGatewayURL
	}
	s.sessionMu.Unlock()

	if url == "" {
		fetched, err := s.fetchGatewayURL(ctx)
		if err != nil {
			return err
		}
		s.gatewayURL = fetched
		url = fetched
	}

	query := "/?v=9&encoding=json"
	if s.compressed {
		query += "&compress=zlib-stream"
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := http.Header{"User-Agent": []string{"spacebar-bridge"}}
	conn, _, err := dialer.DialContext(ctx, url+query, header)
	if err != nil {
		return fmt.Errorf("gateway(%s): dial %s: %w", s.name, url, err)
	}

	s.wsMu.Lock()
	s.ws = conn
	s.wsMu.Unlock()
	return nil
}

func (s *Session) fetchGatewayURL(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+s.host+"/api/v9/gateway", nil)
	if err != nil {
		return "", err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway(%s): fetch gateway url: %w", s.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway(%s): gateway url endpoint returned %d", s.name, resp.StatusCode)
	}
	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("gateway(%s): decode gateway url: %w", s.name, err)
	}
	return body.URL, nil
}

// rawFrame is the envelope every opcode is wrapped in.
type rawFrame struct {
	Op OpCode          `json:"op"`
	D  json.RawMessage `json:"d"`
	S  *int64          `json:"s"`
	T  string          `json:"t"`
}

func (s *Session) readRawFrame(ctx context.Context) (*rawFrame, error) {
	s.wsMu.Lock()
	conn := s.ws
	s.wsMu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("gateway(%s): no active connection", s.name)
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, s.classifyReadError(err)
	}

	if s.compressed {
		data, err = s.inflate.decompress(data)
		if err != nil {
			return nil, err
		}
	}

	var frame rawFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("gateway(%s): decode frame: %w", s.name, err)
	}
	return &frame, nil
}

func (s *Session) classifyReadError(err error) error {
	if ce, ok := err.(*websocket.CloseError); ok {
		logging.WithField("endpoint", s.name).Warnf("gateway closed: code=%d reason=%s", ce.Code, ce.Text)
		if fatalCloseCode(ce.Code) {
			return &fatalError{err: fmt.Errorf("gateway(%s): token invalid (close code %d)", s.name, ce.Code)}
		}
		if !resumableCloseCode(ce.Code) {
			return fmt.Errorf("gateway(%s): non-resumable close %d: %s", s.name, ce.Code, ce.Text)
		}
	}
	return err
}

func (s *Session) readHello(ctx context.Context) (intervalMs int64, err error) {
	frame, err := s.readRawFrame(ctx)
	if err != nil {
		return 0, err
	}
	if frame.Op != OpHello {
		return 0, fmt.Errorf("gateway(%s): expected hello, got op %d", s.name, frame.Op)
	}
	var hello struct {
		HeartbeatInterval int64 `json:"heartbeat_interval"`
	}
	if err := json.Unmarshal(frame.D, &hello); err != nil {
		return 0, fmt.Errorf("gateway(%s): decode hello: %w", s.name, err)
	}
	if hello.HeartbeatInterval == 0 {
		hello.HeartbeatInterval = 41250
	}
	return hello.HeartbeatInterval, nil
}

func (s *Session) send(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	if s.ws == nil {
		return fmt.Errorf("gateway(%s): no active connection", s.name)
	}
	s.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.ws.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) sendIdentify(ctx context.Context) error {
	payload := map[string]any{
		"op": OpIdentify,
		"d": map[string]any{
			"token": s.token,
			"properties": map[string]any{
				"os":      "linux",
				"browser": "spacebar-bridge",
				"device":  "spacebar-bridge",
			},
			"intents": Intents,
		},
	}
	if err := s.send(payload); err != nil {
		return err
	}
	logging.WithField("endpoint", s.name).Debugf("sent identify")
	return nil
}

func (s *Session) sendResume(ctx context.Context) error {
	s.sessionMu.Lock()
	seq := s.sequence.Load()
	payload := map[string]any{
		"op": OpResume,
		"d": map[string]any{
			"token":      s.token,
			"session_id": s.sessionID,
			"seq":        seq,
		},
	}
	s.sessionMu.Unlock()
	return s.send(payload)
}

// jitterInterval scales base by a random factor in [0.2, 0.8] so that many
// sessions reconnecting at once don't all heartbeat in lockstep.
func jitterInterval(base time.Duration) time.Duration {
	return time.Duration(float64(base) * (0.8 - 0.6*rand.Float64()))
}

func (s *Session) heartbeatLoop(ctx context.Context) bool {
	s.heartbeatAcked.Store(true)

	ticker := time.NewTicker(jitterInterval(s.heartbeatInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return true
		case <-ticker.C:
			acked := s.heartbeatAcked.Swap(false)
			if !acked {
				logging.WithField("endpoint", s.name).Warnf("heartbeat ack not received")
				return true
			}
			if err := s.send(map[string]any{"op": OpHeartbeat, "d": s.sequence.Load()}); err != nil {
				return true
			}
			ticker.Reset(jitterInterval(s.heartbeatInterval))
		}
	}
}

// readLoop consumes frames until the connection drops, dispatching each
// decoded event onto s.events. It returns whether the drop is resumable.
func (s *Session) readLoop(ctx context.Context) (resumable bool, err error) {
	for {
		select {
		case <-ctx.Done():
			return true, nil
		default:
		}

		frame, ferr := s.readRawFrame(ctx)
		if ferr != nil {
			if fe, ok := ferr.(*fatalError); ok {
				return false, fe
			}
			if ferr == io.EOF {
				return true, nil
			}
			return true, ferr
		}

		switch frame.Op {
		case OpHeartbeatAck:
			s.heartbeatAcked.Store(true)

		case OpHeartbeat:
			_ = s.send(map[string]any{"op": OpHeartbeat, "d": s.sequence.Load()})

		case OpReconnect:
			logging.WithField("endpoint", s.name).Infof("host requested reconnect")
			return true, nil

		case OpInvalidSession:
			logging.WithField("endpoint", s.name).Infof("session invalidated, reconnecting")
			return false, nil

		case OpDispatch:
			if frame.S != nil {
				s.sequence.Store(*frame.S)
			}
			s.handleDispatch(frame.T, frame.D)
		}
	}
}

func (s *Session) handleDispatch(eventType string, data json.RawMessage) {
	switch eventType {
	case "READY":
		var raw struct {
			ResumeGatewayURL string `json:"resume_gateway_url"`
			SessionID        string `json:"session_id"`
			User             struct {
				ID string `json:"id"`
			} `json:"user"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			logging.WithField("endpoint", s.name).Warnf("decode READY: %v", err)
			return
		}
		s.sessionMu.Lock()
		s.sessionID = raw.SessionID
		s.resumeGatewayURL = raw.ResumeGatewayURL
		s.sessionMu.Unlock()

		s.readyMu.Lock()
		firstReady := !s.ready
		s.ready = true
		s.myID = raw.User.ID
		s.readyMu.Unlock()
		if firstReady {
			close(s.readyCh)
		}

	case "MESSAGE_CREATE":
		if msg, err := decodeMessage(data); err == nil {
			s.emit(Event{Kind: KindCreate, Message: msg})
		}

	case "MESSAGE_UPDATE":
		if msg, err := decodeMessage(data); err == nil {
			s.emit(Event{Kind: KindUpdate, Message: msg})
		}

	case "MESSAGE_DELETE":
		var del DeleteEvent
		if err := json.Unmarshal(data, &del); err == nil {
			s.emit(Event{Kind: KindDelete, Delete: &del})
		}

	case "MESSAGE_REACTION_ADD":
		if r, err := decodeReactionAdd(data); err == nil {
			s.emit(Event{Kind: KindReactionAdd, Reaction: r})
		}

	case "MESSAGE_REACTION_REMOVE":
		if r, err := decodeReactionRemove(data); err == nil {
			s.emit(Event{Kind: KindReactionRemove, Reaction: r})
		}

	case "MESSAGE_REACTION_ADD_MANY":
		if many, err := decodeReactionAddMany(data); err == nil {
			for _, r := range many {
				s.emit(Event{Kind: KindReactionAdd, Reaction: r})
			}
		}
	}
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		logging.WithField("endpoint", s.name).Warnf("event buffer full, dropping %v event", ev.Kind)
	}
}
