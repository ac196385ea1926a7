package transport

import (
	"io"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// client is anything the Hub can push a ControlEnvelope to and later close,
// regardless of whether it arrived over WebSocket or gRPC.
type client interface {
	Send(ControlEnvelope) error
	Close() error
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) Send(env ControlEnvelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(env)
}

func (c *wsClient) Close() error { return c.conn.Close() }

type grpcClient struct {
	stream Control_StreamServer
	mu     sync.Mutex
}

func (c *grpcClient) Send(env ControlEnvelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream.Send(&env)
}

func (c *grpcClient) Close() error { return nil }

// Controller is the session-lifecycle boundary transport dispatches onto.
// A pipeline.Manager (or an equivalent test double) implements this.
type Controller interface {
	StartSession(cfg SessionConfig) (sessionID string, err error)
	Pause(sessionID string) error
	Resume(sessionID string) error
	Stop(sessionID string) error
	PushAudio(sessionID string, frame AudioFrame) error
	Metrics(sessionID string) (MetricsSnapshot, error)
}

// Hub fans out session events to every subscribed client and dispatches
// inbound envelopes from either transport to a Controller. It generalizes
// the teacher's single global broadcast-to-all-clients model (spec §6 has
// no per-subscriber filtering requirement, so one stream serves everyone).
type Hub struct {
	controller Controller

	mu      sync.Mutex
	clients map[client]bool
}

func NewHub(controller Controller) *Hub {
	return &Hub{
		controller: controller,
		clients:    make(map[client]bool),
	}
}

func (h *Hub) addClient(c client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

func (h *Hub) removeClient(c client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	_ = c.Close()
}

func (h *Hub) broadcast(env ControlEnvelope) {
	h.mu.Lock()
	targets := make([]client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.Send(env); err != nil {
			log.Printf("transport: send error: %v", err)
			h.removeClient(c)
		}
	}
}

// EmitSpeakerDetected, EmitTranscript, EmitProgress, EmitWarning, and
// EmitFatal are the event-side callbacks a pipeline.Manager invokes as a
// session progresses; each corresponds to one spec §6 event kind.
func (h *Hub) EmitSpeakerDetected(sessionID string, ev SpeakerDetected) {
	h.broadcast(ControlEnvelope{Type: TypeSpeakerDetected, SessionID: sessionID, SpeakerDetected: &ev})
}

func (h *Hub) EmitTranscript(sessionID string, ev TranscriptEvent) {
	h.broadcast(ControlEnvelope{Type: TypeTranscriptEmitted, SessionID: sessionID, Transcript: &ev})
}

func (h *Hub) EmitProgress(sessionID string, ev ProgressEvent) {
	h.broadcast(ControlEnvelope{Type: TypeProcessingProgress, SessionID: sessionID, Progress: &ev})
}

func (h *Hub) EmitWarning(sessionID string, ev WarningEvent) {
	h.broadcast(ControlEnvelope{Type: TypeWarning, SessionID: sessionID, Warning: &ev})
}

func (h *Hub) EmitFatal(sessionID string, ev FatalEvent) {
	h.broadcast(ControlEnvelope{Type: TypeFatal, SessionID: sessionID, Fatal: &ev})
}

// HandleWebSocket upgrades r and pumps envelopes between the socket and the
// Hub's dispatcher until the connection closes.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("transport: upgrade: %v", err)
		return
	}

	c := &wsClient{conn: conn}
	h.addClient(c)
	defer h.removeClient(c)

	for {
		var env ControlEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			log.Printf("transport: ws read: %v", err)
			return
		}
		h.dispatch(c, env)
	}
}

// Stream implements ControlServer for the gRPC transport, mirroring
// HandleWebSocket's pump loop over a bidirectional stream.
func (h *Hub) Stream(stream Control_StreamServer) error {
	c := &grpcClient{stream: stream}
	h.addClient(c)
	defer h.removeClient(c)

	for {
		env, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			log.Printf("transport: grpc recv: %v", err)
			return err
		}
		if env == nil {
			continue
		}
		h.dispatch(c, *env)
	}
}

func (h *Hub) dispatch(c client, env ControlEnvelope) {
	switch env.Type {
	case TypeStartSession:
		cfg := SessionConfig{}
		if env.StartConfig != nil {
			cfg = *env.StartConfig
		}
		sessionID, err := h.controller.StartSession(cfg)
		if err != nil {
			_ = c.Send(ControlEnvelope{Type: TypeStartSession, Error: err.Error()})
			return
		}
		_ = c.Send(ControlEnvelope{Type: TypeSessionStarted, SessionID: sessionID})

	case TypePause:
		h.reply(c, env.Type, env.SessionID, h.controller.Pause(env.SessionID))

	case TypeResume:
		h.reply(c, env.Type, env.SessionID, h.controller.Resume(env.SessionID))

	case TypeStop:
		h.reply(c, env.Type, env.SessionID, h.controller.Stop(env.SessionID))

	case TypePushAudio:
		if env.AudioFrame == nil {
			h.reply(c, env.Type, env.SessionID, errMissingAudioFrame)
			return
		}
		h.reply(c, env.Type, env.SessionID, h.controller.PushAudio(env.SessionID, *env.AudioFrame))

	case TypeSubscribe:
		// No-op: addClient already subscribed c to every broadcast event.

	case TypeGetMetrics:
		m, err := h.controller.Metrics(env.SessionID)
		if err != nil {
			_ = c.Send(ControlEnvelope{Type: TypeGetMetrics, SessionID: env.SessionID, Error: err.Error()})
			return
		}
		_ = c.Send(ControlEnvelope{Type: TypeMetrics, SessionID: env.SessionID, Metrics: &m})

	default:
		_ = c.Send(ControlEnvelope{Type: env.Type, SessionID: env.SessionID, Error: "unknown envelope type: " + env.Type})
	}
}

func (h *Hub) reply(c client, typ, sessionID string, err error) {
	if err != nil {
		_ = c.Send(ControlEnvelope{Type: typ, SessionID: sessionID, Error: err.Error()})
		return
	}
	_ = c.Send(ControlEnvelope{Type: typ, SessionID: sessionID})
}
