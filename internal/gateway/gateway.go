// Package gateway implements the Event Gateway: the single duplex JSON
// message channel each browser client opens, mediated through the per-event
// discipline of rate limit -> schema validation -> dispatch -> reply, and
// the fanout that routes a session's output and status changes back to
// exactly the client that owns it. Grounded on the teacher's
// TerminalHandler.HandleTerminalWS (gorilla/websocket upgrade, one writer
// goroutine fed by a channel, one reader loop), generalized from a single
// terminal-typed message into the full event catalog §6 names.
package gateway

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/wireterm/termstation/internal/id"
	"github.com/wireterm/termstation/internal/session"
	"github.com/wireterm/termstation/internal/status"
	"github.com/wireterm/termstation/internal/vault"
)

// CredentialStore is the narrow slice of the Credential Vault's file store
// the gateway needs to resolve ssh:connect's optional credentialId.
type CredentialStore interface {
	Get(id string) (vault.Record, bool, error)
}

// Config bundles a Gateway's collaborators.
type Config struct {
	Detector    *status.Detector
	Vault       *vault.Vault
	Credentials CredentialStore
	CORSOrigin  string
}

// Gateway mediates every client's event channel.
type Gateway struct {
	manager  *session.Manager
	detector *status.Detector
	vlt      *vault.Vault
	creds    CredentialStore

	upgrader websocket.Upgrader
	validate *validator.Validate

	mu      sync.RWMutex
	clients map[string]*client

	pendingMu          sync.Mutex
	pendingCorrelation map[string]string

	dispatch map[string]handlerFunc
}

type handlerFunc func(gw *Gateway, c *client, raw json.RawMessage, correlationID string)

// New constructs a Gateway. Call AttachManager once the Session Manager
// exists (the Manager's Callbacks reference this Gateway, so construction
// order is Gateway -> Manager(with gw.Callbacks()) -> gw.AttachManager).
func New(cfg Config) *Gateway {
	gw := &Gateway{
		detector:           cfg.Detector,
		vlt:                cfg.Vault,
		creds:              cfg.Credentials,
		validate:           validator.New(),
		clients:            make(map[string]*client),
		pendingCorrelation: make(map[string]string),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return cfg.CORSOrigin == "" || cfg.CORSOrigin == "*" || r.Header.Get("Origin") == cfg.CORSOrigin
			},
		},
	}
	gw.dispatch = gw.buildDispatchTable()
	return gw
}

// AttachManager wires the Session Manager the Gateway dispatches into. Must
// be called before ServeWS handles any connection.
func (gw *Gateway) AttachManager(mgr *session.Manager) {
	gw.manager = mgr
}

// Callbacks returns the session.Callbacks this Gateway implements, for
// wiring into session.Config at Manager construction time.
func (gw *Gateway) Callbacks() session.Callbacks {
	return session.Callbacks{
		OnOutput:       gw.onOutput,
		OnStatusChange: gw.onStatusChange,
		OnSessionEvent: gw.onSessionEvent,
	}
}

// ServeWS upgrades the HTTP request to a websocket connection and runs the
// client's lifecycle until it disconnects.
func (gw *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := gw.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorf("gateway: upgrade failed: %v", err)
		return
	}

	c := newClient(id.New(id.PrefixClient), conn)
	gw.registerClient(c)
	defer gw.unregisterClient(c)

	go c.writeLoop()

	c.enqueue(newOutbound(EventConnected, map[string]string{"clientId": c.id}, ""))

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		gw.handleMessage(c, raw)
	}
}

func (gw *Gateway) registerClient(c *client) {
	gw.mu.Lock()
	gw.clients[c.id] = c
	gw.mu.Unlock()
}

func (gw *Gateway) unregisterClient(c *client) {
	gw.mu.Lock()
	delete(gw.clients, c.id)
	gw.mu.Unlock()
	c.closeDone()
	if gw.manager != nil {
		gw.manager.HandleClientDisconnect(c.id)
	}
}

func (gw *Gateway) clientByID(clientID string) (*client, bool) {
	gw.mu.RLock()
	defer gw.mu.RUnlock()
	c, ok := gw.clients[clientID]
	return c, ok
}

// handleMessage runs the per-event discipline: parse envelope, rate limit,
// schema validation (inside each handler, against its own payload type),
// dispatch, reply.
func (gw *Gateway) handleMessage(c *client, raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.enqueue(newOutbound(EventError, errorPayload{Code: CodeWSInvalidMessage, Message: err.Error()}, ""))
		return
	}

	if msg.Event == EventPing {
		c.enqueue(newOutbound(EventPong, nil, msg.CorrelationID))
		return
	}

	if !c.limiters.allow(msg.Event) {
		if silentDropOnLimit[msg.Event] {
			return
		}
		c.enqueue(newOutbound(EventError, errorPayload{Code: CodeWSRateLimited, Message: "rate limit exceeded for " + msg.Event}, msg.CorrelationID))
		return
	}

	handler, ok := gw.dispatch[msg.Event]
	if !ok {
		c.enqueue(newOutbound(EventError, errorPayload{Code: CodeWSInvalidMessage, Message: "unknown event " + msg.Event}, msg.CorrelationID))
		return
	}
	handler(gw, c, msg.Payload, msg.CorrelationID)
}

// decodeAndValidate unmarshals raw into dst and runs struct-tag validation,
// replying VALIDATION_FAILED on either failure. Returns false if the caller
// should stop processing.
func (gw *Gateway) decodeAndValidate(c *client, raw json.RawMessage, correlationID string, dst any) bool {
	if err := json.Unmarshal(raw, dst); err != nil {
		c.enqueue(newOutbound(EventError, errorPayload{Code: CodeValidationFailed, Message: err.Error()}, correlationID))
		return false
	}
	if err := gw.validate.Struct(dst); err != nil {
		c.enqueue(newOutbound(EventError, errorPayload{Code: CodeValidationFailed, Message: err.Error()}, correlationID))
		return false
	}
	return true
}

func (gw *Gateway) replyError(c *client, event, code, message, correlationID string) {
	c.enqueue(newOutbound(event, errorPayload{Code: code, Message: message}, correlationID))
}

// setPendingCorrelation records correlationID against sessionID so a
// synchronous Manager call's resulting OnSessionEvent callback (fired
// inside the same call stack) can attach it to the outbound message,
// instead of the handler sending a second, separate reply.
func (gw *Gateway) setPendingCorrelation(sessionID, correlationID string) {
	if correlationID == "" {
		return
	}
	gw.pendingMu.Lock()
	gw.pendingCorrelation[sessionID] = correlationID
	gw.pendingMu.Unlock()
}

func (gw *Gateway) popPendingCorrelation(sessionID string) string {
	gw.pendingMu.Lock()
	defer gw.pendingMu.Unlock()
	cid := gw.pendingCorrelation[sessionID]
	delete(gw.pendingCorrelation, sessionID)
	return cid
}

// onOutput fans a session's shell output out to its owning client only,
// using ssh:output or terminal:output depending on session type.
func (gw *Gateway) onOutput(sess *session.Session, data []byte) {
	owner := sess.OwnerClientID()
	if owner == "" {
		return
	}
	c, ok := gw.clientByID(owner)
	if !ok {
		return
	}
	event := EventTerminalOutput
	if sess.Type == session.TypeRemoteShell {
		event = EventSSHOutput
	}
	c.enqueue(newOutbound(event, map[string]string{"sessionId": sess.ID, "data": string(data)}, ""))
}

// onStatusChange fans a status:change transition out to the owning client.
func (gw *Gateway) onStatusChange(sess *session.Session, change status.ChangeEvent) {
	owner := sess.OwnerClientID()
	if owner == "" {
		return
	}
	c, ok := gw.clientByID(owner)
	if !ok {
		return
	}
	c.enqueue(newOutbound(EventStatusChange, map[string]any{
		"sessionId":      sess.ID,
		"previousStatus": change.PreviousStatus,
		"newStatus":      change.NewStatus,
		"matchedPattern": change.MatchedPattern,
		"timestamp":      change.Timestamp.UnixMilli(),
	}, ""))
}

// onSessionEvent fans a lifecycle transition out to the owning client,
// attaching any pending correlation id recorded by a synchronous handler
// that triggered it (e.g. session:terminate).
func (gw *Gateway) onSessionEvent(sess *session.Session, name string, exitCode *int) {
	owner := sess.OwnerClientID()
	correlationID := gw.popPendingCorrelation(sess.ID)
	if owner == "" {
		return
	}
	c, ok := gw.clientByID(owner)
	if !ok {
		return
	}
	payload := map[string]any{"sessionId": sess.ID, "status": sess.Status()}
	if exitCode != nil {
		payload["exitCode"] = *exitCode
	}
	c.enqueue(newOutbound(name, payload, correlationID))
}
