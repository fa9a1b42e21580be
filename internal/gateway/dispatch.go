package gateway

import (
	"encoding/json"
	"errors"

	"github.com/wireterm/termstation/internal/session"
	"github.com/wireterm/termstation/internal/status"
)

func (gw *Gateway) buildDispatchTable() map[string]handlerFunc {
	return map[string]handlerFunc{
		EventReconnect:               (*Gateway).handleReconnect,
		EventSessionCreate:           (*Gateway).handleSessionCreate,
		EventSessionTerminate:        (*Gateway).handleSessionTerminate,
		EventSessionList:             (*Gateway).handleSessionList,
		EventTerminalInput:           (*Gateway).handleTerminalInput,
		EventTerminalResize:          (*Gateway).handleTerminalResize,
		EventTerminalReconnect:       (*Gateway).handleTerminalReconnect,
		EventTerminalClear:           (*Gateway).handleTerminalClear,
		EventStatusPatternAdd:        (*Gateway).handlePatternAdd,
		EventStatusPatternRemove:     (*Gateway).handlePatternRemove,
		EventStatusPatternsList:      (*Gateway).handlePatternsList,
		EventSSHConnect:              (*Gateway).handleSSHConnect,
		EventSSHInput:                (*Gateway).handleTerminalInput,
		EventSSHResize:               (*Gateway).handleTerminalResize,
		EventSSHClose:                (*Gateway).handleSessionTerminate,
		EventSSHKeyboardInteractiveResponse: (*Gateway).handleSSHKeyboardInteractiveResponse,
	}
}

// mapSessionError translates a Session Manager error into the stable
// gateway error code the wire contract requires.
func mapSessionError(err error) string {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return CodeSessionNotFound
	case errors.Is(err, session.ErrSessionTerminated):
		return CodeSessionTerminated
	case errors.Is(err, session.ErrProjectNotFound):
		return CodeProjectNotFound
	case errors.Is(err, session.ErrPTYSpawnFailed):
		return CodePTYSpawnFailed
	case errors.Is(err, session.ErrSSHConnectFailed):
		return CodeSSHConnectionFailed
	default:
		return CodeInternalError
	}
}

func (gw *Gateway) handleReconnect(c *client, raw json.RawMessage, correlationID string) {
	var p reconnectPayload
	if !gw.decodeAndValidate(c, raw, correlationID, &p) {
		return
	}

	result := gw.manager.HandleClientReconnect(c.id, p.SessionIDs)

	statusChanges := make(map[string]status.Activity, len(result.StatusChanges))
	for k, v := range result.StatusChanges {
		statusChanges[k] = v
	}

	buffers := make([]map[string]any, 0, len(result.Buffers))
	for sessID, snap := range result.Buffers {
		buffers = append(buffers, map[string]any{
			"sessionId":             sessID,
			"outputSinceDisconnect": snap.OutputSinceDisconnect,
			"disconnectTime":        snap.DisconnectTime.UnixMilli(),
			"reconnectTime":         snap.ReconnectTime.UnixMilli(),
		})
	}

	c.enqueue(newOutbound(EventReconnect, map[string]any{
		"activeSessions":     result.ActiveSessions,
		"terminatedSessions": result.TerminatedSessions,
		"statusChanges":      statusChanges,
		"buffers":            buffers,
	}, correlationID))

	// The buffer replay always follows the reconnect response on the same
	// channel, per §5's ordering guarantee — the send queue preserves that
	// order since both go through the same per-client channel.
	for sessID, snap := range result.Buffers {
		if snap.OutputSinceDisconnect == "" {
			continue
		}
		c.enqueue(newOutbound(EventTerminalBuffer, map[string]any{
			"sessionId": sessID,
			"data":      snap.OutputSinceDisconnect,
			"isReplay":  true,
		}, ""))
	}
}

func (gw *Gateway) handleTerminalReconnect(c *client, raw json.RawMessage, correlationID string) {
	var p terminalReconnectPayload
	if !gw.decodeAndValidate(c, raw, correlationID, &p) {
		return
	}

	result := gw.manager.HandleClientReconnect(c.id, []string{p.SessionID})
	for _, terminated := range result.TerminatedSessions {
		if terminated == p.SessionID {
			c.enqueue(newOutbound(EventTerminalReconnectResponse, map[string]any{
				"sessionId": p.SessionID,
				"success":   false,
				"error":     CodeSessionNotFound,
			}, correlationID))
			return
		}
	}

	c.enqueue(newOutbound(EventTerminalReconnectResponse, map[string]any{
		"sessionId":      p.SessionID,
		"success":        true,
		"bufferedOutput": result.Buffers[p.SessionID].OutputSinceDisconnect,
		"currentStatus":  result.StatusChanges[p.SessionID],
	}, correlationID))
}

func (gw *Gateway) handleSessionCreate(c *client, raw json.RawMessage, correlationID string) {
	var p sessionCreatePayload
	if !gw.decodeAndValidate(c, raw, correlationID, &p) {
		return
	}

	var sess *session.Session
	var err error

	switch p.Type {
	case "local":
		if p.Local == nil {
			gw.replyError(c, EventSessionError, CodeValidationFailed, "local session requires a local descriptor", correlationID)
			return
		}
		sess, err = gw.manager.CreateTerminalSession(c.id, p.ProjectID, session.LocalDescriptor{
			Shell:      p.Local.Shell,
			WorkingDir: p.Local.WorkingDir,
			Env:        p.Local.Env,
			Cols:       p.Local.Cols,
			Rows:       p.Local.Rows,
		})
	case "remote":
		if p.Remote == nil {
			gw.replyError(c, EventSessionError, CodeValidationFailed, "remote session requires a remote descriptor", correlationID)
			return
		}
		var dial session.RemoteDialConfig
		dial, err = gw.resolveRemoteDial(*p.Remote)
		if err != nil {
			gw.replyError(c, EventSessionError, CodeSSHAuthFailed, err.Error(), correlationID)
			return
		}
		sess, err = gw.manager.CreateRemoteSession(c.id, p.ProjectID, session.RemoteDescriptor{
			Host:       p.Remote.Host,
			Port:       p.Remote.Port,
			Username:   p.Remote.Username,
			AuthMethod: p.Remote.AuthMethod,
			Cols:       p.Remote.Cols,
			Rows:       p.Remote.Rows,
		}, dial)
	}

	if err != nil {
		gw.replyError(c, EventSessionError, mapSessionError(err), err.Error(), correlationID)
		return
	}

	c.enqueue(newOutbound(EventSessionCreated, map[string]any{
		"sessionId": sess.ID,
		"projectId": sess.ProjectID,
		"type":      sess.Type,
		"status":    sess.Status(),
	}, correlationID))
}

// resolveRemoteDial builds a session.RemoteDialConfig from inline payload
// fields, or from a stored credential when credentialId is set.
func (gw *Gateway) resolveRemoteDial(p remoteSessionPayload) (session.RemoteDialConfig, error) {
	if p.CredentialID == "" {
		return session.RemoteDialConfig{
			Host: p.Host, Port: p.Port, Username: p.Username,
			AuthMethod: p.AuthMethod, Password: p.Password, PrivateKey: p.PrivateKey,
			Cols: p.Cols, Rows: p.Rows,
		}, nil
	}
	if gw.creds == nil || gw.vlt == nil {
		return session.RemoteDialConfig{}, errors.New("credential store not configured")
	}
	rec, ok, err := gw.creds.Get(p.CredentialID)
	if err != nil {
		return session.RemoteDialConfig{}, err
	}
	if !ok {
		return session.RemoteDialConfig{}, errors.New("credential not found")
	}
	auth, err := gw.vlt.Reveal(rec)
	if err != nil {
		return session.RemoteDialConfig{}, err
	}
	return session.RemoteDialConfig{
		Host: rec.Host, Port: rec.Port, Username: rec.Username,
		AuthMethod: string(rec.Method), Password: auth.Password, PrivateKey: auth.PrivateKey,
		Cols: p.Cols, Rows: p.Rows,
	}, nil
}

func (gw *Gateway) handleSessionTerminate(c *client, raw json.RawMessage, correlationID string) {
	var p sessionTerminatePayload
	if !gw.decodeAndValidate(c, raw, correlationID, &p) {
		return
	}
	gw.setPendingCorrelation(p.SessionID, correlationID)
	if err := gw.manager.TerminateSession(p.SessionID); err != nil {
		gw.popPendingCorrelation(p.SessionID)
		gw.replyError(c, EventSessionError, mapSessionError(err), err.Error(), correlationID)
	}
	// The success reply is sent by onSessionEvent, which fires synchronously
	// inside TerminateSession and consumes the pending correlation id above.
}

func (gw *Gateway) handleSessionList(c *client, raw json.RawMessage, correlationID string) {
	var p sessionListPayload
	if !gw.decodeAndValidate(c, raw, correlationID, &p) {
		return
	}
	ids := gw.manager.SessionsByProject(p.ProjectID)
	summaries := make([]map[string]any, 0, len(ids))
	for _, sessID := range ids {
		sess, ok := gw.manager.Get(sessID)
		if !ok {
			continue
		}
		summaries = append(summaries, map[string]any{
			"sessionId":      sess.ID,
			"type":           sess.Type,
			"status":         sess.Status(),
			"activityStatus": sess.ActivityStatus(),
		})
	}
	c.enqueue(newOutbound(EventSessionListResponse, map[string]any{"sessions": summaries}, correlationID))
}

func (gw *Gateway) handleTerminalInput(c *client, raw json.RawMessage, correlationID string) {
	var p terminalInputPayload
	if !gw.decodeAndValidate(c, raw, correlationID, &p) {
		return
	}
	if err := gw.manager.Write(p.SessionID, []byte(p.Data)); err != nil {
		code := mapSessionError(err)
		if code == CodeInternalError {
			code = CodePTYWriteFailed
		}
		gw.replyError(c, EventError, code, err.Error(), correlationID)
	}
}

func (gw *Gateway) handleTerminalResize(c *client, raw json.RawMessage, correlationID string) {
	var p terminalResizePayload
	if !gw.decodeAndValidate(c, raw, correlationID, &p) {
		return
	}
	if err := gw.manager.Resize(p.SessionID, p.Cols, p.Rows); err != nil {
		gw.replyError(c, EventError, mapSessionError(err), err.Error(), correlationID)
	}
}

func (gw *Gateway) handleTerminalClear(c *client, raw json.RawMessage, correlationID string) {
	var p terminalClearPayload
	if !gw.decodeAndValidate(c, raw, correlationID, &p) {
		return
	}
	if _, ok := gw.manager.Get(p.SessionID); !ok {
		gw.replyError(c, EventError, CodeSessionNotFound, "session not found", correlationID)
		return
	}
	gw.manager.ClearBuffer(p.SessionID)
}

func (gw *Gateway) handlePatternAdd(c *client, raw json.RawMessage, correlationID string) {
	var p patternAddPayload
	if !gw.decodeAndValidate(c, raw, correlationID, &p) {
		return
	}
	enabled := true
	if p.Enabled != nil {
		enabled = *p.Enabled
	}
	shell := status.ShellAny
	if p.Shell != "" {
		shell = status.Shell(p.Shell)
	}
	pattern := status.Pattern{
		ID:       p.ID,
		Name:     p.Name,
		Shell:    shell,
		Regex:    p.Regex,
		Status:   status.Activity(p.Status),
		Priority: p.Priority,
		Enabled:  enabled,
	}
	if err := gw.detector.AddPattern(pattern); err != nil {
		gw.replyError(c, EventError, CodeValidationFailed, err.Error(), correlationID)
		return
	}
	gw.replyPatternsList(c, correlationID)
}

func (gw *Gateway) handlePatternRemove(c *client, raw json.RawMessage, correlationID string) {
	var p patternRemovePayload
	if !gw.decodeAndValidate(c, raw, correlationID, &p) {
		return
	}
	gw.detector.RemovePattern(p.ID)
	gw.replyPatternsList(c, correlationID)
}

func (gw *Gateway) handlePatternsList(c *client, raw json.RawMessage, correlationID string) {
	gw.replyPatternsList(c, correlationID)
}

func (gw *Gateway) replyPatternsList(c *client, correlationID string) {
	patterns := gw.detector.GetPatterns()
	out := make([]map[string]any, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, map[string]any{
			"id": p.ID, "name": p.Name, "shell": p.Shell, "regex": p.Regex,
			"status": p.Status, "priority": p.Priority, "enabled": p.Enabled,
		})
	}
	c.enqueue(newOutbound(EventStatusPatternsList, map[string]any{"patterns": out}, correlationID))
}

func (gw *Gateway) handleSSHConnect(c *client, raw json.RawMessage, correlationID string) {
	var p sshConnectPayload
	if !gw.decodeAndValidate(c, raw, correlationID, &p) {
		return
	}
	dial, err := gw.resolveRemoteDial(p.remoteSessionPayload)
	if err != nil {
		gw.replyError(c, EventSSHError, CodeSSHAuthFailed, err.Error(), correlationID)
		return
	}
	sess, err := gw.manager.CreateRemoteSession(c.id, p.ProjectID, session.RemoteDescriptor{
		Host: p.Host, Port: p.Port, Username: p.Username, AuthMethod: p.AuthMethod,
		Cols: p.Cols, Rows: p.Rows,
	}, dial)
	if err != nil {
		gw.replyError(c, EventSSHError, mapSessionError(err), err.Error(), correlationID)
		return
	}
	c.enqueue(newOutbound(EventSSHConnected, map[string]any{"sessionId": sess.ID}, correlationID))
}

// handleSSHKeyboardInteractiveResponse acknowledges the event but always
// reports auth failure: the remoteshell collaborator only implements
// password and public-key authentication, not an interactive
// challenge-response exchange.
func (gw *Gateway) handleSSHKeyboardInteractiveResponse(c *client, raw json.RawMessage, correlationID string) {
	gw.replyError(c, EventSSHError, CodeSSHAuthFailed, "keyboard-interactive authentication is not supported", correlationID)
}
