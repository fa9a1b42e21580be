package gateway

// Event names, exact per the external interface's event catalog.
const (
	EventConnected = "connected"
	EventDisconnect = "disconnect"
	EventReconnect  = "reconnect"
	EventError      = "error"
	EventPing       = "ping"
	EventPong       = "pong"

	EventSessionCreate       = "session:create"
	EventSessionCreated      = "session:created"
	EventSessionTerminate    = "session:terminate"
	EventSessionTerminated   = "session:terminated"
	EventSessionError        = "session:error"
	EventSessionList         = "session:list"
	EventSessionListResponse = "session:list:response"

	EventTerminalInput             = "terminal:input"
	EventTerminalOutput            = "terminal:output"
	EventTerminalResize            = "terminal:resize"
	EventTerminalReconnect         = "terminal:reconnect"
	EventTerminalReconnectResponse = "terminal:reconnect:response"
	EventTerminalBuffer            = "terminal:buffer"
	EventTerminalClear             = "terminal:clear"

	EventStatusChange       = "status:change"
	EventStatusPatternAdd   = "status:pattern:add"
	EventStatusPatternRemove = "status:pattern:remove"
	EventStatusPatternsList  = "status:patterns:list"

	EventSSHConnect                    = "ssh:connect"
	EventSSHConnected                  = "ssh:connected"
	EventSSHInput                      = "ssh:input"
	EventSSHOutput                     = "ssh:output"
	EventSSHError                      = "ssh:error"
	EventSSHClose                      = "ssh:close"
	EventSSHResize                     = "ssh:resize"
	EventSSHKeyboardInteractiveResponse = "ssh:keyboard-interactive-response"
)

// Stable error codes, exact per §6.
const (
	CodeSessionNotFound   = "SESSION_NOT_FOUND"
	CodeSessionTerminated = "SESSION_TERMINATED"
	CodeProjectNotFound   = "PROJECT_NOT_FOUND"
	CodePTYSpawnFailed    = "PTY_SPAWN_FAILED"
	CodePTYWriteFailed    = "PTY_WRITE_FAILED"
	CodeSSHConnectionFailed = "SSH_CONNECTION_FAILED"
	CodeSSHAuthFailed     = "SSH_AUTH_FAILED"
	CodeSSHTimeout        = "SSH_TIMEOUT"
	CodeBufferNotFound    = "BUFFER_NOT_FOUND"
	CodeWSInvalidMessage  = "WS_INVALID_MESSAGE"
	CodeWSRateLimited     = "WS_RATE_LIMITED"
	CodeValidationFailed  = "VALIDATION_FAILED"
	CodeInternalError     = "INTERNAL_ERROR"
)
