package gateway

// Payload shapes for every client -> server event this gateway dispatches.
// Validated with go-playground/validator struct tags, matching the
// schema-validation step of the per-event discipline in §4.4.

type reconnectPayload struct {
	ProjectID  string   `json:"projectId" validate:"required"`
	SessionIDs []string `json:"sessionIds"`
}

type terminalReconnectPayload struct {
	SessionID string `json:"sessionId" validate:"required"`
}

type sessionCreatePayload struct {
	ProjectID string                `json:"projectId" validate:"required"`
	Type      string                `json:"type" validate:"required,oneof=local remote"`
	Local     *localSessionPayload  `json:"local,omitempty" validate:"omitempty"`
	Remote    *remoteSessionPayload `json:"remote,omitempty" validate:"omitempty"`
}

type localSessionPayload struct {
	Shell      string            `json:"shell"`
	WorkingDir string            `json:"workingDir"`
	Env        map[string]string `json:"env"`
	Cols       uint16            `json:"cols"`
	Rows       uint16            `json:"rows"`
}

type remoteSessionPayload struct {
	Host         string `json:"host" validate:"required"`
	Port         int    `json:"port" validate:"required,min=1,max=65535"`
	Username     string `json:"username" validate:"required"`
	AuthMethod   string `json:"authMethod" validate:"required,oneof=password private-key"`
	Password     string `json:"password"`
	PrivateKey   string `json:"privateKey"`
	CredentialID string `json:"credentialId"`
	Cols         uint16 `json:"cols"`
	Rows         uint16 `json:"rows"`
}

type sessionTerminatePayload struct {
	SessionID string `json:"sessionId" validate:"required"`
}

type sessionListPayload struct {
	ProjectID string `json:"projectId" validate:"required"`
}

type terminalInputPayload struct {
	SessionID string `json:"sessionId" validate:"required"`
	Data      string `json:"data"`
}

type terminalResizePayload struct {
	SessionID string `json:"sessionId" validate:"required"`
	Cols      uint16 `json:"cols" validate:"required"`
	Rows      uint16 `json:"rows" validate:"required"`
}

type terminalClearPayload struct {
	SessionID string `json:"sessionId" validate:"required"`
}

type patternAddPayload struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name"`
	Shell    string `json:"shell" validate:"omitempty,oneof=any local ssh"`
	Regex    string `json:"regex" validate:"required"`
	Status   string `json:"status" validate:"required,oneof=idle working waiting error"`
	Priority int    `json:"priority"`
	Enabled  *bool  `json:"enabled"`
}

type patternRemovePayload struct {
	ID string `json:"id" validate:"required"`
}

// sshConnectPayload shares remoteSessionPayload's shape plus the owning
// project, matching session:create's remote variant.
type sshConnectPayload struct {
	ProjectID string `json:"projectId" validate:"required"`
	remoteSessionPayload
}
