// Package topic defines the relay's bit-exact wire vocabulary: the
// fixed topic names, the client-frame JSON schema, and the stable
// error-code enum. Nothing in this package depends on actorkit,
// central, or userhub; it is pure protocol.
package topic

// Topic names exchanged between the transport and the hub tree, and
// between hubs. These are stable strings, not an enum, because unknown
// topics are meaningful (Central Hub forwards anything it doesn't
// recognize; User Hub broadcasts any topic other than ws.join,
// ws.leave, ws.message and ws.cancel).
const (
	Join           = "ws.join"
	Leave          = "ws.leave"
	Message        = "ws.message"
	Cancel         = "ws.cancel"
	Control        = "ws.control"
	Error          = "error"
	Welcome        = "welcome"
	ActivityUpdate = "hub.activity_update"
	Resume         = "resume"
	Shutdown       = "shutdown"
)

// SessionPluginPrefix is the reserved prefix that marks a plugin as
// the user's session keeper.
const SessionPluginPrefix = "session_"

// ErrorKind is the stable, string-enum error vocabulary sent to
// clients on the "error" topic.
type ErrorKind string

const (
	ErrMissingUserID         ErrorKind = "missing_user_id"
	ErrMaxConnectionsReached ErrorKind = "max_connections_reached"
	ErrHubCreationFailed     ErrorKind = "hub_creation_failed"
	ErrInvalidJSON           ErrorKind = "invalid_json"
	ErrUnknownCommand        ErrorKind = "unknown_command"
	ErrPluginNotFound        ErrorKind = "plugin_not_found"
	ErrPluginFailed          ErrorKind = "plugin_failed"
)

// ErrorFrame is the payload of an "error" topic message sent to a
// client, carrying the offending request_id when one was present.
type ErrorFrame struct {
	Error     ErrorKind `json:"error"`
	Message   string    `json:"message,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// ClientFrame is the JSON body of a ws.message frame.
type ClientFrame struct {
	Type       string          `json:"type"`
	RequestID  string          `json:"request_id,omitempty"`
	SessionID  string          `json:"session_id,omitempty"`
	Data       any             `json:"data,omitempty"`
	StartToken string          `json:"start_token,omitempty"`
	Context    any             `json:"context,omitempty"`
}

// PluginMessage is the payload a User Hub forwards to a Plugin after
// stripping the matched prefix off ClientFrame.Type.
type PluginMessage struct {
	ConnPID    string `json:"conn_pid"`
	RequestID  string `json:"request_id,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	Type       string `json:"type"`
	Data       any    `json:"data,omitempty"`
	StartToken string `json:"start_token,omitempty"`
	Context    any    `json:"context,omitempty"`
}

// ControlFrame is the ws.control rebind payload sent to a client on
// admission.
type ControlFrame struct {
	TargetPID string                 `json:"target_pid"`
	Metadata  map[string]any         `json:"metadata,omitempty"`
	Plugins   []PluginDescriptorView `json:"plugins"`
}

// WelcomeFrame greets a client once it has rebound to its User Hub.
type WelcomeFrame struct {
	UserID       string                 `json:"user_id"`
	ClientCount  int                    `json:"client_count"`
	Plugins      []PluginDescriptorView `json:"plugins"`
}

// ActivityUpdateFrame is posted from a User Hub to the Central Hub.
type ActivityUpdateFrame struct {
	UserID       string `json:"user_id"`
	ClientCount  int    `json:"client_count"`
	LastActivity string `json:"last_activity"` // RFC3339 UTC
}

// PluginDescriptorView is the client-facing projection of a plugin
// registry entry, sent in ws.control and welcome frames. It
// deliberately omits ProcessID/Host, which are internal spawn
// coordinates the client has no use for.
type PluginDescriptorView struct {
	Prefix    string `json:"prefix"`
	AutoStart bool   `json:"auto_start"`
}
