package model

// Broadcast actions emitted by the orchestrator.
const (
	ActionNowPlaying = "now_playing"
	ActionNextComing = "next_coming"
	ActionQueue      = "queue"
	ActionListeners  = "listeners"
)

// ActionOnStart greets a session right after it connects.
const ActionOnStart = "on_start"

// Keep-alive actions exchanged over a session.
const (
	ActionPing = "ping"
	ActionPong = "pong"
)

// Message kinds.
const (
	TypeNotification = "notification"
	TypeResponse     = "response"
)

// WSMessage is the envelope pushed to every real-time session.
type WSMessage struct {
	Action string      `json:"action"`
	Type   string      `json:"type"`
	Data   interface{} `json:"data"`
}

// Notification wraps a payload in the standard envelope.
func Notification(action string, data interface{}) *WSMessage {
	return &WSMessage{Action: action, Type: TypeNotification, Data: data}
}
