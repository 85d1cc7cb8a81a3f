// Package notify defines the notification sum type and the Sink interface
// through which game events reach connected clients. Stateless HTTP requests
// attach a no-op sink; the WebSocket hub provides a queued implementation.
package notify

// Notification kinds.
const (
	KindPhaseChanged  = "phase_changed"
	KindTalkRound     = "talk_round"
	KindGameStarted   = "game_started"
	KindGameEnded     = "game_ended"
	KindOrdersSet     = "orders_set"
	KindPlayerJoined  = "player_joined"
	KindMessage       = "message"
	KindPowerAssigned = "power_assigned"
)

// Notification is the envelope for all asynchronous events.
type Notification struct {
	Kind    string `json:"kind"`
	GameID  string `json:"game_id,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// Sink receives notifications for delivery to a client.
type Sink interface {
	Write(n Notification)
}

// NoopSink discards every notification. It backs ephemeral per-request
// connection handles, where the HTTP response has already been sent by the
// time a notification would fire.
type NoopSink struct{}

func (NoopSink) Write(Notification) {}
