package websocket

import "github.com/stemsi/libris-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action of a client message.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventSnapshot Event = "snapshot"
	EventActivity Event = "activity"
	EventPong     Event = "pong"
)

// SnapshotResponse is sent once on connect with today's recent activity.
type SnapshotResponse struct {
	Event  Event                 `json:"event"`
	Events []model.ActivityEvent `json:"events"`
}

// ActivityResponse carries one live check-in or check-out.
type ActivityResponse struct {
	Event    Event               `json:"event"`
	Activity model.ActivityEvent `json:"activity"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
