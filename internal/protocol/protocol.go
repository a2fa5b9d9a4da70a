// Package protocol defines the JSON wire shapes exchanged with observers.
//
// Inbound frames are commands: {"action": <string>, ...}. Outbound frames
// are either a staged bulletin wrapped under its kind key
// ({"add_event": {...}}) or a control object carrying a "type" field.
//
// Reply routing is intentionally asymmetric and preserved from the
// original harness behavior:
//
//	action       reply target
//	------------ --------------------------------------------
//	next         bulletin to ALL; drained notice to ALL
//	push_all     bulletins to ALL; nothing else
//	push_event   bulletins to ALL; unknown-id error to ALL
//	reset        info ack to requester only
//	status       status to requester only
//	list_events  event_list to requester only
//	(unknown)    help to requester only
//	(bad JSON)   error to requester only
package protocol

import "github.com/seistech/quakefeed/internal/domain/catalog"

// Command actions.
const (
	ActionNext       = "next"
	ActionPushAll    = "push_all"
	ActionPushEvent  = "push_event"
	ActionReset      = "reset"
	ActionStatus     = "status"
	ActionListEvents = "list_events"
)

// Control frame type discriminators.
const (
	TypeConnected = "connected"
	TypeInfo      = "info"
	TypeStatus    = "status"
	TypeError     = "error"
	TypeEventList = "event_list"
	TypeHelp      = "help"
)

// Command is an inbound control message. Interval and EventID are only
// meaningful for push_all and push_event respectively; both stay nil when
// the sender omitted them.
type Command struct {
	Action   string   `json:"action"`
	Interval *float64 `json:"interval,omitempty"` // seconds
	EventID  *int     `json:"event_id,omitempty"`
}

// Connected is the one-time welcome frame sent to a handle on connect.
type Connected struct {
	Type          string `json:"type"`
	Message       string `json:"message"`
	TotalEvents   int    `json:"total_events"`
	TotalMessages int    `json:"total_messages"`
}

// NewConnected builds the welcome frame for the given catalog totals.
func NewConnected(totalEvents, totalMessages int) Connected {
	return Connected{
		Type:          TypeConnected,
		Message:       "connected to quakefeed replay server",
		TotalEvents:   totalEvents,
		TotalMessages: totalMessages,
	}
}

// Info is an informational notice.
type Info struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewInfo builds an info frame.
func NewInfo(message string) Info {
	return Info{Type: TypeInfo, Message: message}
}

// Error is a recoverable error notice. It never closes the connection.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewError builds an error frame.
func NewError(message string) Error {
	return Error{Type: TypeError, Message: message}
}

// Status reports the shared replay position.
type Status struct {
	Type             string `json:"type"`
	CurrentIndex     int    `json:"current_index"`
	TotalMessages    int    `json:"total_messages"`
	ConnectedClients int    `json:"connected_clients"`
}

// NewStatus builds a status frame.
func NewStatus(cursor, queueLen, clients int) Status {
	return Status{
		Type:             TypeStatus,
		CurrentIndex:     cursor,
		TotalMessages:    queueLen,
		ConnectedClients: clients,
	}
}

// EventList carries the reduced catalog view for list_events.
type EventList struct {
	Type   string            `json:"type"`
	Events []catalog.Summary `json:"events"`
}

// NewEventList builds an event_list frame.
func NewEventList(events []catalog.Summary) EventList {
	return EventList{Type: TypeEventList, Events: events}
}

// Help lists every recognized action with a one-line description. Sent as
// the fallback reply for unrecognized actions.
type Help struct {
	Type     string            `json:"type"`
	Commands map[string]string `json:"commands"`
}

// NewHelp builds the help frame.
func NewHelp() Help {
	return Help{
		Type: TypeHelp,
		Commands: map[string]string{
			"next":        "push the next staged message",
			"push_all":    "push all remaining messages (optional interval seconds)",
			"push_event":  "push every message for one event (requires event_id)",
			"reset":       "reset the replay cursor to the start",
			"status":      "report cursor position, queue length and client count",
			"list_events": "list all catalog events",
		},
	}
}

// WrapBulletin wraps a staged payload under its kind key, producing the
// {"add_event": {...}} envelope observers receive.
func WrapBulletin(kind string, payload any) map[string]any {
	return map[string]any{kind: payload}
}
