package domain

// EventKind distinguishes plain messages from inline-button presses.
type EventKind int

const (
	EventMessage EventKind = iota
	EventCallback
)

// Event is one inbound interaction delivered by the messaging gateway.
type Event struct {
	Kind         EventKind
	ChatID       int64
	Text         string // EventMessage
	CallbackData string // EventCallback
}

// Button is one inline keyboard button attached to an outbound message.
type Button struct {
	Label string
	Data  string // callback data delivered back as Event.CallbackData
}

// Outbound is one message to deliver to a chat. Buttons, when present, are
// rendered as an inline keyboard by the gateway.
type Outbound struct {
	ChatID  int64
	Text    string
	Buttons [][]Button
}
