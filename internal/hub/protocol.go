package hub

import (
	"encoding/json"
	"fmt"

	"github.com/phrazzld/taskmanager/internal/domain"
)

// Path is where the hub is mounted.
const Path = "/taskhub"

// MessageType discriminates frames on the wire.
type MessageType string

const (
	TypeInvocation MessageType = "invocation"
	TypeEvent      MessageType = "event"
	TypeWelcome    MessageType = "welcome"
	TypeError      MessageType = "error"
)

// Invocation targets accepted from clients.
const (
	NotifyTaskChanged = "NotifyTaskChanged"
	NotifyUserChanged = "NotifyUserChanged"
)

// Message is a single JSON text frame.
type Message struct {
	Type         MessageType `json:"type"`
	Target       string      `json:"target,omitempty"`
	ConnectionID string      `json:"connection_id,omitempty"`
	Error        string      `json:"error,omitempty"`
}

// Invocation builds the client-to-hub message announcing a change.
func Invocation(kind domain.ChangeKind) (Message, error) {
	switch kind {
	case domain.TaskChanged:
		return Message{Type: TypeInvocation, Target: NotifyTaskChanged}, nil
	case domain.UserChanged:
		return Message{Type: TypeInvocation, Target: NotifyUserChanged}, nil
	default:
		return Message{}, fmt.Errorf("no invocation for change kind %q", kind)
	}
}

// Event builds the hub-to-client message for a change.
func Event(kind domain.ChangeKind) Message {
	return Message{Type: TypeEvent, Target: string(kind)}
}

// InvocationKind maps an invocation target to the change it announces.
func InvocationKind(target string) (domain.ChangeKind, bool) {
	switch target {
	case NotifyTaskChanged:
		return domain.TaskChanged, true
	case NotifyUserChanged:
		return domain.UserChanged, true
	default:
		return "", false
	}
}

// EventKind maps an event target to its change kind.
func EventKind(target string) (domain.ChangeKind, bool) {
	kind := domain.ChangeKind(target)
	return kind, kind.Valid()
}

// Encode serializes m for a text frame.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a text frame.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decoding message: %w", err)
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("decoding message: missing type")
	}
	return m, nil
}
