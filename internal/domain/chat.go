package domain

// ChatRole identifies who produced a conversation turn.
type ChatRole string

const (
	ChatRoleSystem    ChatRole = "system"
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one conversation turn. Turns are transient: the caller
// supplies prior history with each request and nothing is persisted.
type ChatMessage struct {
	Role    ChatRole
	Content string
}

// ValidateChatMessage checks a single history turn.
func ValidateChatMessage(m ChatMessage) error {
	switch m.Role {
	case ChatRoleUser, ChatRoleAssistant:
	default:
		return NewDomainError(ErrCodeValidation, "chat role must be 'user' or 'assistant'")
	}
	if m.Content == "" {
		return ErrEmptyMessage
	}
	return nil
}

// ChatEventType identifies the kind of a streamed answer event.
type ChatEventType string

const (
	ChatEventSources ChatEventType = "sources"
	ChatEventContent ChatEventType = "content"
	ChatEventDone    ChatEventType = "done"
	ChatEventError   ChatEventType = "error"
)

// ChatEvent is one element of the ordered answer stream. For a successful
// request the sequence is: one sources event, zero or more content events,
// one done event. A failed stream ends with a single error event instead of
// done; content already emitted is not retracted.
type ChatEvent struct {
	Type    ChatEventType
	Sources []string
	Content string
	Error   string
}
