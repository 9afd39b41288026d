package inference

// Role is who spoke a message. The dispatcher is the user side of the
// conversation and the simulated caller is the assistant side.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one history entry.
type Message struct {
	Role    Role
	Content string
}

func NewSystemMessage(content string) Message    { return Message{RoleSystem, content} }
func NewUserMessage(content string) Message      { return Message{RoleUser, content} }
func NewAssistantMessage(content string) Message { return Message{RoleAssistant, content} }
