package call

import (
	"time"

	"github.com/Dupahar/crisis-call-murf-agent/pkg/escalation"
	"github.com/Dupahar/crisis-call-murf-agent/pkg/inference"
)

// Role identifies who spoke a message.
type Role string

const (
	RoleOperator Role = "operator"
	RoleCaller   Role = "caller"
)

// TimestampLayout renders message times like "03:04 PM".
const TimestampLayout = "03:04 PM"

// Message is one entry of the call log.
type Message struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"time"`
}

func newMessage(role Role, content string, at time.Time) Message {
	return Message{
		Role:      role,
		Content:   escalation.Strip(content),
		Timestamp: at.Format(TimestampLayout),
	}
}

// History converts the log into generator input. Operator lines are the
// user side, caller lines the assistant side.
func History(log []Message) []inference.Message {
	out := make([]inference.Message, 0, len(log)+1)
	for _, m := range log {
		if m.Role == RoleCaller {
			out = append(out, inference.NewAssistantMessage(m.Content))
		} else {
			out = append(out, inference.NewUserMessage(m.Content))
		}
	}
	return out
}

// Turn is one generate-and-speak cycle. Its ID is the only cancellation token.
type Turn struct {
	ID        uint64
	InputText string
	Latency   time.Duration
	Panic     bool
	Initial   bool
	IssuedAt  time.Time
}
