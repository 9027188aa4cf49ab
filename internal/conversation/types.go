package conversation

import (
	"time"
)

// Role represents the author role of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
	RoleUnknown   Role = "unknown"
)

// ParseRole maps an export author role onto the known roles.
// Anything unrecognized becomes RoleUnknown.
func ParseRole(s string) Role {
	switch r := Role(s); r {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return r
	default:
		return RoleUnknown
	}
}

// Content types carried by export messages.
const (
	ContentTypeText = "text"
	ContentTypeCode = "code"
)

// excludedContentTypes carry no searchable text (internal errors and
// reasoning traces).
var excludedContentTypes = map[string]bool{
	"system_error":    true,
	"thoughts":        true,
	"reasoning_recap": true,
}

// DefaultTitle is used when an export record has no title.
const DefaultTitle = "Untitled"

// Conversation is the canonical, linearized form of one export record.
type Conversation struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
	DefaultModelSlug string     `json:"default_model_slug,omitempty"`
	Messages         []Message  `json:"messages"`
}

// MessageCount returns the number of retained messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// Message is a single retained turn of a conversation.
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	Role           Role       `json:"role"`
	Content        string     `json:"content"`
	Code           string     `json:"code"`
	ContentType    string     `json:"content_type"`
	ModelSlug      string     `json:"model_slug,omitempty"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
	TurnIndex      int        `json:"turn_index"`
	// Lang is filled in at indexing time.
	Lang string `json:"lang,omitempty"`
}

// IsEmpty reports whether the message has neither prose nor code.
func (m *Message) IsEmpty() bool {
	return m.Content == "" && m.Code == ""
}

// Node is one entry of an export's node-id keyed mapping.
type Node struct {
	ID       string       `json:"id"`
	Message  *nodeMessage `json:"message"`
	Parent   *string      `json:"parent"`
	Children []string     `json:"children"`
}

// ParentID returns the parent node id or "" for a root.
func (n *Node) ParentID() string {
	if n == nil || n.Parent == nil {
		return ""
	}
	return *n.Parent
}

// UnixTime converts fractional unix seconds to a UTC time.
func UnixTime(sec float64) time.Time {
	whole := int64(sec)
	nanos := int64((sec - float64(whole)) * 1e9)
	return time.Unix(whole, nanos).UTC()
}

// UnixSeconds converts a time to fractional unix seconds.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timePtr(sec *float64) *time.Time {
	if sec == nil {
		return nil
	}
	t := UnixTime(*sec)
	return &t
}
